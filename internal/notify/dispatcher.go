package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Dispatcher is the local delivery engine: a Notifier that holds
// registrations in memory and periodically releases the due ones to a
// Sender. A failed send stays registered and is retried on the next
// tick.
type Dispatcher struct {
	mu      sync.Mutex
	pending map[string]Notification

	sender   Sender
	interval time.Duration
	cron     *cron.Cron
	now      func() time.Time
	refresh  func(context.Context)
}

func NewDispatcher(sender Sender, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		pending:  make(map[string]Notification),
		sender:   sender,
		interval: interval,
		now:      time.Now,
	}
}

// WithRefresh installs a projection refresh run on every tick, after
// the due notifications are released. The worker hangs its re-read of
// the persisted reminders here, so reminders created by another
// process become deliverable within one tick instead of waiting for a
// restart.
func (d *Dispatcher) WithRefresh(fn func(context.Context)) *Dispatcher {
	d.refresh = fn
	return d
}

// Start begins the periodic dispatch loop.
func (d *Dispatcher) Start() error {
	if d.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", d.interval), func() {
		d.tick(context.Background())
	}); err != nil {
		return fmt.Errorf("register dispatch job: %w", err)
	}
	c.Start()
	d.cron = c

	slog.Info("Notification dispatcher started", "interval", d.interval)
	return nil
}

// Stop halts the dispatch loop and waits for an in-flight tick.
func (d *Dispatcher) Stop() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
	d.cron = nil
}

func (d *Dispatcher) Schedule(_ context.Context, n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[n.ID] = n
	return nil
}

func (d *Dispatcher) Cancel(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, id)
	return nil
}

// Pending returns the number of outstanding registrations.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// tick is one pass of the periodic loop. Dispatch runs first: a
// refresh re-projects every reminder, which cancels and re-registers
// its instances and skips non-future triggers, so refreshing first
// would silently drop a due-but-undelivered instance.
func (d *Dispatcher) tick(ctx context.Context) {
	d.DispatchDue(ctx)
	if d.refresh != nil {
		d.refresh(ctx)
	}
}

// DispatchDue sends every registration whose trigger instant has
// passed and removes the ones that were delivered. Exposed so the
// worker can run one pass at startup.
func (d *Dispatcher) DispatchDue(ctx context.Context) int {
	now := d.now()

	d.mu.Lock()
	var due []Notification
	for _, n := range d.pending {
		if !n.TriggerAt.After(now) {
			due = append(due, n)
		}
	}
	d.mu.Unlock()

	delivered := 0
	for _, n := range due {
		if err := d.sender.Send(ctx, n); err != nil {
			slog.ErrorContext(ctx, "Notification delivery failed",
				"instance_id", n.ID,
				"trigger_at", n.TriggerAt,
				"error", err)
			continue
		}
		d.mu.Lock()
		delete(d.pending, n.ID)
		d.mu.Unlock()
		delivered++
	}

	if delivered > 0 {
		slog.InfoContext(ctx, "Notifications delivered", "count", delivered)
	}
	return delivered
}
