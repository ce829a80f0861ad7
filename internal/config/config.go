package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Dashboard
	SpendingWindowDays int

	// Notification delivery
	NotifyChannel    string // "log" or "email"
	DispatchInterval time.Duration

	// SMTP (only used when NotifyChannel is "email")
	SMTPAddr     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTo       string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/kasa.db"),

		SpendingWindowDays: getEnvInt("SPENDING_WINDOW_DAYS", 30),

		NotifyChannel:    getEnv("NOTIFY_CHANNEL", "log"),
		DispatchInterval: getEnvDuration("DISPATCH_INTERVAL", time.Minute),

		SMTPAddr:     getEnv("SMTP_ADDR", ""),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPTo:       getEnv("SMTP_TO", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate database path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate spending window
	if c.SpendingWindowDays < 1 {
		errors = append(errors, fmt.Sprintf("invalid spending window %d: must be at least 1 day", c.SpendingWindowDays))
	} else if c.SpendingWindowDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid spending window %d: must be at most 366 days", c.SpendingWindowDays))
	}

	// Validate notification channel
	validChannels := []string{"log", "email"}
	isValidChannel := false
	for _, channel := range validChannels {
		if c.NotifyChannel == channel {
			isValidChannel = true
			break
		}
	}
	if !isValidChannel {
		errors = append(errors, fmt.Sprintf("invalid notify channel '%s': must be one of %v", c.NotifyChannel, validChannels))
	}

	// Validate SMTP configuration if channel is email
	if c.NotifyChannel == "email" {
		if c.SMTPAddr == "" {
			errors = append(errors, "SMTP address is required when using the email notify channel")
		}
		if c.SMTPFrom == "" {
			errors = append(errors, "SMTP sender address is required when using the email notify channel")
		}
		if c.SMTPTo == "" {
			errors = append(errors, "SMTP recipient address is required when using the email notify channel")
		}
	}

	// Validate dispatch interval
	if c.DispatchInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid dispatch interval %v: must be at least 1 second", c.DispatchInterval))
	} else if c.DispatchInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid dispatch interval %v: must be at most 24 hours", c.DispatchInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
