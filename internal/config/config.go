package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	SourceHTTP = "http"
	SourceFile = "file"
)

type Config struct {
	// HTTP Server
	Port string

	// Snapshot source
	Source       string
	BalancesURL  string
	BalancesFile string
	FetchTimeout time.Duration

	// Presentation
	DisplayTimezone   string
	LoadRatePerMinute int

	// Logging
	LogLevel  string
	LogFormat string

	// AMQP (optional load events)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Google Sheets (optional export)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		Source:       strings.ToLower(getEnv("BALANCES_SOURCE", SourceHTTP)),
		BalancesURL:  getEnv("BALANCES_URL", "http://localhost:8000/balances"),
		BalancesFile: getEnv("BALANCES_FILE", "./data/balances.json"),
		FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 0),

		DisplayTimezone:   getEnv("DISPLAY_TIMEZONE", "Local"),
		LoadRatePerMinute: getEnvInt("LOAD_RATE_PER_MINUTE", 30),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "balances"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "balances.loaded"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Balances"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.Source {
	case SourceHTTP:
		if u, err := url.Parse(c.BalancesURL); err != nil || c.BalancesURL == "" {
			errors = append(errors, fmt.Sprintf("invalid balances URL '%s'", c.BalancesURL))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid balances URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	case SourceFile:
		if c.BalancesFile == "" {
			errors = append(errors, "balances file path cannot be empty when using file source")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid balances source '%s': must be one of [%s %s]", c.Source, SourceHTTP, SourceFile))
	}

	if c.FetchTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must not be negative", c.FetchTimeout))
	}

	if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid display timezone '%s': %v", c.DisplayTimezone, err))
	}

	if c.LoadRatePerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid load rate %d: must be at least 1 per minute", c.LoadRatePerMinute))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location resolves DisplayTimezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) AMQPEnabled() bool   { return c.AMQPURL != "" }
func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

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
