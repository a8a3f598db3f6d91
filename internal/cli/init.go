// Package cli holds the process setup shared by the balances commands.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/joho/godotenv"

	"balances/internal/amqp"
	"balances/internal/config"
	"balances/internal/log"
	"balances/internal/source"
	"balances/internal/view"
)

// Overrides are command-line values that win over the environment for one
// invocation. Empty fields leave the config alone.
type Overrides struct {
	Source string
	URL    string
	File   string
	Port   string
}

// Apply copies the set fields into cfg. A URL or file given without an
// explicit source selects the matching source.
func (o Overrides) Apply(cfg *config.Config) {
	if o.URL != "" {
		cfg.BalancesURL = o.URL
		if o.Source == "" {
			cfg.Source = config.SourceHTTP
		}
	}
	if o.File != "" {
		cfg.BalancesFile = o.File
		if o.Source == "" {
			cfg.Source = config.SourceFile
		}
	}
	if o.Source != "" {
		cfg.Source = o.Source
	}
	if o.Port != "" {
		cfg.Port = o.Port
	}
}

// SetupLogger builds the process logger from cfg and makes it the slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env files for local development. Missing files are
// ignored; variables already set in the environment win.
func LoadEnvFile(paths ...string) {
	if len(paths) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// LoadAndValidateConfig reads the environment, applies o and validates the
// result.
func LoadAndValidateConfig(o Overrides) (*config.Config, error) {
	cfg := config.Load()
	o.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewViewModel wires the configured snapshot source and, when AMQP is
// configured, the load-event publisher. The returned cleanup closes the
// publisher. A broker that cannot be reached is logged and skipped.
func NewViewModel(ctx context.Context, cfg *config.Config, logger *log.Logger) (*view.ViewModel, func(), error) {
	fetcher, err := source.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []view.Option{
		view.WithLocation(cfg.Location()),
		view.WithLogger(logger),
	}
	cleanup := func() {}

	if cfg.AMQPEnabled() {
		pub, err := amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			logger.WithComponent(log.ComponentAMQP).WarnContext(ctx, "AMQP publisher disabled",
				log.NewFields().
					WithOperation(log.OpStartup).
					WithError(err).
					ToSlice()...)
		} else {
			opts = append(opts, view.WithLoadHook(pub.LoadHook()))
			cleanup = func() {
				if err := pub.Close(); err != nil {
					logger.Warn("Closing AMQP publisher", log.FieldError, err.Error())
				}
			}
		}
	}

	return view.New(fetcher, opts...), cleanup, nil
}
