package source

import (
	"fmt"

	"balances/internal/config"
	"balances/internal/log"
)

// New picks the Fetcher named by cfg.Source.
func New(cfg *config.Config, logger *log.Logger) (Fetcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = log.Discard()
	}

	switch cfg.Source {
	case config.SourceHTTP:
		if cfg.BalancesURL == "" {
			return nil, fmt.Errorf("balances URL is required for http source")
		}
		logger.Info("Using HTTP snapshot source", log.FieldURL, cfg.BalancesURL)
		return NewHTTPFetcher(cfg.BalancesURL, WithTimeout(cfg.FetchTimeout), WithLogger(logger)), nil
	case config.SourceFile:
		if cfg.BalancesFile == "" {
			return nil, fmt.Errorf("balances file is required for file source")
		}
		logger.Info("Using file snapshot source", log.FieldSource, cfg.BalancesFile)
		return NewFileFetcher(cfg.BalancesFile, logger), nil
	default:
		return nil, fmt.Errorf("unsupported balances source: %q", cfg.Source)
	}
}
