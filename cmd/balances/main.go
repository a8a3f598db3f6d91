package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ucli "github.com/urfave/cli/v2"

	"balances/internal/cli"
	"balances/internal/config"
	"balances/internal/core"
	"balances/internal/export"
	apphttp "balances/internal/http"
	"balances/internal/log"
	"balances/internal/term"
	"balances/internal/view"
)

func main() {
	app := &ucli.App{
		Name:  "balances",
		Usage: "household balances dashboard",
		Flags: []ucli.Flag{
			&ucli.StringFlag{Name: "source", Usage: "snapshot source: http or file (overrides BALANCES_SOURCE)"},
			&ucli.StringFlag{Name: "url", Usage: "balances endpoint (overrides BALANCES_URL)"},
			&ucli.StringFlag{Name: "file", Usage: "local snapshot JSON (overrides BALANCES_FILE)"},
			&ucli.StringSliceFlag{Name: "env-file", Usage: "extra .env files to load"},
		},
		Commands: []*ucli.Command{
			{
				Name:   "serve",
				Usage:  "serve the dashboard over HTTP",
				Flags:  []ucli.Flag{&ucli.StringFlag{Name: "port", Usage: "listen port (overrides PORT)"}},
				Action: serve,
			},
			{
				Name:  "show",
				Usage: "load one snapshot and print it",
				Flags: []ucli.Flag{
					&ucli.StringFlag{Name: "currency", Value: core.BaseCurrency.String(), Usage: "grand total currency: GBP, USD or HKD"},
				},
				Action: show,
			},
			{
				Name:  "export",
				Usage: "load one snapshot and export it",
				Flags: []ucli.Flag{
					&ucli.StringFlag{Name: "out", Usage: "write an xlsx workbook to this path, - for stdout"},
					&ucli.BoolFlag{Name: "sheets", Usage: "write to the configured Google Sheet"},
				},
				Action: exportSnapshot,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "balances:", err)
		os.Exit(1)
	}
}

func setup(c *ucli.Context, logOut io.Writer) (*config.Config, *log.Logger, error) {
	cli.LoadEnvFile(c.StringSlice("env-file")...)
	cfg, err := cli.LoadAndValidateConfig(cli.Overrides{
		Source: c.String("source"),
		URL:    c.String("url"),
		File:   c.String("file"),
		Port:   c.String("port"),
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, cli.SetupLogger(cfg, logOut), nil
}

func serve(c *ucli.Context) error {
	cfg, logger, err := setup(c, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vm, cleanup, err := cli.NewViewModel(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := apphttp.NewServer(":"+cfg.Port, vm, apphttp.Options{
		Logger:         logger,
		LoadsPerMinute: cfg.LoadRatePerMinute,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting balances server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			log.FieldSource, cfg.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func show(c *ucli.Context) error {
	cfg, logger, err := setup(c, os.Stderr)
	if err != nil {
		return err
	}
	vm, cleanup, err := cli.NewViewModel(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	loadErr := vm.LoadSnapshot(c.Context)
	if loadErr == nil {
		vm.SelectDisplayCurrency(c.String("currency"))
	}
	if err := term.Render(os.Stdout, vm.Surface()); err != nil {
		return err
	}
	if loadErr != nil {
		return ucli.Exit("", 1)
	}
	return nil
}

func exportSnapshot(c *ucli.Context) error {
	out, toSheets := c.String("out"), c.Bool("sheets")
	if out == "" && !toSheets {
		return errors.New("nothing to do: pass --out and/or --sheets")
	}

	cfg, logger, err := setup(c, os.Stderr)
	if err != nil {
		return err
	}
	if toSheets && !cfg.SheetsEnabled() {
		return errors.New("--sheets needs GOOGLE_SPREADSHEET_ID and service account credentials")
	}

	vm, cleanup, err := cli.NewViewModel(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := vm.LoadSnapshot(c.Context); err != nil {
		return err
	}
	v, _ := vm.View()

	if out != "" {
		if err := writeWorkbook(out, v); err != nil {
			return err
		}
		logger.Info("Workbook written", log.FieldOperation, log.OpExport, "path", out)
	}

	if toSheets {
		creds, err := export.LoadCredentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
		if err != nil {
			return err
		}
		w, err := export.NewSheetsWriter(c.Context, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, creds, logger)
		if err != nil {
			return err
		}
		if err := w.Write(c.Context, v); err != nil {
			return err
		}
	}
	return nil
}

func writeWorkbook(path string, v view.View) error {
	if path == "-" {
		return export.WriteXLSX(os.Stdout, v)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteXLSX(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
