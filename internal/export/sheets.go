package export

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"balances/internal/log"
	"balances/internal/view"
)

// SheetsWriter replaces the contents of one tab with the current view.
type SheetsWriter struct {
	spreadsheetID string
	sheetName     string
	svc           *sheets.Service
	logger        *log.Logger
}

// LoadCredentials returns the inline JSON when set, otherwise the file contents.
func LoadCredentials(inlineJSON, path string) ([]byte, error) {
	if inlineJSON != "" {
		return []byte(inlineJSON), nil
	}
	if path == "" {
		return nil, fmt.Errorf("no google service account credentials configured")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// NewSheetsWriter authenticates with a service account JSON key.
func NewSheetsWriter(ctx context.Context, spreadsheetID, sheetName string, credentialsJSON []byte, logger *log.Logger) (*SheetsWriter, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return newSheetsWriter(svc, spreadsheetID, sheetName, logger), nil
}

func newSheetsWriter(svc *sheets.Service, spreadsheetID, sheetName string, logger *log.Logger) *SheetsWriter {
	if logger == nil {
		logger = log.Discard()
	}
	return &SheetsWriter{
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		svc:           svc,
		logger:        logger.WithComponent(log.ComponentExport),
	}
}

// Write makes sure the tab exists, clears it and writes the account rows
// followed by a blank row and the grand totals.
func (w *SheetsWriter) Write(ctx context.Context, v view.View) error {
	if err := w.ensureSheet(ctx); err != nil {
		return err
	}

	values := Rows(v)
	values = append(values, []any{})
	values = append(values, GrandTotalRows(v)...)

	whole := fmt.Sprintf("'%s'", w.sheetName)
	if _, err := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID, whole, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clearing sheet %q: %w", w.sheetName, err)
	}

	_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, whole+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("writing sheet %q: %w", w.sheetName, err)
	}

	w.logger.InfoContext(ctx, "Snapshot exported to sheet",
		log.FieldOperation, log.OpExport,
		"spreadsheet_id", w.spreadsheetID,
		"sheet", w.sheetName,
		"rows", len(values),
	)
	return nil
}

func (w *SheetsWriter) ensureSheet(ctx context.Context) error {
	ss, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting spreadsheet metadata: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == w.sheetName {
			return nil
		}
	}

	_, err = w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: w.sheetName}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("creating sheet %q: %w", w.sheetName, err)
	}
	return nil
}
