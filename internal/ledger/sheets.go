package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// DefaultTab is the sheet tab bookings are read from.
const DefaultTab = "Site Visits"

// Opts holds configuration options for SheetsLedger.
type Opts struct {
	SpreadsheetID string
	Tab           string
	Credentials   string // service account JSON, or a path to it
	ClientOptions []option.ClientOption
}

// Option defines a configuration option for SheetsLedger.
type Option func(*Opts)

// WithSpreadsheetID sets the spreadsheet to read.
func WithSpreadsheetID(id string) Option {
	return func(o *Opts) { o.SpreadsheetID = id }
}

// WithTab sets the tab name.
func WithTab(tab string) Option {
	return func(o *Opts) {
		if tab != "" {
			o.Tab = tab
		}
	}
}

// WithCredentials sets service account credentials, either inline JSON or a file path.
func WithCredentials(creds string) Option {
	return func(o *Opts) { o.Credentials = strings.TrimSpace(creds) }
}

// WithClientOptions passes extra options to the Sheets client, e.g. an endpoint in tests.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *Opts) { o.ClientOptions = append(o.ClientOptions, opts...) }
}

// credentialOptions follows the usual convention: a value starting with '{' is the key
// itself, anything else is a path.
func credentialOptions(creds string) []option.ClientOption {
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

// SheetsLedger is a Ledger backed by a Google Sheets tab.
type SheetsLedger struct {
	svc           *sheets.Service
	spreadsheetID string
	tab           string

	mu        sync.Mutex
	statusCol string
}

var _ Ledger = (*SheetsLedger)(nil)

// NewSheetsLedger connects to the Sheets API.
func NewSheetsLedger(ctx context.Context, opts ...Option) (*SheetsLedger, error) {
	cfg := Opts{Tab: DefaultTab}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SheetsLedger.NewSheetsLedger: options set",
		"spreadsheet_id_set", cfg.SpreadsheetID != "", "tab", cfg.Tab, "credentials_set", cfg.Credentials != "")
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id must be provided")
	}

	clientOpts := append(credentialOptions(cfg.Credentials), option.WithScopes(sheets.SpreadsheetsScope))
	clientOpts = append(clientOpts, cfg.ClientOptions...)
	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return &SheetsLedger{svc: svc, spreadsheetID: cfg.SpreadsheetID, tab: cfg.Tab}, nil
}

// a1 quotes the tab name for A1 notation.
func (l *SheetsLedger) a1(cells string) string {
	return "'" + strings.ReplaceAll(l.tab, "'", "''") + "'!" + cells
}

func (l *SheetsLedger) FetchRows(ctx context.Context) ([]models.BookingRow, error) {
	resp, err := l.svc.Spreadsheets.Values.Get(l.spreadsheetID, l.a1("A:ZZ")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	rows, h, err := parseRows(resp.Values)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.statusCol = columnLetter(h[ColumnStatus])
	l.mu.Unlock()
	slog.Debug("SheetsLedger.FetchRows: rows read", "count", len(rows))
	return rows, nil
}

func (l *SheetsLedger) SetStatus(ctx context.Context, row int, status string) error {
	if row < 2 {
		return fmt.Errorf("row %d is not a booking row", row)
	}
	col, err := l.statusColumn(ctx)
	if err != nil {
		return err
	}
	cell := l.a1(fmt.Sprintf("%s%d", col, row))
	_, err = l.svc.Spreadsheets.Values.Update(l.spreadsheetID, cell, &sheets.ValueRange{
		Values: [][]any{{status}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write status to %s: %w", cell, err)
	}
	return nil
}

// statusColumn returns the Status column letter, reading the header if no fetch has happened yet.
func (l *SheetsLedger) statusColumn(ctx context.Context) (string, error) {
	l.mu.Lock()
	col := l.statusCol
	l.mu.Unlock()
	if col != "" {
		return col, nil
	}
	resp, err := l.svc.Spreadsheets.Values.Get(l.spreadsheetID, l.a1("1:1")).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to read sheet header: %w", err)
	}
	if len(resp.Values) == 0 {
		return "", fmt.Errorf("%w: sheet is empty", ErrMissingColumn)
	}
	h := parseHeader(resp.Values[0])
	if err := h.require(ColumnStatus); err != nil {
		return "", err
	}
	col = columnLetter(h[ColumnStatus])
	l.mu.Lock()
	l.statusCol = col
	l.mu.Unlock()
	return col, nil
}
