// Package ledger reads site-visit bookings from a spreadsheet and keeps their status
// column in step with the WhatsApp messages sent about them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// ErrMissingColumn is returned when the header row lacks a required column.
var ErrMissingColumn = errors.New("ledger header is missing a required column")

// Header names of the booking sheet.
const (
	ColumnPhone    = "Phone"
	ColumnName     = "Name"
	ColumnDate     = "Preferred Date"
	ColumnTime     = "Preferred Time"
	ColumnUnitType = "Unit Type"
	ColumnBudget   = "Budget"
	ColumnStatus   = "Status"
)

// Ledger is the booking store.
type Ledger interface {
	// FetchRows returns every booking below the header row.
	FetchRows(ctx context.Context) ([]models.BookingRow, error)
	// SetStatus writes status into the Status column of the given 1-based sheet row.
	SetStatus(ctx context.Context, row int, status string) error
}

// TextSender delivers WhatsApp text. messaging.Service implements it.
type TextSender interface {
	SendText(ctx context.Context, to string, body string) error
}

// header maps column names to zero-based indexes.
type header map[string]int

func parseHeader(cells []any) header {
	h := make(header, len(cells))
	for i, c := range cells {
		name := strings.TrimSpace(fmt.Sprint(c))
		if name == "" {
			continue
		}
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	return h
}

func (h header) require(names ...string) error {
	for _, n := range names {
		if _, ok := h[n]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingColumn, n)
		}
	}
	return nil
}

func (h header) cell(row []any, name string) string {
	i, ok := h[name]
	if !ok || i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

// parseRows turns sheet values, header first, into bookings. Row numbers are 1-based
// sheet rows, so values[1] becomes row 2.
func parseRows(values [][]any) ([]models.BookingRow, header, error) {
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("%w: sheet is empty", ErrMissingColumn)
	}
	h := parseHeader(values[0])
	if err := h.require(ColumnPhone, ColumnName, ColumnStatus); err != nil {
		return nil, nil, err
	}

	rows := make([]models.BookingRow, 0, len(values)-1)
	for i, raw := range values[1:] {
		rows = append(rows, models.BookingRow{
			Row:      i + 2,
			Phone:    h.cell(raw, ColumnPhone),
			Name:     h.cell(raw, ColumnName),
			Date:     h.cell(raw, ColumnDate),
			Time:     h.cell(raw, ColumnTime),
			UnitType: h.cell(raw, ColumnUnitType),
			Budget:   h.cell(raw, ColumnBudget),
			Status:   h.cell(raw, ColumnStatus),
		})
	}
	return rows, h, nil
}

// columnLetter converts a zero-based column index to A1 letters: 0 -> A, 26 -> AA.
func columnLetter(i int) string {
	var b []byte
	for i++; i > 0; i = (i - 1) / 26 {
		b = append([]byte{byte('A' + (i-1)%26)}, b...)
	}
	return string(b)
}
