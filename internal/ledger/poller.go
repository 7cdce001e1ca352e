package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/extract"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/redact"
)

// Poller defaults.
const (
	DefaultPollInterval = 5 * time.Minute
	DefaultErrorBackoff = 1 * time.Minute
)

// Poller confirms new bookings over WhatsApp.
type Poller struct {
	ledger       Ledger
	sender       TextSender
	messages     Messages
	interval     time.Duration
	errorBackoff time.Duration
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the delay between successful polls.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithErrorBackoff sets the delay after a failed poll.
func WithErrorBackoff(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.errorBackoff = d
		}
	}
}

// WithMessages sets the confirmation copy.
func WithMessages(m Messages) PollerOption {
	return func(p *Poller) { p.messages = m.withDefaults() }
}

// NewPoller creates a Poller.
func NewPoller(l Ledger, sender TextSender, opts ...PollerOption) *Poller {
	p := &Poller{
		ledger:       l,
		sender:       sender,
		messages:     Messages{}.withDefaults(),
		interval:     DefaultPollInterval,
		errorBackoff: DefaultErrorBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckNewBookings confirms every row without a status and records the outcome on
// that row. Rows missing phone, name, date or time are left untouched for a later poll.
// It returns how many rows were confirmed.
func (p *Poller) CheckNewBookings(ctx context.Context) (int, error) {
	rows, err := p.ledger.FetchRows(ctx)
	if err != nil {
		return 0, err
	}

	confirmed := 0
	for _, row := range rows {
		if !row.IsNew() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return confirmed, err
		}
		phone := extract.NormalizeIndianPhone(row.Phone)
		if phone == "" || row.Name == "" || row.Date == "" || row.Time == "" {
			slog.Debug("Poller.CheckNewBookings: incomplete row skipped", "row", row.Row)
			continue
		}

		status := models.BookingStatusConfirmed
		if err := p.sender.SendText(ctx, phone, p.messages.Confirmation(row)); err != nil {
			slog.Error("Poller.CheckNewBookings: confirmation not delivered", "row", row.Row, "to", redact.Phone(phone), "error", err)
			status = models.BookingStatusSendFailed
		}
		if err := p.ledger.SetStatus(ctx, row.Row, status); err != nil {
			slog.Error("Poller.CheckNewBookings: status write failed", "row", row.Row, "status", status, "error", err)
			continue
		}
		if status == models.BookingStatusConfirmed {
			confirmed++
			slog.Info("Poller.CheckNewBookings: site visit confirmed", "row", row.Row, "date", row.Date, "time", row.Time)
		}
	}
	return confirmed, nil
}

// Run polls immediately and then every interval, waiting the error backoff instead
// after a failed poll. It returns when ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("Poller.Run: started", "interval", p.interval, "error_backoff", p.errorBackoff)
	for {
		wait := p.interval
		if _, err := p.CheckNewBookings(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("Poller.Run: poll failed", "error", err, "retry_in", p.errorBackoff)
			wait = p.errorBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("Poller.Run: stopped")
			return nil
		case <-timer.C:
		}
	}
}
