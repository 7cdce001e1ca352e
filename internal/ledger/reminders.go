package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/extract"
	"github.com/BTreeMap/LeadPipe/internal/models"
)

// dateLayouts are the date formats accepted in the Preferred Date column, day first.
var dateLayouts = []string{"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006", "2006-01-02"}

// parseVisitDate parses a sheet date in loc.
func parseVisitDate(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Reminders messages confirmed visitors the day before their visit.
type Reminders struct {
	ledger   Ledger
	sender   TextSender
	messages Messages
	now      func() time.Time
}

// NewReminders creates a reminder job. now defaults to time.Now; its location decides
// what "tomorrow" means.
func NewReminders(l Ledger, sender TextSender, m Messages, now func() time.Time) *Reminders {
	if now == nil {
		now = time.Now
	}
	return &Reminders{ledger: l, sender: sender, messages: m.withDefaults(), now: now}
}

// Run sends reminders for confirmed visits dated tomorrow and marks them Reminded.
// It returns the number of reminders sent.
func (r *Reminders) Run(ctx context.Context) (int, error) {
	rows, err := r.ledger.FetchRows(ctx)
	if err != nil {
		return 0, err
	}

	now := r.now()
	y, m, d := now.AddDate(0, 0, 1).Date()
	tomorrow := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	sent := 0
	for _, row := range rows {
		if row.Status != models.BookingStatusConfirmed {
			continue
		}
		visit, ok := parseVisitDate(row.Date, now.Location())
		if !ok {
			slog.Debug("Reminders.Run: unparseable date", "row", row.Row, "date", row.Date)
			continue
		}
		if !visit.Equal(tomorrow) {
			continue
		}
		phone := extract.NormalizeIndianPhone(row.Phone)
		if err := r.sender.SendText(ctx, phone, r.messages.Reminder(row)); err != nil {
			slog.Error("Reminders.Run: reminder not delivered", "row", row.Row, "error", err)
			continue
		}
		if err := r.ledger.SetStatus(ctx, row.Row, models.BookingStatusReminded); err != nil {
			slog.Error("Reminders.Run: status write failed", "row", row.Row, "error", err)
			continue
		}
		sent++
	}
	slog.Info("Reminders.Run: done", "sent", sent)
	return sent, nil
}
