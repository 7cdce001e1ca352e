package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/redact"
	"github.com/BTreeMap/LeadPipe/internal/store"
)

// DefaultMaxConcurrentTurns bounds how many turns run at once.
const DefaultMaxConcurrentTurns = 16

// laneBuffer is how many accepted messages may wait in one worker lane.
const laneBuffer = 32

// TurnHandler runs one conversation turn. flow.Router implements it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, userID, text string) (reply string, ok bool, err error)
}

// Dispatcher feeds inbound messages to a TurnHandler and sends the replies.
//
// Messages are spread over a fixed set of worker lanes keyed by sender, so one
// sender's turns run one at a time in arrival order while different senders proceed
// in parallel. Every message is acknowledged (marked read) before its turn runs, and a
// failing or panicking turn is logged without affecting other messages.
type Dispatcher struct {
	svc         Service
	turns       TurnHandler
	dedup       store.DedupRepo
	maxInFlight int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDedup skips messages whose id was already recorded.
func WithDedup(repo store.DedupRepo) DispatcherOption {
	return func(d *Dispatcher) { d.dedup = repo }
}

// WithMaxConcurrentTurns overrides DefaultMaxConcurrentTurns.
func WithMaxConcurrentTurns(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxInFlight = n
		}
	}
}

// NewDispatcher creates a Dispatcher reading from svc.
func NewDispatcher(svc Service, turns TurnHandler, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{svc: svc, turns: turns, maxInFlight: DefaultMaxConcurrentTurns}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes messages until the inbound channel closes or ctx is cancelled, then
// waits for the turns already running. Those turns keep a context that outlives ctx so
// their replies are still delivered; messages still queued at cancellation are skipped.
func (d *Dispatcher) Run(ctx context.Context) error {
	turnCtx := context.WithoutCancel(ctx)
	lanes := make([]chan models.InboundMessage, d.maxInFlight)

	var g errgroup.Group
	for i := range lanes {
		lane := make(chan models.InboundMessage, laneBuffer)
		lanes[i] = lane
		g.Go(func() error {
			for msg := range lane {
				if ctx.Err() != nil {
					slog.Warn("Dispatcher.Run: shutting down, skipping queued message", "id", msg.ID)
					continue
				}
				d.Handle(turnCtx, msg)
			}
			return nil
		})
	}
	slog.Info("Dispatcher.Run: started", "lanes", len(lanes), "dedup", d.dedup != nil)

	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
		_ = g.Wait()
		slog.Info("Dispatcher.Run: stopped")
	}()

	inbound := d.svc.Inbound()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, open := <-inbound:
			if !open {
				return nil
			}
			if !d.accept(msg) {
				continue
			}
			select {
			case lanes[laneFor(msg.From, len(lanes))] <- msg:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// laneFor maps a sender to a worker lane.
func laneFor(from string, n int) int {
	return int(xxhash.Sum64String(from) % uint64(n))
}

// accept validates msg and records it for de-duplication.
func (d *Dispatcher) accept(msg models.InboundMessage) bool {
	if err := msg.Validate(); err != nil {
		slog.Warn("Dispatcher.accept: skipping invalid message", "id", msg.ID, "error", err)
		return false
	}
	if d.dedup == nil || msg.ID == "" {
		return true
	}
	fresh, err := d.dedup.RecordInbound(msg.ID, msg.From)
	if err != nil {
		slog.Error("Dispatcher.accept: dedup record failed", "id", msg.ID, "error", err)
		return true
	}
	if !fresh {
		slog.Info("Dispatcher.accept: duplicate delivery skipped", "id", msg.ID)
	}
	return fresh
}

// Handle runs one message to completion. It never panics.
func (d *Dispatcher) Handle(ctx context.Context, msg models.InboundMessage) {
	turnID := uuid.NewString()
	log := slog.With("turn_id", turnID, "from", redact.Phone(msg.From), "message_id", msg.ID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Dispatcher.Handle: turn panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	if err := d.svc.MarkRead(ctx, msg); err != nil {
		log.Warn("Dispatcher.Handle: mark read failed", "error", err)
	}

	log.Debug("Dispatcher.Handle: turn started", "text_length", len(msg.Text))
	reply, ok, err := d.turns.HandleTurn(ctx, msg.From, msg.Text)
	if err != nil {
		log.Error("Dispatcher.Handle: turn failed", "error", err)
	}
	if ok && reply != "" {
		if err := d.svc.SendText(ctx, msg.From, reply); err != nil {
			log.Error("Dispatcher.Handle: reply not delivered", "error", err)
		}
	}

	if d.dedup != nil && msg.ID != "" {
		if err := d.dedup.MarkProcessed(msg.ID); err != nil {
			log.Warn("Dispatcher.Handle: mark processed failed", "error", err)
		}
	}
	log.Debug("Dispatcher.Handle: turn finished", "replied", ok)
}
