// Package flow routes each inbound message through LeadPipe's conversation state machine.
//
// A turn is checked against a fixed precedence: pending brochure phone capture,
// brochure request, brochure confirmation, agent handoff, booking request, step-by-step
// booking, and finally a generated answer. The first branch that applies decides the turn.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/extract"
	"github.com/BTreeMap/LeadPipe/internal/intent"
	"github.com/BTreeMap/LeadPipe/internal/knowledge"
	"github.com/BTreeMap/LeadPipe/internal/lang"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/prompt"
	"github.com/BTreeMap/LeadPipe/internal/redact"
	"github.com/BTreeMap/LeadPipe/internal/store"
)

// DocumentSender delivers the brochure.
type DocumentSender interface {
	SendDocument(ctx context.Context, to string, doc models.Document) error
}

// Answerer produces a reply for a prompt and never fails.
type Answerer interface {
	Ask(ctx context.Context, prompt string) string
}

// Default brochure settings.
const (
	DefaultBrochureRef      = "1562506805130847"
	DefaultBrochureFileName = "Brookstone.pdf"
	DefaultBrochureCaption  = "Here is your Brookstone Brochure 📄"
)

// Opts holds router configuration.
type Opts struct {
	Templates     Templates
	Document      models.Document
	HistoryLimit  int
	GuidedBooking bool
	PromptOptions []prompt.Option
	Matcher       *intent.Matcher
	Now           func() time.Time
}

// Option configures a Router.
type Option func(*Opts)

// WithTemplates sets the reply copy. Empty fields keep their defaults.
func WithTemplates(t Templates) Option {
	return func(o *Opts) { o.Templates = t }
}

// WithDocument sets the brochure sent on request.
func WithDocument(doc models.Document) Option {
	return func(o *Opts) { o.Document = doc }
}

// WithHistoryLimit caps stored chat history. Zero keeps everything.
func WithHistoryLimit(n int) Option {
	return func(o *Opts) { o.HistoryLimit = n }
}

// WithGuidedBooking makes a booking request start the step-by-step booking dialogue
// instead of replying with the booking form link.
func WithGuidedBooking(enabled bool) Option {
	return func(o *Opts) { o.GuidedBooking = enabled }
}

// WithPromptOptions passes options through to prompt.Build.
func WithPromptOptions(opts ...prompt.Option) Option {
	return func(o *Opts) { o.PromptOptions = append(o.PromptOptions, opts...) }
}

// WithMatcher replaces the default keyword matcher.
func WithMatcher(m *intent.Matcher) Option {
	return func(o *Opts) { o.Matcher = m }
}

// WithClock replaces time.Now, mainly in tests.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// Router runs conversation turns.
type Router struct {
	store     store.ConversationStore
	sender    DocumentSender
	answerer  Answerer
	knowledge *knowledge.Base
	matcher   *intent.Matcher
	templates Templates
	document  models.Document
	history   int
	guided    bool
	promptOpt []prompt.Option
	now       func() time.Time
	locks     *keyedMutex
}

// NewRouter creates a Router. The store, sender and answerer are required.
func NewRouter(st store.ConversationStore, sender DocumentSender, answerer Answerer, kb *knowledge.Base, opts ...Option) *Router {
	o := Opts{
		Document: models.Document{
			Ref:      DefaultBrochureRef,
			FileName: DefaultBrochureFileName,
			Caption:  DefaultBrochureCaption,
		},
		Now: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Matcher == nil {
		o.Matcher = intent.NewMatcher(nil)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	t := o.Templates.withDefaults()
	slog.Debug("Router.NewRouter: created", "guided_booking", o.GuidedBooking, "history_limit", o.HistoryLimit, "document_ref_set", o.Document.Ref != "")
	return &Router{
		store:     st,
		sender:    sender,
		answerer:  answerer,
		knowledge: kb,
		matcher:   o.Matcher,
		templates: t,
		document:  o.Document,
		history:   o.HistoryLimit,
		guided:    o.GuidedBooking,
		promptOpt: o.PromptOptions,
		now:       o.Now,
		locks:     newKeyedMutex(),
	}
}

// HandleTurn processes one message from userID. ok is false when the turn's visible
// result was a side effect (the brochure was sent) and nothing should be replied.
//
// Turns for the same user are serialised. A non-nil error means the state could not be
// loaded or saved; when the reply was already decided it is still returned with ok set.
func (r *Router) HandleTurn(ctx context.Context, userID, text string) (reply string, ok bool, err error) {
	unlock := r.locks.Lock(userID)
	defer unlock()

	st, err := r.store.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		st = models.NewConversationState(userID, r.now())
		slog.Debug("Router.HandleTurn: new conversation", "user", redact.Phone(userID))
	} else if err != nil {
		slog.Error("Router.HandleTurn: failed to load state", "user", redact.Phone(userID), "error", err)
		return "", false, fmt.Errorf("load conversation state: %w", err)
	}

	st.Language = lang.Detect(text)
	st.AppendUser(text)

	reply, ok, branch := r.route(ctx, st, userID, text)
	if ok {
		st.AppendBot(reply)
	}
	slog.Debug("Router.HandleTurn: turn routed", "user", redact.Phone(userID), "branch", branch, "language", st.Language, "reply", ok)

	st.TrimHistory(r.history)
	st.UpdatedAt = r.now()
	if err := r.store.Save(ctx, st); err != nil {
		slog.Error("Router.HandleTurn: failed to save state", "user", redact.Phone(userID), "error", err)
		return reply, ok, fmt.Errorf("save conversation state: %w", err)
	}
	return reply, ok, nil
}

// route applies the branch precedence and returns the reply and the branch name.
func (r *Router) route(ctx context.Context, st *models.ConversationState, userID, text string) (string, bool, string) {
	if st.CaptureMode == models.CaptureAwaitingPhoneForDocument {
		phone, found := extract.MobileNumber(text)
		if !found {
			return r.templates.DocumentPhoneReprompt(), true, "document_phone_reprompt"
		}
		st.CaptureMode = models.CaptureNone
		if err := r.sendDocument(ctx, phone); err != nil {
			return r.templates.PhoneDocumentFailed(), true, "document_phone_failed"
		}
		return "", false, "document_phone"
	}

	if r.matcher.Matches(intent.Document, text) {
		st.AwaitingDocumentConfirmation = true
		if err := r.sendDocument(ctx, userID); err != nil {
			return r.templates.DocumentFailed(), true, "document_failed"
		}
		return "", false, "document"
	}

	if st.AwaitingDocumentConfirmation {
		st.AwaitingDocumentConfirmation = false
		if r.matcher.Matches(intent.Affirmative, text) {
			if err := r.sendDocument(ctx, userID); err != nil {
				return r.templates.ConfirmedDocumentFailed(), true, "document_confirmed_failed"
			}
			return "", false, "document_confirmed"
		}
	}

	if r.matcher.Matches(intent.Handoff, text) {
		return r.templates.Handoff(), true, "handoff"
	}

	if r.matcher.Matches(intent.Booking, text) {
		if !r.guided {
			return r.templates.BookingForm(st.Language), true, "booking_form"
		}
		if st.CaptureMode != models.CaptureBooking {
			st.CaptureMode = models.CaptureBooking
			st.Booking = newBookingDraft(userID)
			return r.templates.BookingStart(), true, "booking_start"
		}
	}

	if st.CaptureMode == models.CaptureBooking {
		if st.Booking == nil {
			st.Booking = newBookingDraft(userID)
		}
		reply, done := advanceBooking(st.Booking, text, r.templates)
		if done {
			slog.Info("Router.route: booking draft completed, redirecting to form",
				"user", redact.Phone(userID), "unit_type", st.Booking.UnitType, "budget", st.Booking.Budget)
			st.CaptureMode = models.CaptureNone
			st.Booking = nil
			st.AwaitingDocumentConfirmation = true
		}
		return reply, true, "booking_step"
	}

	if budget, found := extract.Budget(text); found && st.Booking != nil {
		slog.Info("Router.route: budget mentioned", "user", redact.Phone(userID), "budget", budget)
	}

	p := prompt.Build(text, r.knowledge, st.Language, st.ChatHistory, r.promptOpt...)
	return r.answerer.Ask(ctx, p), true, "answer"
}

func (r *Router) sendDocument(ctx context.Context, to string) error {
	if err := r.sender.SendDocument(ctx, to, r.document); err != nil {
		slog.Error("Router.sendDocument: brochure delivery failed", "to", redact.Phone(to), "error", err)
		return err
	}
	slog.Info("Router.sendDocument: brochure sent", "to", redact.Phone(to))
	return nil
}

// Reset forgets everything about userID.
func (r *Router) Reset(ctx context.Context, userID string) error {
	unlock := r.locks.Lock(userID)
	defer unlock()
	return r.store.Delete(ctx, userID)
}

// Snapshot returns the stored state of userID.
func (r *Router) Snapshot(ctx context.Context, userID string) (*models.ConversationState, error) {
	unlock := r.locks.Lock(userID)
	defer unlock()
	return r.store.Get(ctx, userID)
}
