package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BTreeMap/LeadPipe/internal/api"
	"github.com/BTreeMap/LeadPipe/internal/cloudapi"
	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/genai"
	"github.com/BTreeMap/LeadPipe/internal/knowledge"
	"github.com/BTreeMap/LeadPipe/internal/ledger"
	"github.com/BTreeMap/LeadPipe/internal/lockfile"
	"github.com/BTreeMap/LeadPipe/internal/messaging"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/prompt"
	"github.com/BTreeMap/LeadPipe/internal/scheduler"
	"github.com/BTreeMap/LeadPipe/internal/store"
	"github.com/BTreeMap/LeadPipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/LeadPipe/internal/whatsapp"
)

// Background maintenance intervals
const (
	janitorInterval = 10 * time.Minute
	dedupRetention  = 24 * time.Hour
)

// stateStore bundles the conversation store with its de-duplication repo and
// optional maintenance loop.
type stateStore struct {
	conversations store.ConversationStore
	dedup         store.DedupRepo
	maintain      func(ctx context.Context) error
}

// run wires every component and blocks until ctx is cancelled or one of them fails.
func run(ctx context.Context, flags Flags) error {
	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := buildStateStore(ctx, flags)
	if err != nil {
		return err
	}
	defer st.conversations.Close()

	svc, err := buildMessagingService(ctx, flags)
	if err != nil {
		return err
	}

	answerer := genai.NewAnswerer(buildAnswerBackend(ctx, flags), buildAnswererOptions(flags)...)
	kb := knowledge.Load(*flags.faqDir)
	router := flow.NewRouter(st.conversations, svc, answerer, kb, buildRouterOptions(flags)...)
	dispatcher := messaging.NewDispatcher(svc, router, messaging.WithDedup(st.dedup))

	apiOpts := []api.Option{
		api.WithAddr(*flags.apiAddr),
		api.WithHealth(true, answerer.Configured()),
		api.WithAdminToken(flags.config.AdminToken),
	}
	if wh, ok := svc.(messaging.WebhookService); ok {
		apiOpts = append(apiOpts, api.WithWebhooks(wh))
	}
	server := api.NewServer(router, apiOpts...)

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	// Sends stay enabled until the dispatcher has finished its running turns.
	g.Go(func() error {
		err := dispatcher.Run(gctx)
		if stopErr := svc.Stop(); stopErr != nil {
			slog.Warn("failed to stop messaging service", "error", stopErr)
		}
		return err
	})
	if st.maintain != nil {
		g.Go(func() error { return st.maintain(gctx) })
	}

	sched, err := startLedger(gctx, g, flags, svc)
	if err != nil {
		return err
	}
	if sched != nil {
		defer sched.Stop()
	}

	slog.Info("LeadPipe running", "api_addr", *flags.apiAddr, "transport", *flags.transport)
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildStateStore opens the configured conversation backend.
func buildStateStore(ctx context.Context, flags Flags) (*stateStore, error) {
	ttl := *flags.stateTTL
	switch *flags.stateBackend {
	case backendMemory:
		ms := store.NewMemoryStore(store.WithTTL(ttl))
		return &stateStore{
			conversations: ms,
			dedup:         store.NewMemoryDedup(dedupRetention),
			maintain: func(ctx context.Context) error {
				ms.StartJanitor(ctx, janitorInterval)
				return nil
			},
		}, nil
	case backendRedis:
		rs, err := store.NewRedisStore(ctx, store.WithRedisAddr(*flags.redisAddr), store.WithTTL(ttl))
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return &stateStore{conversations: rs, dedup: store.NewMemoryDedup(dedupRetention)}, nil
	case backendSQL:
		dsn := *flags.dbDSN
		if dsn == "" {
			dsn = filepath.Join(*flags.stateDir, DefaultStateDBFileName)
		}
		slog.Debug("opening SQL state store", "dsn_type", store.DetectDSNType(dsn))
		sq, err := store.NewSQLStore(store.WithDSN(dsn), store.WithTTL(ttl))
		if err != nil {
			return nil, fmt.Errorf("failed to open SQL store: %w", err)
		}
		return &stateStore{
			conversations: sq,
			dedup:         sq,
			maintain: func(ctx context.Context) error {
				return purgeLoop(ctx, sq, janitorInterval)
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", *flags.stateBackend)
	}
}

// purgeLoop deletes expired SQL rows every interval until ctx is cancelled.
func purgeLoop(ctx context.Context, sq store.SQLBackend, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := sq.PurgeExpired(ctx)
			if err != nil {
				slog.Error("purgeLoop: purge failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purgeLoop: expired conversations removed", "count", n)
			}
		}
	}
}

// buildMessagingService creates the transport chosen by -transport.
func buildMessagingService(ctx context.Context, flags Flags) (messaging.Service, error) {
	c := flags.config
	switch *flags.transport {
	case transportCloudAPI:
		client, err := cloudapi.NewClient(
			cloudapi.WithToken(c.WhatsAppToken),
			cloudapi.WithPhoneNumberID(c.PhoneNumberID),
			cloudapi.WithGraphVersion(c.GraphVersion),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Cloud API client: %w", err)
		}
		var opts []messaging.CloudAPIOption
		if c.VerifyToken != "" {
			opts = append(opts, messaging.WithVerifyToken(c.VerifyToken))
		}
		if c.AppSecret != "" {
			opts = append(opts, messaging.WithAppSecret(c.AppSecret))
		}
		return messaging.NewCloudAPIService(client, opts...), nil
	case transportTwilio:
		client, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithAccountSID(c.TwilioSID),
			twiliowhatsapp.WithAuthToken(c.TwilioToken),
			twiliowhatsapp.WithFromWhats(c.TwilioFrom),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		return messaging.NewTwilioService(client, messaging.WithTwilioSignatureCheck(c.TwilioToken, c.TwilioPublicURL)), nil
	case transportWhatsmeow:
		client, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(flags)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create whatsmeow client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", *flags.transport)
	}
}

// buildWhatsAppOptions constructs whatsmeow configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.whatsappDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDSN))
	}
	return waOpts
}

// buildGenAIOptions constructs backend options shared by both providers
func buildGenAIOptions(flags Flags) []genai.Option {
	opts := []genai.Option{genai.WithAPIKey(*flags.genaiKey)}
	if *flags.genaiModel != "" {
		opts = append(opts, genai.WithModel(*flags.genaiModel))
	}
	if *flags.genaiDebug {
		opts = append(opts, genai.WithDebugMode(true), genai.WithStateDir(*flags.stateDir))
	}
	return opts
}

// buildAnswerBackend returns nil when no backend can be created; the Answerer then
// replies with its configuration notice.
func buildAnswerBackend(ctx context.Context, flags Flags) genai.Backend {
	if *flags.genaiKey == "" {
		slog.Warn("no generative answer API key configured, questions will get a configuration notice", "provider", *flags.genaiProvider)
		return nil
	}
	var (
		backend genai.Backend
		err     error
	)
	switch *flags.genaiProvider {
	case providerOpenAI:
		backend, err = genai.NewOpenAIBackend(buildGenAIOptions(flags)...)
	case providerGemini:
		backend, err = genai.NewGeminiBackend(ctx, buildGenAIOptions(flags)...)
	default:
		err = fmt.Errorf("unknown provider %q", *flags.genaiProvider)
	}
	if err != nil {
		slog.Error("failed to create generative answer backend", "provider", *flags.genaiProvider, "error", err)
		return nil
	}
	return backend
}

func buildAnswererOptions(flags Flags) []genai.AnswererOption {
	if flags.config.AgentPhone == "" {
		return nil
	}
	return []genai.AnswererOption{genai.WithFallbackPhone(flags.config.AgentPhone)}
}

// buildRouterOptions maps business copy settings onto the turn router
func buildRouterOptions(flags Flags) []flow.Option {
	c := flags.config
	opts := []flow.Option{
		flow.WithTemplates(flow.Templates{
			ProjectName:     c.ProjectName,
			AgentName:       c.AgentName,
			AgentPhone:      c.AgentPhone,
			OfficeHours:     c.OfficeHours,
			FormURLEnglish:  c.FormURLEnglish,
			FormURLGujarati: c.FormURLGujarati,
		}),
		flow.WithGuidedBooking(*flags.guided),
		flow.WithHistoryLimit(*flags.historyLimit),
	}

	var promptOpts []prompt.Option
	if c.ProjectName != "" {
		promptOpts = append(promptOpts, prompt.WithProjectName(c.ProjectName))
	}
	if c.AgentPhone != "" {
		promptOpts = append(promptOpts, prompt.WithAgentPhone(c.AgentPhone))
	}
	if len(promptOpts) > 0 {
		opts = append(opts, flow.WithPromptOptions(promptOpts...))
	}

	if c.BrochureRef != "" {
		doc := models.Document{Ref: c.BrochureRef, FileName: flow.DefaultBrochureFileName, Caption: flow.DefaultBrochureCaption}
		if c.BrochureName != "" {
			doc.FileName = c.BrochureName
		}
		opts = append(opts, flow.WithDocument(doc))
	}
	return opts
}

// startLedger launches the confirmation poller and the reminder job when a
// spreadsheet is configured. The returned scheduler, if any, must be stopped.
func startLedger(ctx context.Context, g *errgroup.Group, flags Flags, sender ledger.TextSender) (*scheduler.Scheduler, error) {
	if *flags.spreadsheetID == "" {
		slog.Info("booking ledger disabled, no spreadsheet configured")
		return nil, nil
	}
	c := flags.config
	l, err := ledger.NewSheetsLedger(ctx,
		ledger.WithSpreadsheetID(*flags.spreadsheetID),
		ledger.WithTab(c.SheetsTab),
		ledger.WithCredentials(c.GoogleCredentials),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open booking ledger: %w", err)
	}

	msgs := ledger.Messages{ProjectName: c.ProjectName, AgentPhone: c.AgentPhone, ShowflatAddress: c.ShowflatAddress}
	poller := ledger.NewPoller(l, sender,
		ledger.WithInterval(*flags.pollInterval),
		ledger.WithErrorBackoff(c.ErrorBackoff),
		ledger.WithMessages(msgs),
	)
	g.Go(func() error { return poller.Run(ctx) })

	if *flags.reminderCron == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, reminders use local time", "timezone", c.Timezone, "error", err)
		loc = time.Local
	}
	reminders := ledger.NewReminders(l, sender, msgs, func() time.Time { return time.Now().In(loc) })
	sched := scheduler.NewScheduler(scheduler.WithLocation(loc))
	err = sched.AddJob("visit-reminders", *flags.reminderCron, func(ctx context.Context) error {
		_, err := reminders.Run(ctx)
		return err
	})
	if err != nil {
		sched.Stop()
		return nil, err
	}
	return sched, nil
}
