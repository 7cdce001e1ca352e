package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/LeadPipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for LeadPipe state data
	DefaultStateDir = "/var/lib/leadpipe"
	// DefaultWhatsAppDBFileName is the whatsmeow device store created in the state directory
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultStateDBFileName is the SQLite conversation store used when STATE_BACKEND=sql and no DSN is set
	DefaultStateDBFileName = "leadpipe.db"

	DefaultTransport     = transportCloudAPI
	DefaultGenAIProvider = providerGemini
	DefaultStateBackend  = backendMemory
	DefaultStateTTL      = 720 * time.Hour
	DefaultAPIAddr       = ":8080"
	DefaultFAQDir        = "."
	DefaultReminderCron  = "0 9 * * *"
	DefaultTimezone      = "Asia/Kolkata"
	DefaultLogLevel      = "debug"
)

const (
	transportCloudAPI  = "cloudapi"
	transportTwilio    = "twilio"
	transportWhatsmeow = "whatsmeow"

	providerGemini = "gemini"
	providerOpenAI = "openai"

	backendMemory = "memory"
	backendRedis  = "redis"
	backendSQL    = "sql"
)

func main() {
	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	initializeLogger(*flags.logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping LeadPipe", "transport", *flags.transport, "genai", *flags.genaiProvider, "state_backend", *flags.stateBackend)
	if err := run(ctx, flags); err != nil {
		slog.Error("LeadPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("LeadPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	Transport       string
	WhatsAppToken   string
	PhoneNumberID   string
	VerifyToken     string
	AppSecret       string
	GraphVersion    string
	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string
	TwilioPublicURL string
	WhatsAppDBDSN   string

	GenAIProvider string
	GeminiKey     string
	OpenAIKey     string
	GenAIModel    string
	GenAIDebug    bool

	FAQDir       string
	StateBackend string
	RedisAddr    string
	DatabaseURL  string
	StateTTL     time.Duration
	StateDir     string

	ProjectName     string
	AgentName       string
	AgentPhone      string
	OfficeHours     string
	FormURLEnglish  string
	FormURLGujarati string
	BrochureRef     string
	BrochureName    string
	GuidedBooking   bool
	HistoryLimit    int

	SpreadsheetID     string
	SheetsTab         string
	GoogleCredentials string
	PollInterval      time.Duration
	ErrorBackoff      time.Duration
	ReminderCron      string
	ShowflatAddress   string
	Timezone          string

	APIAddr    string
	AdminToken string
	LogLevel   string
}

// Flags holds command line flag values
type Flags struct {
	transport     *string
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	stateBackend  *string
	dbDSN         *string
	whatsappDSN   *string
	redisAddr     *string
	stateTTL      *time.Duration
	genaiProvider *string
	genaiKey      *string
	genaiModel    *string
	genaiDebug    *bool
	faqDir        *string
	guided        *bool
	historyLimit  *int
	spreadsheetID *string
	pollInterval  *time.Duration
	reminderCron  *string
	apiAddr       *string
	logLevel      *string

	// config carries settings that have no flag.
	config Config
}

// initializeLogger sets up structured logging at the requested level
func initializeLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		Transport:       strings.ToLower(util.StringEnv("LEADPIPE_TRANSPORT", DefaultTransport)),
		WhatsAppToken:   os.Getenv("WHATSAPP_TOKEN"),
		PhoneNumberID:   os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		VerifyToken:     os.Getenv("VERIFY_TOKEN"),
		AppSecret:       os.Getenv("WHATSAPP_APP_SECRET"),
		GraphVersion:    os.Getenv("WHATSAPP_GRAPH_VERSION"),
		TwilioSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:      os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioPublicURL: os.Getenv("TWILIO_WEBHOOK_URL"),
		WhatsAppDBDSN:   os.Getenv("WHATSAPP_DB_DSN"),

		GenAIProvider: strings.ToLower(util.StringEnv("GENAI_PROVIDER", DefaultGenAIProvider)),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		GenAIModel:    os.Getenv("GENAI_MODEL"),
		GenAIDebug:    util.ParseBoolEnv("GENAI_DEBUG", false),

		FAQDir:       util.StringEnv("FAQ_DIR", DefaultFAQDir),
		StateBackend: strings.ToLower(util.StringEnv("STATE_BACKEND", DefaultStateBackend)),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateTTL:     util.ParseDurationEnv("STATE_TTL", DefaultStateTTL),
		StateDir:     util.StringEnv("LEADPIPE_STATE_DIR", DefaultStateDir),

		ProjectName:     os.Getenv("PROJECT_NAME"),
		AgentName:       os.Getenv("AGENT_NAME"),
		AgentPhone:      os.Getenv("AGENT_PHONE"),
		OfficeHours:     os.Getenv("OFFICE_HOURS"),
		FormURLEnglish:  os.Getenv("BOOKING_FORM_URL_EN"),
		FormURLGujarati: os.Getenv("BOOKING_FORM_URL_GU"),
		BrochureRef:     os.Getenv("BROCHURE_REF"),
		BrochureName:    os.Getenv("BROCHURE_FILENAME"),
		GuidedBooking:   util.ParseBoolEnv("GUIDED_BOOKING", false),
		HistoryLimit:    util.ParseIntEnv("HISTORY_LIMIT", 0),

		SpreadsheetID:     os.Getenv("SHEETS_SPREADSHEET_ID"),
		SheetsTab:         os.Getenv("SHEETS_TAB"),
		GoogleCredentials: os.Getenv("GOOGLE_CREDENTIALS"),
		PollInterval:      util.ParseDurationEnv("LEDGER_POLL_INTERVAL", 0),
		ErrorBackoff:      util.ParseDurationEnv("LEDGER_ERROR_BACKOFF", 0),
		ReminderCron:      util.StringEnv("REMINDER_CRON", DefaultReminderCron),
		ShowflatAddress:   os.Getenv("SHOWFLAT_ADDRESS"),
		Timezone:          util.StringEnv("LEADPIPE_TIMEZONE", DefaultTimezone),

		APIAddr:    util.StringEnv("API_ADDR", DefaultAPIAddr),
		AdminToken: os.Getenv("ADMIN_TOKEN"),
		LogLevel:   util.StringEnv("LOG_LEVEL", DefaultLogLevel),
	}

	// Default the whatsmeow device store to SQLite in the state directory
	if config.WhatsAppDBDSN == "" {
		config.WhatsAppDBDSN = filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)
	}

	slog.Debug("environment variables loaded",
		"LEADPIPE_TRANSPORT", config.Transport,
		"WHATSAPP_TOKEN_SET", config.WhatsAppToken != "",
		"WHATSAPP_APP_SECRET_SET", config.AppSecret != "",
		"TWILIO_AUTH_TOKEN_SET", config.TwilioToken != "",
		"GENAI_PROVIDER", config.GenAIProvider,
		"GEMINI_API_KEY_SET", config.GeminiKey != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"STATE_BACKEND", config.StateBackend,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"LEADPIPE_STATE_DIR", config.StateDir,
		"SHEETS_SPREADSHEET_ID_SET", config.SpreadsheetID != "",
		"API_ADDR", config.APIAddr,
		"ADMIN_TOKEN_SET", config.AdminToken != "")

	return config
}

// genaiKey picks the key matching the configured provider.
func (c Config) genaiKey() string {
	if c.GenAIProvider == providerOpenAI {
		return c.OpenAIKey
	}
	return c.GeminiKey
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) Flags {
	flags := Flags{
		transport:     fs.String("transport", config.Transport, "WhatsApp transport: cloudapi, twilio or whatsmeow (overrides $LEADPIPE_TRANSPORT)"),
		qrOutput:      fs.String("qr-output", "", "path to write whatsmeow login QR code"),
		numeric:       fs.Bool("numeric-code", false, "use numeric whatsmeow login code instead of QR code"),
		stateDir:      fs.String("state-dir", config.StateDir, "state directory for LeadPipe data (overrides $LEADPIPE_STATE_DIR)"),
		stateBackend:  fs.String("state-backend", config.StateBackend, "conversation store: memory, redis or sql (overrides $STATE_BACKEND)"),
		dbDSN:         fs.String("db-dsn", config.DatabaseURL, "conversation store DSN, Postgres URL or SQLite path (overrides $DATABASE_URL)"),
		whatsappDSN:   fs.String("whatsapp-db-dsn", config.WhatsAppDBDSN, "whatsmeow device store DSN (overrides $WHATSAPP_DB_DSN)"),
		redisAddr:     fs.String("redis-addr", config.RedisAddr, "Redis address for the redis state backend (overrides $REDIS_ADDR)"),
		stateTTL:      fs.Duration("state-ttl", config.StateTTL, "idle time after which a conversation is forgotten, 0 keeps forever (overrides $STATE_TTL)"),
		genaiProvider: fs.String("genai-provider", config.GenAIProvider, "answer backend: gemini or openai (overrides $GENAI_PROVIDER)"),
		genaiKey:      fs.String("genai-api-key", config.genaiKey(), "API key for the answer backend (overrides $GEMINI_API_KEY / $OPENAI_API_KEY)"),
		genaiModel:    fs.String("genai-model", config.GenAIModel, "model name (overrides $GENAI_MODEL)"),
		genaiDebug:    fs.Bool("genai-debug", config.GenAIDebug, "write prompts and replies under the state directory (overrides $GENAI_DEBUG)"),
		faqDir:        fs.String("faq-dir", config.FAQDir, "directory holding faq_data_english.json and faq_data_gujarati.json (overrides $FAQ_DIR)"),
		guided:        fs.Bool("guided-booking", config.GuidedBooking, "collect booking details in chat instead of sending the form link (overrides $GUIDED_BOOKING)"),
		historyLimit:  fs.Int("history-limit", config.HistoryLimit, "maximum stored chat turns per user, 0 is unbounded (overrides $HISTORY_LIMIT)"),
		spreadsheetID: fs.String("sheets-id", config.SpreadsheetID, "Google Sheets booking ledger id, empty disables the ledger (overrides $SHEETS_SPREADSHEET_ID)"),
		pollInterval:  fs.Duration("ledger-poll-interval", config.PollInterval, "booking ledger poll interval (overrides $LEDGER_POLL_INTERVAL)"),
		reminderCron:  fs.String("reminder-cron", config.ReminderCron, "cron schedule for visit reminders, empty disables them (overrides $REMINDER_CRON)"),
		apiAddr:       fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		logLevel:      fs.String("log-level", config.LogLevel, "debug, info, warn or error (overrides $LOG_LEVEL)"),
	}

	if err := fs.Parse(args); err != nil {
		slog.Warn("failed to parse flags", "error", err)
	}

	*flags.transport = strings.ToLower(*flags.transport)
	*flags.stateBackend = strings.ToLower(*flags.stateBackend)
	*flags.genaiProvider = strings.ToLower(*flags.genaiProvider)

	// Follow -state-dir for the whatsmeow store when it was left at its default
	defaultWA := filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)
	if *flags.whatsappDSN == defaultWA && *flags.stateDir != config.StateDir {
		*flags.whatsappDSN = filepath.Join(*flags.stateDir, DefaultWhatsAppDBFileName)
	}
	// The key default follows the provider chosen on the command line
	if *flags.genaiKey == config.genaiKey() && *flags.genaiProvider != config.GenAIProvider {
		c := config
		c.GenAIProvider = *flags.genaiProvider
		*flags.genaiKey = c.genaiKey()
	}

	flags.config = config
	slog.Debug("flags parsed",
		"transport", *flags.transport,
		"stateDir", *flags.stateDir,
		"stateBackend", *flags.stateBackend,
		"dbDSN_set", *flags.dbDSN != "",
		"genaiProvider", *flags.genaiProvider,
		"genaiKeySet", *flags.genaiKey != "",
		"guidedBooking", *flags.guided,
		"sheetsSet", *flags.spreadsheetID != "",
		"apiAddr", *flags.apiAddr)

	return flags
}
