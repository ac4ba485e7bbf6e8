package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"nuclight.org/tg-scraper/app/scraper"
	"nuclight.org/tg-scraper/app/storage"
	"nuclight.org/tg-scraper/app/telegram"
	"nuclight.org/tg-scraper/pkg/logger"
	"nuclight.org/tg-scraper/pkg/metrics"
)

var opts struct {
	APIID         int    `long:"api-id" env:"TELEGRAM_API_ID" required:"true" description:"telegram api id"`
	APIHash       string `long:"api-hash" env:"TELEGRAM_API_HASH" required:"true" description:"telegram api hash"`
	Chat          string `long:"chat" env:"TELEGRAM_CHAT_ID" required:"true" description:"chat id or @username to scrape"`
	StringSession string `long:"string-session" env:"TELEGRAM_STRING_SESSION" description:"telethon string session"`

	LookbackHours int  `long:"lookback-hours" env:"LOOKBACK_HOURS" default:"24" description:"history lookback window in hours"`
	Follow        bool `short:"f" long:"follow" description:"keep listening for new messages after catch-up"`
	Reset         bool `long:"reset" description:"ignore the saved cursor and start from 0"`

	DB          bool   `long:"db" description:"write messages and state to the database"`
	DatabaseURL string `long:"database-url" env:"DATABASE_URL" description:"database address (postgres dsn or sqlite path)"`
	DataDir     string `long:"data-dir" env:"DATA_DIR" default:"./.telegram-scraper-data" description:"directory for session and state files"`

	MetricsAddr string `long:"metrics-addr" env:"METRICS_ADDR" description:"address to serve prometheus metrics on"`
	SentryDSN   string `long:"sentry-dsn" env:"SENTRY_DSN" description:"sentry dsn for fatal error reporting"`
	Verbose     bool   `short:"v" long:"verbose" description:"enable debug logging"`
}

var Revision = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	_, err := flags.Parse(&opts)
	if err != nil {
		if flags.WroteHelp(err) {
			return 0
		}

		// Configuration problems get their own exit status.
		return 2
	}

	log := logger.NewLogger(opts.Verbose)
	log.Info("starting scraper", "revision", Revision)

	start := time.Now()
	defer func() {
		log.Info("finished", "elapsed", time.Since(start).Round(100*time.Millisecond))
	}()

	useDB := opts.DB || opts.DatabaseURL != ""
	if opts.DB && opts.DatabaseURL == "" {
		log.Error("--db set but no database address configured")
		return 2
	}

	if opts.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: opts.SentryDSN, Release: Revision}); err != nil {
			log.Error("initializing sentry", "error", err)
			return 2
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		log.Error("creating data directory", "error", err)
		return 1
	}

	tgc := &telegram.Client{
		Log:           log,
		APIID:         opts.APIID,
		APIHash:       opts.APIHash,
		DataDir:       opts.DataDir,
		StringSession: opts.StringSession,
	}

	stop, err := tgc.Connect(ctx)
	if err != nil {
		log.Error("connecting to telegram", "error", err)
		captureFatal(err)
		return 1
	}
	defer func() {
		if err := stop(); err != nil {
			log.Error("stopping telegram client", "error", err)
		}
	}()

	var (
		state scraper.State
		sink  scraper.Sink
	)

	if useDB {
		db, err := storage.OpenDB(ctx, opts.DatabaseURL)
		if err != nil {
			log.Error("opening database", "error", err)
			captureFatal(err)
			return 1
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("closing database", "error", err)
			}
		}()

		log.Info("database mode enabled")
		state, sink = db, db
	} else {
		fileState, err := storage.NewFileState(filepath.Join(opts.DataDir, "state"))
		if err != nil {
			log.Error("creating state directory", "error", err)
			return 1
		}

		state = fileState
		sink = storage.NewLineSink(os.Stdout)
	}

	var m *metrics.Metrics
	if opts.MetricsAddr != "" {
		m = metrics.New()
		go func() {
			if err := metrics.Serve(opts.MetricsAddr); err != nil {
				log.Error("serving metrics", "error", err)
			}
		}()
	}

	scr := &scraper.Scraper{
		Log:      log,
		Source:   tgc,
		State:    state,
		Sink:     sink,
		Metrics:  m,
		Lookback: time.Duration(opts.LookbackHours) * time.Hour,
		Follow:   opts.Follow,
		Reset:    opts.Reset,
	}

	if err := scr.Run(ctx, opts.Chat); err != nil {
		log.Error("running scraper", "error", err)
		captureFatal(err)
		return 1
	}

	return 0
}

func captureFatal(err error) {
	if opts.SentryDSN == "" {
		return
	}
	sentry.CaptureException(err)
}
