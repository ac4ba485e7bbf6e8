package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"nuclight.org/tg-scraper/app/telegram"
	"nuclight.org/tg-scraper/pkg/logger"
)

var opts struct {
	APIID         int    `long:"api-id" env:"TELEGRAM_API_ID" required:"true" description:"telegram api id"`
	APIHash       string `long:"api-hash" env:"TELEGRAM_API_HASH" required:"true" description:"telegram api hash"`
	StringSession string `long:"string-session" env:"TELEGRAM_STRING_SESSION" description:"telethon string session"`
	DataDir       string `long:"data-dir" env:"DATA_DIR" default:"./.telegram-scraper-data" description:"directory for session files"`
	Verbose       bool   `short:"v" long:"verbose" description:"enable debug logging"`
}

// Lists every dialog the session can access as JSON lines, one object
// per chat, with the peer id the scrape command expects as its target.
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

		return 2
	}

	log := logger.NewLogger(opts.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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
		return 1
	}
	defer func() {
		if err := stop(); err != nil {
			log.Error("stopping telegram client", "error", err)
		}
	}()

	dialogs, err := tgc.Dialogs(ctx)
	if err != nil {
		log.Error("listing dialogs", "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)

	for _, d := range dialogs {
		if err := enc.Encode(d); err != nil {
			log.Error("encoding dialog", "error", err)
			return 1
		}
	}

	log.Info("dialogs listed", "count", len(dialogs))

	return 0
}
