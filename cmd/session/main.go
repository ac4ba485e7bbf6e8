package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"nuclight.org/tg-scraper/app/telegram"
	"nuclight.org/tg-scraper/pkg/logger"
)

var opts struct {
	APIID   int    `long:"api-id" env:"TELEGRAM_API_ID" required:"true" description:"telegram api id"`
	APIHash string `long:"api-hash" env:"TELEGRAM_API_HASH" required:"true" description:"telegram api hash"`
	Phone   string `long:"phone" env:"TELEGRAM_PHONE" required:"true" description:"phone number in international format"`
	DataDir string `long:"data-dir" env:"DATA_DIR" default:"./.telegram-scraper-data" description:"directory for session files"`
	Verbose bool   `short:"v" long:"verbose" description:"enable debug logging"`
}

// Authorizes a session interactively (phone, login code, optional 2FA
// password) and stores it on disk so scrape and chats run unattended.
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

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		log.Error("creating data directory", "error", err)
		return 1
	}

	if err := telegram.Login(ctx, log, opts.APIID, opts.APIHash, opts.DataDir, opts.Phone); err != nil {
		log.Error("logging in", "error", err)
		return 1
	}

	log.Info("session stored", "data_dir", opts.DataDir)

	return 0
}
