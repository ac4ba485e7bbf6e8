package telegram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"nuclight.org/tg-scraper/pkg/logger"
)

// Login runs the interactive phone/code flow and stores the resulting
// session under dataDir, so later runs are non-interactive.
func Login(ctx context.Context, log logger.Logger, apiID int, apiHash, dataDir, phone string) error {
	client := telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: filepath.Join(dataDir, "session.json")},
	})

	return client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(
			terminalAuth{phone: phone, in: bufio.NewReader(os.Stdin)},
			auth.SendCodeOptions{},
		)

		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("authorizing: %w", err)
		}

		user, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("fetching self: %w", err)
		}

		log.Info("session authorized", "user_id", user.ID, "username", user.Username)

		return nil
	})
}

// terminalAuth asks for the login code and the 2FA password on the
// terminal. Prompts go to stderr like all other diagnostics.
type terminalAuth struct {
	phone string
	in    *bufio.Reader
}

func (a terminalAuth) Phone(_ context.Context) (string, error) {
	return a.phone, nil
}

func (a terminalAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.prompt("Login code: ")
}

func (a terminalAuth) Password(_ context.Context) (string, error) {
	return a.prompt("2FA password: ")
}

func (a terminalAuth) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return nil
}

func (a terminalAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up is not supported")
}

func (a terminalAuth) prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)

	line, err := a.in.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(line), nil
}
