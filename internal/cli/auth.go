package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrymomot/stocksync/pkg/session"
)

func newLoginCmd(app *App) *cobra.Command {
	var (
		username string
		password string
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token",
		Long: `Login exchanges username and password for a token.

With --remember the token is kept in the durable store and survives restarts;
otherwise it only lives as long as this process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				u, err := app.promptLine(cmd, "Username: ")
				if err != nil {
					return err
				}
				username = u
			}
			if password == "" {
				p, err := app.promptPassword(cmd, "Password: ")
				if err != nil {
					return err
				}
				password = p
			}

			u, err := app.client.Session.Login(cmd.Context(), session.Credentials{Username: username, Password: password}, remember)
			if err != nil {
				return err
			}
			return app.writeOut(cmd, userView(u, app.client.Session.ExpiresAt()))
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted without echo when empty)")
	cmd.Flags().BoolVar(&remember, "remember", false, "Keep the token across restarts")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.client.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			return app.writeOut(cmd, userView(c.Session.User(), c.Session.ExpiresAt()))
		},
	}
}

func userView(u *session.User, expiresAt time.Time) view {
	expires := ""
	if !expiresAt.IsZero() {
		expires = expiresAt.Format(time.RFC3339)
	}
	return view{
		v: map[string]any{
			"user":       u,
			"expires_at": expires,
		},
		headers: []string{"ID", "USERNAME", "ROLE", "EXPIRES"},
		rows:    [][]string{{u.ID.String(), u.Username, u.Role, expires}},
	}
}

func (app *App) promptLine(cmd *cobra.Command, label string) (string, error) {
	if app.stdin == nil {
		app.stdin = bufio.NewReader(cmd.InOrStdin())
	}
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := app.stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo on a terminal and falls back to a plain
// line read otherwise, so passwords can be piped in.
func (app *App) promptPassword(cmd *cobra.Command, label string) (string, error) {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return app.promptLine(cmd, label)
	}

	fmt.Fprint(cmd.ErrOrStderr(), label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", errors.New("empty password")
	}
	return string(b), nil
}
