package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dune-client/internal/domain"
	"dune-client/internal/session"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		save      bool
		saveToken bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and check credentials",
		Long: "Run the login handshake and obtain a session token. The password is read from\n" +
			"DUNE_PASSWORD or prompted for. With --save the username (and with --save-token\n" +
			"the token) is stored in the active profile; passwords are never stored.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.sessionUser()
			if err != nil {
				return err
			}
			password := a.cfg.Password
			if password == "" {
				if password, err = readPassword(cmd.InOrStdin(), fmt.Sprintf("Password for %s: ", user)); err != nil {
					return err
				}
			}

			sess, err := session.New(session.Config{
				Username: user,
				Password: password,
				BaseURL:  a.cfg.BaseURL,
				Timeout:  a.cfg.HTTPTimeout,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}
			token, err := sess.CurrentToken(cmd.Context())
			if err != nil {
				return err
			}
			expiry := session.TokenExpiry(token)

			if save || saveToken {
				if err := saveLogin(a.flags.profile, user, token, saveToken); err != nil {
					return err
				}
			}

			if getOutputFormat(cmd) == "json" {
				out := map[string]any{"status": "ok", "user": user}
				if !expiry.IsZero() {
					out["token_expires_at"] = expiry.UTC().Format(time.RFC3339)
				}
				return printJSON(os.Stdout, out)
			}
			_, _ = fmt.Fprintf(os.Stdout, "Logged in as %s\n", user)
			if !expiry.IsZero() {
				_, _ = fmt.Fprintf(os.Stdout, "Token expires at %s\n", expiry.Local().Format(time.DateTime))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Store the username in the active profile")
	cmd.Flags().BoolVar(&saveToken, "save-token", false, "Also store the session token in the active profile")
	return cmd
}

// readPassword prompts on a terminal without echo, or reads one line from a
// non-terminal input.
func readPassword(in io.Reader, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", domain.ErrValidation("no password given: set DUNE_PASSWORD or type it at the prompt")
	}
	return line, nil
}

func saveLogin(profileName, user, token string, withToken bool) error {
	cfg, err := LoadUserConfig()
	if err != nil {
		cfg = emptyUserConfig()
	}
	if profileName == "" {
		profileName = cfg.CurrentProfile
	}
	if profileName == "" {
		profileName = "default"
		cfg.CurrentProfile = profileName
	}
	p := cfg.Profiles[profileName]
	p.User = user
	if withToken {
		p.Token = token
	}
	cfg.Profiles[profileName] = p
	if err := SaveUserConfig(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
