package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/five82/biblio/internal/app"
	"github.com/five82/biblio/internal/failure"
)

func newLoginCmd(g *globalFlags) *cobra.Command {
	var tenant, email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
				var err error
				if tenant, err = p.ask("Tenant", tenant, a.Prefs.LastTenant); err != nil {
					return err
				}
				if email, err = p.ask("Email", email, a.Prefs.LastEmail); err != nil {
					return err
				}
				if password == "" {
					if password, err = p.secret("Password"); err != nil {
						return err
					}
				}
				s, err := a.Login(ctx, tenant, email, password)
				if failure.Is(err, failure.Unauthorized) {
					return failure.New(failure.Rejected, "login", "tenant, email or password not accepted")
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s) on %s\n", s.DisplayName, s.Role, s.TenantCode)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant code")
	cmd.Flags().StringVar(&email, "email", "", "operator email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(_ context.Context, a *app.App) error {
				if err := a.Logout(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(_ context.Context, a *app.App) error {
				s, ok := a.Current()
				if !ok {
					return failure.New(failure.Unauthorized, "whoami", "not signed in")
				}
				issued := ""
				if !s.IssuedAt.IsZero() {
					issued = s.IssuedAt.Local().Format("2006-01-02 15:04")
				}
				printFields(cmd.OutOrStdout(),
					"User", s.DisplayName,
					"Role", s.Role,
					"Email", s.Email,
					"Tenant", fmt.Sprintf("%s (#%d)", s.TenantCode, s.TenantID),
					"Since", issued,
					"Backend", a.Client.BaseURL(),
				)
				return nil
			})
		},
	}
}

// prompter reads answers line by line from one buffered reader so that
// piped input is not lost between questions.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, reader: bufio.NewReader(in), out: out}
}

// ask returns value when set, otherwise prompts with fallback as the default.
func (p *prompter) ask(label, value, fallback string) (string, error) {
	if strings.TrimSpace(value) != "" {
		return value, nil
	}
	if fallback != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, fallback)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.line()
	if err != nil {
		return "", err
	}
	if line = strings.TrimSpace(line); line == "" {
		return fallback, nil
	}
	return line, nil
}

// secret reads a password without echo when stdin is a terminal.
func (p *prompter) secret(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := p.line()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *prompter) line() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, nil
		}
		if errors.Is(err, io.EOF) {
			return "", failure.New(failure.Cancelled, "prompt", "no input")
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return line, nil
}
