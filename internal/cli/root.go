// Package cli wires biblio's cobra command tree. Without a subcommand the
// terminal UI starts; every other command performs one backend operation and
// prints the result.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/five82/biblio/internal/app"
	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/notify"
)

// Version is reported in --version output.
var Version = "dev"

type globalFlags struct {
	configPath string
	prefsPath  string
	apiURL     string
	yes        bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "biblio",
		Short:         "Library desk client: catalog, copies, members and loans",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), app.Options{
				ConfigPath: g.configPath,
				PrefsPath:  g.prefsPath,
				APIURL:     g.apiURL,
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/.config/biblio/config.toml)")
	pf.StringVar(&g.prefsPath, "prefs", "", "preferences file (default ~/.config/biblio/prefs.toml)")
	pf.StringVar(&g.apiURL, "api", "", "backend base URL, overrides the config file")
	pf.BoolVarP(&g.yes, "yes", "y", false, "approve destructive actions without asking")

	root.AddCommand(
		newLoginCmd(g),
		newLogoutCmd(g),
		newWhoamiCmd(g),
		newDashboardCmd(g),
		newBooksCmd(g),
		newCopiesCmd(g),
		newMembersCmd(g),
		newLoansCmd(g),
		newLogsCmd(g),
		newDevserverCmd(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "biblio: %s\n", describe(err))
		return 1
	}
	return 0
}

// describe turns an error into one line for the terminal.
func describe(err error) string {
	switch failure.KindOf(err) {
	case failure.Unauthorized:
		return "not signed in or session expired; run `biblio login`"
	case failure.Cancelled:
		return "cancelled"
	case failure.Network:
		return "backend unreachable: " + err.Error()
	}
	if msg := failure.MessageOf(err); msg != "" {
		return msg
	}
	return err.Error()
}

// open builds the application for a one-shot command. Logs go to stderr.
func (g *globalFlags) open(cmd *cobra.Command) (*app.App, error) {
	return app.New(app.Options{
		ConfigPath: g.configPath,
		PrefsPath:  g.prefsPath,
		APIURL:     g.apiURL,
		Console:    cmd.ErrOrStderr(),
	})
}

// confirmer asks on the command's terminal unless --yes was given.
func (g *globalFlags) confirmer(cmd *cobra.Command) notify.Confirmer {
	return notify.Terminal{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr(), AssumeYes: g.yes}
}

// withApp opens the application, runs fn and prints the notices fn produced.
func (g *globalFlags) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	a, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	err = fn(cmd.Context(), a)
	notices := a.Notices.Drain()
	if err != nil {
		return err
	}
	printNotices(cmd.OutOrStdout(), notices)
	return nil
}
