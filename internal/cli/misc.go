package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/five82/biblio/internal/app"
	"github.com/five82/biblio/internal/devserver"
	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/logging"
	"github.com/five82/biblio/internal/logtail"
)

func newDashboardCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show catalog and loan totals with recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				d, err := a.RefreshDashboard(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printFields(out,
					"Books", strconv.Itoa(d.TotalBooks),
					"Members", strconv.Itoa(d.TotalMembers),
					"Active loans", strconv.Itoa(d.ActiveLoans),
					"Overdue loans", strconv.Itoa(d.OverdueLoans),
				)
				fmt.Fprintln(out)
				rows := make([][]string, len(d.Recent))
				marks := make([]rowMark, len(d.Recent))
				for i, r := range d.Recent {
					rows[i] = []string{strconv.Itoa(r.ID), r.Book, r.Member, r.Date.String(), r.Status.Label()}
					if r.Status == gateway.LoanReturned {
						marks[i] = markMuted
					}
				}
				printTable(out, []string{"ID", "Book", "Member", "Date", "Status"}, rows, marks)
				return nil
			})
		},
	}
}

func newLogsCmd(g *globalFlags) *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the tail of the client log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(_ context.Context, a *app.App) error {
				entries, err := logtail.Tail(a.Config.LogFile, lines)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, e := range entries {
					fmt.Fprintln(out, logtail.Format(e))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines")
	return cmd
}

func newDevserverCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run the local development backend",
		Long: "Run a self-contained backend on SQLite with seeded sample data.\n" +
			"Settings come from BIBLIO_DEV_* environment variables.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := devserver.LoadConfig()
			if err != nil {
				return fmt.Errorf("load devserver config: %w", err)
			}
			if port > 0 {
				cfg.Port = port
			}
			log := logging.Console(cmd.ErrOrStderr(), "info")
			return devserver.Run(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides BIBLIO_DEV_PORT)")
	return cmd
}
