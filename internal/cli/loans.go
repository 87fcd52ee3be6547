package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/biblio/internal/app"
	"github.com/five82/biblio/internal/catalog"
	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/loans"
)

func newLoansCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "loans",
		Aliases: []string{"loan"},
		Short:   "List, create and return loans",
	}

	var (
		active, overdue bool
		search          string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List the loan history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				items, err := a.Loans.List(ctx)
				if err != nil {
					return err
				}
				now := time.Now()
				switch {
				case overdue:
					items = loans.Overdue(items, now)
				case active:
					items = loans.Active(items)
				}
				items = catalog.FilterLoans(items, search)
				printLoans(cmd, loans.Rows(items, now))
				return nil
			})
		},
	}
	list.Flags().BoolVar(&active, "active", false, "only loans not yet returned")
	list.Flags().BoolVar(&overdue, "overdue", false, "only active loans past due")
	list.Flags().StringVarP(&search, "search", "s", "", "only loans matching title, member or barcode")

	var member, copyRef, issued, due string
	create := &cobra.Command{
		Use:   "create",
		Short: "Lend an available copy to a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				form, pools, err := a.Loans.PrepareCreate(ctx)
				if err != nil {
					return err
				}
				if form.MemberID, err = resolveMember(pools.Members, member); err != nil {
					return err
				}
				if form.CopyID, err = resolveCopy(pools.Copies, copyRef); err != nil {
					return err
				}
				if cmd.Flags().Changed("issued") {
					form.IssueDate = issued
				}
				if cmd.Flags().Changed("due") {
					form.DueDate = due
				}
				return a.Loans.Create(ctx, form)
			})
		},
	}
	cf := create.Flags()
	cf.StringVar(&member, "member", "", "member id or code")
	cf.StringVar(&copyRef, "copy", "", "copy id or barcode; must be available")
	cf.StringVar(&issued, "issued", "", "issue date YYYY-MM-DD (default today)")
	cf.StringVar(&due, "due", "", "due date YYYY-MM-DD (default today plus loan_days)")
	_ = create.MarkFlagRequired("member")
	_ = create.MarkFlagRequired("copy")

	ret := &cobra.Command{
		Use:   "return <id>",
		Short: "Register the return of a loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("return loan", args[0])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				// The history is needed to refuse loans already returned.
				_, _ = a.Loans.List(ctx)
				return a.Loans.Return(ctx, id, g.confirmer(cmd))
			})
		},
	}

	cmd.AddCommand(list, create, ret)
	return cmd
}

func printLoans(cmd *cobra.Command, rows []loans.Row) {
	out := make([][]string, len(rows))
	marks := make([]rowMark, len(rows))
	for i, r := range rows {
		out[i] = []string{strconv.Itoa(r.Loan.ID), r.Title, r.Barcode, r.Member, r.Issued, r.Due, r.Status}
		switch {
		case r.Overdue:
			marks[i] = markAlert
		case !r.Loan.Active():
			marks[i] = markMuted
		}
	}
	printTable(cmd.OutOrStdout(), []string{"ID", "Book", "Copy", "Member", "Issued", "Due", "Status"}, out, marks)
}

func resolveMember(members []gateway.Member, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	id, _ := strconv.Atoi(ref)
	for _, m := range members {
		if (id > 0 && m.ID == id) || strings.EqualFold(m.Code, ref) {
			return m.ID, nil
		}
	}
	return 0, failure.New(failure.Validation, "create loan", fmt.Sprintf("no member matches %q", ref))
}

// resolveCopy looks only at available copies, so a loaned copy is refused
// before anything is sent.
func resolveCopy(available []gateway.Copy, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	id, _ := strconv.Atoi(ref)
	for _, c := range available {
		if (id > 0 && c.ID == id) || strings.EqualFold(c.Barcode, ref) {
			return c.ID, nil
		}
	}
	return 0, failure.New(failure.Validation, "create loan", fmt.Sprintf("no available copy matches %q", ref))
}
