package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/five82/biblio/internal/app"
	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/inventory"
)

func newCopiesCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "copies",
		Aliases: []string{"copy"},
		Short:   "Physical copies of a book",
	}

	list := &cobra.Command{
		Use:   "list <book-id>",
		Short: "List the copies of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID("list copies", args[0])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				view := a.Inventory(bookID)
				if err := view.Load(ctx); err != nil {
					return err
				}
				printCopies(cmd, view.Copies(), view.Summary())
				return nil
			})
		},
	}

	var barcode, location string
	add := &cobra.Command{
		Use:   "add <book-id>",
		Short: "Register a new available copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID("add copy", args[0])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Inventory(bookID).Add(ctx, barcode, location)
			})
		},
	}
	add.Flags().StringVar(&barcode, "barcode", "", "barcode of the new copy")
	add.Flags().StringVar(&location, "location", "", "shelf location (default from config)")
	_ = add.MarkFlagRequired("barcode")

	remove := &cobra.Command{
		Use:     "delete <copy-id>",
		Aliases: []string{"remove", "rm"},
		Short:   "Delete a copy",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			copyID, err := parseID("delete copy", args[0])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				all, err := a.Client.ListCopies(ctx)
				if err != nil {
					return err
				}
				target, ok := findByID(all, copyID, func(c gateway.Copy) int { return c.ID })
				if !ok {
					return failure.New(failure.Validation, "delete copy", fmt.Sprintf("copy %d not found", copyID))
				}
				view := a.Inventory(target.BookID)
				if err := view.Load(ctx); err != nil {
					return err
				}
				return view.Remove(ctx, copyID, g.confirmer(cmd))
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func printCopies(cmd *cobra.Command, copies []gateway.Copy, sum inventory.Summary) {
	rows := make([][]string, len(copies))
	marks := make([]rowMark, len(copies))
	for i, c := range copies {
		rows[i] = []string{strconv.Itoa(c.ID), c.Barcode, c.Location, c.Status.Label()}
		if !c.Available() {
			marks[i] = markMuted
		}
	}
	out := cmd.OutOrStdout()
	printTable(out, []string{"ID", "Barcode", "Location", "Status"}, rows, marks)
	fmt.Fprintf(out, "%d copies, %d available, %d loaned\n", sum.Total, sum.Available, sum.Loaned)
}
