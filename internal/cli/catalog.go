package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/five82/biblio/internal/app"
	"github.com/five82/biblio/internal/catalog"
	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
)

func newBooksCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "books",
		Aliases: []string{"book"},
		Short:   "List and maintain the book catalog",
	}

	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				books, err := a.Books.List(ctx)
				if err != nil {
					return err
				}
				books = catalog.FilterBooks(books, search)
				rows := make([][]string, len(books))
				for i, b := range books {
					rows[i] = []string{strconv.Itoa(b.ID), b.Title, b.Author, b.Publisher, b.ISBN, itoa(b.Year)}
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "Title", "Author", "Publisher", "ISBN", "Year"}, rows, nil)
				return nil
			})
		},
	}
	list.Flags().StringVarP(&search, "search", "s", "", "only books matching this text")

	var form catalog.BookForm
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Books.Save(ctx, form)
			})
		},
	}
	bookFlags(add, &form)

	var edits catalog.BookForm
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a book; omitted flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("edit book", args[0])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				books, err := a.Books.List(ctx)
				if err != nil {
					return err
				}
				current, ok := findByID(books, id, func(b gateway.Book) int { return b.ID })
				if !ok {
					return failure.New(failure.Validation, "edit book", fmt.Sprintf("book %d not found", id))
				}
				next := catalog.BookFormFrom(current)
				f := cmd.Flags()
				if f.Changed("title") {
					next.Title = edits.Title
				}
				if f.Changed("author") {
					next.Author = edits.Author
				}
				if f.Changed("publisher") {
					next.Publisher = edits.Publisher
				}
				if f.Changed("isbn") {
					next.ISBN = edits.ISBN
				}
				if f.Changed("year") {
					next.Year = edits.Year
				}
				if f.Changed("category") {
					next.CategoryID = edits.CategoryID
				}
				return a.Books.Save(ctx, next)
			})
		},
	}
	bookFlags(edit, &edits)

	remove := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a book",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("delete book", args[0])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				// Loaded first so the prompt can name the book.
				_, _ = a.Books.List(ctx)
				return a.Books.Delete(ctx, id, g.confirmer(cmd))
			})
		},
	}

	cmd.AddCommand(list, add, edit, remove)
	return cmd
}

func bookFlags(cmd *cobra.Command, form *catalog.BookForm) {
	f := cmd.Flags()
	f.StringVar(&form.Title, "title", "", "title")
	f.StringVar(&form.Author, "author", "", "author")
	f.StringVar(&form.Publisher, "publisher", "", "publisher")
	f.StringVar(&form.ISBN, "isbn", "", "ISBN")
	f.IntVar(&form.Year, "year", 0, "publication year")
	f.IntVar(&form.CategoryID, "category", 0, "category id")
}

func newMembersCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "members",
		Aliases: []string{"member"},
		Short:   "List and maintain library members",
	}

	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				members, err := a.Members.List(ctx)
				if err != nil {
					return err
				}
				members = catalog.FilterMembers(members, search)
				rows := make([][]string, len(members))
				for i, m := range members {
					rows[i] = []string{strconv.Itoa(m.ID), m.Code, m.FullName, m.Email, m.MemberType.Label()}
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "Code", "Name", "Email", "Type"}, rows, nil)
				return nil
			})
		},
	}
	list.Flags().StringVarP(&search, "search", "s", "", "only members matching this text")

	var (
		form       catalog.MemberForm
		memberType string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if memberType != "" {
				t, err := parseMemberType("create member", memberType)
				if err != nil {
					return err
				}
				form.MemberType = t
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Members.Save(ctx, form)
			})
		},
	}
	memberFlags(add, &form, &memberType)

	var (
		edits    catalog.MemberForm
		editType string
	)
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a member; omitted flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("edit member", args[0])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				members, err := a.Members.List(ctx)
				if err != nil {
					return err
				}
				current, ok := findByID(members, id, func(m gateway.Member) int { return m.ID })
				if !ok {
					return failure.New(failure.Validation, "edit member", fmt.Sprintf("member %d not found", id))
				}
				next := catalog.MemberFormFrom(current)
				f := cmd.Flags()
				if f.Changed("code") {
					next.Code = edits.Code
				}
				if f.Changed("name") {
					next.FullName = edits.FullName
				}
				if f.Changed("email") {
					next.Email = edits.Email
				}
				if f.Changed("type") {
					t, err := parseMemberType("edit member", editType)
					if err != nil {
						return err
					}
					next.MemberType = t
				}
				return a.Members.Save(ctx, next)
			})
		},
	}
	memberFlags(edit, &edits, &editType)

	remove := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a member",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("delete member", args[0])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				_, _ = a.Members.List(ctx)
				return a.Members.Delete(ctx, id, g.confirmer(cmd))
			})
		},
	}

	cmd.AddCommand(list, add, edit, remove)
	return cmd
}

func memberFlags(cmd *cobra.Command, form *catalog.MemberForm, memberType *string) {
	f := cmd.Flags()
	f.StringVar(&form.Code, "code", "", "member code")
	f.StringVar(&form.FullName, "name", "", "full name")
	f.StringVar(&form.Email, "email", "", "email address")
	f.StringVar(memberType, "type", "", "Student, Faculty, Staff or Researcher")
}

func parseMemberType(op, value string) (gateway.MemberType, error) {
	t, ok := gateway.ParseMemberType(value)
	if !ok {
		return "", failure.New(failure.Validation, op, fmt.Sprintf("unknown member type %q", value))
	}
	return t, nil
}

func parseID(op, raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, failure.New(failure.Validation, op, fmt.Sprintf("%q is not a valid id", raw))
	}
	return id, nil
}

func findByID[T any](items []T, id int, idOf func(T) int) (T, bool) {
	for _, item := range items {
		if idOf(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}
