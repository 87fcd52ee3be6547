package catalog

import (
	"strings"

	"github.com/five82/biblio/internal/gateway"
)

// Filter keeps the items where any field contains term, ignoring case. It
// always scans the full input; an empty term returns every item.
func Filter[T any](items []T, term string, fields func(T) []string) []T {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return append([]T(nil), items...)
	}
	var out []T
	for _, item := range items {
		for _, f := range fields(item) {
			if strings.Contains(strings.ToLower(f), needle) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// FilterBooks matches title, author and ISBN.
func FilterBooks(books []gateway.Book, term string) []gateway.Book {
	return Filter(books, term, func(b gateway.Book) []string {
		return []string{b.Title, b.Author, b.ISBN}
	})
}

// FilterMembers matches full name, member code and email.
func FilterMembers(members []gateway.Member, term string) []gateway.Member {
	return Filter(members, term, func(m gateway.Member) []string {
		return []string{m.FullName, m.Code, m.Email}
	})
}

// FilterCopies matches barcode, location and the joined book title.
func FilterCopies(copies []gateway.Copy, term string) []gateway.Copy {
	return Filter(copies, term, func(c gateway.Copy) []string {
		return []string{c.Barcode, c.Location, c.BookTitle()}
	})
}

// FilterLoans matches book title, member name and barcode.
func FilterLoans(loans []gateway.Loan, term string) []gateway.Loan {
	return Filter(loans, term, func(l gateway.Loan) []string {
		return []string{l.BookTitle(), l.MemberName(), l.Barcode()}
	})
}
