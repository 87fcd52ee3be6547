package devserver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Demo credentials created by Seed.
const (
	SeedTenantCode = "BIB01"
	SeedEmail      = "admin@biblio.local"
	SeedPassword   = "admin123"
)

// Seed fills an empty database with a demo library. It does nothing when the
// demo tenant already exists.
func Seed(ctx context.Context, store *Store, today time.Time) error {
	_, err := store.TenantByCode(ctx, SeedTenantCode)
	if err == nil {
		return nil
	}
	var re *RuleError
	if !errors.As(err, &re) {
		return err
	}

	tenantID, err := store.CreateTenant(ctx, SeedTenantCode, "Biblioteca Central")
	if err != nil {
		return err
	}
	hash, err := HashPassword(SeedPassword)
	if err != nil {
		return err
	}
	userID, err := store.CreateUser(ctx, User{
		TenantID:     tenantID,
		Email:        SeedEmail,
		Name:         "Administrador",
		Role:         "Admin",
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}

	books := []Book{
		{Title: "Cien años de soledad", Author: "Gabriel García Márquez", Publisher: "Sudamericana", ISBN: "9780307474728", Year: 1967},
		{Title: "Rayuela", Author: "Julio Cortázar", Publisher: "Sudamericana", ISBN: "9788437604572", Year: 1963},
		{Title: "Ficciones", Author: "Jorge Luis Borges", Publisher: "Sur", ISBN: "9788420633121", Year: 1944},
		{Title: "La casa de los espíritus", Author: "Isabel Allende", Publisher: "Plaza & Janés", ISBN: "9788401242267", Year: 1982},
	}
	bookIDs := make([]int64, len(books))
	for i, b := range books {
		if bookIDs[i], err = store.CreateBook(ctx, tenantID, b); err != nil {
			return fmt.Errorf("book %q: %w", b.Title, err)
		}
	}

	var copyIDs []int64
	for i, bookID := range bookIDs {
		for n := 1; n <= 2; n++ {
			id, err := store.CreateCopy(ctx, tenantID, Copy{
				BookID:   bookID,
				Barcode:  fmt.Sprintf("BC-%03d-%d", i+1, n),
				Location: fmt.Sprintf("Shelf %c", 'A'+i),
			})
			if err != nil {
				return err
			}
			copyIDs = append(copyIDs, id)
		}
	}

	members := []Member{
		{Code: "S-001", FullName: "Ana Torres", Email: "ana.torres@example.org", MemberType: "Estudiante"},
		{Code: "F-002", FullName: "Luis Gómez", Email: "lgomez@example.org", MemberType: "Docente"},
		{Code: "R-003", FullName: "Mariana Ruiz", Email: "mruiz@example.org", MemberType: "Investigador"},
		{Code: "A-004", FullName: "Pedro Salas", Email: "psalas@example.org", MemberType: "Administrativo"},
	}
	memberIDs := make([]int64, len(members))
	for i, m := range members {
		if memberIDs[i], err = store.CreateMember(ctx, tenantID, m); err != nil {
			return err
		}
	}

	day := func(offset int) string { return today.AddDate(0, 0, offset).Format(dateLayout) }
	loans := []LoanInput{
		{MemberID: memberIDs[0], CopyID: copyIDs[0], LoanDate: day(-3), DueDate: day(4)},
		{MemberID: memberIDs[1], CopyID: copyIDs[2], LoanDate: day(-12), DueDate: day(-5)},
		{MemberID: memberIDs[2], CopyID: copyIDs[4], LoanDate: day(-20), DueDate: day(-13)},
	}
	for _, in := range loans {
		if _, err := store.CreateLoan(ctx, tenantID, userID, in, today); err != nil {
			return err
		}
	}
	// The oldest loan has come back.
	last := int64(len(loans))
	return store.ReturnLoan(ctx, tenantID, last, today.AddDate(0, 0, -9))
}
