// Package catalog provides list, save and delete for books and members.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/notify"
	"github.com/five82/biblio/internal/state"
)

// DefaultCategoryID is assigned to books saved without a category.
const DefaultCategoryID = 1

const (
	msgBooksLoadFailed    = "Could not load the books."
	msgBookSaveFailed     = "Could not save the book."
	msgBookDeleteFailed   = "Could not delete the book. Does it still have copies or loans?"
	msgMembersLoadFailed  = "Could not load the members."
	msgMemberSaveFailed   = "Could not save the member."
	msgMemberDeleteFailed = "Could not delete the member. Members with loan history cannot be deleted."
)

// BookGateway is the subset of the backend the book catalog needs.
type BookGateway interface {
	ListBooks(ctx context.Context) ([]gateway.Book, error)
	CreateBook(ctx context.Context, b gateway.Book) error
	UpdateBook(ctx context.Context, b gateway.Book) error
	DeleteBook(ctx context.Context, id int) error
}

// MemberGateway is the subset of the backend the member registry needs.
type MemberGateway interface {
	ListMembers(ctx context.Context) ([]gateway.Member, error)
	CreateMember(ctx context.Context, m gateway.Member) error
	UpdateMember(ctx context.Context, m gateway.Member) error
	DeleteMember(ctx context.Context, id int) error
}

// Options configure the services.
type Options struct {
	Store   *state.Store
	Notices *notify.Center
	Logger  zerolog.Logger
}

type base struct {
	store   *state.Store
	notices *notify.Center
	log     zerolog.Logger
}

func newBase(opts Options, component string) base {
	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}
	return base{store: store, notices: opts.Notices, log: opts.Logger.With().Str("component", component).Logger()}
}

func (b base) notify(err error, generic string, verbatim bool) {
	if b.notices != nil {
		b.notices.PushError(err, generic, verbatim)
	}
}

func (b base) success(title, text string) {
	if b.notices != nil {
		b.notices.Push(notify.Transient(notify.Success, title, text))
	}
}

// BookForm is the create/edit input for a book.
type BookForm struct {
	ID         int
	Title      string `validate:"required"`
	Author     string `validate:"required"`
	Publisher  string
	ISBN       string
	Year       int `validate:"gte=0,lte=9999"`
	CategoryID int `validate:"gte=0"`
}

// BookFormFrom pre-fills a form for editing b.
func BookFormFrom(b gateway.Book) BookForm {
	return BookForm{ID: b.ID, Title: b.Title, Author: b.Author, Publisher: b.Publisher, ISBN: b.ISBN, Year: b.Year, CategoryID: b.CategoryID}
}

func (f BookForm) normalized() BookForm {
	f.Title = strings.TrimSpace(f.Title)
	f.Author = strings.TrimSpace(f.Author)
	f.Publisher = strings.TrimSpace(f.Publisher)
	f.ISBN = strings.TrimSpace(f.ISBN)
	if f.CategoryID == 0 {
		f.CategoryID = DefaultCategoryID
	}
	return f
}

// Books is the book catalog.
type Books struct {
	base
	api BookGateway
}

// NewBooks builds the book catalog service.
func NewBooks(api BookGateway, opts Options) *Books {
	return &Books{base: newBase(opts, "books"), api: api}
}

// List fetches the catalog. On failure the previous list is returned with
// the error.
func (s *Books) List(ctx context.Context) ([]gateway.Book, error) {
	gen := s.store.Generation()
	books, err := s.api.ListBooks(ctx)
	if !s.store.CommitBooks(gen, books, err) {
		return nil, state.Superseded("list books")
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("book load failed")
		s.notify(err, msgBooksLoadFailed, false)
	}
	return s.store.Snapshot().Books.Items, err
}

// Save creates the book when form.ID is zero and updates it otherwise, then
// reloads the catalog.
func (s *Books) Save(ctx context.Context, form BookForm) error {
	form = form.normalized()
	op := "create book"
	if form.ID > 0 {
		op = "update book"
	}
	if err := failure.Validate(op, form); err != nil {
		s.notify(err, msgBookSaveFailed, false)
		return err
	}
	book := gateway.Book{
		ID: form.ID, Title: form.Title, Author: form.Author, Publisher: form.Publisher,
		ISBN: form.ISBN, Year: form.Year, CategoryID: form.CategoryID,
	}
	var err error
	if form.ID > 0 {
		err = s.api.UpdateBook(ctx, book)
	} else {
		err = s.api.CreateBook(ctx, book)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("op", op).Msg("book save failed")
		s.notify(err, msgBookSaveFailed, true)
		return err
	}
	s.log.Info().Str("op", op).Str("title", form.Title).Msg("book saved")
	s.reload(ctx)
	if form.ID > 0 {
		s.success("Book updated", form.Title)
	} else {
		s.success("Book created", form.Title)
	}
	return nil
}

// Delete removes a book once the operator confirms. A backend message, such
// as a referential refusal, is shown as is.
func (s *Books) Delete(ctx context.Context, id int, confirm notify.Confirmer) error {
	const op = "delete book"
	if err := notify.Require(ctx, confirm, op, BookDeletePrompt(s.find(id))); err != nil {
		return err
	}
	if err := s.api.DeleteBook(ctx, id); err != nil {
		s.log.Warn().Err(err).Int("book_id", id).Msg("book delete failed")
		s.notify(err, msgBookDeleteFailed, true)
		return err
	}
	s.log.Info().Int("book_id", id).Msg("book deleted")
	s.reload(ctx)
	s.success("Book deleted", "")
	return nil
}

func (s *Books) reload(ctx context.Context) {
	_, _ = s.List(ctx)
}

func (s *Books) find(id int) gateway.Book {
	for _, b := range s.store.Snapshot().Books.Items {
		if b.ID == id {
			return b
		}
	}
	return gateway.Book{ID: id}
}

// BookDeletePrompt warns that deleting b is irreversible.
func BookDeletePrompt(b gateway.Book) notify.Prompt {
	subject := "This book"
	if b.Title != "" {
		subject = fmt.Sprintf("%q", b.Title)
	}
	return notify.Prompt{
		Title:   "Delete book",
		Text:    subject + " will be deleted. This cannot be undone, and it fails while the book has copies or loans.",
		Confirm: "delete",
	}
}

// MemberForm is the create/edit input for a member.
type MemberForm struct {
	ID         int
	Code       string             `validate:"required"`
	FullName   string             `validate:"required"`
	Email      string             `validate:"omitempty,email"`
	MemberType gateway.MemberType `validate:"required,oneof=Estudiante Docente Administrativo Investigador"`
}

// MemberFormFrom pre-fills a form for editing m.
func MemberFormFrom(m gateway.Member) MemberForm {
	return MemberForm{ID: m.ID, Code: m.Code, FullName: m.FullName, Email: m.Email, MemberType: m.MemberType}
}

func (f MemberForm) normalized() MemberForm {
	f.Code = strings.TrimSpace(f.Code)
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = strings.TrimSpace(f.Email)
	if f.MemberType == "" {
		f.MemberType = gateway.MemberStudent
	} else if t, ok := gateway.ParseMemberType(string(f.MemberType)); ok {
		f.MemberType = t
	}
	return f
}

// Members is the member registry.
type Members struct {
	base
	api MemberGateway
}

// NewMembers builds the member registry service.
func NewMembers(api MemberGateway, opts Options) *Members {
	return &Members{base: newBase(opts, "members"), api: api}
}

// List fetches the members. On failure the previous list is returned with
// the error.
func (s *Members) List(ctx context.Context) ([]gateway.Member, error) {
	gen := s.store.Generation()
	members, err := s.api.ListMembers(ctx)
	if !s.store.CommitMembers(gen, members, err) {
		return nil, state.Superseded("list members")
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("member load failed")
		s.notify(err, msgMembersLoadFailed, false)
	}
	return s.store.Snapshot().Members.Items, err
}

// Save creates the member when form.ID is zero and updates it otherwise,
// then reloads the registry.
func (s *Members) Save(ctx context.Context, form MemberForm) error {
	form = form.normalized()
	op := "create member"
	if form.ID > 0 {
		op = "update member"
	}
	if err := failure.Validate(op, form); err != nil {
		s.notify(err, msgMemberSaveFailed, false)
		return err
	}
	member := gateway.Member{ID: form.ID, Code: form.Code, FullName: form.FullName, Email: form.Email, MemberType: form.MemberType}
	var err error
	if form.ID > 0 {
		err = s.api.UpdateMember(ctx, member)
	} else {
		err = s.api.CreateMember(ctx, member)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("op", op).Msg("member save failed")
		s.notify(err, msgMemberSaveFailed, true)
		return err
	}
	s.log.Info().Str("op", op).Str("code", form.Code).Msg("member saved")
	s.reload(ctx)
	if form.ID > 0 {
		s.success("Member updated", form.FullName)
	} else {
		s.success("Member created", form.FullName)
	}
	return nil
}

// Delete removes a member once the operator confirms.
func (s *Members) Delete(ctx context.Context, id int, confirm notify.Confirmer) error {
	const op = "delete member"
	if err := notify.Require(ctx, confirm, op, MemberDeletePrompt(s.find(id))); err != nil {
		return err
	}
	if err := s.api.DeleteMember(ctx, id); err != nil {
		s.log.Warn().Err(err).Int("member_id", id).Msg("member delete failed")
		s.notify(err, msgMemberDeleteFailed, true)
		return err
	}
	s.log.Info().Int("member_id", id).Msg("member deleted")
	s.reload(ctx)
	s.success("Member deleted", "")
	return nil
}

func (s *Members) reload(ctx context.Context) {
	_, _ = s.List(ctx)
}

func (s *Members) find(id int) gateway.Member {
	for _, m := range s.store.Snapshot().Members.Items {
		if m.ID == id {
			return m
		}
	}
	return gateway.Member{ID: id}
}

// MemberDeletePrompt warns that deleting m is irreversible.
func MemberDeletePrompt(m gateway.Member) notify.Prompt {
	subject := "This member"
	if m.FullName != "" {
		subject = m.FullName
	}
	return notify.Prompt{
		Title:   "Delete member",
		Text:    subject + " will be deleted. Members with loan history cannot be deleted.",
		Confirm: "delete",
	}
}
