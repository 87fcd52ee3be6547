// Package inventory manages the physical copies of one book and derives their
// availability.
package inventory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/notify"
	"github.com/five82/biblio/internal/state"
)

// DefaultLocation is used when a copy is added without a shelf location.
const DefaultLocation = "Reception"

const (
	msgLoadFailed   = "Could not load the copies."
	msgAddFailed    = "Could not add the copy."
	msgDeleteFailed = "Could not delete the copy."
)

// Gateway is the subset of the backend the inventory needs.
type Gateway interface {
	ListCopies(ctx context.Context) ([]gateway.Copy, error)
	CreateCopy(ctx context.Context, c gateway.Copy) error
	DeleteCopy(ctx context.Context, id int) error
}

// Options configure a View.
type Options struct {
	DefaultLocation string
	Store           *state.Store
	Notices         *notify.Center
	Logger          zerolog.Logger
}

// View is the copy list of a single book.
type View struct {
	bookID   int
	api      Gateway
	store    *state.Store
	notices  *notify.Center
	log      zerolog.Logger
	location string

	mu     sync.RWMutex
	copies []gateway.Copy
}

// NewView builds the inventory of bookID.
func NewView(api Gateway, bookID int, opts Options) *View {
	loc := strings.TrimSpace(opts.DefaultLocation)
	if loc == "" {
		loc = DefaultLocation
	}
	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}
	return &View{
		bookID:   bookID,
		api:      api,
		store:    store,
		notices:  opts.Notices,
		log:      opts.Logger.With().Str("component", "inventory").Int("book_id", bookID).Logger(),
		location: loc,
	}
}

// BookID returns the book this view lists.
func (v *View) BookID() int { return v.bookID }

// Copies returns the copies loaded by the last successful Load.
func (v *View) Copies() []gateway.Copy {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]gateway.Copy(nil), v.copies...)
}

// Summary counts the loaded copies by availability.
func (v *View) Summary() Summary {
	return Summarize(v.Copies())
}

// Load fetches every copy and keeps those belonging to the book. A failed
// load leaves the previous list in place.
func (v *View) Load(ctx context.Context) error {
	gen := v.store.Generation()
	all, err := v.api.ListCopies(ctx)
	if !v.store.CommitCopies(gen, all, err) {
		return state.Superseded("list copies")
	}
	if err != nil {
		v.log.Warn().Err(err).Msg("copy load failed")
		v.notify(err, msgLoadFailed, false)
		return err
	}
	mine := ForBook(all, v.bookID)
	v.mu.Lock()
	v.copies = mine
	v.mu.Unlock()
	return nil
}

// AddForm is the input of Add.
type AddForm struct {
	Barcode  string `validate:"required"`
	Location string
}

// Add registers a new available copy and reloads the list.
func (v *View) Add(ctx context.Context, barcode, location string) error {
	const op = "add copy"
	form := AddForm{Barcode: strings.TrimSpace(barcode), Location: strings.TrimSpace(location)}
	if err := failure.Validate(op, form); err != nil {
		v.notify(err, "A barcode is required.", false)
		return err
	}
	if form.Location == "" {
		form.Location = v.location
	}
	err := v.api.CreateCopy(ctx, gateway.Copy{
		BookID:   v.bookID,
		Barcode:  form.Barcode,
		Location: form.Location,
		Status:   gateway.CopyAvailable,
	})
	if err != nil {
		v.log.Warn().Err(err).Str("barcode", form.Barcode).Msg("copy create failed")
		v.notify(err, msgAddFailed, true)
		return err
	}
	v.log.Info().Str("barcode", form.Barcode).Str("location", form.Location).Msg("copy added")
	v.reload(ctx)
	v.push(notify.Transient(notify.Success, "Copy added", fmt.Sprintf("Copy %s added at %s.", form.Barcode, form.Location)))
	return nil
}

// Remove deletes a copy once the operator confirms. Backend refusals are
// reported generically; the cause is not distinguished.
func (v *View) Remove(ctx context.Context, copyID int, confirm notify.Confirmer) error {
	const op = "delete copy"
	target, ok := v.find(copyID)
	if !ok {
		target = gateway.Copy{ID: copyID}
	}
	if err := notify.Require(ctx, confirm, op, RemovePrompt(target)); err != nil {
		return err
	}
	if err := v.api.DeleteCopy(ctx, copyID); err != nil {
		v.log.Warn().Err(err).Int("copy_id", copyID).Msg("copy delete failed")
		v.notify(err, msgDeleteFailed, false)
		return err
	}
	v.log.Info().Int("copy_id", copyID).Msg("copy deleted")
	v.reload(ctx)
	v.push(notify.Transient(notify.Success, "Copy deleted", ""))
	return nil
}

// reload refreshes the list after a successful mutation. Its failure is
// reported by Load and does not undo the mutation.
func (v *View) reload(ctx context.Context) {
	_ = v.Load(ctx)
}

func (v *View) find(id int) (gateway.Copy, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, c := range v.copies {
		if c.ID == id {
			return c, true
		}
	}
	return gateway.Copy{}, false
}

func (v *View) notify(err error, generic string, verbatim bool) {
	if v.notices != nil {
		v.notices.PushError(err, generic, verbatim)
	}
}

func (v *View) push(n notify.Notice) {
	if v.notices != nil {
		v.notices.Push(n)
	}
}

// RemovePrompt is the irreversible-action warning shown before deleting c.
func RemovePrompt(c gateway.Copy) notify.Prompt {
	subject := "This copy"
	if c.Barcode != "" {
		subject = fmt.Sprintf("Copy %s", c.Barcode)
	}
	return notify.Prompt{
		Title:   "Delete copy",
		Text:    subject + " will be removed permanently. This cannot be undone.",
		Confirm: "delete",
	}
}

// Summary counts copies by availability.
type Summary struct {
	Total     int
	Available int
	Loaned    int
}

// Summarize counts copies by status.
func Summarize(copies []gateway.Copy) Summary {
	s := Summary{Total: len(copies)}
	for _, c := range copies {
		if c.Available() {
			s.Available++
		} else if c.Status == gateway.CopyLoaned {
			s.Loaned++
		}
	}
	return s
}

// Available returns the copies that can be loaned, in input order. This is
// exactly the loan candidate pool.
func Available(copies []gateway.Copy) []gateway.Copy {
	var out []gateway.Copy
	for _, c := range copies {
		if c.Available() {
			out = append(out, c)
		}
	}
	return out
}

// ForBook returns the copies of bookID, in input order.
func ForBook(copies []gateway.Copy, bookID int) []gateway.Copy {
	var out []gateway.Copy
	for _, c := range copies {
		if c.BookID == bookID {
			out = append(out, c)
		}
	}
	return out
}
