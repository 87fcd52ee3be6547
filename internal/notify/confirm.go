package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/five82/biblio/internal/failure"
)

// Prompt describes an irreversible action awaiting approval.
type Prompt struct {
	Title   string
	Text    string
	Confirm string // label of the approving choice
}

// Confirmer asks the operator to approve a Prompt.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, p Prompt) (bool, error)

// Confirm calls f.
func (f ConfirmerFunc) Confirm(ctx context.Context, p Prompt) (bool, error) { return f(ctx, p) }

// Approved is used when the operator already confirmed, for example through
// the TUI's confirm modal before the command was dispatched.
var Approved Confirmer = ConfirmerFunc(func(context.Context, Prompt) (bool, error) { return true, nil })

// Declined refuses every prompt.
var Declined Confirmer = ConfirmerFunc(func(context.Context, Prompt) (bool, error) { return false, nil })

// Require asks c and turns a refusal into a Cancelled failure.
func Require(ctx context.Context, c Confirmer, op string, p Prompt) error {
	if c == nil {
		return failure.New(failure.Cancelled, op, "no confirmation available")
	}
	ok, err := c.Confirm(ctx, p)
	if err != nil {
		return failure.Wrap(failure.Cancelled, op, err)
	}
	if !ok {
		return failure.New(failure.Cancelled, op, "declined")
	}
	return nil
}

// Terminal asks on a line-oriented terminal. AssumeYes skips the question.
type Terminal struct {
	In        io.Reader
	Out       io.Writer
	AssumeYes bool
}

// Confirm prints the prompt and reads a y/yes answer. Anything else declines.
func (t Terminal) Confirm(ctx context.Context, p Prompt) (bool, error) {
	if t.AssumeYes {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	label := p.Confirm
	if label == "" {
		label = "continue"
	}
	if p.Title != "" {
		_, _ = fmt.Fprintln(t.Out, p.Title)
	}
	if p.Text != "" {
		_, _ = fmt.Fprintln(t.Out, p.Text)
	}
	_, _ = fmt.Fprintf(t.Out, "%s? [y/N]: ", titleCase(label))

	reader := bufio.NewReader(t.In)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
