// Package failure defines the typed error model shared by the gateway client,
// the workflows and the presentation layers.
package failure

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// Unknown is the kind of errors that did not come through this package.
	Unknown Kind = iota
	// Validation means the client refused to send the request.
	Validation
	// Rejected means the backend answered with a non-success status.
	Rejected
	// Unauthorized means there is no session or the backend refused the token.
	Unauthorized
	// Network means the request never produced a response.
	Network
	// Decode means the response body could not be understood.
	Decode
	// Cancelled means the operator declined a confirmation.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Rejected:
		return "rejected"
	case Unauthorized:
		return "unauthorized"
	case Network:
		return "network"
	case Decode:
		return "decode"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the error value returned at service boundaries.
type Error struct {
	Kind    Kind
	Op      string
	Status  int               // HTTP status for Rejected/Unauthorized
	Message string            // backend supplied or client generated text
	Fields  map[string]string // field -> failed rule, Validation only
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.String())
	}
	if e.Status > 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error without a cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an Error around a cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the backend or validation message carried by err, if any.
func MessageOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return strings.TrimSpace(fe.Message)
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct tag validation and converts violations into a
// Validation error keyed by field name.
func Validate(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Wrap(Validation, op, err)
	}
	fields := make(map[string]string, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		names = append(names, fe.Field())
	}
	sort.Strings(names)
	return &Error{
		Kind:    Validation,
		Op:      op,
		Message: "missing or invalid: " + strings.Join(names, ", "),
		Fields:  fields,
	}
}
