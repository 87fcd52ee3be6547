package failure

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf_FollowsWrapChain(t *testing.T) {
	base := New(Rejected, "delete book", "book has copies")
	wrapped := fmt.Errorf("books view: %w", base)

	if got := KindOf(wrapped); got != Rejected {
		t.Fatalf("KindOf = %v, want %v", got, Rejected)
	}
	if !Is(wrapped, Rejected) {
		t.Fatalf("Is(wrapped, Rejected) = false, want true")
	}
	if Is(nil, Rejected) {
		t.Fatalf("Is(nil, Rejected) = true, want false")
	}
	if got := KindOf(errors.New("plain")); got != Unknown {
		t.Fatalf("KindOf(plain) = %v, want unknown", got)
	}
	if got := MessageOf(wrapped); got != "book has copies" {
		t.Fatalf("MessageOf = %q, want backend message", got)
	}
}

func TestError_Format(t *testing.T) {
	err := &Error{Kind: Rejected, Op: "create loan", Status: 409, Message: "copy is not available"}
	if got := err.Error(); got != "create loan: copy is not available (status 409)" {
		t.Fatalf("Error() = %q", got)
	}

	cause := errors.New("dial tcp: connection refused")
	netErr := Wrap(Network, "list loans", cause)
	if !strings.Contains(netErr.Error(), "connection refused") {
		t.Fatalf("Error() = %q, want cause text", netErr.Error())
	}
	if !errors.Is(netErr, cause) {
		t.Fatalf("errors.Is(netErr, cause) = false, want true")
	}
	if got := New(Cancelled, "", "").Error(); got != "cancelled" {
		t.Fatalf("Error() = %q, want kind name", got)
	}
}

func TestValidate_CollectsFields(t *testing.T) {
	type form struct {
		Barcode  string `validate:"required"`
		Location string
		Email    string `validate:"omitempty,email"`
	}

	if err := Validate("add copy", form{Barcode: "B-1"}); err != nil {
		t.Fatalf("Validate returned error for valid form: %v", err)
	}

	err := Validate("add copy", form{Email: "not-an-email"})
	if !Is(err, Validation) {
		t.Fatalf("Validate error kind = %v, want validation", KindOf(err))
	}
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("Validate error = %T, want *Error", err)
	}
	if fe.Fields["Barcode"] != "required" || fe.Fields["Email"] != "email" {
		t.Fatalf("Fields = %v, want Barcode=required Email=email", fe.Fields)
	}
	if fe.Message != "missing or invalid: Barcode, Email" {
		t.Fatalf("Message = %q", fe.Message)
	}
}
