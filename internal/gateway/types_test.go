package gateway

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLoan_OverdueBoundary(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status LoanStatus
		due    time.Time
		want   bool
	}{
		{"active past due", LoanActive, now.Add(-time.Second), true},
		{"active due exactly now", LoanActive, now, false},
		{"active due later", LoanActive, now.Add(time.Hour), false},
		{"returned past due", LoanReturned, now.Add(-48 * time.Hour), false},
		{"active without due date", LoanActive, time.Time{}, false},
	}
	for _, tt := range tests {
		l := Loan{Status: tt.status, DueDate: NewDate(tt.due)}
		if got := l.Overdue(now); got != tt.want {
			t.Fatalf("%s: Overdue = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLoan_BookTitlePlaceholder(t *testing.T) {
	tests := []struct {
		name string
		loan Loan
		want string
	}{
		{"no copy", Loan{}, UnknownBook},
		{"copy without book", Loan{Copy: &LoanCopy{Barcode: "B"}}, UnknownBook},
		{"blank title", Loan{Copy: &LoanCopy{Book: &BookRef{Title: "  "}}}, UnknownBook},
		{"joined", Loan{Copy: &LoanCopy{Book: &BookRef{Title: "Ficciones"}}}, "Ficciones"},
	}
	for _, tt := range tests {
		if got := tt.loan.BookTitle(); got != tt.want {
			t.Fatalf("%s: BookTitle = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDate_AcceptsBackendEncodings(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"2024-01-08"`, "2024-01-08"},
		{`"2024-01-08T00:00:00"`, "2024-01-08"},
		{`"2024-01-08T10:30:00.1234567"`, "2024-01-08"},
		{`"2024-01-08T10:30:00Z"`, "2024-01-08"},
		{`"2024-01-08T10:30:00-05:00"`, "2024-01-08"},
		{`null`, ""},
		{`""`, ""},
	}
	for _, tt := range tests {
		var d Date
		if err := json.Unmarshal([]byte(tt.raw), &d); err != nil {
			t.Fatalf("Unmarshal(%s) returned error: %v", tt.raw, err)
		}
		if got := d.String(); got != tt.want {
			t.Fatalf("Unmarshal(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}

	var d Date
	if err := json.Unmarshal([]byte(`"yesterday"`), &d); err == nil {
		t.Fatalf("Unmarshal accepted garbage date")
	}

	out, err := json.Marshal(NewDate(time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(out) != `"2024-01-01"` {
		t.Fatalf("Marshal = %s, want \"2024-01-01\"", out)
	}
}

func TestParseMemberType(t *testing.T) {
	for _, in := range []string{"Docente", "faculty", " FACULTY "} {
		got, ok := ParseMemberType(in)
		if !ok || got != MemberFaculty {
			t.Fatalf("ParseMemberType(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseMemberType("Visitor"); ok {
		t.Fatalf("ParseMemberType accepted unknown type")
	}
	if MemberResearcher.Label() != "Researcher" || CopyLoaned.Label() != "Loaned" || LoanReturned.Label() != "Returned" {
		t.Fatalf("labels not translated")
	}
}
