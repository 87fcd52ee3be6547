package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	lines, err := Read(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil {
		t.Fatalf("Read() error = %v, want nil", err)
	}
	if lines != nil {
		t.Fatalf("Read() = %v, want nil", lines)
	}
}

func TestParse(t *testing.T) {
	line := `{"level":"warn","component":"loans","loan_id":99,"time":"2024-01-08T10:00:00Z","message":"loan return failed"}`
	e := Parse(line)
	if e.Level != "WARN" {
		t.Fatalf("Level = %q, want WARN", e.Level)
	}
	if e.Component != "loans" {
		t.Fatalf("Component = %q, want loans", e.Component)
	}
	if e.Message != "loan return failed" {
		t.Fatalf("Message = %q", e.Message)
	}
	want := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	if !e.Time.Equal(want) {
		t.Fatalf("Time = %v, want %v", e.Time, want)
	}
	if got := e.Fields["loan_id"]; got != float64(99) {
		t.Fatalf("Fields[loan_id] = %v, want 99", got)
	}
	if _, ok := e.Fields["level"]; ok {
		t.Fatalf("Fields still carries level: %v", e.Fields)
	}
	if e.Raw != line {
		t.Fatalf("Raw = %q, want the input line", e.Raw)
	}
}

func TestParse_NonJSON(t *testing.T) {
	for _, line := range []string{"plain text line", "{broken json"} {
		e := Parse(line)
		if e.Message != line || e.Level != "" || e.Fields != nil {
			t.Fatalf("Parse(%q) = %+v, want raw message only", line, e)
		}
	}
}

func TestFormat(t *testing.T) {
	e := Entry{Level: "INFO", Component: "books", Message: "book saved", Fields: map[string]any{"title": "Rayuela", "op": "create book"}}
	got := Format(e)
	want := "INFO  [books] book saved op=create book title=Rayuela"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
	if got := Format(Entry{Message: "raw"}); got != "raw" {
		t.Fatalf("Format(raw) = %q, want raw", got)
	}
}

func TestTail_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "biblio.log")
	content := `{"level":"info","message":"one"}` + "\n\n" + `{"level":"error","message":"two"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, err := Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail() error = %v", err)
	}
	if len(entries) != 2 || entries[1].Message != "two" || entries[1].Level != "ERROR" {
		t.Fatalf("Tail() = %+v", entries)
	}
}
