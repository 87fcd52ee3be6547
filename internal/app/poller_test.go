package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/session"
	"github.com/five82/biblio/internal/state"
)

func TestCalculateBackoff(t *testing.T) {
	base := 30 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 30 * time.Second},
		{"negative failures", -1, 30 * time.Second},
		{"one failure", 1, time.Minute},
		{"two failures", 2, 2 * time.Minute},
		{"three failures", 3, 4 * time.Minute},
		{"four failures capped", 4, 5 * time.Minute},
		{"many failures capped", 40, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, base)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, base, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	base := 2 * time.Second
	for failures := 0; failures <= 100; failures++ {
		got := calculateBackoff(failures, base)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, base, got, maxBackoff)
		}
	}
}

type countingSource struct {
	calls atomic.Int32
	err   error
}

func (c *countingSource) Dashboard(context.Context) (gateway.Dashboard, error) {
	c.calls.Add(1)
	if c.err != nil {
		return gateway.Dashboard{}, c.err
	}
	return gateway.Dashboard{TotalBooks: 4, ActiveLoans: 2}, nil
}

func TestPoller_IdleWithoutSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &countingSource{}
	sess := &session.Store{}
	store := &state.Store{}
	StartPoller(ctx, src, sess, store, 5*time.Millisecond, zerolog.Nop())

	time.Sleep(60 * time.Millisecond)
	if got := src.calls.Load(); got != 0 {
		t.Fatalf("dashboard calls without session = %d, want 0", got)
	}

	sess.Populate(session.Session{Token: "tok", TenantID: 1})
	deadline := time.Now().Add(2 * time.Second)
	for !store.Snapshot().HasDashboard {
		if time.Now().After(deadline) {
			t.Fatalf("dashboard never loaded after sign in")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := store.Snapshot().Dashboard.TotalBooks; got != 4 {
		t.Fatalf("TotalBooks = %d, want 4", got)
	}
}

func TestPoller_FailuresAreRecorded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &countingSource{err: errors.New("boom")}
	sess := session.NewStore(session.Session{Token: "tok", TenantID: 1})
	store := &state.Store{}
	StartPoller(ctx, src, sess, store, 5*time.Millisecond, zerolog.Nop())

	deadline := time.Now().Add(2 * time.Second)
	for store.Snapshot().ConsecutiveFailures == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("failure never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if store.Snapshot().HasDashboard {
		t.Fatalf("HasDashboard = true after failures only")
	}
}
