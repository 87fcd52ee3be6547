package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/session"
	"github.com/five82/biblio/internal/state"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
)

// dashboardSource is the part of the backend the poller reads.
type dashboardSource interface {
	Dashboard(ctx context.Context) (gateway.Dashboard, error)
}

// StartPoller launches a background goroutine that refreshes the dashboard
// summary while a session is valid. Consecutive failures stretch the wait
// between attempts. It returns immediately.
func StartPoller(ctx context.Context, src dashboardSource, sess *session.Store, store *state.Store, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	log = log.With().Str("component", "poller").Logger()
	go func() {
		failures := 0
		for {
			wait := interval
			if _, ok := sess.Current(); ok {
				if err := refresh(ctx, src, store); err != nil {
					failures++
					log.Warn().Err(err).Int("failures", failures).Msg("dashboard poll failed")
				} else {
					failures = 0
				}
				wait = calculateBackoff(failures, interval)
			} else {
				failures = 0
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

func refresh(ctx context.Context, src dashboardSource, store *state.Store) error {
	gen := store.Generation()
	d, err := src.Dashboard(ctx)
	if !store.CommitDashboard(gen, d, err) {
		return nil
	}
	return err
}

// calculateBackoff doubles base once per consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	wait := base
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}
