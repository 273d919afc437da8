package services

import (
	"context"
	"time"

	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/models"
	"github.com/sirupsen/logrus"
)

type StatsReader interface {
	GetStats(ctx context.Context, userID string) (*models.UserStats, error)
}

// StatsChange is reported when a poll differs from the previous one.
// Previous is nil for the first successful poll.
type StatsChange struct {
	Previous *models.UserStats
	Current  *models.UserStats
}

// StatsWatcher polls one user's stats for clients without a live event
// session. Failed polls back off exponentially up to MaxBackoff.
type StatsWatcher struct {
	reader     StatsReader
	userID     string
	interval   time.Duration
	maxBackoff time.Duration
	onChange   func(StatsChange)
	logger     logrus.FieldLogger
}

func NewStatsWatcher(reader StatsReader, userID string, cfg config.WatchConfig, onChange func(StatsChange), logger logrus.FieldLogger) *StatsWatcher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff < interval {
		maxBackoff = interval
	}
	return &StatsWatcher{
		reader:     reader,
		userID:     userID,
		interval:   interval,
		maxBackoff: maxBackoff,
		onChange:   onChange,
		logger:     logger.WithFields(logrus.Fields{"module": "stats_watcher", "user_id": userID}),
	}
}

// Run polls until ctx is done and returns ctx.Err().
func (w *StatsWatcher) Run(ctx context.Context) error {
	var (
		last     *models.UserStats
		failures int
	)

	for {
		delay := w.interval
		current, err := w.reader.GetStats(ctx, w.userID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			delay = nextBackoff(w.interval, w.maxBackoff, failures)
			w.logger.WithError(err).WithFields(logrus.Fields{
				"failures": failures,
				"retry_in": delay.String(),
			}).Warn("stats poll failed")
		} else {
			failures = 0
			if statsChanged(last, current) && w.onChange != nil {
				w.onChange(StatsChange{Previous: last, Current: current})
			}
			last = current
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func nextBackoff(base, max time.Duration, failures int) time.Duration {
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}

func statsChanged(prev, next *models.UserStats) bool {
	if prev == nil {
		return true
	}
	return prev.BottlesReturnedTotal != next.BottlesReturnedTotal ||
		prev.ScansPending != next.ScansPending ||
		prev.ScansRejected != next.ScansRejected ||
		prev.RecyclingRate != next.RecyclingRate ||
		!prev.Balance.Equal(next.Balance) ||
		!prev.UPIEarnedTotal.Equal(next.UPIEarnedTotal) ||
		!prev.RewardsTotal.Equal(next.RewardsTotal) ||
		!prev.WithdrawalsTotal.Equal(next.WithdrawalsTotal)
}
