package services

import (
	"context"
	"strings"
	"time"

	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// RecyclingRateFunc maps a bottle count to a 0-100 score. The result is
// clamped by the aggregator.
type RecyclingRateFunc func(bottlesReturned int64) int

// DefaultRecyclingRate is ten points per returned bottle, capped at 100.
// There is no business rule behind the factor; swap it via
// StatsService.SetRecyclingRate when one exists.
func DefaultRecyclingRate(bottlesReturned int64) int {
	if bottlesReturned <= 0 {
		return 0
	}
	if bottlesReturned >= 10 {
		return 100
	}
	return int(bottlesReturned * 10)
}

type StatsService struct {
	ledger   *LedgerStore
	registry *ScanRegistry
	cache    StatsCache
	rate     RecyclingRateFunc
	retry    config.RetryConfig
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewStatsService(ledger *LedgerStore, registry *ScanRegistry, cache StatsCache, retry config.RetryConfig, logger logrus.FieldLogger) *StatsService {
	if cache == nil {
		cache = noStatsCache{}
	}
	return &StatsService{
		ledger:   ledger,
		registry: registry,
		cache:    cache,
		rate:     DefaultRecyclingRate,
		retry:    retry,
		logger:   logger.WithField("module", "stats"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *StatsService) SetRecyclingRate(fn RecyclingRateFunc) {
	if fn != nil {
		s.rate = fn
	}
}

// GetStats serves the cached summary when it is current, otherwise
// recomputes it from the ledger and refreshes the cache. A cache outage only
// costs a recompute.
func (s *StatsService) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newError(KindValidation, "user id is required")
	}

	return withReadRetry(ctx, s.retry, s.logger, "get_stats", func() (*models.UserStats, error) {
		cached, version, err := s.cache.Get(ctx, userID)
		cacheUsable := err == nil
		if err != nil {
			s.logger.WithField("user_id", userID).WithError(err).Warn("stats cache read failed")
		}
		if cached != nil {
			return cached, nil
		}

		stats, err := s.Recompute(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !cacheUsable {
			return stats, nil
		}

		stats.Version = version
		if err := s.cache.Set(ctx, stats); err != nil {
			s.logger.WithField("user_id", userID).WithError(err).Warn("stats cache write failed")
		}
		return stats, nil
	})
}

// Recompute derives the summary from the ledger and the scan registry alone,
// bypassing the cache.
func (s *StatsService) Recompute(ctx context.Context, userID string) (*models.UserStats, error) {
	totals, err := s.ledger.SumByKind(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.registry.CountByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	upi := totals[models.EntryKindCredit]
	rewards := totals[models.EntryKindReward]
	withdrawals := totals[models.EntryKindWithdrawal]

	return &models.UserStats{
		UserID:               userID,
		BottlesReturnedTotal: counts.Approved,
		ScansPending:         counts.Pending,
		ScansRejected:        counts.Rejected,
		ScansTotal:           counts.Total(),
		UPIEarnedTotal:       upi,
		RewardsTotal:         rewards,
		WithdrawalsTotal:     withdrawals,
		Balance:              upi.Add(rewards).Sub(withdrawals),
		RecyclingRate:        clampRate(s.rate(counts.Approved)),
		ComputedAt:           s.now(),
	}, nil
}

// Invalidate marks the user's cached stats stale. It must run once after
// every committed change to that user's ledger entries or scan records, so
// it ignores cancellation of ctx: the change is already durable.
func (s *StatsService) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), userID); err != nil {
		config.LogError(s.logger, "stats", "Invalidate", "stats cache invalidation failed, stale until ttl", userID, err)
	}
}

func clampRate(rate int) int {
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}
