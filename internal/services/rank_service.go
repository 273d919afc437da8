package services

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const leaderboardKey = "leaderboard"

type LeaderboardCache interface {
	Get(ctx context.Context) (*models.Leaderboard, error)
	Set(ctx context.Context, board *models.Leaderboard, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type RedisLeaderboardCache struct {
	client *redis.Client
}

func NewRedisLeaderboardCache(client *redis.Client) *RedisLeaderboardCache {
	return &RedisLeaderboardCache{client: client}
}

func (c *RedisLeaderboardCache) Get(ctx context.Context) (*models.Leaderboard, error) {
	data, err := c.client.Get(ctx, leaderboardKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var board models.Leaderboard
	if err := json.Unmarshal([]byte(data), &board); err != nil {
		return nil, nil
	}
	return &board, nil
}

func (c *RedisLeaderboardCache) Set(ctx context.Context, board *models.Leaderboard, ttl time.Duration) error {
	data, err := json.Marshal(board)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, leaderboardKey, string(data), ttl).Err()
}

func (c *RedisLeaderboardCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, leaderboardKey).Err()
}

type noLeaderboardCache struct{}

func (noLeaderboardCache) Get(context.Context) (*models.Leaderboard, error)              { return nil, nil }
func (noLeaderboardCache) Set(context.Context, *models.Leaderboard, time.Duration) error { return nil }
func (noLeaderboardCache) Invalidate(context.Context) error                              { return nil }

// RankService orders users by total earned (credits plus rewards). Ties go
// to the user whose first approved scan was submitted earliest, then to the
// lower user id, so positions are total and stable.
type RankService struct {
	ledger   *LedgerStore
	registry *ScanRegistry
	cache    LeaderboardCache
	cfg      config.RankConfig
	retry    config.RetryConfig
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewRankService(ledger *LedgerStore, registry *ScanRegistry, cache LeaderboardCache, cfg config.RankConfig, retry config.RetryConfig, logger logrus.FieldLogger) *RankService {
	if cache == nil {
		cache = noLeaderboardCache{}
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	return &RankService{
		ledger:   ledger,
		registry: registry,
		cache:    cache,
		cfg:      cfg,
		retry:    retry,
		logger:   logger.WithField("module", "rank"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetRank returns the user's 1-based position. Users with no earnings are
// not ranked and get Rank 0.
func (s *RankService) GetRank(ctx context.Context, userID string) (*models.UserRank, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newError(KindValidation, "user id is required")
	}

	board, err := s.board(ctx)
	if err != nil {
		return nil, err
	}

	rank := &models.UserRank{
		UserID:      userID,
		TotalEarned: decimal.Zero,
		TotalUsers:  len(board.Entries),
	}
	for _, entry := range board.Entries {
		if entry.UserID == userID {
			rank.Rank = entry.Rank
			rank.TotalEarned = entry.TotalEarned
			break
		}
	}
	return rank, nil
}

// Leaderboard returns the top limit entries; limit <= 0 uses the configured
// default.
func (s *RankService) Leaderboard(ctx context.Context, limit int) (*models.Leaderboard, error) {
	board, err := s.board(ctx)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, s.cfg.DefaultLimit, 500)
	if len(board.Entries) > limit {
		board.Entries = board.Entries[:limit]
	}
	return board, nil
}

// Invalidate drops the cached board. Without it a board lives until
// rank.refresh_interval expires. Cancellation of ctx is ignored.
func (s *RankService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		config.LogError(s.logger, "rank", "Invalidate", "leaderboard invalidation failed, stale until refresh", nil, err)
	}
}

func (s *RankService) board(ctx context.Context) (*models.Leaderboard, error) {
	cached, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("leaderboard cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	board, err := withReadRetry(ctx, s.retry, s.logger, "leaderboard", func() (*models.Leaderboard, error) {
		return s.compute(ctx)
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, board, s.cfg.RefreshInterval); err != nil {
		s.logger.WithError(err).Warn("leaderboard cache write failed")
	}
	return board, nil
}

func (s *RankService) compute(ctx context.Context) (*models.Leaderboard, error) {
	earned, err := s.ledger.EarnedByUser(ctx)
	if err != nil {
		return nil, err
	}
	firsts, err := s.registry.FirstApprovedByOwner(ctx)
	if err != nil {
		return nil, err
	}

	firstByOwner := make(map[string]time.Time, len(firsts))
	for _, f := range firsts {
		firstByOwner[f.OwnerID] = f.FirstApprovedAt
	}

	return &models.Leaderboard{
		Entries:    rankEntries(earned, firstByOwner),
		ComputedAt: s.now(),
	}, nil
}

func rankEntries(earned []UserEarnings, firstApproved map[string]time.Time) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(earned))
	for _, e := range earned {
		if !e.TotalEarned.IsPositive() {
			continue
		}
		entry := models.LeaderboardEntry{UserID: e.UserID, TotalEarned: e.TotalEarned}
		if at, ok := firstApproved[e.UserID]; ok {
			at := at
			entry.FirstApprovedAt = &at
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if c := a.TotalEarned.Cmp(b.TotalEarned); c != 0 {
			return c > 0
		}
		switch {
		case a.FirstApprovedAt != nil && b.FirstApprovedAt == nil:
			return true
		case a.FirstApprovedAt == nil && b.FirstApprovedAt != nil:
			return false
		case a.FirstApprovedAt != nil && !a.FirstApprovedAt.Equal(*b.FirstApprovedAt):
			return a.FirstApprovedAt.Before(*b.FirstApprovedAt)
		}
		return a.UserID < b.UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
