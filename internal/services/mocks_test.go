package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

type MockNotificationSink struct {
	mock.Mock
}

func (m *MockNotificationSink) Notify(ctx context.Context, userID string, event models.ScanEvent) error {
	args := m.Called(ctx, userID, event)
	return args.Error(0)
}

type MockStatsReader struct {
	mock.Mock
}

func (m *MockStatsReader) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserStats), args.Error(1)
}

// memoryStatsCache mirrors RedisStatsCache's version semantics in memory.
type memoryStatsCache struct {
	mu            sync.Mutex
	entries       map[string]models.UserStats
	versions      map[string]int64
	invalidations map[string]int
	sets          int
}

func newMemoryStatsCache() *memoryStatsCache {
	return &memoryStatsCache{
		entries:       map[string]models.UserStats{},
		versions:      map[string]int64{},
		invalidations: map[string]int{},
	}
}

func (c *memoryStatsCache) Get(_ context.Context, userID string) (*models.UserStats, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	version := c.versions[userID]
	stats, ok := c.entries[userID]
	if !ok || stats.Version != version {
		return nil, version, nil
	}
	return &stats, version, nil
}

func (c *memoryStatsCache) Set(_ context.Context, stats *models.UserStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[stats.UserID] = *stats
	return nil
}

// Invalidate fails on a done context the way a Redis round trip would.
func (c *memoryStatsCache) Invalidate(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[userID]++
	c.invalidations[userID]++
	delete(c.entries, userID)
	return nil
}

func (c *memoryStatsCache) invalidationsFor(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations[userID]
}

type memoryLeaderboardCache struct {
	mu            sync.Mutex
	board         *models.Leaderboard
	invalidations int
}

func (c *memoryLeaderboardCache) Get(context.Context) (*models.Leaderboard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.board == nil {
		return nil, nil
	}
	board := *c.board
	board.Entries = append([]models.LeaderboardEntry(nil), c.board.Entries...)
	return &board, nil
}

func (c *memoryLeaderboardCache) Set(_ context.Context, board *models.Leaderboard, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := *board
	stored.Entries = append([]models.LeaderboardEntry(nil), board.Entries...)
	c.board = &stored
	return nil
}

func (c *memoryLeaderboardCache) Invalidate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.board = nil
	c.invalidations++
	return nil
}

func (c *memoryLeaderboardCache) invalidationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations
}

// testEnv wires every service against one sqlmock connection.
type testEnv struct {
	db         *sqlx.DB
	mock       sqlmock.Sqlmock
	logger     *logrus.Logger
	hook       *test.Hook
	sink       *MockNotificationSink
	statsCache *memoryStatsCache
	boardCache *memoryLeaderboardCache

	registry *ScanRegistry
	ledger   *LedgerStore
	stats    *StatsService
	rank     *RankService
	notifier *NotificationService
	scans    *ScanService
	wallet   *LedgerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	retry := config.RetryConfig{ReadAttempts: 2, ReadBackoff: time.Millisecond}
	env := &testEnv{
		db:         sqlx.NewDb(rawDB, "postgres"),
		mock:       mock,
		logger:     logger,
		hook:       hook,
		sink:       &MockNotificationSink{},
		statsCache: newMemoryStatsCache(),
		boardCache: &memoryLeaderboardCache{},
	}
	clock := func() time.Time { return testNow }

	env.registry = NewScanRegistry(env.db)
	env.registry.now = clock
	env.registry.newID = func() string { return "scan-id-1" }

	env.ledger = NewLedgerStore(env.db)
	env.ledger.now = clock

	env.stats = NewStatsService(env.ledger, env.registry, env.statsCache, retry, logger)
	env.stats.now = clock

	env.rank = NewRankService(env.ledger, env.registry, env.boardCache, config.RankConfig{RefreshInterval: time.Minute, DefaultLimit: 10}, retry, logger)
	env.rank.now = clock

	env.notifier = NewNotificationService(env.sink, config.NotifyConfig{QueueSize: 8, Timeout: time.Second}, logger)

	env.scans = NewScanService(env.db, env.registry, env.ledger, env.stats, env.rank, env.notifier, retry, logger)
	env.scans.now = clock

	env.wallet = NewLedgerService(env.db, env.ledger, env.stats, env.rank, retry, logger)
	env.wallet.now = clock

	return env
}

var scanRecordColumns = []string{"id", "code", "owner_id", "status", "reward_amount", "rejection_reason", "submitted_at", "decided_at", "decided_by"}

func pendingRow(code, owner string) *sqlmock.Rows {
	return sqlmock.NewRows(scanRecordColumns).
		AddRow("scan-id-1", code, owner, "pending", "0.00", nil, testNow, nil, nil)
}
