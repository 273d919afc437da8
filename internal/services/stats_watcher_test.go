package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestStatsWatcher_Run(t *testing.T) {
	logger, _ := test.NewNullLogger()
	base := &models.UserStats{UserID: "user-1", Balance: decimal.RequireFromString("0.50"), BottlesReturnedTotal: 1}
	same := &models.UserStats{UserID: "user-1", Balance: decimal.RequireFromString("0.5"), BottlesReturnedTotal: 1}
	next := &models.UserStats{UserID: "user-1", Balance: decimal.RequireFromString("1.00"), BottlesReturnedTotal: 2}

	reader := &MockStatsReader{}
	reader.On("GetStats", mock.Anything, "user-1").Return(base, nil).Once()
	reader.On("GetStats", mock.Anything, "user-1").Return(nil, newError(KindStorageUnavailable, "down")).Once()
	reader.On("GetStats", mock.Anything, "user-1").Return(same, nil).Once()
	reader.On("GetStats", mock.Anything, "user-1").Return(next, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		changes []StatsChange
	)
	onChange := func(c StatsChange) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
		if len(changes) == 2 {
			cancel()
		}
	}

	w := NewStatsWatcher(reader, "user-1", config.WatchConfig{Interval: time.Millisecond, MaxBackoff: 4 * time.Millisecond}, onChange, logger)
	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	if assert.Len(t, changes, 2) {
		assert.Nil(t, changes[0].Previous)
		assert.Equal(t, base, changes[0].Current)
		assert.Equal(t, same, changes[1].Previous)
		assert.Equal(t, next, changes[1].Current)
	}
}

func TestStatsWatcher_StopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reader := &MockStatsReader{}
	reader.On("GetStats", mock.Anything, "user-1").Return(nil, errors.New("unreachable"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	w := NewStatsWatcher(reader, "user-1", config.WatchConfig{Interval: time.Millisecond, MaxBackoff: 5 * time.Millisecond}, nil, logger)
	assert.ErrorIs(t, w.Run(ctx), context.DeadlineExceeded)
}

func TestNextBackoff(t *testing.T) {
	base, max := 100*time.Millisecond, time.Second
	assert.Equal(t, 200*time.Millisecond, nextBackoff(base, max, 1))
	assert.Equal(t, 400*time.Millisecond, nextBackoff(base, max, 2))
	assert.Equal(t, 800*time.Millisecond, nextBackoff(base, max, 3))
	assert.Equal(t, max, nextBackoff(base, max, 4))
	assert.Equal(t, max, nextBackoff(base, max, 40))
}
