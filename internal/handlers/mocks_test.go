package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	mW "github.com/recyclepay/backend/internal/middleware"
	"github.com/recyclepay/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

var testNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

type MockScanService struct {
	mock.Mock
}

func (m *MockScanService) Submit(ctx context.Context, code, ownerID string) (*models.ScanRecord, error) {
	args := m.Called(ctx, code, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScanRecord), args.Error(1)
}

func (m *MockScanService) Decide(ctx context.Context, req models.DecisionRequest) (models.DecisionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.DecisionResult), args.Error(1)
}

func (m *MockScanService) ScanHistory(ctx context.Context, ownerID string, filter models.ScanFilter) ([]models.ScanRecord, error) {
	args := m.Called(ctx, ownerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ScanRecord), args.Error(1)
}

func (m *MockScanService) ListPending(ctx context.Context, limit int) ([]models.ScanRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ScanRecord), args.Error(1)
}

type MockStatsProvider struct {
	mock.Mock
}

func (m *MockStatsProvider) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserStats), args.Error(1)
}

type MockRankProvider struct {
	mock.Mock
}

func (m *MockRankProvider) GetRank(ctx context.Context, userID string) (*models.UserRank, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserRank), args.Error(1)
}

func (m *MockRankProvider) Leaderboard(ctx context.Context, limit int) (*models.Leaderboard, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Leaderboard), args.Error(1)
}

type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) RecordCredit(ctx context.Context, adminID, userID string, amount decimal.Decimal, sourceRef string) (*models.LedgerEntry, error) {
	args := m.Called(ctx, adminID, userID, amount, sourceRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerEntry), args.Error(1)
}

func (m *MockWallet) RecordWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, sourceRef string) (*models.LedgerEntry, error) {
	args := m.Called(ctx, userID, amount, sourceRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerEntry), args.Error(1)
}

func (m *MockWallet) History(ctx context.Context, userID string, filter models.HistoryFilter) ([]models.LedgerEntry, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LedgerEntry), args.Error(1)
}

type MockLabelRenderer struct {
	mock.Mock
}

func (m *MockLabelRenderer) NewCode(prefix string) string {
	return m.Called(prefix).String(0)
}

func (m *MockLabelRenderer) Render(code string) (string, error) {
	args := m.Called(code)
	return args.String(0), args.Error(1)
}

type testServer struct {
	scans  *MockScanService
	stats  *MockStatsProvider
	rank   *MockRankProvider
	wallet *MockWallet
	labels *MockLabelRenderer
	hook   *test.Hook
	http   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger, hook := test.NewNullLogger()

	s := &testServer{
		scans:  &MockScanService{},
		stats:  &MockStatsProvider{},
		rank:   &MockRankProvider{},
		wallet: &MockWallet{},
		labels: &MockLabelRenderer{},
		hook:   hook,
	}
	s.http = Router{
		Auth:   mW.NewAuthenticator(testSecret, nil, logger),
		Scans:  NewScanHandler(s.scans, logger),
		Wallet: NewWalletHandler(s.stats, s.rank, s.wallet, logger),
		Admin:  NewAdminHandler(s.scans, s.wallet, s.labels, logger),
	}.Handler()
	return s
}

func (s *testServer) do(t *testing.T, method, path, userID, role, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": userID,
			"role":    role,
			"exp":     time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.http.ServeHTTP(w, req)
	return w
}

func (s *testServer) assertExpectations(t *testing.T) {
	s.scans.AssertExpectations(t)
	s.stats.AssertExpectations(t)
	s.rank.AssertExpectations(t)
	s.wallet.AssertExpectations(t)
	s.labels.AssertExpectations(t)
}
