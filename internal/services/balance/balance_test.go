package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/salonbook/billing-engine/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetOrCreateBalance(ctx context.Context, accountID, currency string) (*models.Balance, error) {
	args := m.Called(ctx, accountID, currency)
	if res := args.Get(0); res != nil {
		return res.(*models.Balance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) Deposit(ctx context.Context, accountID string, amount int64, currency, description string) (*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, amount, currency, description)
	if res := args.Get(0); res != nil {
		return res.(*models.LedgerEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) Withdraw(ctx context.Context, accountID string, amount int64, currency, kind, description string, relatedSubscriptionID *int64) (*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, amount, currency, kind, description, relatedSubscriptionID)
	if res := args.Get(0); res != nil {
		return res.(*models.LedgerEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) ListLedgerEntries(ctx context.Context, accountID string, limit, offset int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if res := args.Get(0); res != nil {
		return res.([]*models.LedgerEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

type ReserverMock struct{ mock.Mock }

func (m *ReserverMock) EnsureReserve(ctx context.Context, accountID string, asOf time.Time) (int64, error) {
	args := m.Called(ctx, accountID, asOf)
	return args.Get(0).(int64), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

func NewNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestBalanceService_Deposit(t *testing.T) {
	tests := []struct {
		name       string
		amount     int64
		method     string
		setupMocks func(repo *RepoMock)
		wantErr    bool
	}{
		{
			name:   "successful deposit",
			amount: 50000,
			method: "card",
			setupMocks: func(repo *RepoMock) {
				repo.On("Deposit", mock.Anything, "acc-1", int64(50000), "RUB", "deposit via card").
					Return(&models.LedgerEntry{
						AccountID:     "acc-1",
						Amount:        50000,
						Kind:          models.LedgerKindDeposit,
						BalanceBefore: 0,
						BalanceAfter:  50000,
					}, nil).Once()
			},
		},
		{
			name:       "zero amount rejected before repository call",
			amount:     0,
			method:     "card",
			setupMocks: func(_ *RepoMock) {},
			wantErr:    true,
		},
		{
			name:       "negative amount rejected",
			amount:     -100,
			method:     "card",
			setupMocks: func(_ *RepoMock) {},
			wantErr:    true,
		},
		{
			name:   "repository error is propagated",
			amount: 100,
			method: "sbp",
			setupMocks: func(repo *RepoMock) {
				repo.On("Deposit", mock.Anything, "acc-1", int64(100), "RUB", "deposit via sbp").
					Return(nil, errors.New("db down")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)

			svc := NewBalanceService(repo, nil, nil, "RUB", NewNoopLogger())

			entry, err := svc.Deposit(context.Background(), "acc-1", tt.amount, tt.method)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.amount, entry.Amount)
				assert.Equal(t, entry.BalanceBefore+entry.Amount, entry.BalanceAfter)
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestBalanceService_Deposit_RefreshesReadModels(t *testing.T) {
	t.Run("successful deposit recomputes reserve and drops status caches", func(t *testing.T) {
		repo := new(RepoMock)
		reserver := new(ReserverMock)
		cacheMock := new(CacheMock)
		repo.On("Deposit", mock.Anything, "acc-1", int64(50000), "RUB", "deposit via card").
			Return(&models.LedgerEntry{
				AccountID:    "acc-1",
				Amount:       50000,
				BalanceAfter: 50000,
			}, nil).Once()
		cacheMock.On("Invalidate", "substatus:acc-1:SALON").Return(nil).Once()
		cacheMock.On("Invalidate", "substatus:acc-1:PROVIDER").Return(nil).Once()
		reserver.On("EnsureReserve", mock.Anything, "acc-1", mock.Anything).Return(int64(0), nil).Once()

		svc := NewBalanceService(repo, reserver, cacheMock, "RUB", NewNoopLogger())

		_, err := svc.Deposit(context.Background(), "acc-1", 50000, "card")
		assert.NoError(t, err)

		repo.AssertExpectations(t)
		reserver.AssertExpectations(t)
		cacheMock.AssertExpectations(t)
	})

	t.Run("refresh errors do not fail the deposit", func(t *testing.T) {
		repo := new(RepoMock)
		reserver := new(ReserverMock)
		cacheMock := new(CacheMock)
		repo.On("Deposit", mock.Anything, "acc-1", int64(100), "RUB", "deposit via card").
			Return(&models.LedgerEntry{AccountID: "acc-1", Amount: 100, BalanceAfter: 100}, nil).Once()
		cacheMock.On("Invalidate", mock.Anything).Return(errors.New("redis down")).Twice()
		reserver.On("EnsureReserve", mock.Anything, "acc-1", mock.Anything).
			Return(int64(0), errors.New("redis down")).Once()

		svc := NewBalanceService(repo, reserver, cacheMock, "RUB", NewNoopLogger())

		entry, err := svc.Deposit(context.Background(), "acc-1", 100, "card")
		assert.NoError(t, err)
		assert.Equal(t, int64(100), entry.BalanceAfter)
	})

	t.Run("failed deposit does not touch read models", func(t *testing.T) {
		repo := new(RepoMock)
		reserver := new(ReserverMock)
		cacheMock := new(CacheMock)
		repo.On("Deposit", mock.Anything, "acc-1", int64(100), "RUB", "deposit via card").
			Return(nil, errors.New("db down")).Once()

		svc := NewBalanceService(repo, reserver, cacheMock, "RUB", NewNoopLogger())

		_, err := svc.Deposit(context.Background(), "acc-1", 100, "card")
		assert.Error(t, err)

		reserver.AssertNotCalled(t, "EnsureReserve", mock.Anything, mock.Anything, mock.Anything)
		cacheMock.AssertNotCalled(t, "Invalidate", mock.Anything)
	})
}

func TestBalanceService_History(t *testing.T) {
	repo := new(RepoMock)
	entries := []*models.LedgerEntry{
		{AccountID: "acc-1", Amount: -100, Kind: models.LedgerKindDailyCharge},
		{AccountID: "acc-1", Amount: 50000, Kind: models.LedgerKindDeposit},
	}
	repo.On("ListLedgerEntries", mock.Anything, "acc-1", 20, 0).Return(entries, nil).Once()

	svc := NewBalanceService(repo, nil, nil, "RUB", NewNoopLogger())

	got, err := svc.History(context.Background(), "acc-1", 20, 0)
	assert.NoError(t, err)
	assert.Len(t, got, 2)

	repo.AssertExpectations(t)
}
