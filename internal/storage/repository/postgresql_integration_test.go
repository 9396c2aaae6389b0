package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonbook/billing-engine/internal/models"
)

func TestStorage_GetOrCreateBalance(t *testing.T) {
	type args struct {
		ctx       context.Context
		accountID string
	}

	tests := []struct {
		name       string
		args       args
		wantAmount int64
		setup      func(t *testing.T, factory *TestDataFactory)
	}{
		{
			name: "creates zero balance on first access",
			args: args{
				ctx:       context.Background(),
				accountID: "acc-new",
			},
			wantAmount: 0,
			setup:      func(_ *testing.T, _ *TestDataFactory) {},
		},
		{
			name: "returns existing balance unchanged",
			args: args{
				ctx:       context.Background(),
				accountID: "acc-1",
			},
			wantAmount: 50000,
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateBalance(t, "acc-1", 50000)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			tt.setup(t, factory)

			got, err := storage.GetOrCreateBalance(tt.args.ctx, tt.args.accountID, "RUB")

			require.NoError(t, err)
			assert.Equal(t, tt.args.accountID, got.AccountID)
			assert.Equal(t, tt.wantAmount, got.Amount)
			assert.Equal(t, "RUB", got.Currency)
		})
	}
}

func TestStorage_Deposit(t *testing.T) {
	type args struct {
		ctx       context.Context
		accountID string
		amount    int64
	}

	tests := []struct {
		name        string
		args        args
		wantBalance int64
		setup       func(t *testing.T, factory *TestDataFactory)
	}{
		{
			name: "deposit to existing balance",
			args: args{
				ctx:       context.Background(),
				accountID: "acc-1",
				amount:    30000,
			},
			wantBalance: 80000,
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateBalance(t, "acc-1", 50000)
			},
		},
		{
			name: "deposit lazily creates the balance row",
			args: args{
				ctx:       context.Background(),
				accountID: "acc-new",
				amount:    10000,
			},
			wantBalance: 10000,
			setup:       func(_ *testing.T, _ *TestDataFactory) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			tt.setup(t, factory)

			entry, err := storage.Deposit(tt.args.ctx, tt.args.accountID, tt.args.amount, "RUB", "deposit via card")

			require.NoError(t, err)
			assert.Equal(t, models.LedgerKindDeposit, entry.Kind)
			assert.Equal(t, tt.args.amount, entry.Amount)
			assert.Equal(t, entry.BalanceBefore+entry.Amount, entry.BalanceAfter)
			assert.Equal(t, tt.wantBalance, entry.BalanceAfter)
			assert.Equal(t, tt.wantBalance, factory.GetBalanceAmount(t, tt.args.accountID))
			assert.Equal(t, 1, factory.CountLedgerEntries(t, tt.args.accountID))
		})
	}
}

func TestStorage_Withdraw(t *testing.T) {
	type args struct {
		ctx       context.Context
		accountID string
		amount    int64
	}

	tests := []struct {
		name        string
		args        args
		wantErr     bool
		wantBalance int64
		wantEntries int
		setup       func(t *testing.T, factory *TestDataFactory)
	}{
		{
			name: "successful withdrawal",
			args: args{
				ctx:       context.Background(),
				accountID: "acc-1",
				amount:    20000,
			},
			wantErr:     false,
			wantBalance: 30000,
			wantEntries: 1,
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateBalance(t, "acc-1", 50000)
			},
		},
		{
			name: "insufficient funds leaves balance untouched",
			args: args{
				ctx:       context.Background(),
				accountID: "acc-1",
				amount:    50001,
			},
			wantErr:     true,
			wantBalance: 50000,
			wantEntries: 0,
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateBalance(t, "acc-1", 50000)
			},
		},
		{
			name: "withdrawal of exactly the full balance",
			args: args{
				ctx:       context.Background(),
				accountID: "acc-1",
				amount:    50000,
			},
			wantErr:     false,
			wantBalance: 0,
			wantEntries: 1,
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateBalance(t, "acc-1", 50000)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			tt.setup(t, factory)

			entry, err := storage.Withdraw(tt.args.ctx, tt.args.accountID, tt.args.amount,
				"RUB", models.LedgerKindWithdrawal, "manual withdrawal", nil)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsInsufficientFunds(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, -tt.args.amount, entry.Amount)
				assert.Equal(t, entry.BalanceBefore+entry.Amount, entry.BalanceAfter)
			}
			assert.Equal(t, tt.wantBalance, factory.GetBalanceAmount(t, tt.args.accountID))
			assert.Equal(t, tt.wantEntries, factory.CountLedgerEntries(t, tt.args.accountID))
		})
	}
}

func TestStorage_ChargeDaily(t *testing.T) {
	chargeDate := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	startDate := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		balance     int64
		dailyRate   int64
		chargeTwice bool
		wantStatus  string
		wantBalance int64
		wantEntries int
		wantActive  bool
	}{
		{
			name:        "sufficient balance produces SUCCESS charge",
			balance:     100000,
			dailyRate:   10000,
			wantStatus:  models.ChargeStatusSuccess,
			wantBalance: 90000,
			wantEntries: 1,
			wantActive:  true,
		},
		{
			name:        "insufficient balance records FAILED marker and deactivates",
			balance:     5000,
			dailyRate:   10000,
			wantStatus:  models.ChargeStatusFailed,
			wantBalance: 5000,
			wantEntries: 0,
			wantActive:  false,
		},
		{
			name:        "second charge for the same date loses the unique index",
			balance:     100000,
			dailyRate:   10000,
			chargeTwice: true,
			wantStatus:  models.ChargeStatusSuccess,
			wantBalance: 90000,
			wantEntries: 1,
			wantActive:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			factory.CreateBalance(t, "acc-1", tt.balance)
			subID := factory.CreateActiveSubscription(t, "acc-1", startDate, tt.dailyRate*30, tt.dailyRate)

			sub, err := storage.GetSubscription(context.Background(), subID)
			require.NoError(t, err)

			charge, err := storage.ChargeDaily(context.Background(), sub, chargeDate, "RUB")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, charge.Status)
			assert.Equal(t, tt.dailyRate, charge.Amount)
			assert.Equal(t, tt.balance, charge.BalanceBefore)

			if tt.chargeTwice {
				_, err = storage.ChargeDaily(context.Background(), sub, chargeDate, "RUB")
				require.ErrorIs(t, err, ErrDuplicateCharge)
			}

			assert.Equal(t, tt.wantBalance, factory.GetBalanceAmount(t, "acc-1"))
			assert.Equal(t, tt.wantEntries, factory.CountLedgerEntries(t, "acc-1"))

			sub, err = storage.GetSubscription(context.Background(), subID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantActive, sub.IsActive)

			stored, err := storage.GetDailyCharge(context.Background(), subID, chargeDate)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
		})
	}
}

func TestStorage_ListChargeable(t *testing.T) {
	chargeDate := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		wantCount int
		setup     func(t *testing.T, factory *TestDataFactory)
	}{
		{
			name:      "returns only active subscriptions inside their paid period",
			wantCount: 2,
			setup: func(t *testing.T, factory *TestDataFactory) {
				// внутри периода
				factory.CreateActiveSubscription(t, "acc-1", chargeDate.AddDate(0, 0, -5), 300000, 10000)
				// начинается в день списания
				factory.CreateActiveSubscription(t, "acc-2", chargeDate, 300000, 10000)
				// период уже закончился
				factory.CreateActiveSubscription(t, "acc-3", chargeDate.AddDate(0, 0, -40), 300000, 10000)
				// мягко деактивирована
				factory.CreateSubscription(t, "acc-4", models.SubscriptionKindSalon, models.SubscriptionStatusActive,
					chargeDate.AddDate(0, 0, -5), chargeDate.AddDate(0, 0, 25), 300000, 10000, false, nil, false)
			},
		},
		{
			name:      "end date itself is not chargeable",
			wantCount: 0,
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateActiveSubscription(t, "acc-1", chargeDate.AddDate(0, 0, -30), 300000, 10000)
			},
		},
		{
			name:      "no subscriptions",
			wantCount: 0,
			setup:     func(_ *testing.T, _ *TestDataFactory) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			tt.setup(t, factory)

			got, err := storage.ListChargeable(context.Background(), chargeDate)

			require.NoError(t, err)
			assert.Len(t, got, tt.wantCount)
		})
	}
}

func TestStorage_ListRenewalsDue(t *testing.T) {
	endDate := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	period := 30

	tests := []struct {
		name      string
		wantCount int
		setup     func(t *testing.T, factory *TestDataFactory)
	}{
		{
			name:      "auto-renewal subscription ending today is due",
			wantCount: 1,
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateSubscription(t, "acc-1", models.SubscriptionKindSalon, models.SubscriptionStatusActive,
					endDate.AddDate(0, 0, -30), endDate, 300000, 10000, true, &period, true)
			},
		},
		{
			name:      "subscription without auto-renewal is skipped",
			wantCount: 0,
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateSubscription(t, "acc-1", models.SubscriptionKindSalon, models.SubscriptionStatusActive,
					endDate.AddDate(0, 0, -30), endDate, 300000, 10000, false, nil, true)
			},
		},
		{
			name:      "subscription ending on another date is skipped",
			wantCount: 0,
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateSubscription(t, "acc-1", models.SubscriptionKindSalon, models.SubscriptionStatusActive,
					endDate.AddDate(0, 0, -25), endDate.AddDate(0, 0, 5), 300000, 10000, true, &period, true)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			tt.setup(t, factory)

			got, err := storage.ListRenewalsDue(context.Background(), endDate)

			require.NoError(t, err)
			assert.Len(t, got, tt.wantCount)
		})
	}
}

func TestStorage_RetryFailedChargeFlow(t *testing.T) {
	chargeDate := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	startDate := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateBalance(t, "acc-1", 5000)
	subID := factory.CreateActiveSubscription(t, "acc-1", startDate, 300000, 10000)

	sub, err := storage.GetSubscription(context.Background(), subID)
	require.NoError(t, err)

	// первая попытка проваливается и оставляет FAILED-маркер
	charge, err := storage.ChargeDaily(context.Background(), sub, chargeDate, "RUB")
	require.NoError(t, err)
	require.Equal(t, models.ChargeStatusFailed, charge.Status)

	failed, err := storage.ListFailedCharges(context.Background(), chargeDate)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, subID, failed[0].SubscriptionID)

	// владелец пополнил баланс, маркер освобождает пару (подписка, дата)
	_, err = storage.Deposit(context.Background(), "acc-1", 100000, "RUB", "deposit via card")
	require.NoError(t, err)

	deleted, err := storage.DeleteFailedCharge(context.Background(), subID, chargeDate)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	affected, err := storage.ActivateSubscription(context.Background(), subID)
	require.NoError(t, err)
	require.Equal(t, 1, affected)

	sub, err = storage.GetSubscription(context.Background(), subID)
	require.NoError(t, err)

	charge, err = storage.ChargeDaily(context.Background(), sub, chargeDate, "RUB")
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusSuccess, charge.Status)
	assert.Equal(t, int64(95000), factory.GetBalanceAmount(t, "acc-1"))

	// повторный DELETE уже ничего не находит: SUCCESS-записи не удаляются
	deleted, err = storage.DeleteFailedCharge(context.Background(), subID, chargeDate)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestStorage_ListLedgerEntries(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateBalance(t, "acc-1", 0)

	_, err := storage.Deposit(context.Background(), "acc-1", 10000, "RUB", "first deposit")
	require.NoError(t, err)
	_, err = storage.Deposit(context.Background(), "acc-1", 20000, "RUB", "second deposit")
	require.NoError(t, err)
	_, err = storage.Withdraw(context.Background(), "acc-1", 5000, "RUB",
		models.LedgerKindWithdrawal, "manual withdrawal", nil)
	require.NoError(t, err)

	got, err := storage.ListLedgerEntries(context.Background(), "acc-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// новые записи первыми
	assert.Equal(t, models.LedgerKindWithdrawal, got[0].Kind)
	assert.Equal(t, int64(-5000), got[0].Amount)
	assert.Equal(t, "second deposit", got[1].Description)
	assert.Equal(t, "first deposit", got[2].Description)

	// каждая запись сохраняет инвариант журнала
	for _, entry := range got {
		assert.Equal(t, entry.BalanceBefore+entry.Amount, entry.BalanceAfter)
	}

	page, err := storage.ListLedgerEntries(context.Background(), "acc-1", 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "second deposit", page[0].Description)

	last, err := storage.GetLastLedgerEntry(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerKindWithdrawal, last.Kind)
}
