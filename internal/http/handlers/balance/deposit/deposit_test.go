package deposit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/salonbook/billing-engine/internal/http/middlewarectx"
	"github.com/salonbook/billing-engine/internal/models"
)

// MockService реализует интерфейс deposit.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Deposit(ctx context.Context, accountID string, amount int64, method string) (*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, amount, method)
	if res := args.Get(0); res != nil {
		return res.(*models.LedgerEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestDepositHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		body           string
		accountID      string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:      "успешное пополнение",
			body:      `{"amount": 50000, "method": "card"}`,
			accountID: "acc-1",
			setupMock: func(m *MockService) {
				m.On("Deposit", mock.Anything, "acc-1", int64(50000), "card").
					Return(&models.LedgerEntry{ID: "uuid-1", BalanceAfter: 50000}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"balance_display":"500.00"`,
		},
		{
			name:           "некорректный JSON",
			body:           `{amount}`,
			accountID:      "acc-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name:           "отрицательная сумма не проходит валидацию",
			body:           `{"amount": -100, "method": "card"}`,
			accountID:      "acc-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"status":"Error"`,
		},
		{
			name:           "нет счёта в контексте",
			body:           `{"amount": 100, "method": "card"}`,
			accountID:      "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:      "ошибка сервиса",
			body:      `{"amount": 100, "method": "card"}`,
			accountID: "acc-1",
			setupMock: func(m *MockService) {
				m.On("Deposit", mock.Anything, "acc-1", int64(100), "card").
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not deposit"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/balance/deposit", strings.NewReader(tt.body))
			if tt.accountID != "" {
				ctx := context.WithValue(req.Context(), middlewarectx.AccountID, tt.accountID)
				req = req.WithContext(ctx)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
