package purchase

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
	"github.com/salonbook/billing-engine/internal/storage/repository"
)

// MockService реализует интерфейс purchase.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Purchase(ctx context.Context, accountID string, req models.DummyPurchase) (*models.Subscription, error) {
	args := m.Called(ctx, accountID, req)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestPurchaseHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	validBody := `{"kind": "SALON", "price": 3000, "period_days": 30}`
	validReq := models.DummyPurchase{Kind: "SALON", Price: 3000, PeriodDays: 30}

	tests := []struct {
		name           string
		body           string
		accountID      string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:      "успешная покупка",
			body:      validBody,
			accountID: "acc-1",
			setupMock: func(m *MockService) {
				m.On("Purchase", mock.Anything, "acc-1", validReq).
					Return(&models.Subscription{ID: 42, Kind: "SALON", DailyRate: 100}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"daily_rate":100`,
		},
		{
			name:      "недостаточно средств",
			body:      validBody,
			accountID: "acc-1",
			setupMock: func(m *MockService) {
				m.On("Purchase", mock.Anything, "acc-1", validReq).
					Return(nil, &repository.InsufficientFundsError{AccountID: "acc-1", Requested: 3000, Available: 500})
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedBody:   `"error":"insufficient funds for full subscription price"`,
		},
		{
			name:           "неизвестный вид подписки не проходит валидацию",
			body:           `{"kind": "GYM", "price": 3000, "period_days": 30}`,
			accountID:      "acc-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"status":"Error"`,
		},
		{
			name:      "ошибка сервиса",
			body:      validBody,
			accountID: "acc-1",
			setupMock: func(m *MockService) {
				m.On("Purchase", mock.Anything, "acc-1", validReq).
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not purchase subscription"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(tt.body))
			ctx := context.WithValue(req.Context(), middlewarectx.AccountID, tt.accountID)
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
