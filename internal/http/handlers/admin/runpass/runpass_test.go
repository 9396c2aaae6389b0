package runpass

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/salonbook/billing-engine/internal/models"
)

// MockService реализует интерфейс runpass.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) RunFullPass(ctx context.Context, date time.Time) (*models.PassSummary, error) {
	args := m.Called(ctx, date)
	if res := args.Get(0); res != nil {
		return res.(*models.PassSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestRunPassHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		url            string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "проход за явную дату",
			url:  "/admin/billing/run?date=2025-06-15",
			setupMock: func(m *MockService) {
				m.On("RunFullPass", mock.Anything, date).
					Return(&models.PassSummary{Date: date, Total: 10, Succeeded: 9, Failed: 1}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"succeeded":9`,
		},
		{
			name:           "некорректная дата",
			url:            "/admin/billing/run?date=15.06.2025",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"date must be in format 2006-01-02"`,
		},
		{
			name: "ошибка прохода",
			url:  "/admin/billing/run?date=2025-06-15",
			setupMock: func(m *MockService) {
				m.On("RunFullPass", mock.Anything, date).
					Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"billing pass failed"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, tt.url, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
