package money_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/salonbook/billing-engine/internal/lib/money"
)

func TestDisplay(t *testing.T) {
	tests := []struct {
		name  string
		minor int64
		want  string
	}{
		{"zero", 0, "0.00"},
		{"whole units", 100000, "1000.00"},
		{"with kopecks", 123456, "1234.56"},
		{"less than unit", 7, "0.07"},
		{"negative", -2550, "-25.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, money.Display(tt.minor))
		})
	}
}

func TestFromUnits(t *testing.T) {
	assert.Equal(t, int64(150000), money.FromUnits(1500))
	assert.Equal(t, int64(0), money.FromUnits(0))
}
