package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedPayment(t *testing.T) {
	s := NewStripeService("", "")
	id, err := s.ProcessPayment(context.Background(), "C1", decimal.NewFromInt(180), "", "o1:create")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "sim_"))

	_, err = s.ProcessPayment(context.Background(), "C1", decimal.Zero, "", "o1:create")
	assert.Error(t, err)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(18050), toMinorUnits(decimal.RequireFromString("180.5")))
	assert.Equal(t, int64(1), toMinorUnits(decimal.RequireFromString("0.005")))
}
