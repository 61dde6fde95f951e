package extraction

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/psuscan/internal/models"
	"github.com/ternarybob/psuscan/internal/retry"
)

func TestFallbackPrices_PrimaryWins(t *testing.T) {
	primary, backup := &mockPrices{}, &mockPrices{}
	primary.On("GetStockPrice", mock.Anything, "ACME").Return(&models.PriceQuote{Ticker: "ACME", Price: 20}, nil)

	gate := &countingGate{}
	chain := NewFallbackPrices(gate, nil, PriceSource{"ninjas", primary}, PriceSource{"eodhd", backup})

	quote, err := chain.GetStockPrice(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, 20.0, quote.Price)
	assert.Equal(t, 0, gate.acquired)
	backup.AssertNotCalled(t, "GetStockPrice", mock.Anything, mock.Anything)
}

func TestFallbackPrices_PermanentFallsThrough(t *testing.T) {
	primary, backup := &mockPrices{}, &mockPrices{}
	primary.On("GetStockPrice", mock.Anything, "ACME").Return(nil, fmt.Errorf("ACME: %w", retry.ErrPermanent))
	backup.On("GetStockPrice", mock.Anything, "ACME").Return(&models.PriceQuote{Ticker: "ACME", Price: 21.5}, nil)

	gate := &countingGate{}
	chain := NewFallbackPrices(gate, nil, PriceSource{"ninjas", primary}, PriceSource{"eodhd", backup})

	quote, err := chain.GetStockPrice(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, 21.5, quote.Price)
	assert.Equal(t, 1, gate.acquired)
}

func TestFallbackPrices_TransientStops(t *testing.T) {
	primary, backup := &mockPrices{}, &mockPrices{}
	primary.On("GetStockPrice", mock.Anything, "ACME").Return(nil, errors.New("connection reset by peer"))

	chain := NewFallbackPrices(nil, nil, PriceSource{"ninjas", primary}, PriceSource{"eodhd", backup})

	_, err := chain.GetStockPrice(context.Background(), "ACME")
	require.Error(t, err)
	assert.Equal(t, retry.KindNetwork, retry.Classify(err))
	backup.AssertNotCalled(t, "GetStockPrice", mock.Anything, mock.Anything)
}

func TestFallbackPrices_AllPermanentReturnsFirst(t *testing.T) {
	primary, backup := &mockPrices{}, &mockPrices{}
	first := fmt.Errorf("primary: %w", retry.ErrPermanent)
	primary.On("GetStockPrice", mock.Anything, "ZZZZ").Return(nil, first)
	backup.On("GetStockPrice", mock.Anything, "ZZZZ").Return(nil, fmt.Errorf("backup: %w", retry.ErrPermanent))

	chain := NewFallbackPrices(nil, nil, PriceSource{"ninjas", primary}, PriceSource{"eodhd", backup})

	_, err := chain.GetStockPrice(context.Background(), "ZZZZ")
	assert.Equal(t, first, err)
}

func TestFallbackPrices_Empty(t *testing.T) {
	_, err := NewFallbackPrices(nil, nil).GetStockPrice(context.Background(), "ACME")
	assert.Equal(t, retry.KindPermanent, retry.Classify(err))
}
