package eodhd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/psuscan/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("test-token", WithBaseURL(server.URL), WithRateLimit(0))
}

func TestSymbol(t *testing.T) {
	c := NewClient("k")
	assert.Equal(t, "AAPL.US", c.Symbol("aapl"))
	assert.Equal(t, "BRK-B.US", c.Symbol("BRK.B"))
	assert.Equal(t, "BHP.AU", c.Symbol("BHP.AU"))
	assert.Equal(t, "BHP.AU", NewClient("k", WithExchange("au")).Symbol("BHP"))
}

func TestGetStockPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/real-time/AAPL.US", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("api_token"))
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		w.Write([]byte(`{"code":"AAPL.US","timestamp":1706302801,"close":192.42,"previousClose":191.1}`))
	})

	quote, err := client.GetStockPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Ticker)
	assert.Equal(t, 192.42, quote.Price)
	assert.Equal(t, "USD", quote.Currency)
	assert.Equal(t, int64(1706302801), quote.Updated.Unix())
}

func TestGetStockPrice_NAClose(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"ACME.US","timestamp":"NA","close":"NA","previousClose":"14.25"}`))
	})

	quote, err := client.GetStockPrice(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, 14.25, quote.Price)
	assert.True(t, quote.Updated.IsZero())
}

func TestGetStockPrice_NoQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"ZZZZ.US","timestamp":"NA","close":"NA","previousClose":"NA"}`))
	})

	_, err := client.GetStockPrice(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoQuote))
	assert.Equal(t, retry.KindPermanent, retry.Classify(err))
}

func TestGetStockPrice_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   retry.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, "", retry.KindRateLimit},
		{"unknown symbol", http.StatusNotFound, "Ticker Not Found.", retry.KindPermanent},
		{"server error", http.StatusBadGateway, "", retry.KindNetwork},
		{"bad payload", http.StatusOK, "<html>", retry.KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.GetStockPrice(context.Background(), "ACME")
			require.Error(t, err)
			assert.Equal(t, tt.kind, retry.Classify(err))
			if tt.status != http.StatusOK {
				assert.Equal(t, retry.HostAPI, retry.HostOf(err))
			}
		})
	}
}
