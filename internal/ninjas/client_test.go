package ninjas

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/psuscan/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("test-key", WithBaseURL(server.URL), WithRateLimit(0))
}

func TestGetStockPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/stockprice", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("ticker"))
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Write([]byte(`{"ticker":"AAPL","name":"Apple Inc.","price":192.42,"exchange":"NASDAQ","currency":"USD","updated":1706302801}`))
	})

	quote, err := client.GetStockPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 192.42, quote.Price)
	assert.Equal(t, "NASDAQ", quote.Exchange)
	assert.Equal(t, int64(1706302801), quote.Updated.Unix())
}

func TestGetStockPrice_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"empty list", `[]`},
		{"zero price", `{"ticker":"ZZZZ","price":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			_, err := client.GetStockPrice(context.Background(), "ZZZZ")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrPriceUnavailable))
			assert.Equal(t, retry.KindPermanent, retry.Classify(err))
		})
	}
}

func TestGetStockPrice_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   retry.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, "slow down", retry.KindRateLimit},
		{"server error", http.StatusBadGateway, "upstream", retry.KindNetwork},
		{"bad request", http.StatusBadRequest, "invalid ticker", retry.KindPermanent},
		{"garbled", http.StatusOK, "{price:", retry.KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.GetStockPrice(context.Background(), "AAPL")
			require.Error(t, err)
			assert.Equal(t, tt.kind, retry.Classify(err))
			if tt.status != http.StatusOK {
				assert.Equal(t, retry.HostAPI, retry.HostOf(err))
			}
		})
	}
}

func TestGetStockPrice_MissingKey(t *testing.T) {
	client := NewClient("")
	_, err := client.GetStockPrice(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestSearchForm4Filings(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v1/sec", r.URL.Path)
		assert.Equal(t, "4", q.Get("filing"))
		assert.Equal(t, "2025-04-01", q.Get("start"))
		assert.Equal(t, "2025-06-30", q.Get("end"))
		assert.Equal(t, "100", q.Get("limit"))
		w.Write([]byte(`[
			{"ticker":"ACME","form_type":"4","filing_date":"2025-05-01","filing_url":"https://www.sec.gov/Archives/edgar/data/1/000/xslF345X05/form4.xml"},
			{"ticker":"ACME","form_type":"10-K","filing_date":"2025-05-10","filing_url":"https://www.sec.gov/Archives/edgar/data/1/000/acme-10k.htm"},
			{"ticker":"ACME","form_type":"FORM 4","filing_date":"2025-06-02T00:00:00","filing_url":"https://www.sec.gov/Archives/edgar/data/1/001/wf-form4_1.xml"},
			{"ticker":"ACME","form_type":"4","filing_date":"2025-06-05","filing_url":"/relative/form4.xml"}
		]`))
	})

	from := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	filings, err := client.SearchForm4Filings(context.Background(), "ACME", from, to)
	require.NoError(t, err)

	require.Len(t, filings, 2)
	assert.Equal(t, "2025-06-02", filings[0].FilingDate)
	assert.Equal(t, "2025-05-01", filings[1].FilingDate)
	assert.Equal(t, "ACME", filings[0].Ticker)
}

func TestSearchForm4Filings_Empty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	filings, err := client.SearchForm4Filings(context.Background(), "ACME", time.Now().AddDate(0, -3, 0), time.Now())
	require.NoError(t, err)
	assert.Empty(t, filings)
}

func TestClient_CancelledWhileWaiting(t *testing.T) {
	client := NewClient("k", WithRateLimit(time.Hour))
	client.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.GetStockPrice(ctx, "AAPL")
	require.Error(t, err)
	assert.NotEqual(t, retry.KindRateLimit, retry.Classify(err))
}
