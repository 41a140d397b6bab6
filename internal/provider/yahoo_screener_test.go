package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return NewClient(ClientOptions{
		Timeout:         5 * time.Second,
		RequestsPerSec:  100,
		MaxRetryTimeout: time.Second,
	})
}

func TestYahooScreenerFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "most_actives", r.URL.Query().Get("scrIds"))
		assert.Equal(t, "250", r.URL.Query().Get("count"))
		w.Write([]byte(`{"finance":{"result":[{"quotes":[
			{"symbol":"ABCD","shortName":"Abcd Inc","marketCap":2100000000,"regularMarketPrice":24.5,"volume":1500000,"averageVolume":900000,"sector":"Technology","forwardPE":18.5},
			{"symbol":"EFGH","marketCap":0,"regularMarketPrice":3.1}
		]}]}}`))
	}))
	defer server.Close()

	screener := &YahooScreener{client: testClient(), baseURL: server.URL, id: "most_actives", logger: log.Logger}

	records, err := screener.Fetch(context.Background(), 250)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "ABCD", records[0].Symbol)
	assert.Equal(t, "Abcd Inc", records[0].Name)
	assert.Equal(t, 2.1e9, records[0].MarketCap)
	assert.Equal(t, 18.5, records[0].PERatio)
	assert.True(t, records[0].HasOptions)

	// Sparse quotes get placeholder text fields and their own symbol as name.
	assert.Equal(t, "EFGH", records[1].Name)
	assert.Equal(t, "Unknown", records[1].Sector)
}

func TestYahooScreenerBadRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	screener := &YahooScreener{client: testClient(), baseURL: server.URL, id: "most_actives", logger: log.Logger}

	_, err := screener.Fetch(context.Background(), 250)
	assert.ErrorIs(t, err, ErrBadRequest)
}
