package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optionhawk/scanner/models"
)

func TestParseMarketCap(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"1.2B", 1.2e9},
		{"350M", 350e6},
		{"2.5T", 2.5e12},
		{"$1,234,567", 1234567},
		{"1,234,567,890", 1234567890},
		{"850m", 850e6},
		{"N/A", 0},
		{"", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMarketCap(tt.raw))
		})
	}
}

func TestParseVolume(t *testing.T) {
	assert.Equal(t, int64(1234567), ParseVolume("1,234,567"))
	assert.Equal(t, int64(0), ParseVolume("N/A"))
	assert.Equal(t, int64(0), ParseVolume(""))
}

func TestNasdaqFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"rows":[
			{"symbol":"ABCD","name":"Abcd Inc","marketCap":"2.1B","lastsale":"$24.50","volume":"1,500,000","sector":"Technology","industry":"Software","exchange":"NASDAQ"},
			{"symbol":"EFGH","name":"","marketCap":"N/A","lastsale":"$3.10","volume":"","sector":"","industry":"","exchange":""}
		]}}`))
	}))
	defer server.Close()

	screener := NewNasdaqScreener(testClient())
	screener.url = server.URL
	screener.logger = log.Logger

	records, err := screener.Fetch(context.Background(), 250)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "ABCD", records[0].Symbol)
	assert.Equal(t, 2.1e9, records[0].MarketCap)
	assert.Equal(t, 24.50, records[0].Price)
	assert.Equal(t, int64(1500000), records[0].Volume)
	assert.Equal(t, models.MidCap, records[0].Category)

	// Missing fields fall back to placeholders.
	assert.Equal(t, "EFGH", records[1].Name)
	assert.Equal(t, "Unknown", records[1].Sector)
	assert.Equal(t, "NASDAQ", records[1].Exchange)
}
