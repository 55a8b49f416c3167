package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollInterval(t *testing.T) {
	cases := map[string]time.Duration{
		"1s":  2 * time.Second,
		"1m":  15 * time.Second,
		"5m":  30 * time.Second,
		"15m": 60 * time.Second,
		"1h":  120 * time.Second,
		"1d":  120 * time.Second,
		"":    120 * time.Second,
	}
	for in, want := range cases {
		assert.Equal(t, want, PollInterval(in), in)
	}
	assert.Equal(t, 60*time.Second, ErrorBackoff)
}

func TestValidInterval(t *testing.T) {
	assert.True(t, ValidInterval(ExchangeBinance, "1s"))
	assert.True(t, ValidInterval(ExchangeBinance, "15m"))
	assert.False(t, ValidInterval(ExchangeBinance, "7m"))
	assert.True(t, ValidInterval(ExchangeBybit, "4h"))
	assert.False(t, ValidInterval(ExchangeBybit, "1s"))
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Options{})
	require.NoError(t, err)
	assert.Equal(t, ExchangeBinance, p.Name())

	p, err = NewProvider(Options{Exchange: ExchangeBybit})
	require.NoError(t, err)
	assert.Equal(t, ExchangeBybit, p.Name())

	_, err = NewProvider(Options{Exchange: "kraken"})
	assert.Error(t, err)
}

// ──────────────────────────────────────────────────────────────
// Binance
// ──────────────────────────────────────────────────────────────

func TestBinance_Klines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "15m", r.URL.Query().Get("interval"))
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[
			[1715352300000,"101.0","103.5","100.0","102.0","5.5",1715353199999,"0",1,"0","0","0"],
			[1715353200000,"102.0","104.0","101.0","103.0","6.0",1715354099999,"0",1,"0","0","0"]
		]`)
	}))
	defer srv.Close()

	series, err := NewBinanceProvider(srv.URL, false).Klines(context.Background(), "BTCUSDT", "15m", 0)
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Equal(t, time.UnixMilli(1715352300000).UTC(), series[0].Timestamp)
	assert.Equal(t, 101.0, series[0].Open)
	assert.Equal(t, 103.5, series[0].High)
	assert.Equal(t, 100.0, series[0].Low)
	assert.Equal(t, 102.0, series[0].Close)
	assert.Equal(t, 5.5, series[0].Volume)
	assert.Equal(t, 103.0, series[1].Close)
}

func TestBinance_KlinesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "BAD" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
			return
		}
		fmt.Fprint(w, `[[1715352300000,"x","1","1","1","1"]]`)
	}))
	defer srv.Close()

	p := NewBinanceProvider(srv.URL, false)

	_, err := p.Klines(context.Background(), "BAD", "1m", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")

	_, err = p.Klines(context.Background(), "BTCUSDT", "1m", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kline row 0")
}

func TestBinance_LastPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"64123.45000000"}`)
	}))
	defer srv.Close()

	price, err := NewBinanceProvider(srv.URL, false).LastPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 64123.45, price, 1e-9)
}

func TestBinance_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBinanceProvider(srv.URL, false).Klines(ctx, "BTCUSDT", "1m", 10)
	assert.Error(t, err)
}

// ──────────────────────────────────────────────────────────────
// Bybit
// ──────────────────────────────────────────────────────────────

func bybitServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v5/market/kline", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "spot", r.URL.Query().Get("category"))
		assert.Equal(t, "15", r.URL.Query().Get("interval"))
		// newest first
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","symbol":"BTCUSDT","list":[
			["1715353200000","102","104","101","103","6","618"],
			["1715352300000","101","103.5","100","102","5.5","561"]
		]},"retExtInfo":{},"time":1715353200000}`)
	})
	mux.HandleFunc("/v5/market/tickers", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "BAD" {
			fmt.Fprint(w, `{"retCode":10001,"retMsg":"Not supported symbols","result":{},"retExtInfo":{},"time":0}`)
			return
		}
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[{"symbol":"BTCUSDT","lastPrice":"64000.5"}]},"retExtInfo":{},"time":0}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBybit_KlinesReversedToAscending(t *testing.T) {
	srv := bybitServer(t)
	p := NewBybitProvider(Options{Exchange: ExchangeBybit, BaseURL: srv.URL})

	series, err := p.Klines(context.Background(), "BTCUSDT", "15m", 2)
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.True(t, series[0].Timestamp.Before(series[1].Timestamp))
	assert.Equal(t, 102.0, series[0].Close)
	assert.Equal(t, 103.0, series[1].Close)
	assert.Equal(t, 103.5, series[0].High)
}

func TestBybit_UnsupportedInterval(t *testing.T) {
	p := NewBybitProvider(Options{BaseURL: "http://127.0.0.1:0"})
	_, err := p.Klines(context.Background(), "BTCUSDT", "1s", 10)
	assert.ErrorContains(t, err, "unsupported interval")
}

func TestBybit_LastPrice(t *testing.T) {
	srv := bybitServer(t)
	p := NewBybitProvider(Options{BaseURL: srv.URL})

	price, err := p.LastPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 64000.5, price)

	_, err = p.LastPrice(context.Background(), "BAD")
	assert.Error(t, err)
}
