package chart

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

var t0 = time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)

func testRows(n int) []model.IndicatorRow {
	nan := math.NaN()
	rows := make([]model.IndicatorRow, n)
	for i := range rows {
		p := 100 + float64(i)
		rows[i] = model.IndicatorRow{
			Candle:     model.Candle{Timestamp: t0.Add(time.Duration(i) * 15 * time.Minute), Open: p, High: p + 1, Low: p - 1, Close: p},
			EMAShort:   p,
			EMAMedium:  p,
			EMALong:    p,
			RSI:        nan,
			MACD:       0,
			MACDSignal: 0,
			MACDHist:   0,
			SMA20:      nan,
			StdDev:     nan,
			UpperBand:  nan,
			LowerBand:  nan,
			TR:         2,
			ATR:        nan,
		}
	}
	return rows
}

// ──────────────────────────────────────────────────────────────
// MarkerLog
// ──────────────────────────────────────────────────────────────

func TestMarkerLog(t *testing.T) {
	l := NewMarkerLog()
	l.Record(model.SignalBuy, model.Marker{Timestamp: t0, Price: 100, Strength: 3})
	l.Record(model.SignalSell, model.Marker{Timestamp: t0.Add(time.Hour), Price: 110, Strength: 4})
	l.Record(model.SignalBuy, model.Marker{Timestamp: t0.Add(2 * time.Hour), Price: 101, Strength: 5})

	buys, sells := l.Len()
	assert.Equal(t, 2, buys)
	assert.Equal(t, 1, sells)
	assert.Equal(t, 5, l.Buys()[1].Strength)
	assert.Equal(t, 110.0, l.Sells()[0].Price)

	// Returned slices are copies.
	b := l.Buys()
	b[0].Price = -1
	assert.Equal(t, 100.0, l.Buys()[0].Price)
}

// ──────────────────────────────────────────────────────────────
// Envelope and hub
// ──────────────────────────────────────────────────────────────

type envelope struct {
	Channel    string          `json:"channel"`
	Data       json.RawMessage `json:"data"`
	TS         string          `json:"ts"`
	Seq        int64           `json:"seq"`
	ChannelSeq int64           `json:"channel_seq"`
}

func TestBuildEnvelope(t *testing.T) {
	now := time.Date(2026, 2, 25, 10, 0, 1, 0, time.UTC)
	buf := buildEnvelope(ChannelSignal, []byte(`{"type":"BUY"}`), now, 42, 7)

	var env envelope
	require.NoError(t, json.Unmarshal(buf, &env), "raw: %s", buf)
	assert.Equal(t, ChannelSignal, env.Channel)
	assert.Equal(t, int64(42), env.Seq)
	assert.Equal(t, int64(7), env.ChannelSeq)
	assert.JSONEq(t, `{"type":"BUY"}`, string(env.Data))

	parsed, err := time.Parse(time.RFC3339Nano, env.TS)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now))
}

func TestHub_SnapshotLatestAndReplay(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	markers := NewMarkerLog()
	markers.Record(model.SignalBuy, model.Marker{Timestamp: t0, Price: 100, Strength: 3})

	require.NoError(t, h.PublishSnapshot("BTCUSDT", "15m", testRows(3), markers))
	require.NoError(t, h.PublishSnapshot("BTCUSDT", "15m", testRows(4), markers))

	raw, ok := h.Latest(ChannelSnapshot)
	require.True(t, ok)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, int64(2), env.ChannelSeq)

	var snap struct {
		Symbol string                   `json:"symbol"`
		Rows   []map[string]interface{} `json:"rows"`
		Buys   []model.Marker           `json:"buys"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	require.Len(t, snap.Rows, 4)
	assert.Nil(t, snap.Rows[0]["rsi"], "NaN is sent as null")
	assert.Equal(t, 100.0, snap.Rows[0]["close"])
	require.Len(t, snap.Buys, 1)

	assert.Len(t, h.ReplayRange(ChannelSnapshot, 1, 2), 2)
	assert.Len(t, h.ReplayRange(ChannelSnapshot, 2, 2), 1)
	assert.Nil(t, h.ReplayRange("unknown", 1, 2))
	assert.Equal(t, int64(2), h.ChannelSeq(ChannelSnapshot))
	assert.Equal(t, int64(0), h.ChannelSeq(ChannelSignal))
}

func TestHub_WebsocketStream(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	counts := make(chan int, 4)
	h.OnClientCount = func(n int) { counts <- n }

	require.NoError(t, h.PublishSignal(model.SignalDetails{Type: model.SignalBuy, Price: 100, Strength: 4}))

	mux := http.NewServeMux()
	RegisterRoutes(mux, h)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, 1, <-counts)

	readEnv := func() envelope {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var env envelope
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	}

	// Initial state: the signal broadcast before connecting.
	env := readEnv()
	assert.Equal(t, ChannelSignal, env.Channel)

	// Live broadcast.
	require.NoError(t, h.PublishSnapshot("BTCUSDT", "15m", testRows(2), NewMarkerLog()))
	env = readEnv()
	assert.Equal(t, ChannelSnapshot, env.Channel)

	// Replay request.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"replay","channel":"chart:signal","from":1,"to":1}`)))
	env = readEnv()
	assert.Equal(t, ChannelSignal, env.Channel)
	assert.Equal(t, int64(1), env.ChannelSeq)

	conn.Close()
	select {
	case n := <-counts:
		assert.Equal(t, 0, n)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not observed")
	}
}

func TestRoutes_REST(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/chart")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, h.PublishSnapshot("BTCUSDT", "15m", testRows(2), NewMarkerLog()))
	require.NoError(t, h.PublishSnapshot("BTCUSDT", "15m", testRows(3), NewMarkerLog()))

	resp, err = http.Get(srv.URL + "/api/chart")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"channel_seq":2`)

	resp, err = http.Get(srv.URL + "/api/missed?channel=chart:snapshot&from=1&to=2")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	var envs []envelope
	require.NoError(t, json.Unmarshal(body, &envs))
	assert.Len(t, envs, 2)

	resp, err = http.Get(srv.URL + "/api/missed?channel=chart:snapshot&from=3&to=1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────
// Export
// ──────────────────────────────────────────────────────────────

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "BTCUSDT_15m_chart.xlsx", ExportFileName("btcusdt", "15m"))
}

func TestExportWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), ExportFileName("BTCUSDT", "15m"))
	buys := []model.Marker{{Timestamp: t0, Price: 100, Strength: 3}}
	sells := []model.Marker{{Timestamp: t0.Add(time.Hour), Price: 104, Strength: 5}}

	require.NoError(t, ExportWorkbook(path, testRows(5), buys, sells))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Indicators", "Buy Signals", "Sell Signals"}, f.GetSheetList())

	rows, err := f.GetRows("Indicators")
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "time", rows[0][0])
	assert.Equal(t, "close", rows[0][4])
	assert.Equal(t, "2024-05-10 14:00:00", rows[1][0])
	assert.Equal(t, "100", rows[1][4])

	rsiCol := 1 + indexOf(model.FieldNames, "rsi")
	if len(rows[1]) > rsiCol {
		assert.Empty(t, rows[1][rsiCol], "NaN cells stay blank")
	}

	sellRows, err := f.GetRows("Sell Signals")
	require.NoError(t, err)
	require.Len(t, sellRows, 2)
	assert.Equal(t, []string{"2024-05-10 15:00:00", "104", "5"}, sellRows[1])
}

func indexOf(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}
