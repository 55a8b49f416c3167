package chart

import (
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// Channels streamed to chart viewers.
const (
	ChannelSnapshot = "chart:snapshot"
	ChannelSignal   = "chart:signal"
)

// Snapshot is the full chart state sent after every poll cycle.
type Snapshot struct {
	Symbol   string                   `json:"symbol"`
	Interval string                   `json:"interval"`
	Rows     []map[string]interface{} `json:"rows"`
	Buys     []model.Marker           `json:"buys"`
	Sells    []model.Marker           `json:"sells"`
}

type latestEntry struct {
	Data []byte // envelope
	TS   time.Time
}

// Hub tracks websocket viewers and fans chart envelopes out to them.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]bool
	latest      map[string]latestEntry
	seq         int64
	channelSeqs map[string]int64
	replayBufs  map[string]*ReplayBuffer
	replaySize  int

	log *zap.Logger

	// OnClientCount is called with the viewer count after every connect and
	// disconnect.
	OnClientCount func(n int)
}

// NewHub creates a hub keeping replaySize envelopes per channel.
func NewHub(replaySize int, log *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		replaySize:  replaySize,
		log:         log.Named("chart"),
	}
}

// PublishSnapshot broadcasts the indicator rows and both marker logs.
func (h *Hub) PublishSnapshot(symbol, interval string, rows []model.IndicatorRow, markers *MarkerLog) error {
	snap := Snapshot{
		Symbol:   symbol,
		Interval: interval,
		Rows:     make([]map[string]interface{}, len(rows)),
		Buys:     markers.Buys(),
		Sells:    markers.Sells(),
	}
	for i, r := range rows {
		snap.Rows[i] = r.Wire()
	}
	data, err := sonic.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "chart: marshal snapshot")
	}
	h.Broadcast(ChannelSnapshot, data)
	return nil
}

// PublishSignal broadcasts one fired signal.
func (h *Hub) PublishSignal(d model.SignalDetails) error {
	data, err := sonic.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "chart: marshal signal")
	}
	h.Broadcast(ChannelSignal, data)
	return nil
}

// Broadcast wraps data in an envelope, keeps it for replay and sends it to
// every viewer. Slow viewers whose queue is full miss the message and can
// backfill via the replay range.
func (h *Hub) Broadcast(channel string, data []byte) {
	now := time.Now().UTC()

	h.mu.Lock()
	h.seq++
	h.channelSeqs[channel]++
	seq, channelSeq := h.seq, h.channelSeqs[channel]
	env := buildEnvelope(channel, data, now, seq, channelSeq)
	h.latest[channel] = latestEntry{Data: env, TS: now}
	rb, ok := h.replayBufs[channel]
	if !ok {
		rb = NewReplayBuffer(h.replaySize)
		h.replayBufs[channel] = rb
	}
	h.mu.Unlock()

	rb.Push(channelSeq, env)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- env:
		default:
		}
	}
}

// buildEnvelope hand-crafts {"channel":..,"data":..,"ts":..,"seq":..,"channel_seq":..}.
// data must already be valid JSON.
func buildEnvelope(channel string, data []byte, now time.Time, seq, channelSeq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+128)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}

// Latest returns the last envelope broadcast on channel.
func (h *Hub) Latest(channel string) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.latest[channel]
	return e.Data, ok
}

// ReplayRange returns buffered envelopes for channel with channel_seq in
// [fromSeq, toSeq].
func (h *Hub) ReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, ok := h.replayBufs[channel]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// ChannelSeq returns the current sequence number for a channel.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Attach registers an upgraded connection and starts its pumps. Envelopes
// newer than lastTS (RFC3339Nano, may be empty) are sent first.
func (h *Hub) Attach(conn *websocket.Conn, lastTS string) {
	c := &Client{
		conn: conn,
		send: make(chan []byte, 64),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Info("viewer connected", zap.Int("viewers", n))
	if h.OnClientCount != nil {
		h.OnClientCount(n)
	}

	c.sendInitialState(lastTS)
	go c.writePump()
	go c.readPump()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	n := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	h.log.Info("viewer disconnected", zap.Int("viewers", n))
	if h.OnClientCount != nil {
		h.OnClientCount(n)
	}
}

// CloseAll disconnects every viewer.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}
