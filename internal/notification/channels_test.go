package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ──────────────────────────────────────────────────────────────
// Telegram
// ──────────────────────────────────────────────────────────────

type fakeTelegram struct {
	mu       sync.Mutex
	texts    []string
	chatIDs  []string
	failSend bool
}

func (f *fakeTelegram) handler(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bot"+token+"/getMe", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"peceto","username":"peceto_bot"}}`)
	})
	mux.HandleFunc("/bot"+token+"/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		fail := f.failSend
		f.texts = append(f.texts, r.PostForm.Get("text"))
		f.chatIDs = append(f.chatIDs, r.PostForm.Get("chat_id"))
		f.mu.Unlock()
		if fail {
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
	})
	return mux
}

func newTelegramPair(t *testing.T) (*fakeTelegram, *TelegramNotifier) {
	t.Helper()
	const token = "123:abc"
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake.handler(token))
	t.Cleanup(srv.Close)

	n, err := NewTelegramNotifier(token, 42, srv.URL+"/bot%s/%s", zap.NewNop())
	require.NoError(t, err)
	return fake, n
}

func TestTelegram_SendsSignalText(t *testing.T) {
	fake, n := newTelegramPair(t)
	a := SignalAlert(NewFormatter("USDT"), buyDetails())

	require.NoError(t, n.Send(context.Background(), a))

	require.Len(t, fake.texts, 1)
	assert.Equal(t, a.Message, fake.texts[0])
	assert.Equal(t, "42", fake.chatIDs[0])
}

func TestTelegram_PlainAlertIncludesTitle(t *testing.T) {
	fake, n := newTelegramPair(t)

	require.NoError(t, n.Send(context.Background(), Alert{Level: AlertInfo, Title: "Bot started", Message: "BTCUSDT @ 15m"}))

	require.Len(t, fake.texts, 1)
	assert.Equal(t, "Bot started\n\nBTCUSDT @ 15m", fake.texts[0])
}

func TestTelegram_APIErrorIsReturned(t *testing.T) {
	fake, n := newTelegramPair(t)
	fake.failSend = true

	err := n.Send(context.Background(), Alert{Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram: send message")
}

func TestTelegram_CancelledContext(t *testing.T) {
	fake, n := newTelegramPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.Send(ctx, Alert{Message: "x"}), context.Canceled)
	assert.Empty(t, fake.texts)
}

// ──────────────────────────────────────────────────────────────
// Webhook
// ──────────────────────────────────────────────────────────────

func TestWebhook_PostsSignalPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zap.NewNop())
	require.NoError(t, n.Send(context.Background(), SignalAlert(NewFormatter("USDT"), buyDetails())))

	assert.Equal(t, "SIGNAL", got.Level)
	require.NotNil(t, got.Signal)
	assert.Equal(t, 4, got.Signal.Strength)
	assert.Equal(t, "BTCUSDT", got.Signal.Symbol)
	assert.NotEmpty(t, got.TS)
}

func TestWebhook_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, zap.NewNop()).Send(context.Background(), Alert{Title: "x"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "502"))
}
