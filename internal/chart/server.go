package chart

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterRoutes mounts the chart endpoints:
//
//	/ws            websocket stream (optional ?last_ts=RFC3339Nano)
//	/api/chart     latest snapshot envelope
//	/api/missed    replay ?channel=&from=&to= as a JSON array of envelopes
func RegisterRoutes(mux *http.ServeMux, hub *Hub) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		hub.Attach(conn, r.URL.Query().Get("last_ts"))
	})

	mux.HandleFunc("/api/chart", func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		env, ok := hub.Latest(ChannelSnapshot)
		if !ok {
			http.Error(w, `{"error":"no data yet"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(env)
	})

	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		q := r.URL.Query()
		from, err1 := strconv.ParseInt(q.Get("from"), 10, 64)
		to, err2 := strconv.ParseInt(q.Get("to"), 10, 64)
		if q.Get("channel") == "" || err1 != nil || err2 != nil || from > to {
			http.Error(w, `{"error":"channel, from and to are required"}`, http.StatusBadRequest)
			return
		}

		envs := hub.ReplayRange(q.Get("channel"), from, to)
		// Envelopes are already JSON; splice them into an array.
		buf := []byte{'['}
		for i, e := range envs {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = append(buf, e...)
		}
		buf = append(buf, ']')
		w.Header().Set("Content-Type", "application/json")
		w.Write(buf)
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		body, _ := sonic.Marshal(map[string]interface{}{
			"viewers":      hub.ClientCount(),
			"snapshot_seq": hub.ChannelSeq(ChannelSnapshot),
			"signal_seq":   hub.ChannelSeq(ChannelSignal),
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Server serves the chart endpoints.
type Server struct {
	hub *Hub
	srv *http.Server
}

// NewServer creates a chart server on addr.
func NewServer(addr string, hub *Hub) *Server {
	mux := http.NewServeMux()
	RegisterRoutes(mux, hub)
	return &Server{hub: hub, srv: &http.Server{Addr: addr, Handler: mux}}
}

// Start binds and serves in a goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return errors.Wrapf(err, "chart listen %s", s.srv.Addr)
	}
	go func() {
		s.hub.log.Info("server listening", zap.String("addr", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.hub.log.Error("server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop disconnects viewers and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.CloseAll()
	return s.srv.Shutdown(ctx)
}
