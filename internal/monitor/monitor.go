// ABOUTME: HTTP monitor serving Prometheus metrics and a live device status feed
// ABOUTME: /status answers JSON once or streams it over a WebSocket
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Resonate-Protocol/sounddevice/pkg/metrics"
)

const (
	// DefaultInterval is how often the status feed pushes snapshots
	DefaultInterval = time.Second

	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Config configures the monitor
type Config struct {
	Addr     string
	Interval time.Duration
	Log      slog.Logger
}

// Status is the message sent on /status
type Status struct {
	Type    string             `json:"type"`
	Devices []metrics.Snapshot `json:"devices"`
}

// Server exposes device metrics over HTTP
type Server struct {
	cfg      Config
	log      slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	clients  atomic.Int32
}

// New creates a monitor for the devices registered in m
func New(m *metrics.Metrics, cfg Config) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: m,
		mux:     http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow non-browser clients and same host pages.
				origin := r.Header.Get("Origin")
				return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
			},
		},
	}

	reg := m.Registry()
	s.mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	))
	s.mux.HandleFunc("/status", s.handleStatus)
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler { return s.mux }

// Clients returns the number of connected status feeds
func (s *Server) Clients() int { return int(s.clients.Load()) }

// Run serves on cfg.Addr until ctx is done
func (s *Server) Run(ctx context.Context) error {
	hs := http.Server{
		Addr:        s.cfg.Addr,
		BaseContext: func(net.Listener) context.Context { return ctx },
		Handler:     s.mux,
	}
	s.log.Infof("Exposing metrics and status on %s", s.cfg.Addr)
	go func() {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hs.Shutdown(ctx)
	}()

	err := hs.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) status() Status {
	return Status{Type: "status", Devices: s.metrics.Snapshots()}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.status()); err != nil {
			s.log.Debugf("Error writing status: %v", err)
		}
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	s.clients.Add(1)
	defer s.clients.Add(-1)
	defer conn.Close()

	s.log.Debugf("Status feed connected from %s", r.RemoteAddr)
	s.feed(r.Context(), conn)
	s.log.Debugf("Status feed from %s closed", r.RemoteAddr)
}

// feed pushes snapshots until the peer goes away or ctx is done
func (s *Server) feed(ctx context.Context, conn *websocket.Conn) {
	// The reader only exists to notice the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debugf("Status feed read error: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	send := func() bool {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteJSON(s.status()); err != nil {
			s.log.Debugf("Error writing status: %v", err)
			return false
		}
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeDeadline))
			return
		case <-gone:
			return
		case <-ticker.C:
			if !send() {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}
