package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/reunio/reunio/pkg/events"
)

type Config struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	Path           string   `mapstructure:"path"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8090"
	}
	if c.Path == "" {
		c.Path = "/live"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// Hub pushes session events to websocket clients. A client subscribes
// to one session via the session_id query parameter, or to everything
// when it is omitted. Slow clients drop events rather than block the
// pipeline.
type Hub struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]*client

	draining atomic.Bool
}

func NewHub(cfg Config) *Hub {
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:  slog.Default().With(slog.String("component", "live")),
		clients: make(map[string]*client),
	}
	h.upgrader.CheckOrigin = h.checkOrigin
	return h
}

func (h *Hub) Name() string { return "live" }

// Start serves the hub on its own listener. Mount the hub as an
// http.Handler instead when embedding it into an existing server.
func (h *Hub) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.Handle(h.cfg.Path, h)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h.server = &http.Server{
		Addr:              h.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = h.server.Close()
	}()
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("live_hub_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (h *Hub) Stop() error {
	h.draining.Store(true)
	if h.server != nil {
		_ = h.server.Close()
	}
	h.mu.Lock()
	for _, c := range h.clients {
		_ = c.close()
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()
	return nil
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := uuid.NewString()
	c := &client{
		conn:      conn,
		sessionID: r.URL.Query().Get("session_id"),
		sendCh:    make(chan []byte, 256),
		quit:      make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	h.logger.Info("live_client_connected", "client_id", id, "session_id", c.sessionID)

	go c.loop()
	// Reads are discarded; the read loop just detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
	_ = c.close()
	h.logger.Info("live_client_disconnected", "client_id", id)
}

// Emit broadcasts an event to matching clients. Never blocks.
func (h *Hub) Emit(ev events.Event) {
	buf, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.sessionID == "" || c.sessionID == ev.SessionID {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.enqueue(buf)
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range h.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

type client struct {
	conn      *websocket.Conn
	sessionID string
	sendCh    chan []byte
	quit      chan struct{}
	closed    atomic.Bool
}

// enqueue never blocks and stays safe against a concurrent close: the
// send channel is never closed, the write loop is stopped through quit
// instead.
func (c *client) enqueue(msg []byte) {
	if c.closed.Load() {
		return
	}
	select {
	case c.sendCh <- msg:
	default:
	}
}

func (c *client) loop() {
	for {
		select {
		case msg := <-c.sendCh:
			_ = c.conn.WriteMessage(websocket.TextMessage, msg)
		case <-c.quit:
			return
		}
	}
}

func (c *client) close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.quit)
	}
	return c.conn.Close()
}

var _ events.Emitter = (*Hub)(nil)
