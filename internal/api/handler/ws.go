package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hszk-dev/tubelytics/internal/api/middleware"
	"github.com/hszk-dev/tubelytics/internal/dispatch"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 64 << 10
)

// SessionCreator allocates session keys for new connections.
type SessionCreator interface {
	CreateSession() string
}

// WSConfig holds configuration for the WebSocket handler.
type WSConfig struct {
	// Timeout bounds each dispatched request.
	Timeout time.Duration
	// CheckOrigin overrides the upgrader's same-origin check when set.
	CheckOrigin func(r *http.Request) bool
}

// WSHandler serves GET /v1/ws. Each connection gets its own dispatch.Router
// bound to one session; every text frame is one client request.
type WSHandler struct {
	sessions   SessionCreator
	dispatcher dispatch.Dispatcher
	timeout    time.Duration
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions SessionCreator, dispatcher dispatch.Dispatcher, cfg WSConfig, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		sessions:   sessions,
		dispatcher: dispatcher,
		timeout:    cfg.Timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the connection, binds the session given by the
// "session" query parameter (or a new one), announces it and serves requests
// until the client goes away.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = h.sessions.CreateSession()
	}

	log := middleware.LoggerFrom(r.Context(), h.logger).With(
		slog.String("session_id", sessionID),
		slog.String("remote_addr", r.RemoteAddr),
	)
	c := &wsConn{conn: conn}

	announce, err := dispatch.EncodeSession(sessionID)
	if err == nil {
		err = c.Send(announce)
	}
	if err != nil {
		log.Warn("failed to announce session", slog.Any("error", err))
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	router := dispatch.NewRouter(h.dispatcher, dispatch.RouterConfig{
		Timeout:   h.timeout,
		SessionID: sessionID,
	}, log)

	pingDone := make(chan struct{})
	go c.keepAlive(pingDone)

	log.Info("websocket connected")
	err = h.readLoop(ctx, c, router)

	// In-flight requests finish and their replies are dropped by the closed connection.
	close(pingDone)
	cancel()
	_ = conn.Close()
	router.Close()

	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Warn("websocket closed with error", slog.Any("error", err))
		return
	}
	log.Info("websocket disconnected")
}

func (h *WSHandler) readLoop(ctx context.Context, c *wsConn, router *dispatch.Router) error {
	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}

		if kind != websocket.TextMessage {
			msg, encErr := dispatch.EncodeFailure(dispatch.Request{},
				errors.Join(dispatch.ErrMalformedRequest, errors.New("binary frames are not supported")))
			if encErr == nil {
				_ = c.Send(msg)
			}
			continue
		}

		router.Submit(ctx, data, c)
	}
}

// wsConn serializes writes to a websocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Send writes msg as one text frame.
func (c *wsConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *wsConn) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
