package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/clock"
	"github.com/floroz/gavel-live/internal/domain/identity"
	"github.com/floroz/gavel-live/pkg/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	tokenQueryParam = "token"
)

// BidPlacer arbitrates bid attempts
type BidPlacer interface {
	PlaceBid(ctx context.Context, origin bids.Bidder, rawItemID, rawAmount string) (*bids.Placement, error)
}

// HandlerConfig configures the WebSocket endpoint
type HandlerConfig struct {
	SendBuffer     int
	AllowedOrigins []string // empty or "*" allows any origin
}

// Handler upgrades HTTP requests to WebSocket connections. Each connection
// runs a reader, which arbitrates its bid attempts one at a time, and a
// writer, which drains its send queue.
type Handler struct {
	resolver   *identity.Resolver
	registry   *Registry
	placer     BidPlacer
	clock      *clock.Service
	logger     *slog.Logger
	sendBuffer int
	upgrader   websocket.Upgrader
}

// NewHandler creates the WebSocket handler
func NewHandler(
	resolver *identity.Resolver,
	registry *Registry,
	placer BidPlacer,
	clockService *clock.Service,
	logger *slog.Logger,
	cfg HandlerConfig,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		resolver:   resolver,
		registry:   registry,
		placer:     placer,
		clock:      clockService,
		logger:     logger,
		sendBuffer: cfg.SendBuffer,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// credential returns the connect-time token: query parameter first, then the
// Authorization header, then the cookie.
func credential(r *http.Request) string {
	if token := r.URL.Query().Get(tokenQueryParam); token != "" {
		return token
	}
	return auth.TokenFromRequest(r)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal := h.resolver.Resolve(credential(r))

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	conn := NewConnection(principal, h.sendBuffer)
	h.registry.Register(conn)

	logger := h.logger.With("session_id", conn.SessionID(), "principal", principal.String())
	logger.Info("Socket connected", "connections", h.registry.Len())

	go h.writeLoop(ws, conn, logger)

	// bid attempts run to an outcome even if the client goes away mid-attempt
	h.readLoop(context.WithoutCancel(r.Context()), ws, conn, logger)

	h.registry.Unregister(conn.SessionID())
	conn.Close()
	logger.Info("Socket disconnected", "dropped", conn.Dropped())
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, conn *Connection, logger *slog.Logger) {
	defer ws.Close()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Socket read failed", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Debug("Ignoring malformed message", "error", err)
			continue
		}

		switch env.Event {
		case EventBidPlaced:
			var payload BidPlacedPayload
			if len(env.Data) > 0 {
				if err := json.Unmarshal(env.Data, &payload); err != nil {
					logger.Debug("Malformed bid payload", "error", err)
					payload = BidPlacedPayload{}
				}
			}
			// the outcome reaches the connection through the dispatcher
			_, _ = h.placer.PlaceBid(ctx, conn, payload.ItemID, payload.RawAmount())
		case EventSyncTime:
			h.sendServerTime(conn, logger)
		default:
			logger.Debug("Ignoring unknown event", "event", env.Event)
		}
	}
}

func (h *Handler) sendServerTime(conn *Connection, logger *slog.Logger) {
	msg, err := encode(EventServerTime, newServerTimePayload(h.clock.Now()))
	if err != nil {
		logger.Error("Failed to encode server time", "error", err)
		return
	}
	if !conn.Enqueue(msg) {
		logger.Warn("Dropped server time")
	}
}

func (h *Handler) writeLoop(ws *websocket.Conn, conn *Connection, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		_ = ws.Close()
	}()

	for {
		select {
		case msg := <-conn.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					logger.Debug("Socket write failed", "error", err)
				}
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-conn.Done():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
