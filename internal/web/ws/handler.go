package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Dispatcher receives connection lifecycle and inbound events
type Dispatcher interface {
	Connect(conn model.ConnID)
	Receive(conn model.ConnID, env model.Envelope)
	Disconnect(conn model.ConnID)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Clients are served from any origin
	},
}

// Handler upgrades HTTP requests to websocket connections
type Handler struct {
	hub        *Hub
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewHandler creates a websocket handler
func NewHandler(hub *Hub, dispatcher Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "ws")),
	}
}

// ServeHTTP handles GET /ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := NewClient()
	h.hub.Register(client)
	h.dispatcher.Connect(client.id)

	h.logger.Info("connection opened",
		slog.String("conn_id", string(client.id)),
		slog.String("remote_addr", r.RemoteAddr))

	go h.writePump(wsConn, client)
	go h.readPump(wsConn, client)
}

func (h *Handler) readPump(wsConn *websocket.Conn, client *Client) {
	opened := time.Now()
	defer func() {
		h.dispatcher.Disconnect(client.id)
		h.hub.Unregister(client)
		_ = wsConn.Close()
		h.logger.Info("connection closed",
			slog.String("conn_id", string(client.id)),
			slog.Duration("connection_duration", time.Since(opened)))
	}()

	wsConn.SetReadLimit(maxMessageSize)
	_ = wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error",
					slog.String("conn_id", string(client.id)),
					slog.Any("error", err))
			}
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.logger.Debug("ignoring malformed frame",
				slog.String("conn_id", string(client.id)),
				slog.Any("error", err))
			continue
		}
		h.dispatcher.Receive(client.id, env)
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			_ = wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wsConn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
