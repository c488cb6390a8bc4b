package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// ChatHandler is the lifecycle and chat-submission contract the routing core
// exposes to the transport.
type ChatHandler interface {
	OnConnect(ctx context.Context, id uuid.UUID, username, server string)
	OnDisconnect(ctx context.Context, id uuid.UUID)
	OnChatSubmission(ctx context.Context, id uuid.UUID, text string, isCommand bool, server string) bool
}

// WSHandler upgrades websocket clients and pumps chat lines between the
// connection and the hub.
type WSHandler struct {
	logger   *slog.Logger
	hub      *Hub
	chat     ChatHandler
	upgrader websocket.Upgrader
}

// NewWSHandler creates the websocket endpoint handler.
func NewWSHandler(log *slog.Logger, hub *Hub, chat ChatHandler) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		logger: log.With(slog.String("component", "ws")),
		hub:    hub,
		chat:   chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Register registers the websocket route.
func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws", h.serve)
}

func (h *WSHandler) serve(c echo.Context) error {
	rawID := strings.TrimSpace(c.QueryParam("identity"))
	username := strings.TrimSpace(c.QueryParam("username"))
	server := strings.TrimSpace(c.QueryParam("server"))
	if rawID == "" || username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "identity and username are required")
	}
	if server == "" {
		server = "default"
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "identity must be a uuid")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	lines, cancel := h.hub.Register(id, server)
	h.chat.OnConnect(ctx, id, username, server)

	done := make(chan struct{})
	go h.writePump(conn, lines, done)

	h.readPump(ctx, conn, id, server)

	cancel()
	h.chat.OnDisconnect(context.Background(), id)
	conn.Close()
	<-done
	return nil
}

// readPump feeds inbound text frames to the chat handler until the
// connection drops. Lines starting with '/' are structured commands and are
// flagged so the routing core leaves them to command dispatch.
func (h *WSHandler) readPump(ctx context.Context, conn *websocket.Conn, id uuid.UUID, server string) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket closed", slog.String("identity", id.String()), slog.Any("error", err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		text := strings.TrimRight(string(data), "\r\n")
		if text == "" {
			continue
		}
		isCommand := strings.HasPrefix(text, "/")
		h.chat.OnChatSubmission(ctx, id, text, isCommand, server)
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, lines <-chan string, done chan<- struct{}) {
	defer close(done)
	for line := range lines {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
