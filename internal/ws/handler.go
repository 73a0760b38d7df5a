package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bookclub-notify/internal/registry"
	"bookclub-notify/pkg/jwt"
	"bookclub-notify/pkg/log"
)

// Config holds WebSocket transport configuration.
type Config struct {
	WriteWait       time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
}

// Handler upgrades inbound requests and bridges the socket to the registry.
type Handler struct {
	reg       *registry.Registry
	rooms     *registry.Rooms
	validator *jwt.Validator
	cfg       Config
	l         log.Logger

	upgrader websocket.Upgrader
}

// NewHandler creates a Handler.
func NewHandler(reg *registry.Registry, rooms *registry.Rooms, validator *jwt.Validator, cfg Config, l log.Logger) *Handler {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Handler{
		reg:       reg,
		rooms:     rooms,
		validator: validator,
		cfg:       cfg,
		l:         l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// SetupRoutes registers the live-connection routes.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/ws", h.HandleSubscribe)
	router.GET("/ws/rooms/:roomID", h.HandleRoomSubscribe)
}

// HandleSubscribe authenticates the request, upgrades it, and registers the
// connection with the main registry.
func (h *Handler) HandleSubscribe(c *gin.Context) {
	memberID, ok := h.authenticate(c)
	if !ok {
		return
	}

	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.l.Errorf(context.Background(), "internal.ws.HandleSubscribe: upgrade: %v", err)
		return
	}

	conn, err := h.reg.Subscribe(memberID)
	if err != nil {
		h.l.Warnf(context.Background(), "internal.ws.HandleSubscribe: subscribe for %s: %v", memberID, err)
		sock.Close()
		return
	}

	go h.writePump(sock, conn, func() { h.reg.Remove(conn) })
	go h.readPump(sock, conn, func() { h.reg.Remove(conn) })
}

// HandleRoomSubscribe registers the connection in a bounded room scope.
func (h *Handler) HandleRoomSubscribe(c *gin.Context) {
	memberID, ok := h.authenticate(c)
	if !ok {
		return
	}
	roomID := c.Param("roomID")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing room id"})
		return
	}

	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.l.Errorf(context.Background(), "internal.ws.HandleRoomSubscribe: upgrade: %v", err)
		return
	}

	conn, err := h.rooms.Subscribe(roomID, memberID)
	if err != nil {
		h.l.Warnf(context.Background(), "internal.ws.HandleRoomSubscribe: room %s subscribe for %s: %v", roomID, memberID, err)
		sock.Close()
		return
	}

	remove := func() { h.rooms.Remove(roomID, conn) }
	go h.writePump(sock, conn, remove)
	go h.readPump(sock, conn, remove)
}

func (h *Handler) authenticate(c *gin.Context) (string, bool) {
	token := c.Query("token")
	if token == "" {
		h.l.Warn(context.Background(), "internal.ws.authenticate: missing token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token parameter"})
		return "", false
	}

	memberID, err := h.validator.ExtractMemberID(token)
	if err != nil {
		h.l.Warnf(context.Background(), "internal.ws.authenticate: invalid token: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return "", false
	}
	return memberID, true
}

// writePump drains the connection's frame stream onto the socket. Any write
// error removes the connection from its registry; removal closes Done and
// unblocks the pump.
func (h *Handler) writePump(sock *websocket.Conn, conn *registry.Connection, remove func()) {
	defer sock.Close()

	for {
		select {
		case data := <-conn.Events():
			sock.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
				h.l.Warnf(context.Background(), "internal.ws.writePump: write for %s: %v", conn.RecipientID(), err)
				remove()
				return
			}
		case <-conn.Done():
			sock.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			sock.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// readPump consumes inbound frames solely to detect disconnects; clients do
// not send application data on this channel.
func (h *Handler) readPump(sock *websocket.Conn, conn *registry.Connection, remove func()) {
	defer func() {
		remove()
		sock.Close()
	}()

	sock.SetReadLimit(h.cfg.MaxMessageSize)
	for {
		if _, _, err := sock.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.l.Warnf(context.Background(), "internal.ws.readPump: read for %s: %v", conn.RecipientID(), err)
			}
			return
		}
	}
}
