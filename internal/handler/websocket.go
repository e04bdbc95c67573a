package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"capsule-server/internal/auth"
	"capsule-server/internal/dispatch"
	"capsule-server/internal/event"
	"capsule-server/internal/registry"
	"capsule-server/internal/store"
)

type WebSocketHandler struct {
	Registry    *registry.Registry
	Dispatcher  *dispatch.Dispatcher
	Store       *store.Store
	TokenConfig auth.TokenConfig
}

// Inbound client commands. Anything else on the wire is logged and dropped.
type clientCommand struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	IsTyping       *bool  `json:"is_typing,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	pongWait  = 60 * time.Second
	writeWait = 10 * time.Second
)

// Serve runs one session: authenticate, register, then race the inbound
// read loop against the outbound delivery loop. Whichever exits first tears
// the other down, and Unregister runs exactly once on the way out.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	claims, err := auth.VerifyToken(c.Query("token"), h.TokenConfig)
	if err != nil {
		// Auth failure closes before any registry mutation.
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token")
		_ = ws.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = ws.Close()
		return
	}

	// The session outlives the upgrade request, so registry side effects
	// run against a background context, not the request's.
	sess := registry.NewSession(claims.UserID)
	h.Registry.Register(context.Background(), sess)
	defer func() {
		h.Registry.Unregister(context.Background(), sess)
		_ = ws.Close()
	}()

	ws.SetReadLimit(1024 * 1024)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() { close(done) })
	}
	defer closeDone()

	go h.outboundLoop(ws, sess, done, closeDone)
	h.inboundLoop(ws, sess)
}

// outboundLoop owns all socket writes: bus-delivered events, pong replies
// and keepalive pings. A write failure closes the socket, which unblocks
// the inbound loop.
func (h *WebSocketHandler) outboundLoop(ws *websocket.Conn, sess *registry.Session, done <-chan struct{}, closeDone func()) {
	pingPeriod := (pongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case evt := <-sess.Outbound():
			data, err := evt.Marshal()
			if err != nil {
				log.Printf("ws: marshal %s for user %s: %v", evt.Type(), sess.UserID, err)
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = ws.Close()
				closeDone()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = ws.Close()
				closeDone()
				return
			}
		}
	}
}

func (h *WebSocketHandler) inboundLoop(ws *websocket.Conn, sess *registry.Session) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Type == "" {
			log.Printf("ws: malformed frame from user %s", sess.UserID)
			continue
		}

		switch cmd.Type {
		case "ping":
			// Liveness only. Presence TTL renewal stays tied to connect so a
			// silently dead socket cannot keep a user online past one window.
			sess.Send(event.Pong())
		case "typing":
			h.handleTyping(sess, cmd)
		case "mark_read":
			h.handleMarkRead(sess, cmd)
		}
	}
}

func (h *WebSocketHandler) handleTyping(sess *registry.Session, cmd clientCommand) {
	if cmd.ConversationID == "" {
		return
	}
	participants, err := h.Store.ResolveConversationParticipants(cmd.ConversationID)
	if err != nil {
		return
	}
	isTyping := true
	if cmd.IsTyping != nil {
		isTyping = *cmd.IsTyping
	}
	evt := event.TypingIndicator(sess.UserID, cmd.ConversationID, isTyping)
	h.Dispatcher.SendToConversation(context.Background(), participants, evt, sess.UserID)
}

func (h *WebSocketHandler) handleMarkRead(sess *registry.Session, cmd clientCommand) {
	if cmd.ConversationID == "" {
		return
	}
	// Fire-and-forget: the read receipt does not block the session loop.
	go h.Store.MarkMessagesRead(cmd.ConversationID, sess.UserID)
}
