package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"capsule-server/internal/auth"
	"capsule-server/internal/bus"
	"capsule-server/internal/dispatch"
	"capsule-server/internal/presence"
	"capsule-server/internal/registry"
	"capsule-server/internal/store"
)

var testTokenCfg = auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}

func newTestDeps() (Deps, *store.Store) {
	st := store.New()
	b := bus.NewMemory()
	p := presence.NewMemory(time.Minute)
	return Deps{
		Store:       st,
		TokenConfig: testTokenCfg,
		Registry:    registry.New(b, p, st),
		Dispatcher:  dispatch.New(b),
		Presence:    p,
	}, st
}

func mustToken(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.CreateToken(userID, testTokenCfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	return tok
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

// readEvent reads frames until one of the wanted type arrives. Other event
// types (status changes and the like) are skipped.
func readEvent(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var evt map[string]any
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("waiting for %s: %v", wantType, err)
		}
		if evt["type"] == wantType {
			return evt
		}
	}
}

func TestWebSocketPingPong(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, st := newTestDeps()
	user, _ := st.CreateUser("alice", "Alice", "h", 1)

	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	conn := dialWS(t, srv, mustToken(t, user.ID))
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	evt := readEvent(t, conn, "pong")
	if evt["type"] != "pong" {
		t.Fatalf("expected pong, got %v", evt)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, _ := newTestDeps()

	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	conn := dialWS(t, srv, "not-a-token")
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestWebSocketMalformedFrameIsDropped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, st := newTestDeps()
	user, _ := st.CreateUser("alice", "Alice", "h", 1)

	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	conn := dialWS(t, srv, mustToken(t, user.ID))
	defer conn.Close()

	// Garbage must not terminate the session.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{nonsense")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	readEvent(t, conn, "pong")
}

func TestTypingIndicatorFanOut(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, st := newTestDeps()
	alice, _ := st.CreateUser("alice", "Alice", "h", 1)
	bob, _ := st.CreateUser("bob", "Bob", "h", 1)
	conv := st.GetOrCreatePrivateConversation(alice.ID, bob.ID, 1)

	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	aliceConn := dialWS(t, srv, mustToken(t, alice.ID))
	defer aliceConn.Close()
	bobConn := dialWS(t, srv, mustToken(t, bob.ID))
	defer bobConn.Close()

	if err := aliceConn.WriteJSON(map[string]any{"type": "typing", "conversation_id": conv.ID, "is_typing": true}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	evt := readEvent(t, bobConn, "typing_indicator")
	if evt["user_id"] != alice.ID || evt["conversation_id"] != conv.ID || evt["is_typing"] != true {
		t.Fatalf("unexpected typing event: %v", evt)
	}

	// The sender is excluded from their own typing fan-out: a ping round
	// trip on alice's socket must come back before any typing event.
	if err := aliceConn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	aliceConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var next map[string]any
	if err := aliceConn.ReadJSON(&next); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if next["type"] != "pong" {
		t.Fatalf("expected pong first, got %v", next)
	}
}

func TestChatMessageDeliveredOverWebSocket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, st := newTestDeps()
	alice, _ := st.CreateUser("alice", "Alice", "h", 1)
	bob, _ := st.CreateUser("bob", "Bob", "h", 1)

	r := NewRouter(deps)
	srv := httptest.NewServer(r)
	defer srv.Close()

	bobConn := dialWS(t, srv, mustToken(t, bob.ID))
	defer bobConn.Close()

	body, _ := json.Marshal(map[string]any{"receiver_id": bob.ID, "content": "hello bob"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+mustToken(t, alice.ID))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	evt := readEvent(t, bobConn, "new_message")
	msg, ok := evt["message"].(map[string]any)
	if !ok || msg["content"] != "hello bob" || msg["sender_id"] != alice.ID {
		t.Fatalf("unexpected message event: %v", evt)
	}
}

func TestUserStatusBroadcastLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, st := newTestDeps()
	alice, _ := st.CreateUser("alice", "Alice", "h", 1)
	bob, _ := st.CreateUser("bob", "Bob", "h", 1)
	f, _ := st.CreateFriendship(alice.ID, bob.ID, 1)
	if _, err := st.RespondFriendship(f.ID, bob.ID, true, 2); err != nil {
		t.Fatalf("RespondFriendship: %v", err)
	}

	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	bobConn := dialWS(t, srv, mustToken(t, bob.ID))
	defer bobConn.Close()

	aliceConn := dialWS(t, srv, mustToken(t, alice.ID))
	evt := readEvent(t, bobConn, "user_status")
	if evt["user_id"] != alice.ID || evt["is_online"] != true {
		t.Fatalf("expected alice online, got %v", evt)
	}

	aliceConn.Close()
	evt = readEvent(t, bobConn, "user_status")
	if evt["user_id"] != alice.ID || evt["is_online"] != false {
		t.Fatalf("expected alice offline, got %v", evt)
	}
}

func TestFriendRequestDeliveredOverWebSocket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, st := newTestDeps()
	alice, _ := st.CreateUser("alice", "Alice", "h", 1)
	bob, _ := st.CreateUser("bob", "Bob", "h", 1)

	r := NewRouter(deps)
	srv := httptest.NewServer(r)
	defer srv.Close()

	bobConn := dialWS(t, srv, mustToken(t, bob.ID))
	defer bobConn.Close()

	body, _ := json.Marshal(map[string]any{"username": "bob", "message": "hi"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/friends/request", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+mustToken(t, alice.ID))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	evt := readEvent(t, bobConn, "friend_request")
	requester, ok := evt["requester"].(map[string]any)
	if !ok || requester["username"] != "alice" || evt["message"] != "hi" {
		t.Fatalf("unexpected friend request event: %v", evt)
	}
	if evt["friendship_id"] == "" {
		t.Fatalf("expected friendship id")
	}

	// The request also lands as a persistent notification for bob.
	notifications := st.NotificationsForUser(bob.ID)
	if len(notifications) != 1 || notifications[0].NotificationType != "friend_request" {
		t.Fatalf("expected stored notification, got %v", notifications)
	}
}
