package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return resp
}

func registerAndLogin(t *testing.T, r http.Handler, username string) (string, string) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"username": username, "password": "pw-" + username, "full_name": username,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"username": username, "password": "pw-" + username,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	token, _ := resp["access_token"].(string)
	user, _ := resp["user"].(map[string]any)
	id, _ := user["id"].(string)
	if token == "" || id == "" {
		t.Fatalf("missing token or user id in %v", resp)
	}
	return token, id
}

func TestRegisterLoginMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, _ := newTestDeps()
	r := NewRouter(deps)

	token, userID := registerAndLogin(t, r, "alice")

	// Duplicate username is rejected.
	w := doJSON(t, r, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"username": "alice", "password": "x", "full_name": "Other",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	// Wrong password is rejected.
	w = doJSON(t, r, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"username": "alice", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/auth/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeBody(t, w)
	user, _ := resp["user"].(map[string]any)
	if user["id"] != userID || user["username"] != "alice" {
		t.Fatalf("unexpected profile: %v", resp)
	}
}

func TestFriendRequestFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, _ := newTestDeps()
	r := NewRouter(deps)

	aliceToken, aliceID := registerAndLogin(t, r, "alice")
	bobToken, bobID := registerAndLogin(t, r, "bob")

	w := doJSON(t, r, http.MethodPost, "/v1/friends/request", aliceToken, map[string]any{"username": "bob"})
	if w.Code != http.StatusOK {
		t.Fatalf("request: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Duplicate request is rejected.
	w = doJSON(t, r, http.MethodPost, "/v1/friends/request", aliceToken, map[string]any{"username": "bob"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/friends/requests", bobToken, nil)
	resp := decodeBody(t, w)
	requests, _ := resp["friend_requests"].([]any)
	if len(requests) != 1 {
		t.Fatalf("expected one pending request, got %v", resp)
	}
	first, _ := requests[0].(map[string]any)
	friendshipID, _ := first["friendship_id"].(string)

	w = doJSON(t, r, http.MethodPost, "/v1/friends/respond/"+friendshipID, bobToken, map[string]any{"accept": true})
	if w.Code != http.StatusOK {
		t.Fatalf("respond: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/v1/friends", aliceToken, nil)
	resp = decodeBody(t, w)
	friends, _ := resp["friends"].([]any)
	if len(friends) != 1 {
		t.Fatalf("expected one friend, got %v", resp)
	}
	friend, _ := friends[0].(map[string]any)
	if friend["id"] != bobID || friend["is_online"] != false {
		t.Fatalf("unexpected friend entry: %v", friend)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/friends", bobToken, nil)
	resp = decodeBody(t, w)
	friends, _ = resp["friends"].([]any)
	if len(friends) != 1 {
		t.Fatalf("expected one friend for bob, got %v", resp)
	}
	friend, _ = friends[0].(map[string]any)
	if friend["id"] != aliceID {
		t.Fatalf("unexpected friend entry: %v", friend)
	}
}

func TestCapsuleLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, _ := newTestDeps()
	r := NewRouter(deps)

	aliceToken, _ := registerAndLogin(t, r, "alice")
	bobToken, _ := registerAndLogin(t, r, "bob")

	// Unlock date already in the past: locked until explicitly unlocked.
	w := doJSON(t, r, http.MethodPost, "/v1/capsules", aliceToken, map[string]any{
		"title": "Letter to future me", "content": "secret", "unlock_date": 1,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	capsule, _ := resp["capsule"].(map[string]any)
	capsuleID, _ := capsule["id"].(string)
	if capsule["status"] != "locked" {
		t.Fatalf("expected locked, got %v", capsule)
	}

	// Content is withheld while locked.
	w = doJSON(t, r, http.MethodGet, "/v1/capsules/"+capsuleID, aliceToken, nil)
	resp = decodeBody(t, w)
	capsule, _ = resp["capsule"].(map[string]any)
	if capsule["content"] != "" {
		t.Fatalf("expected withheld content, got %v", capsule)
	}

	// Strangers get no access at all.
	w = doJSON(t, r, http.MethodGet, "/v1/capsules/"+capsuleID, bobToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/capsules/unlockable", aliceToken, nil)
	resp = decodeBody(t, w)
	unlocked, _ := resp["unlocked"].([]any)
	if len(unlocked) != 1 {
		t.Fatalf("expected one unlocked capsule, got %v", resp)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/capsules/"+capsuleID, aliceToken, nil)
	resp = decodeBody(t, w)
	capsule, _ = resp["capsule"].(map[string]any)
	if capsule["content"] != "secret" || capsule["status"] != "unlocked" {
		t.Fatalf("expected readable unlocked capsule, got %v", capsule)
	}

	// Share with bob, who then sees it under shared capsules.
	w = doJSON(t, r, http.MethodPost, "/v1/capsules/"+capsuleID+"/share", aliceToken, map[string]any{"username": "bob"})
	if w.Code != http.StatusOK {
		t.Fatalf("share: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/v1/capsules/shared", bobToken, nil)
	resp = decodeBody(t, w)
	shared, _ := resp["shared_capsules"].([]any)
	if len(shared) != 1 {
		t.Fatalf("expected one shared capsule, got %v", resp)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/capsules/"+capsuleID+"/access", bobToken, nil)
	resp = decodeBody(t, w)
	if resp["has_access"] != true || resp["permission_level"] != "view" {
		t.Fatalf("expected view access, got %v", resp)
	}
}

func TestSettingsVersioning(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, _ := newTestDeps()
	r := NewRouter(deps)

	token, _ := registerAndLogin(t, r, "alice")

	w := doJSON(t, r, http.MethodPut, "/v1/account/settings", token, map[string]any{
		"settings": `{"theme":"dark"}`, "expectedVersion": 0,
	})
	resp := decodeBody(t, w)
	if resp["success"] != true {
		t.Fatalf("expected success, got %v", resp)
	}

	// Stale version is rejected with the current state.
	w = doJSON(t, r, http.MethodPut, "/v1/account/settings", token, map[string]any{
		"settings": `{"theme":"light"}`, "expectedVersion": 0,
	})
	resp = decodeBody(t, w)
	if resp["success"] != false || resp["error"] != "version-mismatch" {
		t.Fatalf("expected version mismatch, got %v", resp)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/account/settings", token, nil)
	resp = decodeBody(t, w)
	if resp["settings"] != `{"theme":"dark"}` {
		t.Fatalf("unexpected settings: %v", resp)
	}
}

func TestOnlineUsersSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, _ := newTestDeps()
	r := NewRouter(deps)

	token, _ := registerAndLogin(t, r, "alice")
	w := doJSON(t, r, http.MethodGet, "/v1/chat/online-users", token, nil)
	resp := decodeBody(t, w)
	users, ok := resp["online_users"].([]any)
	if !ok || len(users) != 0 {
		t.Fatalf("expected empty snapshot, got %v", resp)
	}
}

func TestHealthAndVersion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, _ := newTestDeps()
	r := NewRouter(deps)

	w := doJSON(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/version", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
