package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tontyoutoure/xianqi/internal/auth"
	"github.com/tontyoutoure/xianqi/internal/database"
	"github.com/tontyoutoure/xianqi/internal/room"
)

type testEnv struct {
	srv    *httptest.Server
	tokens map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	registry := room.NewRegistry(2, room.Options{DB: db, Log: log})
	authService := auth.New(db, "test-secret", time.Hour, 24*time.Hour)
	server := New(registry, authService, log)

	env := &testEnv{
		srv:    httptest.NewServer(server.Handler()),
		tokens: map[string]string{},
	}
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func (e *testEnv) signup(t *testing.T, username string) string {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "pw-" + username,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": "pw-" + username,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair auth.TokenPair
	decodeBody(t, resp, &pair)
	e.tokens[username] = pair.AccessToken
	return pair.AccessToken
}

// startGame registers alice/bob/carol in room 0 and readies everyone.
func (e *testEnv) startGame(t *testing.T) string {
	t.Helper()

	var last room.Room
	for _, name := range []string{"alice", "bob", "carol"} {
		token := e.signup(t, name)
		resp := e.do(t, http.MethodPost, "/api/rooms/0/join", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	for _, name := range []string{"alice", "bob", "carol"} {
		resp := e.do(t, http.MethodPost, "/api/rooms/0/ready", e.tokens[name], map[string]bool{"ready": true})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &last)
	}
	require.Equal(t, room.StatusPlaying, last.Status)
	require.NotEmpty(t, last.CurrentGameID)
	return last.CurrentGameID
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/rooms", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")

	resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"password": "other",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var apiErr apiError
	decodeBody(t, resp, &apiErr)
	assert.Equal(t, "USER_EXISTS", apiErr.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")

	resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshFlow(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")

	resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "pw-alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair auth.TokenPair
	decodeBody(t, resp, &pair)

	resp = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoomLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "alice")

	resp := env.do(t, http.MethodGet, "/api/rooms", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rooms []room.Room
	decodeBody(t, resp, &rooms)
	assert.Len(t, rooms, 2)

	resp = env.do(t, http.MethodPost, "/api/rooms/0/join", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view room.Room
	decodeBody(t, resp, &view)
	assert.Len(t, view.Members, 1)

	resp = env.do(t, http.MethodPost, "/api/rooms/9/join", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/rooms/0/leave", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/rooms/0/leave", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestReadyStartsGameAndStateIsServed(t *testing.T) {
	env := newTestEnv(t)
	gameID := env.startGame(t)

	resp := env.do(t, http.MethodGet, "/api/games/"+gameID+"/state", env.tokens["alice"], nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view room.GameStateView
	decodeBody(t, resp, &view)
	assert.Equal(t, gameID, view.GameID)
	assert.Equal(t, 8, view.PrivateState.Hand.Total())
}

func TestGameStateForOutsiderForbidden(t *testing.T) {
	env := newTestEnv(t)
	gameID := env.startGame(t)
	outsider := env.signup(t, "dave")

	resp := env.do(t, http.MethodGet, "/api/games/"+gameID+"/state", outsider, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGameActionErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	gameID := env.startGame(t)

	resp := env.do(t, http.MethodGet, "/api/games/unknown/state", env.tokens["alice"], nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Find the acting member and submit a stale version.
	var acting string
	for _, name := range []string{"alice", "bob", "carol"} {
		resp := env.do(t, http.MethodGet, "/api/games/"+gameID+"/state", env.tokens[name], nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var view room.GameStateView
		decodeBody(t, resp, &view)
		if len(view.LegalActions.Actions) > 0 {
			acting = name
		}
	}
	require.NotEmpty(t, acting)

	resp = env.do(t, http.MethodPost, "/api/games/"+gameID+"/actions", env.tokens[acting], map[string]int{
		"action_idx":     0,
		"client_version": 999,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var apiErr apiError
	decodeBody(t, resp, &apiErr)
	assert.Equal(t, "GAME_VERSION_CONFLICT", apiErr.Code)

	resp = env.do(t, http.MethodPost, "/api/games/"+gameID+"/actions", env.tokens[acting], map[string]int{
		"action_idx":     999,
		"client_version": 0,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	decodeBody(t, resp, &apiErr)
	assert.Equal(t, "GAME_INVALID_ACTION", apiErr.Code)

	resp = env.do(t, http.MethodGet, "/api/games/"+gameID+"/settlement", env.tokens[acting], nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	decodeBody(t, resp, &apiErr)
	assert.Equal(t, "GAME_STATE_CONFLICT", apiErr.Code)
}
