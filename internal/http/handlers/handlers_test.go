package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"swapit/internal/broadcast"
	"swapit/internal/domain"
	"swapit/internal/http/middleware"
	"swapit/internal/service"
	"swapit/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResults struct {
	rows []*domain.GameResult
	err  error
}

func (f *fakeResults) GetByPlayer(ctx context.Context, playerID string, limit int) ([]*domain.GameResult, error) {
	return f.rows, f.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

type testServer struct {
	router  *gin.Engine
	store   *store.MemoryStore
	handler *Handler
}

func newTestServer(t *testing.T, results ResultReader) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service.InitJWT("test-secret")

	st := store.NewMemoryStore()
	svc := service.NewSessionService(st, &broadcast.Recorder{}, service.SessionConfig{AdminKey: "admin"})
	h := NewHandler(svc, results)

	r := gin.New()
	games := r.Group("/api/v1/games")
	games.GET("", h.ListGames)
	games.POST("", h.CreateGame)
	games.POST("/clear", h.ClearGames)
	games.GET("/:id", h.GetGame)
	games.POST("/:id/join", h.JoinGame)
	games.POST("/:id/start", middleware.JWT(), h.StartGame)
	games.POST("/:id/leave", middleware.JWT(), h.LeaveGame)
	games.POST("/:id/name", middleware.JWT(), h.UpdateName)
	games.POST("/:id/move", middleware.JWT(), h.SubmitMove)
	r.GET("/api/v1/players/:id/results", h.PlayerResults)
	r.GET("/api/v1/themes", h.Themes)

	return &testServer{router: r, store: st, handler: h}
}

func (s *testServer) call(t *testing.T, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func gameField(t *testing.T, resp map[string]any, key string) any {
	t.Helper()
	g, ok := resp["game"].(map[string]any)
	require.True(t, ok, "response has no game: %v", resp)
	return g[key]
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	code, resp := s.call(t, "POST", "/api/v1/games", map[string]any{
		"player_id": "host", "display_name": "Host", "tile_count": 4, "placement_count": 1,
	}, nil)
	require.Equal(t, http.StatusCreated, code, resp)
	assert.Equal(t, true, resp["success"])
	assert.NotEmpty(t, resp["token"])
	id := gameField(t, resp, "id").(string)
	hostAuth := bearer(resp["token"].(string))

	code, resp = s.call(t, "GET", "/api/v1/games", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp["games"], 1)

	code, resp = s.call(t, "POST", "/api/v1/games/"+id+"/join", map[string]any{"player_id": "alice"}, nil)
	require.Equal(t, http.StatusOK, code, resp)
	auth := bearer(resp["token"].(string))

	code, _ = s.call(t, "POST", "/api/v1/games/"+id+"/start", nil, auth)
	assert.Equal(t, http.StatusForbidden, code, "only the host starts")

	code, resp = s.call(t, "POST", "/api/v1/games/"+id+"/start", nil, hostAuth)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, "LIVE", gameField(t, resp, "phase"))
	assert.Nil(t, gameField(t, resp, "goal_order"), "goal stays hidden while live")

	code, _ = s.call(t, "POST", "/api/v1/games/"+id+"/join", map[string]any{"player_id": "late"}, nil)
	assert.Equal(t, http.StatusForbidden, code)

	// moves need a token
	code, _ = s.call(t, "POST", "/api/v1/games/"+id+"/move", map[string]any{"order": []int{0, 1, 2, 3}}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp = s.call(t, "POST", "/api/v1/games/"+id+"/move", map[string]any{"order": []int{0, 0, 0, 0}}, auth)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, false, resp["accepted"])

	sess, err := s.store.GetSession(context.Background(), id)
	require.NoError(t, err)
	code, resp = s.call(t, "POST", "/api/v1/games/"+id+"/move", map[string]any{
		"request_id": "r1", "order": sess.GoalOrder,
	}, auth)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, true, resp["accepted"])
	ack := resp["ack"].(map[string]any)
	assert.Equal(t, true, ack["finished"])

	code, resp = s.call(t, "GET", "/api/v1/games/"+id, nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OVER", gameField(t, resp, "phase"))
	assert.NotNil(t, gameField(t, resp, "goal_order"))
	placements := gameField(t, resp, "placements").([]any)
	require.Len(t, placements, 1)
	assert.Equal(t, "alice", placements[0].(map[string]any)["player_id"])

	code, resp = s.call(t, "POST", "/api/v1/games/"+id+"/leave", nil, hostAuth)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "noop", resp["outcome"])
}

func TestErrorStatusCodes(t *testing.T) {
	s := newTestServer(t, nil)

	code, _ := s.call(t, "GET", "/api/v1/games/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.call(t, "POST", "/api/v1/games", map[string]any{"player_id": "p", "tile_count": 12}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.call(t, "POST", "/api/v1/games", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code, "empty body")

	code, _ = s.call(t, "POST", "/api/v1/games/clear", nil, map[string]string{"X-Admin-Key": "wrong"})
	assert.Equal(t, http.StatusForbidden, code)

	code, resp := s.call(t, "POST", "/api/v1/games/clear", nil, map[string]string{"X-Admin-Key": "admin"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), resp["cleared"])
}

func TestRenameOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	_, resp := s.call(t, "POST", "/api/v1/games", map[string]any{"player_id": "host"}, nil)
	id := gameField(t, resp, "id").(string)
	hostAuth := bearer(resp["token"].(string))
	_, resp = s.call(t, "POST", "/api/v1/games/"+id+"/join", map[string]any{"player_id": "someone"}, nil)
	someoneAuth := bearer(resp["token"].(string))

	code, resp := s.call(t, "POST", "/api/v1/games/"+id+"/name", map[string]any{"name": "Lunch race"}, hostAuth)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, "Lunch race", gameField(t, resp, "name"))

	code, _ = s.call(t, "POST", "/api/v1/games/"+id+"/name", map[string]any{"name": "x"}, someoneAuth)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRosterActionsIgnoreBodyPlayerID(t *testing.T) {
	s := newTestServer(t, nil)
	_, resp := s.call(t, "POST", "/api/v1/games", map[string]any{"player_id": "host"}, nil)
	id := gameField(t, resp, "id").(string)
	hostAuth := bearer(resp["token"].(string))
	_, resp = s.call(t, "POST", "/api/v1/games/"+id+"/join", map[string]any{"player_id": "mallory"}, nil)
	malloryAuth := bearer(resp["token"].(string))

	// no token at all
	for _, path := range []string{"/start", "/leave", "/name"} {
		code, _ := s.call(t, "POST", "/api/v1/games/"+id+path, map[string]any{"player_id": "host", "name": "x"}, nil)
		assert.Equal(t, http.StatusUnauthorized, code, path)
	}

	// a member's token claiming to be the host in the body
	code, _ := s.call(t, "POST", "/api/v1/games/"+id+"/start", map[string]any{"player_id": "host"}, malloryAuth)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.call(t, "POST", "/api/v1/games/"+id+"/name", map[string]any{"player_id": "host", "name": "pwned"}, malloryAuth)
	assert.Equal(t, http.StatusForbidden, code)

	// a token for another game
	_, resp = s.call(t, "POST", "/api/v1/games", map[string]any{"player_id": "host"}, nil)
	otherAuth := bearer(resp["token"].(string))
	code, _ = s.call(t, "POST", "/api/v1/games/"+id+"/leave", nil, otherAuth)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp = s.call(t, "POST", "/api/v1/games/"+id+"/start", nil, hostAuth)
	require.Equal(t, http.StatusOK, code, resp)

	// leave acts on the token's player, so the host stays and the game stays live
	code, resp = s.call(t, "POST", "/api/v1/games/"+id+"/leave", map[string]any{"player_id": "host"}, malloryAuth)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, "left", resp["outcome"])

	code, resp = s.call(t, "GET", "/api/v1/games/"+id, nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "LIVE", gameField(t, resp, "phase"))
	assert.Equal(t, "host", gameField(t, resp, "host_id"))
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestPlayerResults(t *testing.T) {
	s := newTestServer(t, nil)
	code, _ := s.call(t, "GET", "/api/v1/players/alice/results", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	one := 1
	s = newTestServer(t, &fakeResults{rows: []*domain.GameResult{{
		GameID: "g1", PlayerID: "alice", Status: domain.ResultFinished, Placement: &one, EndedAt: time.Now(),
	}}})
	code, resp := s.call(t, "GET", "/api/v1/players/alice/results", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp["results"], 1)

	s = newTestServer(t, &fakeResults{err: errors.New("db down")})
	code, _ = s.call(t, "GET", "/api/v1/players/alice/results", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestThemes(t *testing.T) {
	s := newTestServer(t, nil)
	code, resp := s.call(t, "GET", "/api/v1/themes", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, resp["themes"], "animals")
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	good := NewHealthHandler(map[string]Pinger{"store": fakePinger{}, "database": nil}, "test")
	bad := NewHealthHandler(map[string]Pinger{"store": fakePinger{err: errors.New("down")}}, "test")
	r.GET("/good/health", good.Health)
	r.GET("/good/readyz", good.Readiness)
	r.GET("/bad/health", bad.Health)
	r.GET("/bad/readyz", bad.Readiness)
	r.GET("/healthz", bad.Liveness)

	for path, want := range map[string]int{
		"/good/health": http.StatusOK,
		"/good/readyz": http.StatusOK,
		"/bad/health":  http.StatusServiceUnavailable,
		"/bad/readyz":  http.StatusServiceUnavailable,
		"/healthz":     http.StatusOK,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}

// signedInitData builds WebApp init data the way Telegram signs it.
func signedInitData(botToken, user string, at time.Time) string {
	v := url.Values{}
	v.Set("auth_date", strconv.FormatInt(at.Unix(), 10))
	v.Set("user", user)

	lines := []string{}
	for k := range v {
		lines = append(lines, k+"="+v.Get(k))
	}
	sort.Strings(lines)

	key := hmac.New(sha256.New, []byte("WebAppData"))
	key.Write([]byte(botToken))
	h := hmac.New(sha256.New, key.Sum(nil))
	h.Write([]byte(strings.Join(lines, "\n")))
	v.Set("hash", hex.EncodeToString(h.Sum(nil)))
	return v.Encode()
}

func TestTelegramLogin(t *testing.T) {
	s := newTestServer(t, nil)
	s.handler.TelegramBotToken = "1:bot"

	code, _ := s.call(t, "POST", "/api/v1/games", map[string]any{"player_id": "spoofed"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code, "init data required")

	data := signedInitData("1:bot", `{"id":77,"first_name":"Tanya"}`, time.Now())
	code, resp := s.call(t, "POST", "/api/v1/games", map[string]any{
		"player_id": "spoofed", "init_data": data,
	}, nil)
	require.Equal(t, http.StatusCreated, code, resp)
	assert.Equal(t, "tg:77", gameField(t, resp, "host_id"))
	members := gameField(t, resp, "members").([]any)
	assert.Equal(t, "Tanya", members[0].(map[string]any)["display_name"])

	claims, err := service.ParseJWT(resp["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "tg:77", claims.PlayerID)

	id := gameField(t, resp, "id").(string)
	forged := signedInitData("other-bot", `{"id":78}`, time.Now())
	code, _ = s.call(t, "POST", "/api/v1/games/"+id+"/join", map[string]any{"init_data": forged}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	joiner := signedInitData("1:bot", `{"id":78,"username":"kot"}`, time.Now())
	code, resp = s.call(t, "POST", "/api/v1/games/"+id+"/join", map[string]any{"init_data": joiner}, nil)
	require.Equal(t, http.StatusOK, code, resp)
	claims, err = service.ParseJWT(resp["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "tg:78", claims.PlayerID)
}
