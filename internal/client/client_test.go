package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"swapit/internal/broadcast"
	"swapit/internal/config"
	"swapit/internal/domain"
	httpapi "swapit/internal/http"
	"swapit/internal/service"
	"swapit/internal/store"
	"swapit/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service.InitJWT("test-secret")

	hub := ws.NewHub()
	st := store.NewMemoryStore()
	svc := service.NewSessionService(st, broadcast.NewLocalGateway(hub), service.SessionConfig{})

	r := gin.New()
	httpapi.RegisterRoutes(r, &config.Config{
		APIRateLimit:   1000,
		APIRateWindow:  time.Minute,
		MoveRateLimit:  1000,
		MoveRateWindow: time.Minute,
	}, httpapi.Deps{Sessions: svc, Hub: hub})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, st
}

func nextOf(t *testing.T, c *Conn, kind broadcast.Kind) *broadcast.Envelope {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case env, ok := <-c.Events():
			require.True(t, ok, "connection closed waiting for %s", kind)
			if env.Type == kind {
				return env
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s", kind)
		}
	}
}

func TestWSURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":      "ws://localhost:8080/ws?token=abc",
		"https://swap.example.com/":  "wss://swap.example.com/ws?token=abc",
		"ws://127.0.0.1:9000/prefix": "ws://127.0.0.1:9000/prefix/ws?token=abc",
	}
	for in, want := range cases {
		got, err := WSURL(in, "abc")
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := WSURL("ftp://host", "abc")
	assert.Error(t, err)
}

func TestPlayerRacesToGameOver(t *testing.T) {
	ts, st := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	api := NewAPI(ts.URL)
	game, hostToken, err := api.CreateGame(ctx, service.CreateRequest{
		PlayerID: "host",
		Options:  domain.Options{TileCount: 5, PlacementCount: 1},
	})
	require.NoError(t, err)

	_, token, err := api.JoinGame(ctx, game.ID, service.JoinRequest{PlayerID: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	conn, err := Dial(ctx, ts.URL, token, Options{Timeout: time.Second, Retries: 2})
	require.NoError(t, err)
	defer conn.Close()

	started, err := api.StartGame(ctx, game.ID, hostToken)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseLive, started.Phase)
	nextOf(t, conn, broadcast.KindGameStarted)

	sess, err := st.GetSession(ctx, game.ID)
	require.NoError(t, err)
	goal := sess.GoalOrder.Clone()

	near := goal.Clone()
	near[0], near[1] = near[1], near[0]
	ack, err := conn.Move(ctx, near)
	require.NoError(t, err)
	assert.Equal(t, 1, ack.MoveCount)
	assert.Equal(t, len(goal)-2, ack.PositionsCorrect)
	assert.False(t, ack.Finished)

	ack, err = conn.Move(ctx, goal)
	require.NoError(t, err)
	assert.True(t, ack.Finished)
	assert.Equal(t, 2, ack.MoveCount)

	env := nextOf(t, conn, broadcast.KindGameOver)
	over := env.Event.(broadcast.GameOver)
	require.Len(t, over.Placements, 1)
	assert.Equal(t, "alice", over.Placements[0].PlayerID)
	assert.Equal(t, domain.EndCompleted, over.Reason)
	assert.Equal(t, goal, over.GoalOrder)

	final, err := api.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseOver, final.Phase)

	_, err = api.GetGame(ctx, "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

// silentServer answers the handshake and then swallows moves.
func silentServer(t *testing.T, moves *atomic.Int32, lastID *atomic.Value) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]string{"type": "ready"})
		for {
			var in struct {
				Type      string `json:"type"`
				RequestID string `json:"request_id"`
			}
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			if in.Type == "move" {
				moves.Add(1)
				if prev, ok := lastID.Load().(string); ok && prev != in.RequestID {
					t.Errorf("retry changed request id: %s -> %s", prev, in.RequestID)
				}
				lastID.Store(in.RequestID)
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestMoveRetriesThenGivesUp(t *testing.T) {
	var moves atomic.Int32
	var lastID atomic.Value
	ts := silentServer(t, &moves, &lastID)

	conn, err := Dial(context.Background(), ts.URL, "tok", Options{
		Timeout:    50 * time.Millisecond,
		Retries:    2,
		MinBackoff: 5 * time.Millisecond,
		MaxBackoff: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Move(context.Background(), domain.Order{0, 1, 2})
	assert.ErrorIs(t, err, ErrNoAck)
	assert.Equal(t, int32(3), moves.Load())
}

func TestMoveHonoursContext(t *testing.T) {
	var moves atomic.Int32
	var lastID atomic.Value
	ts := silentServer(t, &moves, &lastID)

	conn, err := Dial(context.Background(), ts.URL, "tok", Options{Timeout: time.Second, Retries: 5})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = conn.Move(ctx, domain.Order{0, 1, 2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
