package broadcast

import (
	"context"
	"strings"
	"testing"
	"time"

	"swapit/internal/domain"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSink chan delivered

type delivered struct {
	topic string
	raw   []byte
}

func (c chanSink) Deliver(topic string, raw []byte) {
	c <- delivered{topic: topic, raw: raw}
}

func TestEncodeRejectsIncompleteEvents(t *testing.T) {
	_, err := Encode(GameTopic("g1"), ProgressUpdate{})
	assert.Error(t, err)

	_, err = Encode(GameTopic("g1"), GameOver{
		Reason:     domain.EndCompleted,
		Placements: []domain.Placement{{PlayerID: "a", Rank: 2}},
	})
	assert.Error(t, err, "ranks must start at 1")

	_, err = Encode(GameTopic("g1"), nil)
	assert.Error(t, err)
}

func TestGameStartedWithholdsGoal(t *testing.T) {
	raw, err := Encode(GameTopic("g1"), GameStarted{
		Tiles:          map[int]string{0: "a", 1: "b", 2: "c", 3: "d"},
		InitialOrder:   domain.Order{1, 0, 3, 2},
		PlacementCount: 2,
	})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "goal")

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, KindGameStarted, env.Type)
	assert.Equal(t, "g1", env.GameID)
	started, ok := env.Event.(GameStarted)
	require.True(t, ok)
	assert.Equal(t, "c", started.Tiles[2])
	assert.Equal(t, domain.Order{1, 0, 3, 2}, started.InitialOrder)
}

func TestDecodeRejectsUnknownAndInvalid(t *testing.T) {
	_, err := Decode([]byte(`{"type":"CHAT","topic":"lobby","payload":{}}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"PLAYER_FINISHED","topic":"game.g1","payload":{"player_id":"a","placement":0}}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestLobbyEnvelopeCarriesGameID(t *testing.T) {
	raw, err := Encode(LobbyTopic, LobbyUpdated{GameID: "g9", Removed: true})
	require.NoError(t, err)
	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "g9", env.GameID)
	assert.Equal(t, LobbyTopic, env.Topic)
}

func TestLocalGatewayDelivers(t *testing.T) {
	sink := make(chanSink, 1)
	gw := NewLocalGateway(sink)

	require.NoError(t, gw.Publish(context.Background(), GameTopic("g1"), HostLeft{HostID: "h"}))
	got := <-sink
	assert.Equal(t, "game.g1", got.topic)
	assert.True(t, strings.Contains(string(got.raw), `"HOST_LEFT"`))
}

func TestRedisGatewayRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	gw := NewRedisGateway(rdb, "test")
	sink := make(chanSink, 4)
	ready := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = gw.Relay(ctx, sink, ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("relay never subscribed")
	}

	require.NoError(t, gw.Publish(ctx, GameTopic("g1"), ProgressUpdate{PlayerID: "a", MoveCount: 3, PositionsCorrect: 1}))

	select {
	case got := <-sink:
		assert.Equal(t, "game.g1", got.topic)
		env, err := Decode(got.raw)
		require.NoError(t, err)
		assert.Equal(t, ProgressUpdate{PlayerID: "a", MoveCount: 3, PositionsCorrect: 1}, env.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("event not relayed")
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, GameTopic("g1"), HostLeft{HostID: "h"}))
	require.NoError(t, r.Publish(ctx, GameTopic("g1"), GameCanceled{Reason: "host_left"}))
	assert.Error(t, r.Publish(ctx, GameTopic("g1"), HostLeft{}))

	assert.Equal(t, []Kind{KindHostLeft, KindGameCanceled}, r.Kinds(GameTopic("g1")))
	ev, ok := r.Last(GameTopic("g1"), KindGameCanceled)
	require.True(t, ok)
	assert.Equal(t, "host_left", ev.(GameCanceled).Reason)
}
