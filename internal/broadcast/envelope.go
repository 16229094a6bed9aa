package broadcast

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const LobbyTopic = "lobby"

// GameTopic is the per-session topic.
func GameTopic(gameID string) string {
	return "game." + gameID
}

// Envelope is the wire form of an event.
type Envelope struct {
	Type    Kind            `json:"type"`
	Topic   string          `json:"topic"`
	GameID  string          `json:"game_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
	SentAt  int64           `json:"sent_at"`

	Event Event `json:"-"`
}

func gameIDOf(topic string, ev Event) string {
	if id, ok := strings.CutPrefix(topic, "game."); ok {
		return id
	}
	if lu, ok := ev.(LobbyUpdated); ok {
		return lu.GameID
	}
	return ""
}

// Encode validates ev and renders its envelope.
func Encode(topic string, ev Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("nil event")
	}
	if err := ev.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", ev.Kind(), err)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:    ev.Kind(),
		Topic:   topic,
		GameID:  gameIDOf(topic, ev),
		Payload: payload,
		SentAt:  time.Now().UnixMilli(),
	})
}

// Decode parses and validates an envelope, filling Event with the concrete
// variant for its type.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	var ev Event
	var err error
	switch env.Type {
	case KindPlayerJoined:
		ev, err = decodeAs[PlayerJoined](env.Payload)
	case KindPlayerLeft:
		ev, err = decodeAs[PlayerLeft](env.Payload)
	case KindGameStarted:
		ev, err = decodeAs[GameStarted](env.Payload)
	case KindProgressUpdate:
		ev, err = decodeAs[ProgressUpdate](env.Payload)
	case KindPlayerFinished:
		ev, err = decodeAs[PlayerFinished](env.Payload)
	case KindGameOver:
		ev, err = decodeAs[GameOver](env.Payload)
	case KindGameCanceled:
		ev, err = decodeAs[GameCanceled](env.Payload)
	case KindHostLeft:
		ev, err = decodeAs[HostLeft](env.Payload)
	case KindLobbyUpdated:
		ev, err = decodeAs[LobbyUpdated](env.Payload)
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := ev.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", env.Type, err)
	}
	env.Event = ev
	return &env, nil
}

func decodeAs[T Event](payload json.RawMessage) (Event, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}
