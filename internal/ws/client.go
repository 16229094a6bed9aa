package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"swapit/internal/broadcast"
	"swapit/internal/logger"
	"swapit/internal/service"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	moveTimeout    = 5 * time.Second
)

// Mover applies a submitted move. *service.SessionService satisfies it.
type Mover interface {
	SubmitMove(ctx context.Context, req service.MoveRequest) (*service.MoveAck, bool)
}

type Client struct {
	GameID   string
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte

	Hub   *Hub
	Mover Mover
	Done  chan struct{}

	topics    []string
	closeOnce sync.Once
}

func NewClient(claims service.PlayerClaims, conn *websocket.Conn, hub *Hub, mover Mover) *Client {
	return &Client{
		GameID:   claims.GameID,
		PlayerID: claims.PlayerID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
		Mover:    mover,
		Done:     make(chan struct{}),
	}
}

// Run subscribes the client and pumps messages until the connection drops.
func (c *Client) Run() {
	go c.writePump()

	c.Hub.Register(c, broadcast.GameTopic(c.GameID), broadcast.LobbyTopic)

	// explicit ready handshake so clients know the subscription is live
	c.sendJSON(ControlMessage{Type: MsgReady})

	c.readPump()
}

func (c *Client) sendJSON(v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("Client.sendJSON: player=%s marshal error: %v", c.PlayerID, err)
		return
	}
	select {
	case c.Send <- raw:
	case <-c.Done:
	case <-time.After(writeWait):
		log.Printf("Client.sendJSON: player=%s timeout queuing reply", c.PlayerID)
	}
}

func (c *Client) readPump() {
	defer c.disconnect()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Client.readPump: player=%s game=%s read error: %v", c.PlayerID, c.GameID, err)
			}
			return
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(raw []byte) {
	var in InboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		c.sendJSON(ErrorMessage{Type: MsgError, Message: "malformed message"})
		return
	}

	switch in.Type {
	case MsgPing:
		c.sendJSON(ControlMessage{Type: MsgPong})
	case MsgMove:
		ctx, cancel := context.WithTimeout(logger.WithRequestID(context.Background(), in.RequestID), moveTimeout)
		ack, ok := c.Mover.SubmitMove(ctx, service.MoveRequest{
			GameID:    c.GameID,
			PlayerID:  c.PlayerID,
			RequestID: in.RequestID,
			Order:     in.Order,
		})
		cancel()
		// dropped moves get no reply; the client retries after its timeout
		if !ok {
			return
		}
		c.sendJSON(AckMessage{Type: MsgAck, MoveAck: *ack})
	default:
		c.sendJSON(ErrorMessage{Type: MsgError, Message: "unknown message type"})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("Client.writePump: player=%s write error: %v", c.PlayerID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.Done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Client) disconnect() {
	c.closeOnce.Do(func() {
		c.Hub.Unregister(c)
		close(c.Done)
		_ = c.Conn.Close()
	})
}
