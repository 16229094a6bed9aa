package ws

const (
	// client - server
	MsgMove = "move"
	MsgPing = "ping"

	// server - client
	MsgReady = "ready"
	MsgAck   = "ack"
	MsgPong  = "pong"
	MsgError = "error"
)
