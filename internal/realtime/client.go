package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufSize    = 256

	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
)

var (
	errUnknownAction    = errors.New("unknown action")
	errMissingExecution = errors.New("missing executionId")
)

// Client represents a single WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	logger zerolog.Logger
}

// incomingMsg is a command from the client.
type incomingMsg struct {
	Action      string `json:"action"`
	ExecutionID string `json:"executionId"`
}

// outgoingMsg is the envelope sent to the client.
type outgoingMsg struct {
	Type        string          `json:"type"`
	ExecutionID string          `json:"executionId"`
	Payload     json.RawMessage `json:"payload"`
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufSize),
		userID: userID,
		logger: hub.logger.With().Str("userId", userID).Logger(),
	}
}

// ReadPump reads messages from the WebSocket connection.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("ws read error")
			}
			break
		}

		msg, err := parseCommand(message)
		if err != nil {
			c.logger.Warn().Err(err).Msg("ws bad command")
			continue
		}
		sub := subscribeMsg{client: c, executionID: msg.ExecutionID}
		if msg.Action == actionSubscribe {
			c.hub.subscribe <- sub
		} else {
			c.hub.unsubscribe <- sub
		}
	}
}

func parseCommand(raw []byte) (incomingMsg, error) {
	var msg incomingMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return incomingMsg{}, fmt.Errorf("decode command: %w", err)
	}
	if msg.Action != actionSubscribe && msg.Action != actionUnsubscribe {
		return incomingMsg{}, fmt.Errorf("%w: %q", errUnknownAction, msg.Action)
	}
	if msg.ExecutionID == "" {
		return incomingMsg{}, errMissingExecution
	}
	return msg, nil
}

// WritePump writes messages to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
