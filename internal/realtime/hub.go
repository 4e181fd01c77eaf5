package realtime

import (
	"context"

	"github.com/rs/zerolog"
)

// Hub manages WebSocket clients and routes execution events to the clients watching them.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// executionID -> set of subscribed clients
	subscriptions map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscribeMsg
	unsubscribe chan subscribeMsg
	broadcast   chan broadcastMsg
	logger      zerolog.Logger
}

type subscribeMsg struct {
	client      *Client
	executionID string
}

type broadcastMsg struct {
	executionID string
	payload     []byte
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan subscribeMsg),
		unsubscribe:   make(chan subscribeMsg),
		broadcast:     make(chan broadcastMsg, 256),
		logger:        logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug().Int("clients", len(h.clients)).Msg("Client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Debug().Int("clients", len(h.clients)).Msg("Client unregistered")
			}

		case msg := <-h.subscribe:
			if !h.clients[msg.client] {
				continue
			}
			if _, ok := h.subscriptions[msg.executionID]; !ok {
				h.subscriptions[msg.executionID] = make(map[*Client]bool)
			}
			h.subscriptions[msg.executionID][msg.client] = true
			h.logger.Debug().Str("executionId", msg.executionID).Int("subscribers", len(h.subscriptions[msg.executionID])).Msg("Client subscribed")

		case msg := <-h.unsubscribe:
			if subs, ok := h.subscriptions[msg.executionID]; ok {
				delete(subs, msg.client)
				if len(subs) == 0 {
					delete(h.subscriptions, msg.executionID)
				}
			}

		case msg := <-h.broadcast:
			for client := range h.subscriptions[msg.executionID] {
				select {
				case client.send <- msg.payload:
				default:
					// Client buffer full, remove it
					h.logger.Warn().Str("executionId", msg.executionID).Msg("Dropping slow realtime client")
					h.drop(client)
				}
			}
		}
	}
}

// Publish queues payload for every client watching executionID.
func (h *Hub) Publish(executionID string, payload []byte) {
	h.broadcast <- broadcastMsg{executionID: executionID, payload: payload}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	for executionID, subs := range h.subscriptions {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, executionID)
		}
	}
}
