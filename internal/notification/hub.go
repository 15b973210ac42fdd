// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package notification is the notification consumer's domain: every task
// event becomes a structured log line and a broadcast on the live activity
// feed. External channels (push, email, SMS) are deliberately out of scope;
// the feed gives UIs the same signal.
package notification

import (
	"context"
	"sort"
	"sync"

	"github.com/todomesh/todomesh/internal/logging"
	"github.com/todomesh/todomesh/internal/metrics"
)

// Message types on the live feed.
const (
	MessageTypeNotification = "notification"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// Message is one frame on the live feed.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of connected live-feed clients and fans broadcasts
// out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until the context is cancelled, then closes
// every client so a supervisor can restart the hub without orphaned
// connections. Lifecycle events take priority over broadcasts so client
// state is consistent before messages fan out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAllClients()
			return ctx.Err()
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("Live feed client connected")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("Live feed client disconnected")
}

// broadcastToClients delivers to clients in id order. Slow clients are
// dropped rather than allowed to block the rest.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.RLock()
	ordered := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		ordered = append(ordered, client)
	}
	h.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })

	for _, client := range ordered {
		select {
		case client.send <- message:
		default:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logging.Warn().Uint64("client_id", client.id).Msg("Slow live feed client dropped")
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketConnections.Set(0)
}

// Broadcast queues a message for every connected client. Never blocks; if
// the hub's queue is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("type", msg.Type).Msg("Live feed broadcast queue full, message dropped")
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
