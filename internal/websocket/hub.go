package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"circle-chat/pkg/events"
)

// Hub fans session events out to every socket subscribed to a channel.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// channels maps channel name to set of clients subscribed to it
	channels map[string]map[*Client]struct{}

	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		channels:   make(map[string]map[*Client]struct{}),
		unregister: make(chan *Client, 256),
	}
}

// Run processes disconnections until ctx ends, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, client := range h.clients {
				h.detach(client)
			}
			h.mu.Unlock()
			return
		case client := <-h.unregister:
			h.mu.Lock()
			h.detach(client)
			h.mu.Unlock()
		}
	}
}

// Register adds client to its channels. initial runs under the hub lock so no broadcast
// can slip in between the snapshot and the subscription.
func (h *Hub) Register(client *Client, initial func() []events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	for _, channel := range client.GetChannels() {
		if _, ok := h.channels[channel]; !ok {
			h.channels[channel] = make(map[*Client]struct{})
		}
		h.channels[channel][client] = struct{}{}
	}
	if initial == nil {
		return
	}
	for _, ev := range initial() {
		if payload, err := json.Marshal(ev); err == nil {
			client.SendMessage(payload)
		}
	}
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends a message to all clients subscribed to a channel
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.mu.RLock()
	for c := range h.channels[channel] {
		c.SendMessage(payload)
	}
	h.mu.RUnlock()
}

// Publish delivers ev to the local sockets of channel.
func (h *Hub) Publish(ctx context.Context, channel string, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	h.Broadcast(channel, payload)
	return nil
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GetChannelSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// detach must be called with h.mu held.
func (h *Hub) detach(client *Client) {
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for _, channel := range client.GetChannels() {
		if subscribers, ok := h.channels[channel]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	delete(h.clients, client.ID)
	close(client.Send)
}
