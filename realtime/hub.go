// Package realtime fans out server events to websocket subscribers of a channel
// (a group room or a tournament).
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

const (
	EventMessageCreated = "message.created"
	EventMessageUpdated = "message.updated"
	EventMessageDeleted = "message.deleted"
	EventRoomDeleted    = "room.deleted"
	EventGroupsUpdated  = "groups.updated"
	EventAccessRevoked  = "access.revoked"
)

// Envelope is the frame written to subscribers.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

func RoomChannel(roomID int) string {
	return fmt.Sprintf("room_%d", roomID)
}

func TournamentChannel(tournamentID int) string {
	return fmt.Sprintf("tournament_%d", tournamentID)
}

// Notifier is what services use to publish events. Revoke drops the
// subscriptions a user holds on channel after losing access to it.
type Notifier interface {
	Publish(channel, eventType string, payload interface{})
	Revoke(channel string, userID int)
}

type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	logger     *slog.Logger
	done       chan struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Subscribe registers the client unless the hub has stopped.
func (h *Hub) Subscribe(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unsubscribe(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			h.logger.Debug("client registered", slog.String("room", client.Room), slog.Int("clients", len(h.rooms[client.Room])))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if roomClients, ok := h.rooms[client.Room]; ok {
				if _, okClient := roomClients[client]; okClient {
					client.close()
					delete(roomClients, client)
					if len(roomClients) == 0 {
						delete(h.rooms, client.Room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, clients := range h.rooms {
		for client := range clients {
			client.close()
		}
		delete(h.rooms, room)
	}
}

// ClientCount returns the number of subscribers of a channel.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Revoke sends access.revoked to every connection of userID on channel and
// closes them. The write pump flushes the frame before the close frame.
func (h *Hub) Revoke(channel string, userID int) {
	if userID <= 0 {
		return
	}
	frame, err := json.Marshal(Envelope{Type: EventAccessRevoked, Payload: map[string]int{"user_id": userID}, RoomID: channel})
	if err != nil {
		h.logger.Error("failed to marshal revoke frame", slog.String("room", channel), slog.Any("error", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	roomClients, ok := h.rooms[channel]
	if !ok {
		return
	}
	revoked := 0
	for client := range roomClients {
		if client.UserID != userID {
			continue
		}
		client.trySend(frame)
		client.close()
		delete(roomClients, client)
		revoked++
	}
	if len(roomClients) == 0 {
		delete(h.rooms, channel)
	}
	if revoked > 0 {
		h.logger.Info("subscriptions revoked", slog.String("room", channel), slog.Int("user_id", userID), slog.Int("clients", revoked))
	}
}

// Publish отправляет событие всем клиентам в указанной комнате.
func (h *Hub) Publish(channel, eventType string, payload interface{}) {
	h.BroadcastToRoom(channel, Envelope{Type: eventType, Payload: payload, RoomID: channel})
}

// BroadcastToRoom отправляет сообщение всем клиентам в указанной комнате.
// Slow clients whose buffer is full miss the frame.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomClients, ok := h.rooms[roomID]
	if !ok {
		return
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", slog.String("room", roomID), slog.Any("error", err))
		return
	}

	for client := range roomClients {
		if !client.trySend(messageBytes) {
			h.logger.Warn("client send buffer full, frame dropped", slog.String("room", roomID))
		}
	}
}
