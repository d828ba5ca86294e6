package socket

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"compliancedocs/internal/folder/model"
	"compliancedocs/pkg/logger"
)

const PresenceUpdateType = "PRESENCE_UPDATE"

// FeedMessage is the wire envelope sent to event feed subscribers.
type FeedMessage struct {
	Type     string          `json:"type"`
	FolderID string          `json:"folder_id"`
	Payload  json.RawMessage `json:"payload"`
}

// WatcherStatus describes one subscriber currently watching a folder.
type WatcherStatus struct {
	ActorID  string    `json:"actor_id"`
	LastSeen time.Time `json:"last_seen"`
}

// Hub fans domain events out to WebSocket subscribers grouped per folder.
// It is a pure notification sink: subscribers only receive; all mutations
// go through the HTTP API.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan model.Event
	Register   chan *Client
	Unregister chan *Client
	db         *sql.DB
	mu         sync.Mutex
	Watchers   map[string]map[string]WatcherStatus // folderID -> actorID -> status
}

func NewHub(db *sql.DB) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan model.Event, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		db:         db,
		Watchers:   make(map[string]map[string]WatcherStatus),
	}
}

// Publish hands a domain event to the hub without blocking the caller.
// When the hub cannot keep up the event is dropped and logged; delivery is
// best-effort and never fails the state transition that produced it.
func (h *Hub) Publish(event model.Event) {
	select {
	case h.Broadcast <- event:
	default:
		logger.Sugar.Warnf("Event feed backlog full, dropping %s for folder %s", event.Type, event.FolderID)
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.FolderID] == nil {
				h.Rooms[client.FolderID] = make(map[*Client]bool)
				h.Watchers[client.FolderID] = make(map[string]WatcherStatus)
			}
			h.Rooms[client.FolderID][client] = true
			h.Watchers[client.FolderID][client.ActorID] = WatcherStatus{ActorID: client.ActorID, LastSeen: time.Now()}
			h.mu.Unlock()

			h.broadcastPresence(client.FolderID)

		case client := <-h.Unregister:
			h.dropClient(client)

		case event := <-h.Broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling event payload: %v", err)
				continue
			}
			envelope, err := json.Marshal(FeedMessage{Type: event.Type, FolderID: event.FolderID, Payload: payload})
			if err != nil {
				logger.Sugar.Errorf("Error marshalling event envelope: %v", err)
				continue
			}

			// Collect recipients under the lock, write outside it.
			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.Rooms[event.FolderID]))
			for client := range h.Rooms[event.FolderID] {
				clientsToSend = append(clientsToSend, client)
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- envelope:
				default:
					// A lagging subscriber must not block the hub. Dropped
					// inline; going through Unregister here would deadlock.
					logger.Sugar.Warnf("Subscriber %s's send buffer is full. Unregistering.", client.ActorID)
					h.dropClient(client)
				}
			}
		}
	}
}

// dropClient removes a subscriber from its folder room and closes its send
// channel. Safe to call from the Run goroutine only.
func (h *Hub) dropClient(client *Client) {
	folderID := client.FolderID
	h.mu.Lock()
	if _, ok := h.Rooms[folderID][client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.Rooms[folderID], client)
	delete(h.Watchers[folderID], client.ActorID)
	close(client.Send)

	empty := len(h.Rooms[folderID]) == 0
	if empty {
		delete(h.Rooms, folderID)
		delete(h.Watchers, folderID)
		logger.Sugar.Infof("Closed empty event feed for folder %s", folderID)
	}
	h.mu.Unlock()

	if !empty {
		h.broadcastPresence(folderID)
	}
}

func (h *Hub) broadcastPresence(folderID string) {
	var statuses []WatcherStatus
	var clientsToSend []*Client

	h.mu.Lock()
	if _, ok := h.Watchers[folderID]; ok {
		statuses = make([]WatcherStatus, 0, len(h.Watchers[folderID]))
		for _, st := range h.Watchers[folderID] {
			statuses = append(statuses, st)
		}
		clientsToSend = make([]*Client, 0, len(h.Rooms[folderID]))
		for client := range h.Rooms[folderID] {
			clientsToSend = append(clientsToSend, client)
		}
	}
	h.mu.Unlock()

	if len(clientsToSend) == 0 {
		return
	}

	payload, err := json.Marshal(statuses)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence payload: %v", err)
		return
	}
	envelope, _ := json.Marshal(FeedMessage{Type: PresenceUpdateType, FolderID: folderID, Payload: payload})

	for _, client := range clientsToSend {
		select {
		case client.Send <- envelope:
		default:
			logger.Sugar.Warnf("Subscriber %s's send buffer was full during presence update.", client.ActorID)
		}
	}
}
