package socket

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"compliancedocs/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one event feed subscription: a single actor watching a single
// folder. Subscribers are read-only; inbound frames are discarded.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	FolderID string
	ActorID  string
	Send     chan []byte
}

// ServeWs upgrades the connection and subscribes the actor to the folder's
// event feed. The folder must exist.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, actorID string) {
	folderID := r.URL.Query().Get("folderId")
	if folderID == "" {
		http.Error(w, "Missing folderId parameter", http.StatusBadRequest)
		return
	}

	var exists bool
	err := hub.db.QueryRow("SELECT EXISTS(SELECT 1 FROM folders WHERE id = $1)", folderID).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Database error checking folder %s: %v", folderID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if !exists {
		logger.Sugar.Warnf("Subscription rejected: folder %s not found", folderID)
		http.Error(w, "Folder not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:      hub,
		Conn:     conn,
		FolderID: folderID,
		ActorID:  actorID,
		Send:     make(chan []byte, 256),
	}
	client.Hub.Register <- client

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection until it closes. The feed carries no
// client-to-server messages; reading only services pings and close frames.
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			c.Conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
