// backend/pkg/websocket/hub.go
package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Message represents the standard message format exchanged over WebSocket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer in front of the API.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type UserInfo struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// PartyService is what the hub needs from the quiz sessions.
type PartyService interface {
	PartyExists(code string) bool
	ShuffleParty(code string, seed *uint32) (uint32, error)
}

type Hub struct {
	clients       map[*Client]bool
	partyRooms    map[string]map[*Client]bool
	clientsByUser map[string]*Client
	register      chan *Client
	unregister    chan *Client
	quit          chan struct{}
	mu            sync.RWMutex
	partyService  PartyService
}

func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		partyRooms:    make(map[string]map[*Client]bool),
		clientsByUser: make(map[string]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		quit:          make(chan struct{}),
	}
}

func (h *Hub) SetPartyService(service PartyService) {
	h.partyService = service
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	partyCode string
	user      *UserInfo
	done      chan struct{}
}

// BroadcastToParty queues message for every client in the room. Clients that
// can't keep up are dropped.
func (h *Hub) BroadcastToParty(partyCode string, message []byte) {
	h.mu.RLock()
	room := h.partyRooms[partyCode]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		log.Printf("No clients found for party room: %s", partyCode)
		return
	}

	for _, client := range clients {
		func(c *Client) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Recovered from panic while sending message to client %p: %v", c, r)
				}
			}()

			select {
			case c.send <- message:
			default:
				log.Printf("Send channel full for client %p; unregistering client", c)
				go h.Unregister(c)
			}
		}(client)
	}
}

// BroadcastMessage marshals the message and then broadcasts it.
func (h *Hub) BroadcastMessage(partyCode string, messageType string, data interface{}) {
	messageBytes, err := json.Marshal(Message{Type: messageType, Data: data})
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}
	log.Printf("Broadcasting %s to party %s", messageType, partyCode)
	h.BroadcastToParty(partyCode, messageBytes)
}

func (h *Hub) SendMessageToUser(userID string, messageType string, data interface{}) {
	h.mu.RLock()
	client, exists := h.clientsByUser[userID]
	h.mu.RUnlock()
	if !exists || client == nil {
		log.Printf("No active client found for user %s", userID)
		return
	}

	messageBytes, err := json.Marshal(Message{Type: messageType, Data: data})
	if err != nil {
		log.Printf("Error marshaling message for user %s: %v", userID, err)
		return
	}

	select {
	case client.send <- messageBytes:
	default:
		log.Printf("Send channel full for user %s; unregistering client", userID)
		go h.Unregister(client)
	}
}

// SendParticipantList tells a room who is connected.
func (h *Hub) SendParticipantList(partyCode string) {
	h.mu.RLock()
	room, exists := h.partyRooms[partyCode]
	if !exists {
		h.mu.RUnlock()
		return
	}
	participants := make([]UserInfo, 0, len(room))
	for client := range room {
		if client.user != nil {
			participants = append(participants, *client.user)
		}
	}
	connections := len(room)
	h.mu.RUnlock()

	h.BroadcastMessage(partyCode, "participant_list", map[string]interface{}{
		"participants": participants,
		"count":        len(participants),
	})
	h.BroadcastMessage(partyCode, "participant_update", map[string]interface{}{
		"count": connections,
	})
}

// ParticipantCount is the number of open connections in a room.
func (h *Hub) ParticipantCount(partyCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.partyRooms[partyCode])
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Run listens on the register and unregister channels until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if _, exists := h.partyRooms[client.partyCode]; !exists {
				h.partyRooms[client.partyCode] = make(map[*Client]bool)
				log.Printf("Created room for party %s", client.partyCode)
			}
			h.partyRooms[client.partyCode][client] = true
			log.Printf("Client %p joined party %s. Total: %d", client, client.partyCode, len(h.partyRooms[client.partyCode]))
			h.mu.Unlock()
			go h.SendParticipantList(client.partyCode)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				if room, exists := h.partyRooms[client.partyCode]; exists {
					delete(room, client)
					if len(room) == 0 {
						delete(h.partyRooms, client.partyCode)
					}
				}
				if client.user != nil && h.clientsByUser[client.user.UserID] == client {
					delete(h.clientsByUser, client.user.UserID)
				}
				delete(h.clients, client)
				close(client.send)
				close(client.done)
				log.Printf("Client %p left party %s", client, client.partyCode)
			}
			h.mu.Unlock()
			go h.SendParticipantList(client.partyCode)

		case <-h.quit:
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.quit)
}

func NewClient(hub *Hub, conn *websocket.Conn, partyCode string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		partyCode: partyCode,
		done:      make(chan struct{}),
	}
}

// HandleWebSocket upgrades the HTTP connection and joins the party room.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	partyCode := mux.Vars(r)["partyCode"]
	if partyCode == "" {
		http.Error(w, "Missing party code", http.StatusBadRequest)
		return
	}
	if h.partyService != nil && !h.partyService.PartyExists(partyCode) {
		http.Error(w, "Party not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := NewClient(h, conn, partyCode)
	h.Register(client)

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Unexpected close: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

type joinData struct {
	User UserInfo `json:"user"`
}

type shuffleData struct {
	Seed *uint32 `json:"seed"`
}

type answerData struct {
	CardIndex int    `json:"cardIndex"`
	UserID    string `json:"userId"`
}

func (c *Client) handleMessage(message []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	switch msg.Type {
	case "join_party":
		var data joinData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.User.UserID == "" {
			log.Printf("Invalid join_party payload from client %p", c)
			return
		}
		c.hub.mu.Lock()
		user := data.User
		c.user = &user
		c.hub.clientsByUser[user.UserID] = c
		c.hub.mu.Unlock()
		log.Printf("User %s joined party %s", user.Username, c.partyCode)
		go c.hub.SendParticipantList(c.partyCode)

	case "shuffle":
		var data shuffleData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				log.Printf("Invalid shuffle payload from client %p: %v", c, err)
				return
			}
		}
		if c.hub.partyService == nil {
			log.Printf("Party service not initialized")
			return
		}
		if _, err := c.hub.partyService.ShuffleParty(c.partyCode, data.Seed); err != nil {
			log.Printf("Error shuffling party %s: %v", c.partyCode, err)
		}

	case "answer_submitted":
		var data answerData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			log.Printf("Invalid answer_submitted payload from client %p: %v", c, err)
			return
		}
		c.hub.BroadcastMessage(c.partyCode, "answer_update", data)

	default:
		log.Printf("Unknown message type %q from client %p", msg.Type, c)
	}
}

func (c *Client) writePump() {
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

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				log.Printf("Error getting writer for client %p: %v", c, err)
				return
			}
			if _, err := w.Write(message); err != nil {
				log.Printf("Error writing message to client %p: %v", c, err)
				return
			}
			if err := w.Close(); err != nil {
				log.Printf("Error closing writer for client %p: %v", c, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
