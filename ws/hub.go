package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type Client struct {
	Conn *websocket.Conn
	Send chan []byte
}

type Hub struct {
	Clients       map[string]map[*websocket.Conn]*Client // Theo từng sessionID
	GlobalClients map[*websocket.Conn]*Client            // Dành cho broadcast chung
	Mutex         sync.RWMutex
}

var H = Hub{
	Clients:       make(map[string]map[*websocket.Conn]*Client),
	GlobalClients: make(map[*websocket.Conn]*Client),
}

// Struct gửi tiến trình sinh nội dung của một phiên học
type GenerationProgressUpdate struct {
	SessionID       string   `json:"session_id"`
	Status          string   `json:"status"` // generating|done|error
	GeneratedTopics []string `json:"generated_topics,omitempty"`
	RemainingTopics int      `json:"remaining_topics"`
	Progress        int      `json:"progress"`
	Error           string   `json:"error,omitempty"`
}

// Register theo sessionID riêng
func (h *Hub) Register(sessionID string, conn *websocket.Conn) {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	if _, ok := h.Clients[sessionID]; !ok {
		h.Clients[sessionID] = make(map[*websocket.Conn]*Client)
	}

	client := &Client{
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	h.Clients[sessionID][conn] = client

	// Handler giữ vòng đọc, hub chỉ lo ghi
	go h.writePump(client)
}

// Register global cho trang danh sách phiên học
func (h *Hub) RegisterGlobal(conn *websocket.Conn) {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	client := &Client{
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	h.GlobalClients[conn] = client

	go h.writePump(client)
}

// Broadcast theo sessionID
func (h *Hub) Broadcast(sessionID string, messageType int, data []byte) {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()

	if clients, ok := h.Clients[sessionID]; ok {
		for _, client := range clients {
			select {
			case client.Send <- data:
			default:
			}
		}
	}
}

// Broadcast toàn bộ global clients (danh sách)
func (h *Hub) BroadcastGlobal(messageType int, data []byte) {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()

	for _, client := range h.GlobalClients {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// GetStats trả về số kết nối đang mở, dùng cho health check
func (h *Hub) GetStats() map[string]int {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()

	sessionConns := 0
	for _, clients := range h.Clients {
		sessionConns += len(clients)
	}
	return map[string]int{
		"sessions":            len(h.Clients),
		"session_connections": sessionConns,
		"global_connections":  len(h.GlobalClients),
	}
}

// Public function gửi tiến trình sinh nội dung của phiên
func SendGenerationProgress(sessionID, status string, generated []string, remaining, progress int, errorMsg string) {
	update := GenerationProgressUpdate{
		SessionID:       sessionID,
		Status:          status,
		GeneratedTopics: generated,
		RemainingTopics: remaining,
		Progress:        progress,
		Error:           errorMsg,
	}
	data, err := json.Marshal(update)
	if err != nil {
		log.Println("JSON marshal error:", err)
		return
	}
	H.Broadcast(sessionID, websocket.TextMessage, data)
}

// Public function gửi signal cập nhật danh sách phiên học
func BroadcastSessionListChanged() {
	data := []byte(`{"type": "session_list_changed"}`)
	H.BroadcastGlobal(websocket.TextMessage, data)
}

// Unregister client theo sessionID
func (h *Hub) Unregister(sessionID string, conn *websocket.Conn) {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	if clients, ok := h.Clients[sessionID]; ok {
		if client, ok := clients[conn]; ok {
			close(client.Send)
			delete(clients, conn)
		}
		if len(clients) == 0 {
			delete(h.Clients, sessionID)
		}
	}
}

// Unregister global client
func (h *Hub) UnregisterGlobal(conn *websocket.Conn) {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	if client, ok := h.GlobalClients[conn]; ok {
		close(client.Send)
		delete(h.GlobalClients, conn)
	}
}

// Write pump: thoát khi kênh Send bị đóng lúc Unregister
func (h *Hub) writePump(client *Client) {
	defer func() {
		client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
		client.Conn.Close()
	}()
	for msg := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}
