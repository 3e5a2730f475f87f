package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Priyanshusahay12222301/Intevue/models"
)

// EventSink 接收来自客户端连接的入站事件
// 由会话网关实现，Hub只负责传输层
type EventSink interface {
	OnMessage(connID string, event string, data json.RawMessage)
	OnDisconnect(connID string)
}

// Hub 维护所有活跃连接并负责消息下发
// 投递语义为尽力而为、至多一次；单个连接的发送失败不影响其他连接
//
// 发送通道的写入只在持有读锁时进行，关闭只在持有写锁的remove里进行，
// 因此发送不可能与关闭交错
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // 按连接ID索引
}

// NewHub 创建一个新的Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Serve 接管一个已升级的WebSocket连接：分配连接ID、
// 登记到Hub并启动读写goroutine，入站事件转交sink处理
func (h *Hub) Serve(conn *websocket.Conn, sink EventSink) string {
	client := &Client{
		ID:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("User connected: %s (total connections: %d)", client.ID, total)

	go client.writePump()
	go client.readPump(sink)

	return client.ID
}

// BroadcastAll 向所有连接广播一个命名事件
func (h *Hub) BroadcastAll(event string, payload interface{}) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		log.Printf("Error marshalling %s broadcast: %v", event, err)
		return
	}

	// 在读锁内写入发送通道；缓冲区满的连接记下来，释放锁后再剔除
	h.mu.RLock()
	var slow []*Client
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		log.Printf("Dropping slow client %s during %s broadcast", client.ID, event)
		h.remove(client)
	}
}

// SendTo 向指定连接发送一个命名事件，连接不存在时为无操作
func (h *Hub) SendTo(connID string, event string, payload interface{}) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		log.Printf("Error marshalling %s message: %v", event, err)
		return
	}

	h.mu.RLock()
	client, ok := h.clients[connID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	slow := false
	select {
	case client.send <- data:
	default:
		slow = true
	}
	h.mu.RUnlock()

	if slow {
		log.Printf("Dropping slow client %s during %s send", client.ID, event)
		h.remove(client)
	}
}

// Disconnect 强制断开指定连接，教师移除学生时使用
// 已排队的消息（如removed-by-teacher）会先送达再发送关闭帧
func (h *Hub) Disconnect(connID string) {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		h.remove(client)
	}
}

// remove 从Hub摘除连接并关闭其发送通道，重复调用安全
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.send)
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func marshalEnvelope(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.Envelope{Event: event, Data: data})
}
