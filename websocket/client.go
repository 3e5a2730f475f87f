package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Priyanshusahay12222301/Intevue/models"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时，收到pong后顺延
	pongWait = 60 * time.Second

	// 发送ping间隔，必须小于pongWait
	pingPeriod = (pongWait * 9) / 10

	// 最大入站消息大小
	maxMessageSize = 4096
)

// Client 表示一个WebSocket客户端连接
type Client struct {
	// 连接ID，会话内唯一
	ID string

	// 所属Hub
	hub *Hub

	// WebSocket连接
	conn *websocket.Conn

	// 出站消息缓冲通道
	send chan []byte
}

// readPump 持续读取入站消息并转交sink，连接断开时负责清理
func (c *Client) readPump(sink EventSink) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
		sink.OnDisconnect(c.ID)
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
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error on %s: %v", c.ID, err)
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			// 非法信封只通知发送方，不影响其他连接
			c.hub.SendTo(c.ID, models.EventError, models.ErrorPayload{Message: "Malformed message"})
			continue
		}

		sink.OnMessage(c.ID, env.Event, env.Data)
	}
}

// writePump 将发送通道中的消息写入连接，并定期发送ping保活
// 发送通道被Hub关闭时写出关闭帧后退出
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
				// Hub关闭了通道
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
