package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Priyanshusahay12222301/Intevue/models"
	"github.com/Priyanshusahay12222301/Intevue/service"
	"github.com/Priyanshusahay12222301/Intevue/websocket"
)

// Bus 网关向连接下发事件的出口，由websocket.Hub实现
type Bus interface {
	BroadcastAll(event string, payload interface{})
	SendTo(connID string, event string, payload interface{})
	Disconnect(connID string)
}

// 聊天消息限速：每连接每秒2条，突发5条
const (
	chatRatePerSecond = 2
	chatBurst         = 5
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 允许所有跨域请求，生产环境应限制
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gateway 会话网关：按连接接收入站事件，鉴权后转成
// 会话调用，再把结果通过Hub下发给相关连接
type Gateway struct {
	session *service.Session
	hub     *websocket.Hub
	bus     Bus

	// 每连接的聊天限速器
	limiterMu    sync.Mutex
	chatLimiters map[string]*rate.Limiter
}

// NewGateway 创建会话网关
func NewGateway(session *service.Session, hub *websocket.Hub) *Gateway {
	return &Gateway{
		session:      session,
		hub:          hub,
		bus:          hub,
		chatLimiters: make(map[string]*rate.Limiter),
	}
}

// HandleWebSocket 处理WebSocket升级请求并把连接挂到Hub
func (g *Gateway) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}
	g.hub.Serve(conn, g)
}

// OnMessage 入站事件分发入口，实现websocket.EventSink
// 任何鉴权或校验失败只给请求方回error事件，共享状态保持不变
func (g *Gateway) OnMessage(connID string, event string, data json.RawMessage) {
	switch event {
	case models.EventJoin:
		g.handleJoin(connID, data)
	case models.EventCreatePoll:
		g.handleCreatePoll(connID, data)
	case models.EventSubmitAnswer:
		g.handleSubmitAnswer(connID, data)
	case models.EventSendMessage:
		g.handleSendMessage(connID, data)
	case models.EventRemoveStudent:
		g.handleRemoveStudent(connID, data)
	default:
		g.sendError(connID, "Unknown event: "+event)
	}
}

// OnDisconnect 连接断开时注销参与者并广播名单变更
func (g *Gateway) OnDisconnect(connID string) {
	g.limiterMu.Lock()
	delete(g.chatLimiters, connID)
	g.limiterMu.Unlock()

	// 未加入过会话的连接断开时不打扰其他人
	if g.session.Unregister(connID) {
		g.broadcastUsers()
	}
}

func (g *Gateway) handleJoin(connID string, data json.RawMessage) {
	var req models.JoinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		g.sendError(connID, "Malformed message")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		g.sendError(connID, "Name is required")
		return
	}
	if !req.Role.Valid() {
		g.sendError(connID, "Invalid role")
		return
	}

	g.session.Register(connID, req.Name, req.Role)

	// 先把当前会话状态单发给新连接，再向所有人广播新名单
	poll, results, hasAnswered := g.session.CurrentView(connID)
	g.bus.SendTo(connID, models.EventPollState, models.PollStatePayload{
		ActivePoll:     poll,
		Results:        results,
		ConnectedUsers: g.session.Snapshot(),
		HasAnswered:    hasAnswered,
	})
	g.broadcastUsers()
}

func (g *Gateway) handleCreatePoll(connID string, data json.RawMessage) {
	var req models.CreatePollRequest
	if err := json.Unmarshal(data, &req); err != nil {
		g.sendError(connID, "Malformed message")
		return
	}

	// 成功时new-poll广播由会话在提交点发出
	if _, _, err := g.session.CreatePoll(connID, req.Question, req.Options, req.TimeLimit); err != nil {
		g.sendError(connID, err.Error())
	}
}

func (g *Gateway) handleSubmitAnswer(connID string, data json.RawMessage) {
	var req models.SubmitAnswerRequest
	if err := json.Unmarshal(data, &req); err != nil {
		g.sendError(connID, "Malformed message")
		return
	}

	// 成功时poll-results-updated广播由会话在提交点发出
	if _, _, _, err := g.session.SubmitAnswer(connID, req.SelectedOption); err != nil {
		g.sendError(connID, err.Error())
	}
}

func (g *Gateway) handleSendMessage(connID string, data json.RawMessage) {
	var req models.SendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		g.sendError(connID, "Malformed message")
		return
	}

	sender, ok := g.session.Participant(connID)
	if !ok {
		g.sendError(connID, service.ErrUserNotFound.Error())
		return
	}

	// 按字符数而不是字节数计长，多字节文本不受影响
	if n := utf8.RuneCountInString(req.Message); n == 0 || n > models.MaxChatMessageLength {
		g.sendError(connID, "Message must be 1-200 characters")
		return
	}

	if !g.chatLimiter(connID).Allow() {
		g.sendError(connID, "You are sending messages too fast")
		return
	}

	g.bus.BroadcastAll(models.EventNewMessage, models.NewMessagePayload{
		Message: models.ChatMessage{
			ID:        uuid.NewString(),
			Sender:    sender.Name,
			Role:      sender.Role,
			Message:   req.Message,
			Timestamp: time.Now(),
		},
	})
}

func (g *Gateway) handleRemoveStudent(connID string, data json.RawMessage) {
	var req models.RemoveStudentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		g.sendError(connID, "Malformed message")
		return
	}

	removedID, err := g.session.RemoveStudent(connID, req.StudentName)
	if err != nil {
		g.sendError(connID, err.Error())
		return
	}

	// 通知被移除者后断开其连接，排队的通知会先送达
	g.bus.SendTo(removedID, models.EventRemovedByTeacher, struct{}{})
	g.bus.Disconnect(removedID)
	g.broadcastUsers()
}

func (g *Gateway) broadcastUsers() {
	g.bus.BroadcastAll(models.EventUsersUpdated, models.UsersUpdatedPayload{
		Users: g.session.Snapshot(),
	})
}

func (g *Gateway) sendError(connID, message string) {
	g.bus.SendTo(connID, models.EventError, models.ErrorPayload{Message: message})
}

func (g *Gateway) chatLimiter(connID string) *rate.Limiter {
	g.limiterMu.Lock()
	defer g.limiterMu.Unlock()

	limiter, ok := g.chatLimiters[connID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(chatRatePerSecond), chatBurst)
		g.chatLimiters[connID] = limiter
	}
	return limiter
}
