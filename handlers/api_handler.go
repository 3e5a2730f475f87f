package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Priyanshusahay12222301/Intevue/service"
	"github.com/Priyanshusahay12222301/Intevue/websocket"
)

// APIHandler 只读HTTP快照接口，不会改变会话状态
type APIHandler struct {
	session *service.Session
	hub     *websocket.Hub
}

// NewAPIHandler 创建HTTP快照接口处理器
func NewAPIHandler(session *service.Session, hub *websocket.Hub) *APIHandler {
	return &APIHandler{session: session, hub: hub}
}

// HealthCheck 基本健康检查端点，附带当前WebSocket连接数
func (h *APIHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     "Polling System Backend is running!",
		"connections": h.hub.ClientCount(),
	})
}

// ActivePoll 返回当前投票和计票快照，没有进行中的投票时poll为null
func (h *APIHandler) ActivePoll(c *gin.Context) {
	poll, results, _ := h.session.CurrentView("")
	c.JSON(http.StatusOK, gin.H{
		"poll":    poll,
		"results": results,
	})
}

// PollHistory 返回按结束先后排列的历史记录
func (h *APIHandler) PollHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"history": h.session.History(),
	})
}
