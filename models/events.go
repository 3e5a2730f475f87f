package models

import "encoding/json"

// 客户端入站事件名
const (
	EventJoin          = "join"
	EventCreatePoll    = "create-poll"
	EventSubmitAnswer  = "submit-answer"
	EventSendMessage   = "send-message"
	EventRemoveStudent = "remove-student"
)

// 服务端出站事件名
const (
	EventPollState        = "poll-state"
	EventUsersUpdated     = "users-updated"
	EventNewPoll          = "new-poll"
	EventResultsUpdated   = "poll-results-updated"
	EventPollEnded        = "poll-ended"
	EventNewMessage       = "new-message"
	EventRemovedByTeacher = "removed-by-teacher"
	EventError            = "error"
)

// Envelope WebSocket消息信封，入站和出站使用同一格式
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest 加入会话请求
type JoinRequest struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// CreatePollRequest 发起投票请求
type CreatePollRequest struct {
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"timeLimit"`
}

// SubmitAnswerRequest 提交答案请求
type SubmitAnswerRequest struct {
	SelectedOption string `json:"selectedOption"`
}

// SendMessageRequest 发送聊天消息请求
type SendMessageRequest struct {
	Message string `json:"message"`
}

// RemoveStudentRequest 移除学生请求
type RemoveStudentRequest struct {
	StudentName string `json:"studentName"`
}

// PollStatePayload 新连接加入时下发的完整会话状态
type PollStatePayload struct {
	ActivePoll     *Poll          `json:"activePoll"`
	Results        map[string]int `json:"results"`
	ConnectedUsers []Participant  `json:"connectedUsers"`
	HasAnswered    bool           `json:"hasAnswered"`
}

// UsersUpdatedPayload 在线名单变更通知
type UsersUpdatedPayload struct {
	Users []Participant `json:"users"`
}

// NewPollPayload 新投票开始通知
type NewPollPayload struct {
	Poll    *Poll          `json:"poll"`
	Results map[string]int `json:"results"`
}

// ResultsUpdatedPayload 计票更新通知
type ResultsUpdatedPayload struct {
	Results       map[string]int `json:"results"`
	TotalAnswers  int            `json:"totalAnswers"`
	TotalStudents int            `json:"totalStudents"`
}

// PollEndedPayload 投票结束通知
type PollEndedPayload struct {
	Poll    *Poll          `json:"poll"`
	Results map[string]int `json:"results"`
}

// NewMessagePayload 聊天消息广播
type NewMessagePayload struct {
	Message ChatMessage `json:"message"`
}

// ErrorPayload 请求级错误，只发给出错请求的连接
type ErrorPayload struct {
	Message string `json:"message"`
}
