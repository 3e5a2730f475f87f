package models

import "time"

// Role 参与者角色
// 使用字符串常量，与前端约定保持一致
type Role string

const (
	RoleTeacher Role = "teacher" // 教师，可以发起投票和移除学生
	RoleStudent Role = "student" // 学生，只能提交答案
)

// Valid 判断角色是否为已知角色
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Participant 已连接的参与者
// 身份只是自报的显示名，不做唯一性校验；同名参与者可以同时在线
type Participant struct {
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	Answered bool      `json:"answered"` // 每轮新投票创建时重置
	JoinedAt time.Time `json:"joinedAt"`
}

// Poll 一轮投票
type Poll struct {
	ID        string    `json:"id"` // 毫秒时间戳字符串，保证单调递增
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	TimeLimit int       `json:"timeLimit"` // 答题时限（秒），默认60
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryRecord 已结束投票的不可变快照
// 只在关闭投票时生成一次，按结束先后追加保存
type HistoryRecord struct {
	Poll          Poll           `json:"poll"`
	Results       map[string]int `json:"results"`
	EndedAt       time.Time      `json:"endedAt"`
	TotalAnswers  int            `json:"totalAnswers"`  // 关闭时已作答的学生数
	TotalStudents int            `json:"totalStudents"` // 关闭时在线的学生数
}

// MaxChatMessageLength 聊天消息最大长度（按字符计，不是字节）
const MaxChatMessageLength = 200

// ChatMessage 聊天消息，仅广播，不做任何持久化
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
