package service

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Priyanshusahay12222301/Intevue/models"
)

var (
	// 业务错误定义，错误文本会原样下发给客户端
	ErrNotTeacher       = errors.New("Only teachers can create polls")
	ErrNotStudent       = errors.New("Only students can submit answers")
	ErrPollInProgress   = errors.New("Cannot create new poll. Not all students have answered the current question.")
	ErrNoActivePoll     = errors.New("No active poll to answer")
	ErrAlreadyAnswered  = errors.New("You have already answered this poll")
	ErrInvalidOption    = errors.New("Invalid option selected")
	ErrInvalidOptions   = errors.New("Poll must have between 2 and 6 non-empty options")
	ErrUserNotFound     = errors.New("User not found")
	ErrStudentNotFound  = errors.New("Student not found")
	ErrNotTeacherRemove = errors.New("Only teachers can remove students")
)

// DefaultTimeLimit 未指定或非法时限时使用的默认答题时限（秒）
const DefaultTimeLimit = 60

// DefaultGraceDelay 全员作答后延迟关闭的宽限时间，
// 留给客户端渲染最后一次计票更新
const DefaultGraceDelay = time.Second

// Broadcaster 会话向所有连接推送状态变更的出口
//
// 投票生命周期事件（new-poll、poll-results-updated、poll-ended）由
// 会话在持有锁时发出，保证事件入队顺序与状态提交顺序一致；
// 实现方的投递必须是非阻塞的（Hub写入带缓冲通道满足这一点）
type Broadcaster interface {
	BroadcastAll(event string, payload interface{})
}

// Session 单个会话的权威状态：在线名单、当前投票、计票和历史
//
// 所有共享状态由一把粗粒度互斥锁保护，每个操作在锁内完成
// 检查和变更，保证"是否全员作答"之类的判断与后续变更原子执行。
// 定时器回调同样先取锁再进入关闭路径，不会绕过锁直接改状态。
type Session struct {
	mu sync.Mutex

	participants map[string]*models.Participant // 按连接ID索引
	joinOrder    []string                       // 连接ID的加入顺序，用于稳定的名单快照

	activePoll *models.Poll
	results    map[string]int // 当前（或刚结束）投票的计票，键恰为选项集合
	history    []models.HistoryRecord

	lastPollID int64 // 保证投票ID单调递增

	bus Broadcaster

	// 可注入的时间参数，测试时缩短
	graceDelay time.Duration
	timeUnit   time.Duration // 时限的计时单位，正常为一秒
}

// NewSession 创建一个会话实例
// 按设计每个进程只建一个，但不做成包级单例，便于测试隔离
func NewSession(bus Broadcaster) *Session {
	return &Session{
		participants: make(map[string]*models.Participant),
		results:      make(map[string]int),
		bus:          bus,
		graceDelay:   DefaultGraceDelay,
		timeUnit:     time.Second,
	}
}

// Register 登记一个连接的参与者，同一连接重复登记会覆盖旧条目
func (s *Session) Register(connID, name string, role models.Role) models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[connID]; !ok {
		s.joinOrder = append(s.joinOrder, connID)
	}
	p := &models.Participant{
		Name:     name,
		Role:     role,
		Answered: false,
		JoinedAt: time.Now(),
	}
	s.participants[connID] = p

	log.Printf("%s %s joined", role, name)
	return *p
}

// Unregister 注销一个连接，连接不存在时为无操作
// 返回该连接此前是否已登记
func (s *Session) Unregister(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unregisterLocked(connID)
}

func (s *Session) unregisterLocked(connID string) bool {
	p, ok := s.participants[connID]
	if !ok {
		return false
	}
	delete(s.participants, connID)
	for i, id := range s.joinOrder {
		if id == connID {
			s.joinOrder = append(s.joinOrder[:i], s.joinOrder[i+1:]...)
			break
		}
	}
	log.Printf("%s %s disconnected", p.Role, p.Name)
	return true
}

// Participant 返回连接对应的参与者副本
func (s *Session) Participant(connID string) (models.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[connID]
	if !ok {
		return models.Participant{}, false
	}
	return *p, true
}

// Snapshot 返回按加入顺序排列的在线名单副本
func (s *Session) Snapshot() []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() []models.Participant {
	users := make([]models.Participant, 0, len(s.joinOrder))
	for _, id := range s.joinOrder {
		if p, ok := s.participants[id]; ok {
			users = append(users, *p)
		}
	}
	return users
}

func (s *Session) countByRoleLocked(role models.Role) int {
	n := 0
	for _, p := range s.participants {
		if p.Role == role {
			n++
		}
	}
	return n
}

func (s *Session) countAnsweredLocked(role models.Role) int {
	n := 0
	for _, p := range s.participants {
		if p.Role == role && p.Answered {
			n++
		}
	}
	return n
}

// CreatePoll 发起一轮新投票
//
// 前置条件按顺序检查：请求者必须是教师；若已有投票进行中，
// 必须所有在线学生都已作答（没有学生在线时放行）。
// 成功后清零计票、重置所有人的作答标记并启动超时定时器。
func (s *Session) CreatePoll(connID, question string, options []string, timeLimit int) (*models.Poll, map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requester, ok := s.participants[connID]
	if !ok || requester.Role != models.RoleTeacher {
		return nil, nil, ErrNotTeacher
	}

	if s.activePoll != nil {
		students := s.countByRoleLocked(models.RoleStudent)
		answered := s.countAnsweredLocked(models.RoleStudent)
		if students > 0 && answered < students {
			return nil, nil, ErrPollInProgress
		}
	}

	// 选项去掉首尾空白并丢弃空串；重复选项共享同一个计票桶（按选项文本计数，属预期行为）
	trimmed := make([]string, 0, len(options))
	for _, opt := range options {
		if t := strings.TrimSpace(opt); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	if len(trimmed) < 2 || len(trimmed) > 6 {
		return nil, nil, ErrInvalidOptions
	}

	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}

	poll := &models.Poll{
		ID:        s.nextPollIDLocked(),
		Question:  question,
		Options:   trimmed,
		TimeLimit: timeLimit,
		CreatedBy: requester.Name,
		CreatedAt: time.Now(),
	}

	s.results = make(map[string]int, len(trimmed))
	for _, opt := range trimmed {
		s.results[opt] = 0
	}
	for _, p := range s.participants {
		p.Answered = false
	}
	s.activePoll = poll

	log.Printf("New poll created: %s", poll.Question)

	// 超时定时器：到点后若当前投票仍是这一轮才关闭。
	// 不取消旧定时器，靠ID比对让过期的定时器自然失效
	pollID := poll.ID
	time.AfterFunc(time.Duration(timeLimit)*s.timeUnit, func() {
		s.closeIfCurrent(pollID)
	})

	s.broadcastLocked(models.EventNewPoll, models.NewPollPayload{
		Poll:    poll,
		Results: copyResults(s.results),
	})

	return poll, copyResults(s.results), nil
}

// nextPollIDLocked 生成单调递增的投票ID（毫秒时间戳字符串）
func (s *Session) nextPollIDLocked() string {
	id := time.Now().UnixMilli()
	if id <= s.lastPollID {
		id = s.lastPollID + 1
	}
	s.lastPollID = id
	return strconv.FormatInt(id, 10)
}

// SubmitAnswer 学生提交答案
//
// 每个连接每轮最多记一票；成功后返回最新计票和作答进度。
// 若提交后全员作答，安排宽限延迟后的自动关闭。
func (s *Session) SubmitAnswer(connID, option string) (map[string]int, int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[connID]
	if !ok || p.Role != models.RoleStudent {
		return nil, 0, 0, ErrNotStudent
	}
	if s.activePoll == nil {
		return nil, 0, 0, ErrNoActivePoll
	}
	if p.Answered {
		return nil, 0, 0, ErrAlreadyAnswered
	}
	if _, ok := s.results[option]; !ok {
		return nil, 0, 0, ErrInvalidOption
	}

	s.results[option]++
	p.Answered = true

	log.Printf("%s answered: %s", p.Name, option)

	students := s.countByRoleLocked(models.RoleStudent)
	answered := s.countAnsweredLocked(models.RoleStudent)

	if students > 0 && answered == students {
		pollID := s.activePoll.ID
		time.AfterFunc(s.graceDelay, func() {
			s.closeIfCurrent(pollID)
		})
	}

	s.broadcastLocked(models.EventResultsUpdated, models.ResultsUpdatedPayload{
		Results:       copyResults(s.results),
		TotalAnswers:  answered,
		TotalStudents: students,
	})

	return copyResults(s.results), answered, students, nil
}

// ClosePoll 关闭当前投票并折叠进历史；没有进行中的投票时为无操作
// 这是唯一生成历史记录的地方，超时关闭和全员作答关闭都走这里
func (s *Session) ClosePoll() *models.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closePollLocked()
}

// closeIfCurrent 定时器入口：仅当指定投票仍是当前投票时才关闭
func (s *Session) closeIfCurrent(pollID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activePoll == nil || s.activePoll.ID != pollID {
		return
	}
	s.closePollLocked()
}

func (s *Session) closePollLocked() *models.HistoryRecord {
	if s.activePoll == nil {
		return nil
	}

	record := models.HistoryRecord{
		Poll:          *s.activePoll,
		Results:       copyResults(s.results),
		EndedAt:       time.Now(),
		TotalAnswers:  s.countAnsweredLocked(models.RoleStudent),
		TotalStudents: s.countByRoleLocked(models.RoleStudent),
	}
	s.history = append(s.history, record)

	log.Printf("Poll ended: %s", s.activePoll.Question)

	s.broadcastLocked(models.EventPollEnded, models.PollEndedPayload{
		Poll:    s.activePoll,
		Results: record.Results,
	})
	s.activePoll = nil
	// 计票保留到下一轮创建时清零，方便结束后的快照读取

	return &record
}

// broadcastLocked 在锁内发出广播，让事件入队顺序与提交顺序一致
func (s *Session) broadcastLocked(event string, payload interface{}) {
	if s.bus != nil {
		s.bus.BroadcastAll(event, payload)
	}
}

// CurrentView 面向单个连接的只读状态投影，供新连接中途加入时同步
func (s *Session) CurrentView(connID string) (*models.Poll, map[string]int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hasAnswered := false
	if p, ok := s.participants[connID]; ok {
		hasAnswered = p.Answered
	}
	return s.activePoll, copyResults(s.results), hasAnswered
}

// History 返回按结束先后排列的历史记录副本
func (s *Session) History() []models.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]models.HistoryRecord, len(s.history))
	copy(history, s.history)
	return history
}

// RemoveStudent 教师按显示名移除一名学生，返回被移除学生的连接ID
//
// 显示名不唯一，同名时移除加入顺序中第一个匹配的学生，
// 可能移除到非预期的同名者，这是沿用的已知限制。
func (s *Session) RemoveStudent(requesterConnID, studentName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requester, ok := s.participants[requesterConnID]
	if !ok || requester.Role != models.RoleTeacher {
		return "", ErrNotTeacherRemove
	}

	for _, id := range s.joinOrder {
		p, ok := s.participants[id]
		if ok && p.Role == models.RoleStudent && p.Name == studentName {
			s.unregisterLocked(id)
			log.Printf("Student %s removed by teacher", studentName)
			return id, nil
		}
	}
	return "", ErrStudentNotFound
}

func copyResults(results map[string]int) map[string]int {
	out := make(map[string]int, len(results))
	for k, v := range results {
		out[k] = v
	}
	return out
}
