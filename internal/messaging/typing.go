package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"whosehouse/internal/realtime"

	"go.uber.org/zap"
)

// 输入指示的时间参数默认值
const (
	DefaultTypingThrottle = time.Second
	DefaultTypingAutoStop = 5 * time.Second
	DefaultTypingExpiry   = 10 * time.Second
)

// TypingSignal 输入指示广播载荷
type TypingSignal struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	Typing   bool   `json:"typing"`
}

// TypingBroadcaster 本端输入指示广播
// 节流到每秒至多一次"正在输入"；最后一次击键5秒后自动广播停止；
// Close时主动广播停止——离开界面后不允许残留陈旧的输入状态
type TypingBroadcaster struct {
	channel  realtime.Channel
	topic    string
	userID   string
	userName string
	throttle time.Duration
	autoStop time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	lastSent time.Time
	timer    *time.Timer
	closed   bool
}

// NewTypingBroadcaster 创建输入指示广播器
// throttle/autoStop传0使用默认值
func NewTypingBroadcaster(channel realtime.Channel, caseID, userID, userName string, throttle, autoStop time.Duration, logger *zap.Logger) *TypingBroadcaster {
	if throttle <= 0 {
		throttle = DefaultTypingThrottle
	}
	if autoStop <= 0 {
		autoStop = DefaultTypingAutoStop
	}
	return &TypingBroadcaster{
		channel:  channel,
		topic:    realtime.CaseTypingTopic(caseID),
		userID:   userID,
		userName: userName,
		throttle: throttle,
		autoStop: autoStop,
		logger:   logger,
	}
}

// Keystroke 记录一次击键
// 超过节流窗口则广播"正在输入"，并顺延自动停止定时器
func (b *TypingBroadcaster) Keystroke() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	now := time.Now()
	shouldSend := now.Sub(b.lastSent) >= b.throttle
	if shouldSend {
		b.lastSent = now
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.autoStop, b.broadcastStop)
	b.mu.Unlock()

	if shouldSend {
		b.publish(true)
	}
}

// Stop 显式广播停止输入
func (b *TypingBroadcaster) Stop() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	closed := b.closed
	b.mu.Unlock()
	if !closed {
		b.publish(false)
	}
}

// Close 释放广播器：清定时器并主动广播停止
func (b *TypingBroadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	b.publish(false)

	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func (b *TypingBroadcaster) broadcastStop() {
	b.mu.Lock()
	b.timer = nil
	closed := b.closed
	b.mu.Unlock()
	if !closed {
		b.publish(false)
	}
}

func (b *TypingBroadcaster) publish(typing bool) {
	payload, _ := json.Marshal(TypingSignal{UserID: b.userID, UserName: b.userName, Typing: typing})
	if err := b.channel.Publish(b.topic, payload); err != nil {
		b.logger.Warn("Failed to publish typing signal", zap.Error(err))
	}
}

// TypingRoster 远端输入用户列表
// 条目超过expiry未刷新即过期移除，不依赖显式停止事件——
// 防御丢失的stop信号
type TypingRoster struct {
	selfID string
	expiry time.Duration

	mu      sync.Mutex
	entries map[string]rosterEntry
}

type rosterEntry struct {
	name string
	seen time.Time
}

// NewTypingRoster 创建输入用户列表，expiry传0使用默认值
func NewTypingRoster(selfID string, expiry time.Duration) *TypingRoster {
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	return &TypingRoster{
		selfID:  selfID,
		expiry:  expiry,
		entries: make(map[string]rosterEntry),
	}
}

// HandleSignal 消费输入指示事件（通道回调）
func (r *TypingRoster) HandleSignal(_ string, payload []byte) {
	var sig TypingSignal
	if err := json.Unmarshal(payload, &sig); err != nil || sig.UserID == "" {
		return
	}
	// 本端用户不进入展示列表
	if sig.UserID == r.selfID {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sig.Typing {
		r.entries[sig.UserID] = rosterEntry{name: sig.UserName, seen: time.Now()}
	} else {
		delete(r.entries, sig.UserID)
	}
}

// ActiveAt 截至now仍在输入的远端用户id列表（惰性清过期）
func (r *TypingRoster) ActiveAt(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []string
	for id, e := range r.entries {
		if now.Sub(e.seen) > r.expiry {
			delete(r.entries, id)
			continue
		}
		active = append(active, id)
	}
	return active
}

// Active 当前仍在输入的远端用户id列表
func (r *TypingRoster) Active() []string {
	return r.ActiveAt(time.Now())
}
