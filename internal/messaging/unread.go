package messaging

import (
	"context"
	"sync"

	"whosehouse/internal/realtime"

	"go.uber.org/zap"
)

// UnreadCounter 跨案例的未读角标
// 订阅某用户的未读变更流；每个相关事件触发一次全量重算（后端计数查询）
// 而非增量维护——正确优先，在此规模下O(n)可接受
type UnreadCounter struct {
	userID   string
	backend  Backend
	channel  realtime.Channel
	logger   *zap.Logger
	topic    string
	onChange func(count int)

	mu     sync.Mutex
	count  int
	closed bool
}

// NewUnreadCounter 创建未读角标并订阅变更流
// onChange在计数变化时回调（可为nil）
func NewUnreadCounter(ctx context.Context, backend Backend, channel realtime.Channel, userID string, onChange func(int), logger *zap.Logger) (*UnreadCounter, error) {
	u := &UnreadCounter{
		userID:   userID,
		backend:  backend,
		channel:  channel,
		logger:   logger,
		topic:    realtime.UserUnreadTopic(userID),
		onChange: onChange,
	}

	count, err := backend.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.count = count

	if err := channel.Subscribe(u.topic, u.handleEvent); err != nil {
		return nil, err
	}
	return u, nil
}

// Count 当前未读数
func (u *UnreadCounter) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.count
}

// Close 退订并丢弃此后到达的事件
func (u *UnreadCounter) Close() error {
	err := u.channel.Unsubscribe(u.topic)
	u.mu.Lock()
	u.closed = true
	u.mu.Unlock()
	return err
}

func (u *UnreadCounter) handleEvent(_ string, _ []byte) {
	count, err := u.backend.CountUnread(context.Background(), u.userID)
	if err != nil {
		u.logger.Warn("Failed to recount unread messages", zap.Error(err))
		return
	}

	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	changed := count != u.count
	u.count = count
	cb := u.onChange
	u.mu.Unlock()

	if changed && cb != nil {
		cb(count)
	}
}
