package messaging

import (
	"context"
	"encoding/json"
	"sync"

	"whosehouse/internal/gateway"
	"whosehouse/internal/models"
	"whosehouse/internal/realtime"
	"whosehouse/internal/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Thread 一个案例消息线程的本地一致视图
// 历史拉取 + 服务端推送流的对账；推送回调与用户操作在锁下
// 以前态推导后态，杜绝撕裂读
type Thread struct {
	caseID  string
	userID  string
	backend Backend
	channel realtime.Channel
	outbox  *Outbox
	logger  *zap.Logger
	topic   string

	mu       sync.Mutex
	messages []models.Message
	closed   bool
}

// SendResult 发送结果
// Queued为true表示网络不可达、消息已入离线队列等待下次同步
type SendResult struct {
	Message *models.Message
	Queued  bool
}

// OpenThread 打开案例线程：拉取历史（升序）、补发已方未读回执、订阅变更流
// outbox可为nil（儿童Token通道等不启用离线队列的场景）
func OpenThread(ctx context.Context, backend Backend, channel realtime.Channel, outbox *Outbox, caseID, userID string, logger *zap.Logger) (*Thread, error) {
	history, err := backend.FetchMessages(ctx, caseID)
	if err != nil {
		return nil, err
	}

	t := &Thread{
		caseID:   caseID,
		userID:   userID,
		backend:  backend,
		channel:  channel,
		outbox:   outbox,
		logger:   logger,
		topic:    realtime.CaseMessagesTopic(caseID),
		messages: history,
	}

	// 历史中发给自己的未读消息逐条补发已读回执
	// fire-and-forget：失败记日志不重试，不阻塞线程打开
	for i := range history {
		if history[i].RecipientID == userID && history[i].Status != models.MessageRead {
			go t.markRead(history[i].ID)
			t.patchStatus(history[i].ID, models.MessageRead)
		}
	}

	if err := channel.Subscribe(t.topic, t.handleEvent); err != nil {
		return nil, err
	}
	return t, nil
}

// Close 释放线程：先退订通道，之后到达的事件一律丢弃
// 泄漏打开的订阅是资源缺陷，释放是强制动作
func (t *Thread) Close() error {
	err := t.channel.Unsubscribe(t.topic)

	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return err
}

// Messages 当前线程快照（升序副本）
func (t *Thread) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// UnreadCount 发给当前用户且未读的消息数
// 每次事件后全量重算：O(n)但在此规模下足够
func (t *Thread) UnreadCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for i := range t.messages {
		if t.messages[i].RecipientID == t.userID && t.messages[i].Status != models.MessageRead {
			count++
		}
	}
	return count
}

// Send 发送消息（fire-once）
// 校验失败本地拒绝；网络不可达时入离线队列（带幂等键），不算失败
func (t *Thread) Send(ctx context.Context, recipientID, content string, urgent bool) (*SendResult, error) {
	if res := validate.ValidateMessage(content); !res.IsValid {
		return nil, gateway.NewError(gateway.CodeValidationError, res.Errors[0])
	}
	sanitized := validate.SanitizeInput(content, validate.MaxMessageLength)

	params := SendParams{
		CaseID:      t.caseID,
		RecipientID: recipientID,
		Content:     sanitized,
		IsUrgent:    urgent,
		ClientRef:   uuid.NewString(),
	}
	msg, err := t.backend.SendMessage(ctx, params)
	if err != nil {
		if gateway.CodeOf(err) == gateway.CodeNetworkError && t.outbox != nil {
			if qerr := t.outbox.Enqueue(ctx, params); qerr != nil {
				t.logger.Error("Failed to enqueue offline message", zap.Error(qerr))
				return nil, err
			}
			t.logger.Info("Message queued for offline delivery",
				zap.String("case_id", t.caseID),
				zap.String("client_ref", params.ClientRef),
			)
			return &SendResult{Queued: true}, nil
		}
		return nil, err
	}

	t.mu.Lock()
	if !t.closed {
		t.insertOrdered(*msg)
	}
	t.mu.Unlock()
	return &SendResult{Message: msg}, nil
}

// handleEvent 变更流回调
func (t *Thread) handleEvent(_ string, payload []byte) {
	ev, err := realtime.ParseChangeEvent(payload)
	if err != nil {
		t.logger.Warn("Dropping malformed change event", zap.Error(err))
		return
	}

	switch ev.Type {
	case realtime.EventInsert:
		t.handleInsert(ev)
	case realtime.EventUpdate:
		t.handleUpdate(ev)
	}
}

// handleInsert 推送载荷是部分/反规范化的：按id回查完整消息再并入本地
func (t *Thread) handleInsert(ev *realtime.ChangeEvent) {
	var record struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(ev.Record, &record); err != nil || record.ID == "" {
		t.logger.Warn("Insert event without message id")
		return
	}

	msg, err := t.backend.FetchMessage(context.Background(), record.ID)
	if err != nil {
		t.logger.Warn("Failed to fetch inserted message",
			zap.String("message_id", record.ID),
			zap.Error(err),
		)
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.insertOrdered(*msg)
	addressedToMe := msg.RecipientID == t.userID && msg.Status != models.MessageRead
	if addressedToMe {
		t.setStatusLocked(msg.ID, models.MessageRead)
	}
	t.mu.Unlock()

	// 发给自己的新消息立即回执已读
	if addressedToMe {
		go t.markRead(msg.ID)
	}
}

// handleUpdate 按id就地补丁，不回查
func (t *Thread) handleUpdate(ev *realtime.ChangeEvent) {
	var record struct {
		ID       string               `json:"id"`
		Status   models.MessageStatus `json:"status"`
		IsUrgent *bool                `json:"is_urgent"`
	}
	if err := json.Unmarshal(ev.Record, &record); err != nil || record.ID == "" {
		t.logger.Warn("Update event without message id")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	for i := range t.messages {
		if t.messages[i].ID != record.ID {
			continue
		}
		if record.Status != "" {
			// 状态单调推进：过期事件不得把read回退为sent/delivered
			if record.Status.StatusRank() > t.messages[i].Status.StatusRank() {
				t.messages[i].Status = record.Status
			}
		}
		if record.IsUrgent != nil {
			t.messages[i].IsUrgent = *record.IsUrgent
		}
		return
	}
}

// insertOrdered 按created_at升序插入，id去重
// 持锁调用
func (t *Thread) insertOrdered(msg models.Message) {
	for i := range t.messages {
		if t.messages[i].ID == msg.ID {
			return
		}
	}
	pos := len(t.messages)
	for pos > 0 && t.messages[pos-1].CreatedAt.After(msg.CreatedAt) {
		pos--
	}
	t.messages = append(t.messages, models.Message{})
	copy(t.messages[pos+1:], t.messages[pos:])
	t.messages[pos] = msg
}

// patchStatus 本地置状态（单调保护）
func (t *Thread) patchStatus(messageID string, status models.MessageStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setStatusLocked(messageID, status)
}

func (t *Thread) setStatusLocked(messageID string, status models.MessageStatus) {
	for i := range t.messages {
		if t.messages[i].ID == messageID {
			if status.StatusRank() > t.messages[i].Status.StatusRank() {
				t.messages[i].Status = status
			}
			return
		}
	}
}

// markRead 已读回执，fire-and-forget
func (t *Thread) markRead(messageID string) {
	if err := t.backend.UpdateMessageStatus(context.Background(), messageID, models.MessageRead); err != nil {
		t.logger.Warn("Failed to mark message read",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
