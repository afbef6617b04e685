package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"whosehouse/internal/store"

	"go.uber.org/zap"
)

// QueuedMessage 离线队列中的一条待发消息
// ClientRef在入队时生成（若发送方未带）：同一条消息的多次投递尝试
// 携带同一个幂等键，部分失败重试不会在服务端产生重复插入
type QueuedMessage struct {
	ClientRef   string    `json:"client_ref"`
	CaseID      string    `json:"case_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	IsUrgent    bool      `json:"is_urgent"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// Outbox 离线消息队列
// FIFO、持久、保序：同步时按入队顺序尝试，仍失败的消息按原相对顺序
// 留在队列中等待下次同步，不重排、不静默丢弃。至少一次投递
type Outbox struct {
	kv     store.KVStore
	key    string
	logger *zap.Logger

	// 本地读改写的串行化（KV层不提供事务）
	mu sync.Mutex
}

// NewOutbox 创建某用户的离线队列
func NewOutbox(kv store.KVStore, prefix, userID string, logger *zap.Logger) *Outbox {
	return &Outbox{
		kv:     kv,
		key:    store.OutboxKey(prefix, userID),
		logger: logger,
	}
}

// Enqueue 追加一条待发消息，记录入队时刻
func (o *Outbox) Enqueue(ctx context.Context, params SendParams) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	queue, err := o.load(ctx)
	if err != nil {
		return err
	}
	queue = append(queue, QueuedMessage{
		ClientRef:   params.ClientRef,
		CaseID:      params.CaseID,
		RecipientID: params.RecipientID,
		Content:     params.Content,
		IsUrgent:    params.IsUrgent,
		EnqueuedAt:  time.Now().UTC(),
	})
	return o.save(ctx, queue)
}

// Pending 当前队列快照（入队顺序）
func (o *Outbox) Pending(ctx context.Context) ([]QueuedMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.load(ctx)
}

// Flush 同步一遍队列：按序尝试每条消息
// 成功的移除；失败的按原相对顺序保留。返回成功投递数
func (o *Outbox) Flush(ctx context.Context, backend Backend) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	queue, err := o.load(ctx)
	if err != nil {
		return 0, err
	}
	if len(queue) == 0 {
		return 0, nil
	}

	var remaining []QueuedMessage
	delivered := 0
	for _, qm := range queue {
		params := SendParams{
			CaseID:      qm.CaseID,
			RecipientID: qm.RecipientID,
			Content:     qm.Content,
			IsUrgent:    qm.IsUrgent,
			ClientRef:   qm.ClientRef,
		}
		if _, err := backend.SendMessage(ctx, params); err != nil {
			o.logger.Warn("Offline message delivery failed, keeping in queue",
				zap.String("client_ref", qm.ClientRef),
				zap.String("case_id", qm.CaseID),
				zap.Error(err),
			)
			remaining = append(remaining, qm)
			continue
		}
		delivered++
	}

	if err := o.save(ctx, remaining); err != nil {
		return delivered, err
	}
	if delivered > 0 {
		o.logger.Info("Offline queue flushed",
			zap.Int("delivered", delivered),
			zap.Int("remaining", len(remaining)),
		)
	}
	return delivered, nil
}

func (o *Outbox) load(ctx context.Context) ([]QueuedMessage, error) {
	raw, err := o.kv.Get(ctx, o.key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load outbox: %w", err)
	}
	var queue []QueuedMessage
	if err := json.Unmarshal([]byte(raw), &queue); err != nil {
		return nil, fmt.Errorf("failed to decode outbox: %w", err)
	}
	return queue, nil
}

func (o *Outbox) save(ctx context.Context, queue []QueuedMessage) error {
	if len(queue) == 0 {
		return o.kv.Delete(ctx, o.key)
	}
	raw, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("failed to encode outbox: %w", err)
	}
	// 队列不设TTL：离线消息在成功投递前一直保留
	if err := o.kv.Set(ctx, o.key, string(raw), 0); err != nil {
		return fmt.Errorf("failed to save outbox: %w", err)
	}
	return nil
}
