package messaging

import (
	"context"
	"fmt"

	"whosehouse/internal/gateway"
	"whosehouse/internal/models"
)

// SendParams 消息发送参数
// ClientRef是客户端生成的幂等键：离线队列重试时后端据此去重
type SendParams struct {
	CaseID      string `json:"case_id"`
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
	IsUrgent    bool   `json:"is_urgent"`
	ClientRef   string `json:"client_ref,omitempty"`
}

// Backend 消息核心所需的后端操作（单元测试中以fake替换）
type Backend interface {
	// FetchMessages 拉取案例全量消息历史，按创建时间升序，含展示join
	FetchMessages(ctx context.Context, caseID string) ([]models.Message, error)
	// FetchMessage 按id回查单条消息（含join）
	FetchMessage(ctx context.Context, messageID string) (*models.Message, error)
	// SendMessage 发送消息（fire-once）
	SendMessage(ctx context.Context, params SendParams) (*models.Message, error)
	// UpdateMessageStatus 推进消息状态（fire-once）
	UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus) error
	// CountUnread 当前用户的未读消息数
	CountUnread(ctx context.Context, userID string) (int, error)
}

// GatewayBackend 经由后端网关的Backend实现
type GatewayBackend struct {
	gw *gateway.Client
}

func NewGatewayBackend(gw *gateway.Client) *GatewayBackend {
	return &GatewayBackend{gw: gw}
}

func (b *GatewayBackend) FetchMessages(ctx context.Context, caseID string) ([]models.Message, error) {
	var messages []models.Message
	path := fmt.Sprintf("/rest/cases/%s/messages?order=created_at.asc", caseID)
	if err := b.gw.Get(ctx, path, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (b *GatewayBackend) FetchMessage(ctx context.Context, messageID string) (*models.Message, error) {
	var message models.Message
	if err := b.gw.Get(ctx, "/rest/messages/"+messageID, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (b *GatewayBackend) SendMessage(ctx context.Context, params SendParams) (*models.Message, error) {
	var message models.Message
	if err := b.gw.Call(ctx, "send_message", params, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (b *GatewayBackend) UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus) error {
	params := map[string]any{
		"message_id": messageID,
		"new_status": status,
	}
	return b.gw.Call(ctx, "update_message_status", params, nil)
}

func (b *GatewayBackend) CountUnread(ctx context.Context, userID string) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	if err := b.gw.Get(ctx, "/rest/users/"+userID+"/unread_count", &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}
