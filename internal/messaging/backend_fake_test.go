package messaging_test

import (
	"context"
	"fmt"
	"sync"

	"whosehouse/internal/messaging"
	"whosehouse/internal/models"
)

// fakeBackend in-memory Backend for unit tests
type fakeBackend struct {
	mu       sync.Mutex
	messages map[string]models.Message
	order    []string

	// sendFail returns an error for matching content (simulates offline/partial failure)
	sendFail func(params messaging.SendParams) error
	sent     []messaging.SendParams

	statusUpdates map[string]models.MessageStatus
	statusErr     error

	unread int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		messages:      make(map[string]models.Message),
		statusUpdates: make(map[string]models.MessageStatus),
	}
}

func (f *fakeBackend) seed(msgs ...models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.messages[m.ID] = m
		f.order = append(f.order, m.ID)
	}
}

func (f *fakeBackend) FetchMessages(ctx context.Context, caseID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, id := range f.order {
		if m := f.messages[id]; m.CaseID == caseID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeBackend) FetchMessage(ctx context.Context, messageID string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("message not found: %s", messageID)
	}
	return &m, nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, params messaging.SendParams) (*models.Message, error) {
	f.mu.Lock()
	failFn := f.sendFail
	f.mu.Unlock()
	if failFn != nil {
		if err := failFn(params); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, params)
	msg := models.Message{
		ID:          fmt.Sprintf("srv-%d", len(f.sent)),
		CaseID:      params.CaseID,
		RecipientID: params.RecipientID,
		Content:     params.Content,
		IsUrgent:    params.IsUrgent,
		Status:      models.MessageSent,
	}
	f.messages[msg.ID] = msg
	f.order = append(f.order, msg.ID)
	return &msg, nil
}

func (f *fakeBackend) UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusUpdates[messageID] = status
	return nil
}

func (f *fakeBackend) CountUnread(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread, nil
}

func (f *fakeBackend) sentParams() []messaging.SendParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]messaging.SendParams, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeBackend) statusOf(messageID string) (models.MessageStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statusUpdates[messageID]
	return s, ok
}

func (f *fakeBackend) setUnread(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread = n
}
