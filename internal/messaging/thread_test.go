package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"whosehouse/internal/gateway"
	"whosehouse/internal/messaging"
	"whosehouse/internal/models"
	"whosehouse/internal/realtime"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	caseID = "C1"
	me     = "user-me"
	other  = "user-other"
)

func baseTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func msg(id string, offset time.Duration, sender, recipient string, status models.MessageStatus) models.Message {
	return models.Message{
		ID:          id,
		CaseID:      caseID,
		SenderID:    sender,
		RecipientID: recipient,
		Content:     "content-" + id,
		Status:      status,
		CreatedAt:   baseTime().Add(offset),
	}
}

func insertEvent(t *testing.T, id string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"type":   "INSERT",
		"table":  "messages",
		"record": map[string]string{"id": id},
	})
	require.NoError(t, err)
	return payload
}

func updateEvent(t *testing.T, id string, status models.MessageStatus) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"type":   "UPDATE",
		"table":  "messages",
		"record": map[string]any{"id": id, "status": status},
	})
	require.NoError(t, err)
	return payload
}

func TestOpenThread_LoadsHistoryAndMarksUnreadRead(t *testing.T) {
	backend := newFakeBackend()
	backend.seed(
		msg("m1", 0, other, me, models.MessageRead),
		msg("m2", time.Minute, other, me, models.MessageDelivered),
		msg("m3", 2*time.Minute, me, other, models.MessageSent),
	)
	ch := realtime.NewFakeChannel()

	thread, err := messaging.OpenThread(context.Background(), backend, ch, nil, caseID, me, zap.NewNop())
	require.NoError(t, err)
	defer thread.Close()

	msgs := thread.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})

	// 发给自己的未读消息补发回执；发出的和已读的不动
	require.Eventually(t, func() bool {
		s, ok := backend.statusOf("m2")
		return ok && s == models.MessageRead
	}, time.Second, 5*time.Millisecond)
	_, touched := backend.statusOf("m1")
	require.False(t, touched)
	_, touched = backend.statusOf("m3")
	require.False(t, touched)

	require.True(t, ch.Subscribed(realtime.CaseMessagesTopic(caseID)))
	require.Equal(t, 0, thread.UnreadCount())
}

func TestThread_InsertEventRefetchesAndAppends(t *testing.T) {
	backend := newFakeBackend()
	backend.seed(msg("m1", 0, me, other, models.MessageSent))
	ch := realtime.NewFakeChannel()

	thread, err := messaging.OpenThread(context.Background(), backend, ch, nil, caseID, me, zap.NewNop())
	require.NoError(t, err)
	defer thread.Close()

	// 推送载荷只带id，完整记录须回查
	backend.seed(msg("m2", time.Minute, other, me, models.MessageSent))
	ch.Deliver(realtime.CaseMessagesTopic(caseID), insertEvent(t, "m2"))

	msgs := thread.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "m2", msgs[1].ID)
	require.Equal(t, "content-m2", msgs[1].Content)

	// 发给自己的新消息立即置读并回执
	require.Equal(t, models.MessageRead, msgs[1].Status)
	require.Eventually(t, func() bool {
		s, ok := backend.statusOf("m2")
		return ok && s == models.MessageRead
	}, time.Second, 5*time.Millisecond)
}

func TestThread_InsertEventKeepsAscendingOrder(t *testing.T) {
	backend := newFakeBackend()
	backend.seed(
		msg("m1", 0, me, other, models.MessageSent),
		msg("m3", 2*time.Minute, me, other, models.MessageSent),
	)
	ch := realtime.NewFakeChannel()

	thread, err := messaging.OpenThread(context.Background(), backend, ch, nil, caseID, me, zap.NewNop())
	require.NoError(t, err)
	defer thread.Close()

	// 迟到的中间消息按created_at插回正确位置
	backend.seed(msg("m2", time.Minute, me, other, models.MessageSent))
	ch.Deliver(realtime.CaseMessagesTopic(caseID), insertEvent(t, "m2"))

	msgs := thread.Messages()
	require.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestThread_DuplicateInsertIgnored(t *testing.T) {
	backend := newFakeBackend()
	backend.seed(msg("m1", 0, me, other, models.MessageSent))
	ch := realtime.NewFakeChannel()

	thread, err := messaging.OpenThread(context.Background(), backend, ch, nil, caseID, me, zap.NewNop())
	require.NoError(t, err)
	defer thread.Close()

	ch.Deliver(realtime.CaseMessagesTopic(caseID), insertEvent(t, "m1"))
	require.Len(t, thread.Messages(), 1)
}

func TestThread_UpdateEventPatchesStatus(t *testing.T) {
	backend := newFakeBackend()
	backend.seed(msg("m1", 0, me, other, models.MessageSent))
	ch := realtime.NewFakeChannel()

	thread, err := messaging.OpenThread(context.Background(), backend, ch, nil, caseID, me, zap.NewNop())
	require.NoError(t, err)
	defer thread.Close()

	ch.Deliver(realtime.CaseMessagesTopic(caseID), updateEvent(t, "m1", models.MessageDelivered))
	require.Equal(t, models.MessageDelivered, thread.Messages()[0].Status)

	ch.Deliver(realtime.CaseMessagesTopic(caseID), updateEvent(t, "m1", models.MessageRead))
	require.Equal(t, models.MessageRead, thread.Messages()[0].Status)
}

func TestThread_StatusNeverRegresses(t *testing.T) {
	backend := newFakeBackend()
	backend.seed(msg("m1", 0, me, other, models.MessageRead))
	ch := realtime.NewFakeChannel()

	thread, err := messaging.OpenThread(context.Background(), backend, ch, nil, caseID, me, zap.NewNop())
	require.NoError(t, err)
	defer thread.Close()

	// 过期的UPDATE不得把read回退
	ch.Deliver(realtime.CaseMessagesTopic(caseID), updateEvent(t, "m1", models.MessageSent))
	require.Equal(t, models.MessageRead, thread.Messages()[0].Status)
	ch.Deliver(realtime.CaseMessagesTopic(caseID), updateEvent(t, "m1", models.MessageDelivered))
	require.Equal(t, models.MessageRead, thread.Messages()[0].Status)
}

func TestThread_CloseUnsubscribesAndDropsLateEvents(t *testing.T) {
	backend := newFakeBackend()
	backend.seed(msg("m1", 0, me, other, models.MessageSent))
	ch := realtime.NewFakeChannel()

	thread, err := messaging.OpenThread(context.Background(), backend, ch, nil, caseID, me, zap.NewNop())
	require.NoError(t, err)

	topic := realtime.CaseMessagesTopic(caseID)
	require.NoError(t, thread.Close())
	require.False(t, ch.Subscribed(topic))

	// 退订后迟到的事件直接丢弃，不得作用于已废弃状态
	backend.seed(msg("m2", time.Minute, other, me, models.MessageSent))
	ch.Deliver(topic, insertEvent(t, "m2"))
	require.Len(t, thread.Messages(), 1)
}

func TestThread_SendAppendsLocally(t *testing.T) {
	backend := newFakeBackend()
	ch := realtime.NewFakeChannel()

	thread, err := messaging.OpenThread(context.Background(), backend, ch, nil, caseID, me, zap.NewNop())
	require.NoError(t, err)
	defer thread.Close()

	res, err := thread.Send(context.Background(), other, "  hello <b>there</b>  ", false)
	require.NoError(t, err)
	require.False(t, res.Queued)
	require.NotNil(t, res.Message)

	sent := backend.sentParams()
	require.Len(t, sent, 1)
	require.Equal(t, "hello there", sent[0].Content)
	require.NotEmpty(t, sent[0].ClientRef)
	require.Len(t, thread.Messages(), 1)
}

func TestThread_SendRejectsInvalidLocally(t *testing.T) {
	backend := newFakeBackend()
	ch := realtime.NewFakeChannel()

	thread, err := messaging.OpenThread(context.Background(), backend, ch, nil, caseID, me, zap.NewNop())
	require.NoError(t, err)
	defer thread.Close()

	_, err = thread.Send(context.Background(), other, "   ", false)
	require.Equal(t, gateway.CodeValidationError, gateway.CodeOf(err))
	require.Empty(t, backend.sentParams())
}

func TestThread_SendQueuesOnNetworkFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFail = func(messaging.SendParams) error {
		return gateway.NewError(gateway.CodeNetworkError, "backend unreachable")
	}
	ch := realtime.NewFakeChannel()
	kv := newTestKV()
	outbox := messaging.NewOutbox(kv, "whosehouse", me, zap.NewNop())

	thread, err := messaging.OpenThread(context.Background(), backend, ch, outbox, caseID, me, zap.NewNop())
	require.NoError(t, err)
	defer thread.Close()

	res, err := thread.Send(context.Background(), other, "offline message", false)
	require.NoError(t, err)
	require.True(t, res.Queued)

	pending, err := outbox.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "offline message", pending[0].Content)
	require.NotEmpty(t, pending[0].ClientRef)
	require.False(t, pending[0].EnqueuedAt.IsZero())
}

func TestThread_SendNonNetworkFailureSurfaced(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFail = func(messaging.SendParams) error {
		return errors.New("row level security violation")
	}
	ch := realtime.NewFakeChannel()
	kv := newTestKV()
	outbox := messaging.NewOutbox(kv, "whosehouse", me, zap.NewNop())

	thread, err := messaging.OpenThread(context.Background(), backend, ch, outbox, caseID, me, zap.NewNop())
	require.NoError(t, err)
	defer thread.Close()

	_, err = thread.Send(context.Background(), other, "hello", false)
	require.Error(t, err)

	pending, err := outbox.Pending(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending, "non-network failures are not queued")
}

func TestThread_UnreadCount(t *testing.T) {
	backend := newFakeBackend()
	backend.seed(
		msg("m1", 0, other, me, models.MessageDelivered),
		msg("m2", time.Minute, other, me, models.MessageDelivered),
		msg("m3", 2*time.Minute, me, other, models.MessageSent),
	)
	ch := realtime.NewFakeChannel()

	thread, err := messaging.OpenThread(context.Background(), backend, ch, nil, caseID, me, zap.NewNop())
	require.NoError(t, err)
	defer thread.Close()

	// 打开线程时发给自己的消息被置读
	require.Equal(t, 0, thread.UnreadCount())
}
