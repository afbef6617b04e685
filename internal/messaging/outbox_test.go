package messaging_test

import (
	"context"
	"testing"

	"whosehouse/internal/gateway"
	"whosehouse/internal/messaging"
	"whosehouse/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestKV() store.KVStore {
	return store.NewFakeKVStore()
}

func enqueue(t *testing.T, o *messaging.Outbox, ref, content string) {
	t.Helper()
	err := o.Enqueue(context.Background(), messaging.SendParams{
		CaseID:      caseID,
		RecipientID: other,
		Content:     content,
		ClientRef:   ref,
	})
	require.NoError(t, err)
}

func TestOutbox_FIFOAndDurable(t *testing.T) {
	kv := newTestKV()
	outbox := messaging.NewOutbox(kv, "whosehouse", me, zap.NewNop())

	enqueue(t, outbox, "r1", "first")
	enqueue(t, outbox, "r2", "second")

	// 同一KV上重新构造：队列持久、顺序不变
	reopened := messaging.NewOutbox(kv, "whosehouse", me, zap.NewNop())
	pending, err := reopened.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "first", pending[0].Content)
	require.Equal(t, "second", pending[1].Content)
}

func TestOutbox_FlushKeepsFailuresInOriginalOrder(t *testing.T) {
	kv := newTestKV()
	outbox := messaging.NewOutbox(kv, "whosehouse", me, zap.NewNop())
	enqueue(t, outbox, "r1", "m1")
	enqueue(t, outbox, "r2", "m2")
	enqueue(t, outbox, "r3", "m3")

	backend := newFakeBackend()
	backend.sendFail = func(p messaging.SendParams) error {
		if p.Content == "m2" {
			return gateway.NewError(gateway.CodeNetworkError, "still offline")
		}
		return nil
	}

	delivered, err := outbox.Flush(context.Background(), backend)
	require.NoError(t, err)
	require.Equal(t, 2, delivered)

	// m1和m3成功移除，m2按原位置保留：不重排、不丢弃
	pending, err := outbox.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "m2", pending[0].Content)

	// 重试携带同一幂等键，服务端可据此去重
	require.Equal(t, "r2", pending[0].ClientRef)

	backend.sendFail = nil
	delivered, err = outbox.Flush(context.Background(), backend)
	require.NoError(t, err)
	require.Equal(t, 1, delivered)

	pending, err = outbox.Pending(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)

	sent := backend.sentParams()
	require.Equal(t, []string{"r1", "r3", "r2"}, []string{sent[0].ClientRef, sent[1].ClientRef, sent[2].ClientRef})
}

func TestOutbox_FlushEmptyQueueIsNoop(t *testing.T) {
	outbox := messaging.NewOutbox(newTestKV(), "whosehouse", me, zap.NewNop())
	delivered, err := outbox.Flush(context.Background(), newFakeBackend())
	require.NoError(t, err)
	require.Zero(t, delivered)
}
