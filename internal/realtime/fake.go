package realtime

import (
	"fmt"
	"sync"
)

// FakeChannel 内存通道实现，供各包单元测试使用
// Publish同步投递给本进程内的订阅者
type FakeChannel struct {
	mu       sync.Mutex
	handlers map[string]MessageHandler
	// 发布记录，供测试断言
	Published []PublishedMessage
}

type PublishedMessage struct {
	Topic   string
	Payload []byte
}

func NewFakeChannel() *FakeChannel {
	return &FakeChannel{handlers: make(map[string]MessageHandler)}
}

func (f *FakeChannel) Subscribe(topic string, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.handlers[topic]; exists {
		return fmt.Errorf("already subscribed to %s", topic)
	}
	f.handlers[topic] = handler
	return nil
}

func (f *FakeChannel) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
	}
	return nil
}

func (f *FakeChannel) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	f.Published = append(f.Published, PublishedMessage{Topic: topic, Payload: payload})
	handler := f.handlers[topic]
	f.mu.Unlock()

	if handler != nil {
		handler(topic, payload)
	}
	return nil
}

// PublishedMessages 发布记录快照
func (f *FakeChannel) PublishedMessages() []PublishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PublishedMessage, len(f.Published))
	copy(out, f.Published)
	return out
}

// Subscribed 是否仍订阅某主题
func (f *FakeChannel) Subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[topic]
	return ok
}

// Deliver 模拟服务端推送
func (f *FakeChannel) Deliver(topic string, payload []byte) {
	f.mu.Lock()
	handler := f.handlers[topic]
	f.mu.Unlock()
	if handler != nil {
		handler(topic, payload)
	}
}
