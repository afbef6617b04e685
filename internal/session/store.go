package session

import (
	"sync"

	"whosehouse/internal/models"
)

// Session 当前登录会话
type Session struct {
	UserID  string
	Token   string
	Profile *models.Profile
}

// Store 显式的会话存储
// 进程内构造一次、按引用传给需要的组件；不提供环境全局查找。
// 订阅者在登录/登出时收到最新会话（登出为nil）
type Store struct {
	mu      sync.Mutex
	current *Session
	subs    map[int]func(*Session)
	nextID  int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]func(*Session))}
}

// Current 当前会话，未登录返回nil
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}

// SignIn 写入新会话并通知订阅者
func (s *Store) SignIn(sess Session) {
	s.mu.Lock()
	s.current = &sess
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(&sess)
	}
}

// SignOut 清除会话并通知订阅者
func (s *Store) SignOut() {
	s.mu.Lock()
	s.current = nil
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(nil)
	}
}

// Subscribe 订阅会话变更，返回退订函数
func (s *Store) Subscribe(fn func(*Session)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// snapshotSubs 持锁调用
func (s *Store) snapshotSubs() []func(*Session) {
	out := make([]func(*Session), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
