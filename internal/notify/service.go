package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"whosehouse/internal/gateway"
	"whosehouse/internal/models"
	"whosehouse/internal/store"

	"go.uber.org/zap"
)

// Category 通知类别
type Category string

const (
	CategoryMessages    Category = "messages"
	CategoryCaseUpdates Category = "case_updates"
	CategoryChildAccess Category = "child_access"
)

// Service 通知偏好引擎
// 进程级单例：启动时构造一次、注入到使用方；Initialize幂等，
// 首次成功之后的调用均为no-op
type Service struct {
	gw     *gateway.Client
	kv     store.KVStore
	prefix string
	userID string
	logger *zap.Logger

	mu          sync.Mutex
	prefs       models.NotificationPreferences
	initialized bool
}

// Patch 偏好的部分更新（nil字段不变）
// UrgentMessages不可设置：恒为true
type Patch struct {
	Enabled           *bool   `json:"enabled,omitempty"`
	Messages          *bool   `json:"messages,omitempty"`
	CaseUpdates       *bool   `json:"case_updates,omitempty"`
	ChildAccess       *bool   `json:"child_access,omitempty"`
	QuietHoursEnabled *bool   `json:"quiet_hours_enabled,omitempty"`
	QuietHoursStart   *string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd     *string `json:"quiet_hours_end,omitempty"`
}

// NewService 创建通知偏好服务
func NewService(gw *gateway.Client, kv store.KVStore, prefix, userID string, logger *zap.Logger) *Service {
	return &Service{
		gw:     gw,
		kv:     kv,
		prefix: prefix,
		userID: userID,
		logger: logger,
		prefs:  models.DefaultNotificationPreferences(),
	}
}

// Initialize 懒加载偏好：本地缓存 → 远端 → 默认值
// 幂等：首次成功后重复调用直接返回
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	if raw, err := s.kv.Get(ctx, s.prefsKey()); err == nil {
		var cached models.NotificationPreferences
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			s.prefs = normalize(cached)
			s.initialized = true
			return nil
		}
		s.logger.Warn("Discarding corrupt cached preferences")
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to read cached preferences: %w", err)
	}

	var remote models.NotificationPreferences
	if err := s.gw.CallIdempotent(ctx, "get_notification_preferences", nil, &remote); err != nil {
		// 远端不可达时以默认值起步，不阻塞初始化
		s.logger.Warn("Falling back to default notification preferences",
			zap.String("code", string(gateway.CodeOf(err))),
		)
		s.prefs = models.DefaultNotificationPreferences()
		s.initialized = true
		return nil
	}

	s.prefs = normalize(remote)
	s.cacheLocked(ctx)
	s.initialized = true
	return nil
}

// Preferences 当前偏好快照
func (s *Service) Preferences() models.NotificationPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Update 乐观更新：先本地生效，远端确认失败则回滚到最后已知良好快照
// 合并基于最新状态而非捕获的旧快照，避免吞掉刚到达的远端变更
func (s *Service) Update(ctx context.Context, patch Patch) error {
	s.mu.Lock()
	lastGood := s.prefs
	next := applyPatch(s.prefs, patch)
	s.prefs = next
	s.cacheLocked(ctx)
	s.mu.Unlock()

	// 偏好更新是有状态的一次性写：不重试
	if err := s.gw.Call(ctx, "update_notification_preferences", next, nil); err != nil {
		s.mu.Lock()
		s.prefs = lastGood
		s.cacheLocked(ctx)
		s.mu.Unlock()
		s.logger.Warn("Preference update rejected, rolled back",
			zap.String("code", string(gateway.CodeOf(err))),
		)
		return err
	}
	return nil
}

// ShouldDeliver 判定某通知此刻是否应投递
// 紧急消息永远投递（不受总开关、类别开关与免打扰约束）
func (s *Service) ShouldDeliver(category Category, urgent bool, now time.Time) bool {
	if urgent {
		return true
	}

	s.mu.Lock()
	prefs := s.prefs
	s.mu.Unlock()

	if !prefs.Enabled {
		return false
	}
	switch category {
	case CategoryMessages:
		if !prefs.Messages {
			return false
		}
	case CategoryCaseUpdates:
		if !prefs.CaseUpdates {
			return false
		}
	case CategoryChildAccess:
		if !prefs.ChildAccess {
			return false
		}
	}
	if prefs.QuietHoursEnabled && inQuietHours(prefs.QuietHoursStart, prefs.QuietHoursEnd, now) {
		return false
	}
	return true
}

// RegisterPushToken 注册推送Token并缓存到本地
func (s *Service) RegisterPushToken(ctx context.Context, token, platform string, device models.DeviceInfo) error {
	params := map[string]any{
		"token":       token,
		"platform":    platform,
		"device_info": device,
	}
	if err := s.gw.Call(ctx, "register_push_token", params, nil); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, store.PushTokenKey(s.prefix), token, 0); err != nil {
		s.logger.Warn("Failed to cache push token", zap.Error(err))
	}
	return nil
}

// CachedPushToken 本地缓存的推送Token，无则返回空串
func (s *Service) CachedPushToken(ctx context.Context) string {
	raw, err := s.kv.Get(ctx, store.PushTokenKey(s.prefix))
	if err != nil {
		return ""
	}
	return raw
}

func (s *Service) prefsKey() string {
	return store.PreferencesKey(s.prefix, s.userID)
}

// cacheLocked 持锁写本地缓存
func (s *Service) cacheLocked(ctx context.Context) {
	raw, err := json.Marshal(s.prefs)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, s.prefsKey(), string(raw), 0); err != nil {
		s.logger.Warn("Failed to cache notification preferences", zap.Error(err))
	}
}

func applyPatch(prefs models.NotificationPreferences, patch Patch) models.NotificationPreferences {
	if patch.Enabled != nil {
		prefs.Enabled = *patch.Enabled
	}
	if patch.Messages != nil {
		prefs.Messages = *patch.Messages
	}
	if patch.CaseUpdates != nil {
		prefs.CaseUpdates = *patch.CaseUpdates
	}
	if patch.ChildAccess != nil {
		prefs.ChildAccess = *patch.ChildAccess
	}
	if patch.QuietHoursEnabled != nil {
		prefs.QuietHoursEnabled = *patch.QuietHoursEnabled
	}
	if patch.QuietHoursStart != nil {
		prefs.QuietHoursStart = *patch.QuietHoursStart
	}
	if patch.QuietHoursEnd != nil {
		prefs.QuietHoursEnd = *patch.QuietHoursEnd
	}
	return normalize(prefs)
}

// normalize 强制不变量：紧急消息通知不可关闭
func normalize(prefs models.NotificationPreferences) models.NotificationPreferences {
	prefs.UrgentMessages = true
	return prefs
}

// inQuietHours 免打扰窗口判定，支持跨午夜（如22:00–07:00）
func inQuietHours(start, end string, now time.Time) bool {
	startMin, okS := parseClock(start)
	endMin, okE := parseClock(end)
	if !okS || !okE || startMin == endMin {
		return false
	}
	nowMin := now.Hour()*60 + now.Minute()
	if startMin < endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	// 跨午夜
	return nowMin >= startMin || nowMin < endMin
}

func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
