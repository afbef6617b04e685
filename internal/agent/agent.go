package agent

import (
	"context"
	"fmt"
	"time"

	"whosehouse/internal/admin"
	"whosehouse/internal/config"
	"whosehouse/internal/gateway"
	"whosehouse/internal/household"
	"whosehouse/internal/messaging"
	"whosehouse/internal/notify"
	"whosehouse/internal/realtime"
	"whosehouse/internal/session"
	"whosehouse/internal/store"
	"whosehouse/internal/token"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 离线队列的周期同步间隔
const outboxSyncInterval = 30 * time.Second

// Agent WhoseHouse客户端运行时
// 组装后端网关、实时通道、本地存储与各领域服务；
// 会话登录后挂载按用户的离线队列、未读角标与通知偏好
type Agent struct {
	config *config.Config
	logger *zap.Logger

	redisClient *redis.Client
	mqttClient  *realtime.Client
	kv          store.KVStore
	gw          *gateway.Client
	backend     messaging.Backend

	Sessions   *session.Store
	Tokens     *token.Service
	Households *household.Service
	Admin      *admin.Service

	// 按会话挂载的组件（登出时为nil）
	Notifications *notify.Service
	Outbox        *messaging.Outbox
	Unread        *messaging.UnreadCounter

	unsubscribeSession func()
	stopSync           chan struct{}
}

// NewAgent 创建客户端运行时并连接本地基础设施
func NewAgent(cfg *config.Config, logger *zap.Logger) (*Agent, error) {
	redisClient := store.NewRedisClient(&cfg.Redis)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	mqttClient, err := realtime.NewClient(&cfg.MQTT, logger)
	if err != nil {
		redisClient.Close()
		return nil, err
	}

	gw := gateway.New(&cfg.Backend, logger)
	kv := store.NewRedisKVStore(redisClient)

	a := &Agent{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		kv:          kv,
		gw:          gw,
		backend:     messaging.NewGatewayBackend(gw),
		Sessions:    session.NewStore(),
		Tokens:      token.NewService(gw, cfg.App.DeepLinkScheme, logger),
		Households:  household.NewService(gw, logger),
		Admin:       admin.NewService(gw, logger),
	}
	a.unsubscribeSession = a.Sessions.Subscribe(a.onSessionChange)
	return a, nil
}

// Channel 实时通道（供线程/输入指示等界面层组件订阅）
func (a *Agent) Channel() realtime.Channel {
	return a.mqttClient
}

// Backend 消息后端（供线程组件使用）
func (a *Agent) Backend() messaging.Backend {
	return a.backend
}

// OpenThread 打开某案例的消息线程
func (a *Agent) OpenThread(ctx context.Context, caseID string) (*messaging.Thread, error) {
	sess := a.Sessions.Current()
	if sess == nil {
		return nil, gateway.NewError(gateway.CodeUnauthorized, "not signed in")
	}
	return messaging.OpenThread(ctx, a.backend, a.mqttClient, a.Outbox, caseID, sess.UserID, a.logger)
}

// onSessionChange 会话变更：挂载/卸载按用户的组件
func (a *Agent) onSessionChange(sess *session.Session) {
	a.teardownUserComponents()
	if sess == nil {
		a.gw.SetSessionToken("")
		a.logger.Info("Signed out")
		return
	}

	a.gw.SetSessionToken(sess.Token)
	prefix := a.config.App.StoragePrefix

	a.Notifications = notify.NewService(a.gw, a.kv, prefix, sess.UserID, a.logger)
	if err := a.Notifications.Initialize(context.Background()); err != nil {
		a.logger.Warn("Failed to initialize notification preferences", zap.Error(err))
	}

	a.Outbox = messaging.NewOutbox(a.kv, prefix, sess.UserID, a.logger)

	unread, err := messaging.NewUnreadCounter(context.Background(), a.backend, a.mqttClient, sess.UserID, nil, a.logger)
	if err != nil {
		a.logger.Warn("Failed to start unread counter", zap.Error(err))
	} else {
		a.Unread = unread
	}

	a.stopSync = make(chan struct{})
	go a.syncLoop(a.Outbox, a.stopSync)

	a.logger.Info("Signed in", zap.String("user_id", sess.UserID))
}

// syncLoop 周期性冲刷离线队列
func (a *Agent) syncLoop(outbox *messaging.Outbox, stop chan struct{}) {
	ticker := time.NewTicker(outboxSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), outboxSyncInterval)
			if _, err := outbox.Flush(ctx, a.backend); err != nil {
				a.logger.Warn("Outbox sync failed", zap.Error(err))
			}
			cancel()
		case <-stop:
			return
		}
	}
}

func (a *Agent) teardownUserComponents() {
	if a.stopSync != nil {
		close(a.stopSync)
		a.stopSync = nil
	}
	if a.Unread != nil {
		if err := a.Unread.Close(); err != nil {
			a.logger.Warn("Failed to close unread counter", zap.Error(err))
		}
		a.Unread = nil
	}
	a.Notifications = nil
	a.Outbox = nil
}

// Stop 优雅关闭：卸载会话组件、断开通道与本地存储
func (a *Agent) Stop(ctx context.Context) error {
	a.unsubscribeSession()
	a.teardownUserComponents()
	a.mqttClient.Disconnect()
	if err := a.redisClient.Close(); err != nil {
		return fmt.Errorf("failed to close redis: %w", err)
	}
	a.logger.Info("Agent stopped")
	return nil
}
