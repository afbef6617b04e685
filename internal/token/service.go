package token

import (
	"context"
	"fmt"
	"time"

	"whosehouse/internal/gateway"
	"whosehouse/internal/models"
	"whosehouse/internal/validate"

	"go.uber.org/zap"
)

// AllowedExpiryHours Token有效期的枚举集合（小时）
var AllowedExpiryHours = []int{24, 72, 168}

// DefaultExpiryHours 默认有效期
const DefaultExpiryHours = 24

// Service 儿童访问Token工作流
// 签发（已认证社工）、兑换（匿名儿童设备）、以及由Token解锁的单向消息通道
type Service struct {
	gw     *gateway.Client
	scheme string
	logger *zap.Logger
}

// NewService 创建Token服务
// scheme为深链接URI scheme，如"whosehouse"
func NewService(gw *gateway.Client, scheme string, logger *zap.Logger) *Service {
	return &Service{gw: gw, scheme: scheme, logger: logger}
}

// Generated 签发结果
// Token是承载凭证：除签发界面生命周期外不得落地存储，日志只记遮蔽形式
type Generated struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AccessURL string    `json:"access_url"`
}

// ChildSession 兑换后的会话载荷
// 不是持久凭证：每次应用回到前台须用同一Token重新验证，
// 已用Token是否仍可读由后端裁决，客户端不跨重启缓存写能力
type ChildSession struct {
	CaseID           string    `json:"case_id"`
	CaseNumber       string    `json:"case_number"`
	SocialWorkerID   string    `json:"social_worker_id"`
	SocialWorkerName string    `json:"social_worker_name"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Sent 儿童消息发送结果
type Sent struct {
	MessageID string               `json:"message_id"`
	Status    models.MessageStatus `json:"status"`
}

// Generate 为案例签发访问Token并包装成深链接
// 后端按幂等键签发，网络失败可安全退避重试
func (s *Service) Generate(ctx context.Context, caseID string, expiresInHours int) (*Generated, error) {
	if expiresInHours == 0 {
		expiresInHours = DefaultExpiryHours
	}
	if !allowedExpiry(expiresInHours) {
		return nil, gateway.NewError(gateway.CodeValidationError,
			fmt.Sprintf("expiry must be one of %v hours", AllowedExpiryHours))
	}

	params := map[string]any{
		"case_id":          caseID,
		"expires_in_hours": expiresInHours,
	}
	var result struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := s.gw.CallIdempotent(ctx, "generate_child_access_token", params, &result); err != nil {
		return nil, err
	}

	s.logger.Info("Generated child access token",
		zap.String("case_id", caseID),
		zap.String("token", validate.MaskToken(result.Token)),
		zap.Time("expires_at", result.ExpiresAt),
	)

	return &Generated{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		AccessURL: s.AccessURL(result.Token),
	}, nil
}

// AccessURL 构建深链接：{scheme}://child/access/{token}
func (s *Service) AccessURL(token string) string {
	return fmt.Sprintf("%s://child/access/%s", s.scheme, token)
}

// CheckFormat 本地格式预检
// 不合格的Token不发起网络请求，抵御低级滥用与探测
func (s *Service) CheckFormat(token string) validate.Result {
	return validate.ValidateTokenFormat(token)
}

// Redeem 兑换Token
// 兑换有副作用（标记Token已用），单次RPC、绝不重试：
// 盲目重试会触发误报的"already used"。失败原样分类返回
func (s *Service) Redeem(ctx context.Context, token string, device models.DeviceInfo) (*ChildSession, error) {
	if res := s.CheckFormat(token); !res.IsValid {
		return nil, gateway.NewError(gateway.CodeTokenInvalid, "token failed format check")
	}

	params := map[string]any{
		"token":       token,
		"device_info": device,
	}
	var session ChildSession
	if err := s.gw.Call(ctx, "use_child_access_token", params, &session); err != nil {
		classified := gateway.ClassifyTokenError(err)
		s.logger.Warn("Token redemption failed",
			zap.String("token", validate.MaskToken(token)),
			zap.String("code", string(classified.Code)),
		)
		return nil, classified
	}

	s.logger.Info("Token redeemed",
		zap.String("token", validate.MaskToken(token)),
		zap.String("case_id", session.CaseID),
		zap.String("platform", device.Platform),
	)
	return &session, nil
}

// Resume 应用回到前台时的重新验证：重新提交同一Token
func (s *Service) Resume(ctx context.Context, token string, device models.DeviceInfo) (*ChildSession, error) {
	return s.Redeem(ctx, token, device)
}

// SendChildMessage 通过Token通道发送儿童消息（单向）
// 客户端清洗是纵深防御，后端仍做权威校验
// 发送无幂等键，失败不重试，直接交还调用方
func (s *Service) SendChildMessage(ctx context.Context, token string, content string) (*Sent, error) {
	if res := s.CheckFormat(token); !res.IsValid {
		return nil, gateway.NewError(gateway.CodeTokenInvalid, "token failed format check")
	}

	sanitized := validate.SanitizeInput(content, validate.MaxMessageLength)
	if sanitized == "" {
		return nil, gateway.NewError(gateway.CodeValidationError, "message is empty after sanitization")
	}

	params := map[string]any{
		"token":   token,
		"content": sanitized,
	}
	var sent Sent
	if err := s.gw.Call(ctx, "send_child_message", params, &sent); err != nil {
		return nil, err
	}
	return &sent, nil
}

func allowedExpiry(hours int) bool {
	for _, h := range AllowedExpiryHours {
		if h == hours {
			return true
		}
	}
	return false
}
