package admin

import (
	"context"

	"whosehouse/internal/gateway"
	"whosehouse/internal/models"
	"whosehouse/internal/validate"

	"go.uber.org/zap"
)

// Service 机构管理员操作
// 角色变更、账号启停、社工指派均为后端RPC；客户端不做权限判断，
// 只透传后端的UNAUTHORIZED
type Service struct {
	gw     *gateway.Client
	logger *zap.Logger
}

func NewService(gw *gateway.Client, logger *zap.Logger) *Service {
	return &Service{gw: gw, logger: logger}
}

// Permissions 当前用户的能力标志
type Permissions struct {
	CanManageUsers   bool `json:"can_manage_users"`
	CanManageCases   bool `json:"can_manage_cases"`
	CanViewOrgStats  bool `json:"can_view_org_stats"`
	CanIssueTokens   bool `json:"can_issue_tokens"`
	CanAssignWorkers bool `json:"can_assign_workers"`
}

// GetPermissions 查询当前用户的能力标志
func (s *Service) GetPermissions(ctx context.Context) (*Permissions, error) {
	var p Permissions
	if err := s.gw.CallIdempotent(ctx, "get_user_permissions", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateUser 创建用户（角色在创建时确定，此后仅admin可改）
func (s *Service) CreateUser(ctx context.Context, email, fullName string, role models.Role) (*models.Profile, error) {
	if res := validate.ValidateEmail(email); !res.IsValid {
		return nil, gateway.NewError(gateway.CodeValidationError, res.Errors[0])
	}
	switch role {
	case models.RoleSocialWorker, models.RoleFosterCarer, models.RoleAdmin:
	default:
		return nil, gateway.NewError(gateway.CodeValidationError, "unknown role")
	}

	params := map[string]any{
		"email":     email,
		"full_name": fullName,
		"role":      role,
	}
	var profile models.Profile
	if err := s.gw.Call(ctx, "admin_create_user", params, &profile); err != nil {
		return nil, err
	}
	s.logger.Info("User created",
		zap.String("profile_id", profile.ID),
		zap.String("email", validate.MaskEmail(email)),
		zap.String("role", string(role)),
	)
	return &profile, nil
}

// DeactivateUser 停用账号
func (s *Service) DeactivateUser(ctx context.Context, profileID string) error {
	return s.gw.Call(ctx, "admin_deactivate_user", map[string]any{"profile_id": profileID}, nil)
}

// ReactivateUser 恢复账号
func (s *Service) ReactivateUser(ctx context.Context, profileID string) error {
	return s.gw.Call(ctx, "admin_reactivate_user", map[string]any{"profile_id": profileID}, nil)
}

// AssignSocialWorker 为案例指派社工
func (s *Service) AssignSocialWorker(ctx context.Context, caseID, socialWorkerID string) error {
	params := map[string]any{
		"case_id":          caseID,
		"social_worker_id": socialWorkerID,
	}
	return s.gw.Call(ctx, "admin_assign_social_worker", params, nil)
}

// OrgStats 机构统计（只读，可重试）
func (s *Service) OrgStats(ctx context.Context) (*models.OrgStats, error) {
	var stats models.OrgStats
	if err := s.gw.CallIdempotent(ctx, "get_org_stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
