package household

import (
	"context"
	"fmt"

	"whosehouse/internal/gateway"
	"whosehouse/internal/models"
	"whosehouse/internal/realtime"
	"whosehouse/internal/validate"

	"go.uber.org/zap"
)

// Service 家庭/安置领域操作
// 每个操作是一次具名RPC：成员关系、主要照护人唯一性、容量与匹配规则
// 全部由后端裁决，客户端只提交提案并在成功后刷新本地副本
type Service struct {
	gw     *gateway.Client
	logger *zap.Logger
}

func NewService(gw *gateway.Client, logger *zap.Logger) *Service {
	return &Service{gw: gw, logger: logger}
}

// Get 刷新家庭记录（含容量与可用状态）
func (s *Service) Get(ctx context.Context, householdID string) (*models.Household, error) {
	var h models.Household
	if err := s.gw.Get(ctx, "/rest/households/"+householdID, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Invite 邀请寄养人加入家庭
func (s *Service) Invite(ctx context.Context, householdID, email string) (*models.HouseholdInvitation, error) {
	if res := validate.ValidateEmail(email); !res.IsValid {
		return nil, gateway.NewError(gateway.CodeValidationError, res.Errors[0])
	}
	params := map[string]any{
		"household_id": householdID,
		"email":        email,
	}
	var inv models.HouseholdInvitation
	if err := s.gw.Call(ctx, "invite_household_member", params, &inv); err != nil {
		return nil, err
	}
	s.logger.Info("Household invitation sent",
		zap.String("household_id", householdID),
		zap.String("email", validate.MaskEmail(email)),
	)
	return &inv, nil
}

// RespondInvitation 接受或拒绝邀请
func (s *Service) RespondInvitation(ctx context.Context, invitationID string, accept bool) error {
	params := map[string]any{
		"invitation_id": invitationID,
		"accept":        accept,
	}
	return s.gw.Call(ctx, "respond_household_invitation", params, nil)
}

// TransferPrimary 转移主要照护人身份
// 家庭有成员时该身份永不空缺：转移是原子的后端操作
func (s *Service) TransferPrimary(ctx context.Context, householdID, toProfileID string) error {
	params := map[string]any{
		"household_id":  householdID,
		"to_profile_id": toProfileID,
	}
	if err := s.gw.Call(ctx, "transfer_primary_carer", params, nil); err != nil {
		return err
	}
	s.logger.Info("Primary carer transferred",
		zap.String("household_id", householdID),
		zap.String("to_profile_id", toProfileID),
	)
	return nil
}

// Leave 离开家庭
func (s *Service) Leave(ctx context.Context, householdID string) error {
	params := map[string]any{"household_id": householdID}
	return s.gw.Call(ctx, "leave_household", params, nil)
}

// UpdateCapacity 更新容量信息
func (s *Service) UpdateCapacity(ctx context.Context, householdID string, totalBedrooms int, allowsSharing bool) (*models.Household, error) {
	if totalBedrooms < 0 {
		return nil, gateway.NewError(gateway.CodeValidationError, "bedroom count cannot be negative")
	}
	params := map[string]any{
		"household_id":         householdID,
		"total_bedrooms":       totalBedrooms,
		"allows_house_sharing": allowsSharing,
	}
	if err := s.gw.Call(ctx, "update_household_capacity", params, nil); err != nil {
		return nil, err
	}
	return s.Get(ctx, householdID)
}

// UpdateAvailability 更新可用状态
func (s *Service) UpdateAvailability(ctx context.Context, householdID string, status models.AvailabilityStatus) (*models.Household, error) {
	switch status {
	case models.AvailabilityAvailable, models.AvailabilityAway, models.AvailabilityFull:
	default:
		return nil, gateway.NewError(gateway.CodeValidationError,
			fmt.Sprintf("unknown availability status %q", status))
	}
	params := map[string]any{
		"household_id":        householdID,
		"availability_status": status,
	}
	if err := s.gw.Call(ctx, "update_household_availability", params, nil); err != nil {
		return nil, err
	}
	return s.Get(ctx, householdID)
}

// SearchAvailable 查询可接收安置的家庭
func (s *Service) SearchAvailable(ctx context.Context) ([]models.Household, error) {
	var households []models.Household
	if err := s.gw.Get(ctx, "/rest/households?availability_status=available", &households); err != nil {
		return nil, err
	}
	return households, nil
}

// CreateCase 创建案例（社工；初始状态pending）
func (s *Service) CreateCase(ctx context.Context, caseNumber string) (*models.Case, error) {
	if caseNumber == "" {
		return nil, gateway.NewError(gateway.CodeValidationError, "case number is required")
	}
	params := map[string]any{"case_number": caseNumber}
	var c models.Case
	if err := s.gw.Call(ctx, "create_case", params, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SendPlacementRequest 向家庭发出安置请求
func (s *Service) SendPlacementRequest(ctx context.Context, caseID, householdID string) (*models.PlacementRequest, error) {
	params := map[string]any{
		"case_id":      caseID,
		"household_id": householdID,
	}
	var pr models.PlacementRequest
	if err := s.gw.Call(ctx, "send_placement_request", params, &pr); err != nil {
		return nil, err
	}
	s.logger.Info("Placement request sent",
		zap.String("case_id", caseID),
		zap.String("household_id", householdID),
	)
	return &pr, nil
}

// RespondPlacementRequest 家庭方接受或拒绝安置请求
// 终态不可变：对已到终态的请求后端会拒绝
func (s *Service) RespondPlacementRequest(ctx context.Context, requestID string, accept bool) error {
	params := map[string]any{
		"request_id": requestID,
		"accept":     accept,
	}
	return s.gw.Call(ctx, "respond_placement_request", params, nil)
}

// PendingPlacements 某家庭名下待处理的安置请求
func (s *Service) PendingPlacements(ctx context.Context, householdID string) ([]models.PlacementRequest, error) {
	var requests []models.PlacementRequest
	path := fmt.Sprintf("/rest/households/%s/placement_requests?status=pending", householdID)
	if err := s.gw.Get(ctx, path, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// PlacementWatch 家庭安置请求流的订阅句柄
type PlacementWatch struct {
	channel realtime.Channel
	topic   string
}

// WatchPlacements 订阅某家庭的安置请求变更流
// onChange在每次INSERT/UPDATE后收到重新拉取的待处理列表
func (s *Service) WatchPlacements(channel realtime.Channel, householdID string, onChange func(*realtime.ChangeEvent)) (*PlacementWatch, error) {
	topic := realtime.HouseholdPlacementsTopic(householdID)
	handler := func(_ string, payload []byte) {
		ev, err := realtime.ParseChangeEvent(payload)
		if err != nil {
			s.logger.Warn("Dropping malformed placement event", zap.Error(err))
			return
		}
		onChange(ev)
	}
	if err := channel.Subscribe(topic, handler); err != nil {
		return nil, err
	}
	return &PlacementWatch{channel: channel, topic: topic}, nil
}

// Close 退订安置请求流
func (w *PlacementWatch) Close() error {
	return w.channel.Unsubscribe(w.topic)
}
