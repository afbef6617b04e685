package models

import "time"

// Role 用户角色
type Role string

const (
	RoleSocialWorker Role = "social_worker"
	RoleFosterCarer  Role = "foster_carer"
	RoleAdmin        Role = "admin"
)

// Profile 用户身份记录（后端权威，客户端只读副本）
type Profile struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Email          string     `json:"email"`
	FullName       string     `json:"full_name"`
	Role           Role       `json:"role"`
	HouseholdID    string     `json:"household_id,omitempty"`
	IsPrimaryCarer bool       `json:"is_primary_carer"`
	IsActive       bool       `json:"is_active"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

// AvailabilityStatus 家庭可用状态
type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "available"
	AvailabilityAway      AvailabilityStatus = "away"
	AvailabilityFull      AvailabilityStatus = "full"
)

// Household 寄养家庭
type Household struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	OrganizationID     string             `json:"organization_id"`
	AddressLine1       string             `json:"address_line1"`
	AddressLine2       string             `json:"address_line2,omitempty"`
	City               string             `json:"city"`
	Postcode           string             `json:"postcode"`
	TotalBedrooms      int                `json:"total_bedrooms"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status"`
	AllowsHouseSharing bool               `json:"allows_house_sharing"`
}

// CaseStatus 案例状态（单向：pending → active → closed）
type CaseStatus string

const (
	CasePending CaseStatus = "pending"
	CaseActive  CaseStatus = "active"
	CaseClosed  CaseStatus = "closed"
)

// Case 儿童案例
type Case struct {
	ID             string     `json:"id"`
	CaseNumber     string     `json:"case_number"`
	SocialWorkerID string     `json:"social_worker_id"`
	FosterCarerID  string     `json:"foster_carer_id,omitempty"`
	HouseholdID    string     `json:"household_id,omitempty"`
	Status         CaseStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TokenStatus 儿童访问Token状态（active之外全部为终态）
type TokenStatus string

const (
	TokenActive  TokenStatus = "active"
	TokenUsed    TokenStatus = "used"
	TokenExpired TokenStatus = "expired"
	TokenRevoked TokenStatus = "revoked"
)

// ChildAccessToken 儿童访问Token记录（token_hash仅存于后端，客户端永不持有）
type ChildAccessToken struct {
	ID         string      `json:"id"`
	CaseID     string      `json:"case_id"`
	Status     TokenStatus `json:"status"`
	ExpiresAt  time.Time   `json:"expires_at"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo 兑换Token时上报的设备审计快照
type DeviceInfo struct {
	Platform   string `json:"platform"`
	AppVersion string `json:"app_version"`
	OSVersion  string `json:"os_version"`
	UserAgent  string `json:"user_agent"`
}

// MessageStatus 消息状态（单调：sent → delivered → read，不回退）
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

// StatusRank 消息状态的单调序（用于拒绝回退的状态更新）
func (s MessageStatus) StatusRank() int {
	switch s {
	case MessageSent:
		return 1
	case MessageDelivered:
		return 2
	case MessageRead:
		return 3
	}
	return 0
}

// Message 案例消息
// SenderID为空表示由儿童通过Token通道发送（无账号）
type Message struct {
	ID          string        `json:"id"`
	SenderID    string        `json:"sender_id,omitempty"`
	RecipientID string        `json:"recipient_id"`
	CaseID      string        `json:"case_id"`
	Content     string        `json:"content"`
	Status      MessageStatus `json:"status"`
	IsUrgent    bool          `json:"is_urgent"`
	CreatedAt   time.Time     `json:"created_at"`

	// 展示用的关联数据（历史拉取时由后端join）
	SenderName    string `json:"sender_name,omitempty"`
	RecipientName string `json:"recipient_name,omitempty"`
	CaseNumber    string `json:"case_number,omitempty"`
}

// PlacementStatus 安置请求状态（终态不可变）
type PlacementStatus string

const (
	PlacementPending   PlacementStatus = "pending"
	PlacementAccepted  PlacementStatus = "accepted"
	PlacementDeclined  PlacementStatus = "declined"
	PlacementExpired   PlacementStatus = "expired"
	PlacementCancelled PlacementStatus = "cancelled"
)

// PlacementRequest 安置请求
type PlacementRequest struct {
	ID          string          `json:"id"`
	CaseID      string          `json:"case_id"`
	HouseholdID string          `json:"household_id"`
	Status      PlacementStatus `json:"status"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// InvitationStatus 家庭邀请状态
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// HouseholdInvitation 家庭成员邀请
type HouseholdInvitation struct {
	ID          string           `json:"id"`
	HouseholdID string           `json:"household_id"`
	Email       string           `json:"email"`
	Status      InvitationStatus `json:"status"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

// NotificationPreferences 通知偏好（本地与远端镜像）
// UrgentMessages恒为true，不可由用户关闭
type NotificationPreferences struct {
	Enabled           bool   `json:"enabled"`
	Messages          bool   `json:"messages"`
	UrgentMessages    bool   `json:"urgent_messages"`
	CaseUpdates       bool   `json:"case_updates"`
	ChildAccess       bool   `json:"child_access"`
	QuietHoursEnabled bool   `json:"quiet_hours_enabled"`
	QuietHoursStart   string `json:"quiet_hours_start"` // "HH:MM"
	QuietHoursEnd     string `json:"quiet_hours_end"`   // "HH:MM"
}

// DefaultNotificationPreferences 默认通知偏好
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Enabled:           true,
		Messages:          true,
		UrgentMessages:    true,
		CaseUpdates:       true,
		ChildAccess:       true,
		QuietHoursEnabled: false,
		QuietHoursStart:   "22:00",
		QuietHoursEnd:     "07:00",
	}
}

// OrgStats 机构统计（admin RPC返回）
type OrgStats struct {
	OrganizationID    string `json:"organization_id"`
	OrganizationName  string `json:"organization_name"`
	ActiveUsers       int    `json:"active_users"`
	SocialWorkers     int    `json:"social_workers"`
	FosterCarers      int    `json:"foster_carers"`
	Households        int    `json:"households"`
	ActiveCases       int    `json:"active_cases"`
	PendingCases      int    `json:"pending_cases"`
	ClosedCases       int    `json:"closed_cases"`
	PendingPlacements int    `json:"pending_placements"`
	MessagesLast30d   int    `json:"messages_last_30d"`
}
