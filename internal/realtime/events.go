package realtime

import (
	"encoding/json"
	"fmt"
)

// 变更事件类型
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
)

// ChangeEvent 行级变更事件信封
// Record是后端推送的反规范化载荷，INSERT时可能不含join数据，
// 消费方须按需回查完整记录
type ChangeEvent struct {
	Type   string          `json:"type"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record"`
}

// ParseChangeEvent 解析变更事件载荷
func ParseChangeEvent(payload []byte) (*ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal change event: %w", err)
	}
	if ev.Type != EventInsert && ev.Type != EventUpdate {
		return nil, fmt.Errorf("unknown change event type: %q", ev.Type)
	}
	return &ev, nil
}

// 主题构建器：一条过滤后的变更流对应一个主题
// 同一主题内事件按服务端提交序投递；跨主题无顺序保证

// CaseMessagesTopic 某案例的消息变更流
func CaseMessagesTopic(caseID string) string {
	return fmt.Sprintf("whosehouse/cases/%s/messages", caseID)
}

// CaseTypingTopic 某案例的输入指示流
func CaseTypingTopic(caseID string) string {
	return fmt.Sprintf("whosehouse/cases/%s/typing", caseID)
}

// UserUnreadTopic 某用户的未读计数变更流
func UserUnreadTopic(userID string) string {
	return fmt.Sprintf("whosehouse/users/%s/unread", userID)
}

// HouseholdPlacementsTopic 某家庭的安置请求变更流
func HouseholdPlacementsTopic(householdID string) string {
	return fmt.Sprintf("whosehouse/households/%s/placements", householdID)
}
