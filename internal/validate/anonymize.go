package validate

import (
	"strings"
	"time"
)

// 匿名化工具：敏感标识只以遮蔽形式出现在日志与界面之外的输出中

// MaskEmail 遮蔽邮箱本地部分：保留首字符，如 a@example.com → a***@example.com
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskName 遮蔽姓名：每个词只保留首字符
func MaskName(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	masked := make([]string, 0, len(words))
	for _, w := range words {
		r := []rune(w)
		masked = append(masked, string(r[0])+"***")
	}
	return strings.Join(masked, " ")
}

// MaskToken 遮蔽承载凭证：只保留首尾各4个字符
// 完整Token绝不进日志
func MaskToken(token string) string {
	if len(token) < 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// MaskPhone 遮蔽电话号码：只保留末3位
func MaskPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) < 4 {
		return "***"
	}
	return "***" + digits[len(digits)-3:]
}

// RetentionCategory 数据保留类别
type RetentionCategory string

const (
	RetentionCaseRecord  RetentionCategory = "case_record"
	RetentionMessage     RetentionCategory = "message"
	RetentionAuditLog    RetentionCategory = "audit_log"
	RetentionAccessToken RetentionCategory = "access_token"
)

// RetentionDeadline 计算某类记录自from时刻起的保留截止时间
// 案例记录的保留期由机构合规要求决定，这里是客户端展示用的镜像值
func RetentionDeadline(category RetentionCategory, from time.Time) time.Time {
	switch category {
	case RetentionCaseRecord:
		return from.AddDate(25, 0, 0)
	case RetentionMessage:
		return from.AddDate(7, 0, 0)
	case RetentionAuditLog:
		return from.AddDate(2, 0, 0)
	case RetentionAccessToken:
		return from.AddDate(0, 0, 90)
	}
	return from.AddDate(7, 0, 0)
}
