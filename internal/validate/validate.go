package validate

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxMessageLength 消息内容长度上限
const MaxMessageLength = 5000

var (
	scriptRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	tokenRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{32,128}$`)
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Result 本地校验结果
// 校验失败不是error：调用方检查IsValid，错误文案可直接面向用户展示
type Result struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

func invalid(msgs ...string) Result {
	return Result{IsValid: false, Errors: msgs}
}

func valid() Result {
	return Result{IsValid: true}
}

// SanitizeInput 清洗用户输入：去除script及其内容、剥离其余HTML标签、
// 去除控制字符、去首尾空白、截断到maxLen
// 这是纵深防御，后端仍做权威校验
func SanitizeInput(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = MaxMessageLength
	}
	s = scriptRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	s = strings.TrimSpace(b.String())

	if len(s) > maxLen {
		runes := []rune(s)
		if len(runes) > maxLen {
			runes = runes[:maxLen]
		}
		s = strings.TrimSpace(string(runes))
	}
	return s
}

// EscapeHTML 转义5个HTML保留字符 & < > " '
func EscapeHTML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	return r.Replace(s)
}

// UnescapeHTML EscapeHTML的左逆：先还原具名实体，最后还原&amp;
func UnescapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// ValidateMessage 消息内容校验：清洗后长度须在 [1, 5000]
// 超长输入判为无效而不是静默截断
func ValidateMessage(s string) Result {
	if len([]rune(strings.TrimSpace(s))) > MaxMessageLength {
		return invalid("Message is too long (maximum 5000 characters)")
	}
	sanitized := SanitizeInput(s, MaxMessageLength)
	if sanitized == "" {
		return invalid("Message cannot be empty")
	}
	return valid()
}

// ValidateTokenFormat Token格式预检：字符类与长度边界
// 不合格的输入在本地拒绝，不发起网络请求
func ValidateTokenFormat(token string) Result {
	if !tokenRe.MatchString(token) {
		return invalid("Access code is not valid")
	}
	return valid()
}

// ValidateEmail 邮箱格式校验
func ValidateEmail(email string) Result {
	if !emailRe.MatchString(strings.TrimSpace(email)) {
		return invalid("Please enter a valid email address")
	}
	return valid()
}

const passwordSpecials = `!@#$%^&*(),.?":{}|<>`

// ValidatePassword 密码强度校验：长度≥8，含大写、小写、数字和特殊字符
func ValidatePassword(password string) Result {
	var errs []string
	if len(password) < 8 {
		errs = append(errs, "Password must be at least 8 characters long")
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		errs = append(errs, "Password must contain an uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "Password must contain a lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "Password must contain a number")
	}
	if !hasSpecial {
		errs = append(errs, "Password must contain a special character")
	}
	if len(errs) > 0 {
		return invalid(errs...)
	}
	return valid()
}
