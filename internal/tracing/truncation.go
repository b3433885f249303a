package tracing

import (
	"regexp"
	"strings"
	"unicode"
)

// span 属性长度上限（按字符计）
const (
	DefaultMaxLength = 200
	MaxSQLLength     = 500
	MaxRedisLength   = 100
	MaxCommentLength = 80
)

// sensitiveAttributes 属性名包含这些片段时值需要遮盖
var sensitiveAttributes = []string{"email", "phone", "name", "headshot", "password", "secret", "token"}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\d{7,15}`)
)

// SafeAttributeValue 敏感属性先遮盖，再按 maxLength 截断
func SafeAttributeValue(name, value string, maxLength int) string {
	lower := strings.ToLower(name)
	for _, frag := range sensitiveAttributes {
		if strings.Contains(lower, frag) {
			value = MaskPII(value)
			break
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 遮盖候选人信息：邮箱保留首字符与域名，手机号保留前3后4位，其他保留首尾字符
func MaskPII(value string) string {
	if value == "" {
		return ""
	}
	if at := strings.LastIndex(value, "@"); at > 0 {
		return keepEnds(value[:at], 1, 0) + value[at:]
	}
	if len(value) >= 7 && strings.IndexFunc(value, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return keepEnds(value, 3, 4)
	}
	return keepEnds(value, 1, 1)
}

// keepEnds 保留前 head 个和后 tail 个字符，中间换成 *；太短时只保留首字符
func keepEnds(s string, head, tail int) string {
	r := []rune(s)
	if len(r) <= 1 {
		return "*"
	}
	if len(r) <= head+tail {
		return string(r[:1]) + strings.Repeat("*", len(r)-1)
	}
	return string(r[:head]) + strings.Repeat("*", len(r)-head-tail) + string(r[len(r)-tail:])
}

// TruncateString 按字符截断，超长时以 … 结尾，结果不超过 maxLength 个字符
func TruncateString(s string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength == 1 {
		return string(r[:1])
	}
	return string(r[:maxLength-1]) + "…"
}

func SafeSQL(sql string) string {
	return TruncateString(strings.Join(strings.Fields(sql), " "), MaxSQLLength)
}

func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeComment 评语正文里可能写着候选人的邮箱或电话，遮盖后再截断
func SafeComment(text string) string {
	masked := emailPattern.ReplaceAllStringFunc(text, MaskPII)
	masked = phonePattern.ReplaceAllStringFunc(masked, MaskPII)
	return TruncateString(masked, MaxCommentLength)
}
