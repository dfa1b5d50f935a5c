package utils

import (
	"strings"
	"unicode"
)

// SanitizeLogMessage 过滤用户可控字符串中的不可打印字符，避免日志注入
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == 10 || r == 9 {
			sb.WriteRune(r)
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SanitizeLogFilename 截断并过滤文件名
func SanitizeLogFilename(name string) string {
	if len(name) > 80 {
		name = name[:80] + "..."
	}
	return SanitizeLogMessage(name)
}
