package service

import (
	"strings"
	"unicode/utf8"

	"github.com/stridelog/internal/logger"
)

const maxAILogSnippetRunes = 1024

// logAIExchange 用于输出 AI 请求与响应的关键信息，方便排查模型行为。
// 片段按字符截断，避免超长 prompt 刷满日志。
func logAIExchange(log logger.Logger, kind, phase, content string) {
	if log == nil {
		return
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		log.Debugf("[AI %s] %s: <empty>", kind, phase)
		return
	}

	runeCount := utf8.RuneCountInString(trimmed)
	snippet := trimmed
	if runeCount > maxAILogSnippetRunes {
		snippet = string([]rune(trimmed)[:maxAILogSnippetRunes]) + "…(truncated)"
	}
	log.Debugf("[AI %s] %s (runes=%d): %s", kind, phase, runeCount, snippet)
}
