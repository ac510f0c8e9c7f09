package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/stridelog/internal/logger"
)

const (
	defaultOpenAIMotivationModel   = "gpt-4o-mini"
	defaultDeepSeekMotivationModel = "deepseek-chat"
	defaultMotivationMaxTokens     = 120
	defaultMotivationTemperature   = 0.7
)

const defaultMotivationSystemPrompt = "你是一个温和的习惯教练。用户正在创建一个新目标，" +
	"请用一句不超过 40 字的中文鼓励语帮 TA 坚定决心。只输出这句话本身，" +
	"不要引号，不要解释。"

// cannedMotivationLines 按分类准备的兜底鼓励语
var cannedMotivationLines = map[string]string{
	"health":      "照顾好身体，它会陪你走最远的路。",
	"fitness":     "每一次坚持，都会变成看得见的力量。",
	"learning":    "今天的一页书，是明天的一大步。",
	"work":        "专注当下，成果自然会来。",
	"mindfulness": "慢下来，感受此刻。",
	"finance":     "记下每一笔，离目标更近一点。",
	"social":      "别忘了，身边的人也是生活的一部分。",
}

const defaultCannedMotivation = "坚持下去，未来的你会感谢现在的自己。"

// cannedMotivation 返回分类对应的兜底鼓励语，未知分类用通用句。
func cannedMotivation(categoryCode string) string {
	if line, ok := cannedMotivationLines[categoryCode]; ok {
		return line
	}
	return defaultCannedMotivation
}

// MotivationService 为承诺步骤生成一句鼓励语。
// 优先调用大模型（系统设置可自定义教练提示词），失败时回落到
// 按分类准备的内置文案，调用方永远拿到一句话。
type MotivationService struct {
	client *aiChatClient
	log    logger.Logger
}

// NewMotivationService 构造 MotivationService
func NewMotivationService(settings *SystemSettingService, log logger.Logger) *MotivationService {
	if log == nil {
		log = logger.NewNop()
	}
	return &MotivationService{
		client: newAIChatClient(settings, defaultOpenAIMotivationModel, defaultDeepSeekMotivationModel),
		log:    log,
	}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *MotivationService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetOpenAIBaseURL 覆盖默认的 OpenAI API 地址。
func (s *MotivationService) SetOpenAIBaseURL(base string) {
	s.client.SetOpenAIBaseURL(base)
}

// SetDeepSeekBaseURL 覆盖默认的 DeepSeek API 地址。
func (s *MotivationService) SetDeepSeekBaseURL(base string) {
	s.client.SetDeepSeekBaseURL(base)
}

// SuggestMotivation 生成鼓励语，失败时静默回落内置文案。
func (s *MotivationService) SuggestMotivation(ctx context.Context, title, categoryCode string) string {
	line, err := s.suggestWithModel(ctx, title, categoryCode)
	if err != nil {
		s.log.Warnf("鼓励语生成降级为内置文案: %v", err)
		return cannedMotivation(categoryCode)
	}
	return line
}

func (s *MotivationService) suggestWithModel(ctx context.Context, title, categoryCode string) (string, error) {
	settings, err := s.client.settings.GetSettings()
	if err != nil {
		return "", fmt.Errorf("读取系统设置失败: %w", err)
	}

	systemPrompt := strings.TrimSpace(settings.CoachPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultMotivationSystemPrompt
	}

	userPrompt := fmt.Sprintf("目标：%s\n分类：%s", strings.TrimSpace(title), categoryCode)
	logAIExchange(s.log, "MOTIVATE", "prompt", userPrompt)

	result, err := s.client.callWithSettings(ctx, settings, aiChatRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    defaultMotivationMaxTokens,
		Temperature:  defaultMotivationTemperature,
	})
	if err != nil {
		return "", err
	}

	logAIExchange(s.log, "MOTIVATE", "response", result.Content)

	line := strings.Trim(strings.TrimSpace(result.Content), "\"“”")
	if line == "" {
		return "", fmt.Errorf("模型未返回内容")
	}
	return truncateRunes(line, 80), nil
}
