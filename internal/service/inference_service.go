package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stridelog/internal/logger"
)

const (
	defaultOpenAIInferenceModel   = "gpt-4o-mini"
	defaultDeepSeekInferenceModel = "deepseek-chat"
	defaultInferenceMaxTokens     = 512
	defaultInferenceTemperature   = 0.2
	maxInferenceTextRuneCount     = 2000

	// inferenceTimeout 是单次模型推断的硬超时，超时即走关键词降级。
	inferenceTimeout = 10 * time.Second
)

// 推断结果来源：模型返回或关键词规则降级。
const (
	SuggestionSourceModel   = "model"
	SuggestionSourceKeyword = "keyword"
)

// GoalSuggestion 是从一句自然语言描述推断出的目标配置。
// 字段与草稿模型对齐，ApplySuggestion 可直接写入向导会话。
type GoalSuggestion struct {
	Title         string
	CategoryCode  string
	CategoryLabel string
	Motivation    string
	Prompt        string
	ResponseType  ResponseType
	Options       []string
	MinValue      float64
	MaxValue      float64
	Cadence       string
	Weekdays      []time.Weekday
	ReminderTime  string
	Source        string
}

// inferencePayload 是要求模型返回的严格 JSON 结构
type inferencePayload struct {
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	Motivation   string   `json:"motivation"`
	Question     string   `json:"question"`
	ResponseType string   `json:"response_type"`
	Options      []string `json:"options"`
	MinValue     *float64 `json:"min_value"`
	MaxValue     *float64 `json:"max_value"`
	Cadence      string   `json:"cadence"`
	Weekdays     []int    `json:"weekdays"`
	ReminderTime string   `json:"reminder_time"`
}

// InferenceService 把用户的一句话目标描述推断为完整草稿配置。
// 模型不可用、超时或返回坏数据时静默降级为确定性的关键词推断，
// 调用方永远拿到一个可用的建议。
type InferenceService struct {
	client *aiChatClient
	log    logger.Logger
}

// NewInferenceService 构造 InferenceService
func NewInferenceService(settings *SystemSettingService, log logger.Logger) *InferenceService {
	if log == nil {
		log = logger.NewNop()
	}
	return &InferenceService{
		client: newAIChatClient(settings, defaultOpenAIInferenceModel, defaultDeepSeekInferenceModel),
		log:    log,
	}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *InferenceService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetOpenAIBaseURL 覆盖默认的 OpenAI API 地址。
func (s *InferenceService) SetOpenAIBaseURL(base string) {
	s.client.SetOpenAIBaseURL(base)
}

// SetDeepSeekBaseURL 覆盖默认的 DeepSeek API 地址。
func (s *InferenceService) SetDeepSeekBaseURL(base string) {
	s.client.SetDeepSeekBaseURL(base)
}

// InferGoalConfiguration 推断目标配置。
// 单次模型调用带 10 秒超时，不重试；任何失败换关键词推断兜底，
// 因此本方法不返回错误。
func (s *InferenceService) InferGoalConfiguration(ctx context.Context, text string) GoalSuggestion {
	trimmed := strings.TrimSpace(text)

	suggestion, err := s.inferWithModel(ctx, trimmed)
	if err != nil {
		s.log.Warnf("目标推断降级为关键词规则: %v", err)
		return FallbackInference(trimmed)
	}
	return suggestion
}

var errInferenceEmptyInput = errors.New("empty inference input")

func (s *InferenceService) inferWithModel(ctx context.Context, text string) (GoalSuggestion, error) {
	if text == "" {
		return GoalSuggestion{}, errInferenceEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, inferenceTimeout)
	defer cancel()

	userPrompt := buildInferencePrompt(truncateRunes(text, maxInferenceTextRuneCount))
	logAIExchange(s.log, "INFER", "prompt", userPrompt)

	result, err := s.client.call(ctx, aiChatRequest{
		SystemPrompt: inferenceSystemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    defaultInferenceMaxTokens,
		Temperature:  defaultInferenceTemperature,
	})
	if err != nil {
		return GoalSuggestion{}, err
	}

	logAIExchange(s.log, "INFER", "response", result.Content)

	raw, err := extractJSONObject(result.Content)
	if err != nil {
		return GoalSuggestion{}, err
	}

	var payload inferencePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return GoalSuggestion{}, fmt.Errorf("解析推断结果失败: %w", err)
	}

	return sanitizeInference(payload)
}

const inferenceSystemPrompt = "你是一个习惯养成助手。用户会用一句话描述想建立的目标，" +
	"请推断出完整的目标配置并只输出一个 JSON 对象，不要输出任何其他文字。字段：" +
	`title（目标标题）、category（health/fitness/learning/work/mindfulness/finance/social 之一，都不合适时给自定义中文标签）、` +
	`motivation（一句鼓励）、question（每天要回答的追踪问题）、` +
	`response_type（yes_no/numeric/scale/slider/multiple_choice/free_text/time_of_day 之一）、` +
	`options（仅多选题需要）、min_value/max_value（仅数值类需要）、` +
	`cadence（daily/weekdays/weekly/interval 之一）、weekdays（仅 weekly 需要，0=周日）、` +
	`reminder_time（HH:MM）。`

func buildInferencePrompt(text string) string {
	var builder strings.Builder
	builder.WriteString("用户的目标描述：\n")
	builder.WriteString(text)
	return builder.String()
}

// extractJSONObject 从模型输出中提取 JSON 对象。
// 兼容 ```json 围栏与前后多余文字，取第一个 { 到最后一个 }。
func extractJSONObject(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", errors.New("推断结果为空")
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return "", errors.New("推断结果不含 JSON 对象")
	}
	return trimmed[start : end+1], nil
}

// sanitizeInference 把模型返回的宽松数据收敛到合法的建议。
// 标题缺失视为失败；其余字段逐项校验，坏值回落到类型默认。
func sanitizeInference(payload inferencePayload) (GoalSuggestion, error) {
	title := strings.TrimSpace(payload.Title)
	if title == "" {
		return GoalSuggestion{}, errors.New("推断结果缺少标题")
	}

	suggestion := GoalSuggestion{
		Title:      title,
		Motivation: strings.TrimSpace(payload.Motivation),
		Prompt:     strings.TrimSpace(payload.Question),
		Source:     SuggestionSourceModel,
	}

	category := strings.TrimSpace(payload.Category)
	if IsBuiltinCategory(strings.ToLower(category)) {
		suggestion.CategoryCode = strings.ToLower(category)
	} else if category != "" {
		suggestion.CategoryCode = CategoryCodeCustom
		suggestion.CategoryLabel = category
	} else {
		suggestion.CategoryCode = CategoryCodeCustom
		suggestion.CategoryLabel = "生活习惯"
	}

	responseType := ResponseType(strings.TrimSpace(payload.ResponseType))
	if !responseType.Valid() {
		responseType = ResponseYesNo
	}
	suggestion.ResponseType = responseType
	if suggestion.Prompt == "" {
		suggestion.Prompt = "今天完成了吗？"
	}

	if responseType.HasOptions() {
		suggestion.Options = dedupOptions(payload.Options)
		if len(suggestion.Options) == 0 {
			suggestion.ResponseType = ResponseYesNo
		}
	}
	if suggestion.ResponseType.HasRange() {
		minValue, maxValue := suggestion.ResponseType.DefaultRange()
		if payload.MinValue != nil && payload.MaxValue != nil && *payload.MinValue <= *payload.MaxValue {
			minValue, maxValue = *payload.MinValue, *payload.MaxValue
		}
		suggestion.MinValue = minValue
		suggestion.MaxValue = maxValue
	}

	switch strings.TrimSpace(payload.Cadence) {
	case CadenceDaily, CadenceWeekdays, CadenceWeekly, CadenceInterval:
		suggestion.Cadence = strings.TrimSpace(payload.Cadence)
	default:
		suggestion.Cadence = CadenceDaily
	}
	if suggestion.Cadence == CadenceWeekly {
		for _, d := range payload.Weekdays {
			if d >= int(time.Sunday) && d <= int(time.Saturday) {
				suggestion.Weekdays = append(suggestion.Weekdays, time.Weekday(d))
			}
		}
		if len(suggestion.Weekdays) == 0 {
			suggestion.Cadence = CadenceDaily
		}
	}

	if t := strings.TrimSpace(payload.ReminderTime); t != "" {
		if _, err := ParseClock(t); err == nil {
			suggestion.ReminderTime = t
		}
	}

	return suggestion, nil
}

// 打字延迟的上下限，模拟教练消息的输入节奏。
const (
	minTypingDelay     = 500 * time.Millisecond
	maxTypingDelay     = 1200 * time.Millisecond
	typingDelayPerRune = 30 * time.Millisecond
)

// TypingDelayFor 按消息长度给出教练消息的展示延迟，纯函数。
func TypingDelayFor(message string) time.Duration {
	delay := time.Duration(utf8.RuneCountInString(strings.TrimSpace(message))) * typingDelayPerRune
	if delay < minTypingDelay {
		return minTypingDelay
	}
	if delay > maxTypingDelay {
		return maxTypingDelay
	}
	return delay
}

// coachLines 为每个向导步骤准备的引导语
var coachLines = map[WizardStep][2]string{
	StepIntent:     {"先说说你想养成什么目标吧", "Tell me what goal you want to build"},
	StepPrompts:    {"我们来设计每天要回答的问题", "Let's design the questions you'll answer"},
	StepRhythm:     {"接下来安排打卡节奏和提醒", "Now set the rhythm and reminders"},
	StepCommitment: {"写一句给未来自己的话，可以跳过", "Leave a note to your future self, optional"},
	StepReview:     {"最后确认一下，准备好了就提交", "One last look, commit when ready"},
}

// CoachLine 返回步骤对应的教练引导语，lang 为 en 时返回英文。
func CoachLine(step WizardStep, lang string) string {
	lines, ok := coachLines[step]
	if !ok {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(lang), "en") {
		return lines[1]
	}
	return lines[0]
}
