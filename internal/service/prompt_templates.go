package service

import (
	"strings"

	"github.com/google/uuid"
)

// PromptTemplate 是内置的追踪问题模板。
// 应用到草稿时问题文案、回答类型与选项原样复制，来源标记为 template。
type PromptTemplate struct {
	ID           string
	CategoryCode string
	Name         string
	Prompt       string
	ResponseType ResponseType
	Options      []string
	MinValue     float64
	MaxValue     float64
}

var promptTemplates = []PromptTemplate{
	{
		ID:           "health-water",
		CategoryCode: "health",
		Name:         "喝水量",
		Prompt:       "今天喝了几杯水？",
		ResponseType: ResponseNumeric,
		MinValue:     0,
		MaxValue:     12,
	},
	{
		ID:           "health-sleep",
		CategoryCode: "health",
		Name:         "就寝时间",
		Prompt:       "昨晚几点上床睡觉？",
		ResponseType: ResponseTimeOfDay,
	},
	{
		ID:           "fitness-done",
		CategoryCode: "fitness",
		Name:         "完成锻炼",
		Prompt:       "今天完成锻炼了吗？",
		ResponseType: ResponseYesNo,
	},
	{
		ID:           "fitness-intensity",
		CategoryCode: "fitness",
		Name:         "锻炼强度",
		Prompt:       "今天的锻炼强度如何？",
		ResponseType: ResponseSlider,
		MinValue:     0,
		MaxValue:     100,
	},
	{
		ID:           "learning-minutes",
		CategoryCode: "learning",
		Name:         "学习时长",
		Prompt:       "今天学习了多少分钟？",
		ResponseType: ResponseNumeric,
		MinValue:     0,
		MaxValue:     240,
	},
	{
		ID:           "learning-takeaway",
		CategoryCode: "learning",
		Name:         "今日收获",
		Prompt:       "今天最大的收获是什么？",
		ResponseType: ResponseFreeText,
	},
	{
		ID:           "work-focus",
		CategoryCode: "work",
		Name:         "专注程度",
		Prompt:       "今天的专注程度如何？",
		ResponseType: ResponseScale,
		MinValue:     1,
		MaxValue:     10,
	},
	{
		ID:           "mindfulness-mood",
		CategoryCode: "mindfulness",
		Name:         "今日心情",
		Prompt:       "今天的心情更接近哪一种？",
		ResponseType: ResponseMultipleChoice,
		Options:      []string{"平静", "开心", "疲惫", "焦虑"},
	},
	{
		ID:           "finance-spend",
		CategoryCode: "finance",
		Name:         "今日支出",
		Prompt:       "今天的支出金额是多少？",
		ResponseType: ResponseNumeric,
		MinValue:     0,
		MaxValue:     10000,
	},
	{
		ID:           "social-reachout",
		CategoryCode: "social",
		Name:         "联系亲友",
		Prompt:       "今天有联系亲友吗？",
		ResponseType: ResponseYesNo,
	},
}

// PromptTemplateList 返回模板目录，categoryCode 为空时返回全部。
func PromptTemplateList(categoryCode string) []PromptTemplate {
	code := strings.TrimSpace(categoryCode)
	result := make([]PromptTemplate, 0, len(promptTemplates))
	for _, tpl := range promptTemplates {
		if code != "" && tpl.CategoryCode != code {
			continue
		}
		result = append(result, tpl.clone())
	}
	return result
}

func promptTemplateByID(id string) (PromptTemplate, bool) {
	for _, tpl := range promptTemplates {
		if tpl.ID == id {
			return tpl.clone(), true
		}
	}
	return PromptTemplate{}, false
}

func (t PromptTemplate) clone() PromptTemplate {
	cloned := t
	cloned.Options = append([]string(nil), t.Options...)
	return cloned
}

// ApplyTemplate 把模板追加为新的问题草稿，文案/类型/选项与模板一致。
func (s *WizardService) ApplyTemplate(id, templateID string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		tpl, ok := promptTemplateByID(strings.TrimSpace(templateID))
		if !ok {
			return &ValidationError{
				Hint:   "模板不存在",
				HintEN: "template not found",
			}
		}

		question := QuestionDraft{
			ID:           uuid.NewString(),
			Prompt:       tpl.Prompt,
			ResponseType: tpl.ResponseType,
			Options:      append([]string(nil), tpl.Options...),
			MinValue:     tpl.MinValue,
			MaxValue:     tpl.MaxValue,
			Active:       true,
			Provenance:   ProvenanceTemplate,
		}
		sess.Draft.Questions = append(sess.Draft.Questions, question)
		return nil
	})
}

// ApplySuggestion 把推断建议写入草稿：标题、分类、动机整体覆盖，
// 追踪问题追加一条（来源 suggestion），节奏提示尽力应用，
// 提醒时间仍受 5 分钟间隔与数量上限约束，放不进去就放弃。
func (s *WizardService) ApplySuggestion(id string, suggestion GoalSuggestion) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		if title := strings.TrimSpace(suggestion.Title); title != "" {
			sess.Draft.Title = title
		}
		if code := strings.TrimSpace(suggestion.CategoryCode); code != "" {
			sess.Draft.CategoryCode = code
			sess.Draft.CustomCategoryLabel = strings.TrimSpace(suggestion.CategoryLabel)
		}
		if motivation := strings.TrimSpace(suggestion.Motivation); motivation != "" {
			sess.Draft.Motivation = motivation
		}

		if prompt := strings.TrimSpace(suggestion.Prompt); prompt != "" && suggestion.ResponseType.Valid() {
			question := QuestionDraft{
				ID:           uuid.NewString(),
				Prompt:       prompt,
				ResponseType: suggestion.ResponseType,
				Options:      dedupOptions(suggestion.Options),
				MinValue:     suggestion.MinValue,
				MaxValue:     suggestion.MaxValue,
				Active:       true,
				Provenance:   ProvenanceSuggestion,
			}
			sess.Draft.Questions = append(sess.Draft.Questions, question)
		}

		if suggestion.Cadence != "" {
			if err := sess.Draft.Schedule.SetCadence(suggestion.Cadence); err == nil && suggestion.Cadence == CadenceWeekly {
				sess.Draft.Schedule.SetWeekdays(suggestion.Weekdays)
			}
		}
		if suggestion.ReminderTime != "" {
			if t, err := ParseClock(suggestion.ReminderTime); err == nil {
				sess.Draft.Schedule.AddTime(t)
			}
		}

		s.refreshConflict(sess)
		return nil
	})
}
