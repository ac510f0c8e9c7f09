package service

import (
	"strings"
	"time"
	"unicode/utf8"
)

// 关键词降级推断：不依赖网络与模型，同样的输入永远得到同样的输出。
// 规则按顺序匹配，第一条命中的规则生效。

type keywordRule struct {
	keywords     []string
	categoryCode string
	prompt       string
	responseType ResponseType
	options      []string
	minValue     float64
	maxValue     float64
	cadence      string
	weekdays     []time.Weekday
	reminderTime string
}

var fallbackRules = []keywordRule{
	{
		keywords:     []string{"喝水", "饮水", "water", "hydrate"},
		categoryCode: "health",
		prompt:       "今天喝了几杯水？",
		responseType: ResponseNumeric,
		minValue:     0,
		maxValue:     12,
		cadence:      CadenceDaily,
		reminderTime: "09:00",
	},
	{
		keywords:     []string{"跑步", "锻炼", "健身", "运动", "run", "workout", "exercise", "gym"},
		categoryCode: "fitness",
		prompt:       "今天完成锻炼了吗？",
		responseType: ResponseYesNo,
		cadence:      CadenceDaily,
		reminderTime: "07:30",
	},
	{
		keywords:     []string{"阅读", "读书", "看书", "read", "book"},
		categoryCode: "learning",
		prompt:       "今天阅读了多少分钟？",
		responseType: ResponseNumeric,
		minValue:     0,
		maxValue:     240,
		cadence:      CadenceDaily,
		reminderTime: "21:00",
	},
	{
		keywords:     []string{"冥想", "打坐", "正念", "呼吸", "meditat", "mindful"},
		categoryCode: "mindfulness",
		prompt:       "今天冥想了吗？",
		responseType: ResponseYesNo,
		cadence:      CadenceDaily,
		reminderTime: "07:00",
	},
	{
		keywords:     []string{"早睡", "睡觉", "睡眠", "sleep", "bed"},
		categoryCode: "health",
		prompt:       "昨晚几点上床睡觉？",
		responseType: ResponseTimeOfDay,
		cadence:      CadenceDaily,
		reminderTime: "22:30",
	},
	{
		keywords:     []string{"存钱", "记账", "储蓄", "花销", "预算", "save", "budget", "spend"},
		categoryCode: "finance",
		prompt:       "今天的支出金额是多少？",
		responseType: ResponseNumeric,
		minValue:     0,
		maxValue:     10000,
		cadence:      CadenceDaily,
		reminderTime: "20:30",
	},
	{
		keywords:     []string{"单词", "背诵", "学习", "练习", "study", "learn", "practice"},
		categoryCode: "learning",
		prompt:       "今天完成学习计划了吗？",
		responseType: ResponseYesNo,
		cadence:      CadenceDaily,
		reminderTime: "20:00",
	},
	{
		keywords:     []string{"朋友", "家人", "联系", "电话", "friend", "family", "call"},
		categoryCode: "social",
		prompt:       "今天有联系亲友吗？",
		responseType: ResponseYesNo,
		cadence:      CadenceWeekly,
		weekdays:     []time.Weekday{time.Sunday},
		reminderTime: "19:00",
	},
	{
		keywords:     []string{"专注", "工作", "复盘", "focus", "work", "deep"},
		categoryCode: "work",
		prompt:       "今天的专注程度如何？",
		responseType: ResponseScale,
		minValue:     1,
		maxValue:     10,
		cadence:      CadenceWeekdays,
		reminderTime: "18:30",
	},
}

const fallbackTitleRuneLimit = 40

// FallbackInference 关键词推断，任何输入都能得到可提交的建议。
func FallbackInference(text string) GoalSuggestion {
	cleaned := strings.Join(strings.Fields(text), " ")
	lowered := strings.ToLower(cleaned)

	suggestion := GoalSuggestion{
		Title:         fallbackTitle(cleaned),
		CategoryCode:  CategoryCodeCustom,
		CategoryLabel: "生活习惯",
		Prompt:        "今天为这个目标做了什么？",
		ResponseType:  ResponseFreeText,
		Cadence:       CadenceDaily,
		ReminderTime:  "20:00",
		Source:        SuggestionSourceKeyword,
	}

	for _, rule := range fallbackRules {
		if !matchesAny(lowered, rule.keywords) {
			continue
		}
		suggestion.CategoryCode = rule.categoryCode
		suggestion.CategoryLabel = ""
		suggestion.Prompt = rule.prompt
		suggestion.ResponseType = rule.responseType
		suggestion.Options = append([]string(nil), rule.options...)
		suggestion.MinValue = rule.minValue
		suggestion.MaxValue = rule.maxValue
		suggestion.Cadence = rule.cadence
		suggestion.Weekdays = append([]time.Weekday(nil), rule.weekdays...)
		suggestion.ReminderTime = rule.reminderTime
		break
	}

	suggestion.Motivation = cannedMotivation(suggestion.CategoryCode)
	return suggestion
}

func matchesAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// fallbackTitle 直接采用用户原句作为标题，超长截断。
func fallbackTitle(cleaned string) string {
	if cleaned == "" {
		return "我的新目标"
	}
	if utf8.RuneCountInString(cleaned) > fallbackTitleRuneLimit {
		return string([]rune(cleaned)[:fallbackTitleRuneLimit])
	}
	return cleaned
}
