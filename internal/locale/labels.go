package locale

import "time"

var categoryLabels = map[string][2]string{
	"health":      {"健康", "Health"},
	"fitness":     {"健身", "Fitness"},
	"learning":    {"学习", "Learning"},
	"work":        {"工作", "Work"},
	"mindfulness": {"正念", "Mindfulness"},
	"finance":     {"理财", "Finance"},
	"social":      {"社交", "Social"},
	"custom":      {"自定义", "Custom"},
}

// CategoryLabel 返回内置分类的展示名；未知代码原样返回（自定义标签场景）。
func CategoryLabel(language, code string) string {
	labels, ok := categoryLabels[code]
	if !ok {
		return code
	}
	return Pick(language, labels[1], labels[0])
}

var cadenceLabels = map[string][2]string{
	"daily":    {"每天", "Every day"},
	"weekdays": {"工作日", "Weekdays"},
	"weekly":   {"每周指定日", "Weekly"},
	"interval": {"间隔天数", "Every N days"},
}

// CadenceLabel 返回打卡节奏的展示名
func CadenceLabel(language, cadence string) string {
	labels, ok := cadenceLabels[cadence]
	if !ok {
		return cadence
	}
	return Pick(language, labels[1], labels[0])
}

var responseTypeLabels = map[string][2]string{
	"yes_no":          {"是/否", "Yes / No"},
	"numeric":         {"数值", "Number"},
	"scale":           {"量表", "Scale"},
	"slider":          {"滑块", "Slider"},
	"multiple_choice": {"多选", "Multiple choice"},
	"free_text":       {"自由文本", "Free text"},
	"time_of_day":     {"时间", "Time of day"},
}

// ResponseTypeLabel 返回回答类型的展示名
func ResponseTypeLabel(language, code string) string {
	labels, ok := responseTypeLabels[code]
	if !ok {
		return code
	}
	return Pick(language, labels[1], labels[0])
}

var weekdayLabels = [7][2]string{
	{"周日", "Sun"},
	{"周一", "Mon"},
	{"周二", "Tue"},
	{"周三", "Wed"},
	{"周四", "Thu"},
	{"周五", "Fri"},
	{"周六", "Sat"},
}

// WeekdayLabel 返回星期几的展示名
func WeekdayLabel(language string, day time.Weekday) string {
	if day < time.Sunday || day > time.Saturday {
		return ""
	}
	labels := weekdayLabels[int(day)]
	return Pick(language, labels[1], labels[0])
}
