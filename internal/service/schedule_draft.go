package service

import (
	"fmt"
	"sort"
	"time"
)

// Cadence 描述目标的打卡节奏
const (
	CadenceDaily    = "daily"
	CadenceWeekdays = "weekdays"
	CadenceWeekly   = "weekly"
	CadenceInterval = "interval"
)

const (
	// MinReminderGapMinutes 两个提醒时间的最小间隔（分钟），按环形时钟计算
	MinReminderGapMinutes = 5
	minutesPerDay         = 24 * 60

	// IntervalDaysMin/Max 间隔节奏允许的天数范围
	IntervalDaysMin = 2
	IntervalDaysMax = 30
)

// MinuteOfDay 表示一天内的分钟数，0 对应 00:00，取值 [0, 1439]。
type MinuteOfDay int

// ParseClock 解析 "HH:MM" 形式的时间
func ParseClock(value string) (MinuteOfDay, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", value, err)
	}
	return MinuteOfDay(parsed.Hour()*60 + parsed.Minute()), nil
}

// String 输出 "HH:MM"
func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// Valid 判断取值是否落在一天以内
func (m MinuteOfDay) Valid() bool {
	return m >= 0 && m < minutesPerDay
}

// clockDistance 计算环形时钟上的分钟距离，23:58 与 00:01 距离为 3。
func clockDistance(a, b MinuteOfDay) int {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	if d > minutesPerDay-d {
		d = minutesPerDay - d
	}
	return d
}

// ScheduleDraft 保存向导/表单里尚未提交的节奏配置。
// ReminderTimes 始终保持升序且两两间隔不小于 MinReminderGapMinutes；
// MaxReminderTimes 为 0 时不限制数量（简单表单模式）。
type ScheduleDraft struct {
	Cadence          string
	Weekdays         []time.Weekday
	IntervalDays     int
	ReminderTimes    []MinuteOfDay
	Timezone         string
	StartDate        *time.Time
	MaxReminderTimes int
}

// NewScheduleDraft 返回向导默认节奏：每日打卡，本地时区，最多三个提醒。
func NewScheduleDraft() ScheduleDraft {
	return ScheduleDraft{
		Cadence:          CadenceDaily,
		IntervalDays:     IntervalDaysMin,
		Timezone:         "Local",
		MaxReminderTimes: 3,
	}
}

// AddTime 尝试添加一个提醒时间。
// 与已有时间间隔不足 5 分钟或数量达到上限时返回 false 且不修改任何状态。
func (s *ScheduleDraft) AddTime(t MinuteOfDay) bool {
	if !t.Valid() {
		return false
	}
	if s.MaxReminderTimes > 0 && len(s.ReminderTimes) >= s.MaxReminderTimes {
		return false
	}
	for _, existing := range s.ReminderTimes {
		if clockDistance(existing, t) < MinReminderGapMinutes {
			return false
		}
	}

	s.ReminderTimes = append(s.ReminderTimes, t)
	sort.Slice(s.ReminderTimes, func(i, j int) bool {
		return s.ReminderTimes[i] < s.ReminderTimes[j]
	})
	return true
}

// RemoveTime 移除指定提醒时间，不存在时为空操作。
func (s *ScheduleDraft) RemoveTime(t MinuteOfDay) {
	for i, existing := range s.ReminderTimes {
		if existing == t {
			s.ReminderTimes = append(s.ReminderTimes[:i], s.ReminderTimes[i+1:]...)
			return
		}
	}
}

// HasTime 判断提醒时间是否已存在
func (s *ScheduleDraft) HasTime(t MinuteOfDay) bool {
	for _, existing := range s.ReminderTimes {
		if existing == t {
			return true
		}
	}
	return false
}

// SetCadence 切换节奏类型并清理与新类型无关的配置。
func (s *ScheduleDraft) SetCadence(cadence string) error {
	switch cadence {
	case CadenceDaily, CadenceWeekdays:
		s.Weekdays = nil
	case CadenceWeekly:
	case CadenceInterval:
		s.Weekdays = nil
		if s.IntervalDays < IntervalDaysMin || s.IntervalDays > IntervalDaysMax {
			s.IntervalDays = IntervalDaysMin
		}
	default:
		return &ValidationError{
			Hint:   "不支持的打卡节奏",
			HintEN: "unsupported cadence",
		}
	}
	s.Cadence = cadence
	return nil
}

// SetWeekdays 覆盖每周打卡日，自动去重并按周日起始排序。
func (s *ScheduleDraft) SetWeekdays(days []time.Weekday) {
	seen := make(map[time.Weekday]bool, len(days))
	cleaned := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday || seen[d] {
			continue
		}
		seen[d] = true
		cleaned = append(cleaned, d)
	}
	sort.Slice(cleaned, func(i, j int) bool { return cleaned[i] < cleaned[j] })
	s.Weekdays = cleaned
}

// SetIntervalDays 更新间隔天数，越界时返回校验错误且不生效。
func (s *ScheduleDraft) SetIntervalDays(days int) error {
	if days < IntervalDaysMin || days > IntervalDaysMax {
		return &ValidationError{
			Hint:   fmt.Sprintf("间隔天数需在 %d 到 %d 之间", IntervalDaysMin, IntervalDaysMax),
			HintEN: fmt.Sprintf("interval days must be between %d and %d", IntervalDaysMin, IntervalDaysMax),
		}
	}
	s.IntervalDays = days
	return nil
}

// Clone 返回深拷贝，向导会话读接口依赖它避免数据竞争。
func (s ScheduleDraft) Clone() ScheduleDraft {
	cloned := s
	cloned.Weekdays = append([]time.Weekday(nil), s.Weekdays...)
	cloned.ReminderTimes = append([]MinuteOfDay(nil), s.ReminderTimes...)
	if s.StartDate != nil {
		started := *s.StartDate
		cloned.StartDate = &started
	}
	return cloned
}

// validateScheduleDraft 在提交前整体校验节奏配置。
// 表单模式允许客户端直接写入时间列表，因此间隔约束在这里重新检查。
func validateScheduleDraft(s ScheduleDraft) *ValidationError {
	switch s.Cadence {
	case CadenceDaily, CadenceWeekdays:
	case CadenceWeekly:
		if len(s.Weekdays) == 0 {
			return &ValidationError{
				Hint:   "每周节奏至少选择一个打卡日",
				HintEN: "weekly cadence needs at least one weekday",
			}
		}
	case CadenceInterval:
		if s.IntervalDays < IntervalDaysMin || s.IntervalDays > IntervalDaysMax {
			return &ValidationError{
				Hint:   fmt.Sprintf("间隔天数需在 %d 到 %d 之间", IntervalDaysMin, IntervalDaysMax),
				HintEN: fmt.Sprintf("interval days must be between %d and %d", IntervalDaysMin, IntervalDaysMax),
			}
		}
	default:
		return &ValidationError{
			Hint:   "不支持的打卡节奏",
			HintEN: "unsupported cadence",
		}
	}

	for i, t := range s.ReminderTimes {
		if !t.Valid() {
			return &ValidationError{
				Hint:   "提醒时间超出一天范围",
				HintEN: "reminder time out of day range",
			}
		}
		for _, other := range s.ReminderTimes[:i] {
			if clockDistance(other, t) < MinReminderGapMinutes {
				return &ValidationError{
					Hint:   fmt.Sprintf("提醒时间至少间隔 %d 分钟", MinReminderGapMinutes),
					HintEN: fmt.Sprintf("reminder times must be at least %d minutes apart", MinReminderGapMinutes),
				}
			}
		}
	}
	if s.MaxReminderTimes > 0 && len(s.ReminderTimes) > s.MaxReminderTimes {
		return &ValidationError{
			Hint:   fmt.Sprintf("提醒时间最多 %d 个", s.MaxReminderTimes),
			HintEN: fmt.Sprintf("at most %d reminder times", s.MaxReminderTimes),
		}
	}

	if s.Timezone != "" && s.Timezone != "Local" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return &ValidationError{
				Hint:   "无法识别的时区",
				HintEN: "unknown timezone",
			}
		}
	}

	return nil
}
