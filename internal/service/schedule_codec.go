package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/stridelog/internal/db"
)

// 节奏配置与 Goal 表字段之间的互转。
// Weekdays 存为 "1,3,5"（time.Weekday 的整数值），
// ReminderTimes 存为 "07:30,21:00"，两者都保持升序。

func encodeWeekdays(days []time.Weekday) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(csv string) []time.Weekday {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(csv, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < int(time.Sunday) || n > int(time.Saturday) {
			continue
		}
		days = append(days, time.Weekday(n))
	}
	return days
}

func encodeReminderTimes(times []MinuteOfDay) string {
	if len(times) == 0 {
		return ""
	}
	parts := make([]string, 0, len(times))
	for _, t := range times {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, ",")
}

func decodeReminderTimes(csv string) []MinuteOfDay {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil
	}
	var times []MinuteOfDay
	for _, part := range strings.Split(csv, ",") {
		t, err := ParseClock(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		times = append(times, t)
	}
	return times
}

// scheduleFromGoal 从已持久化的目标还原节奏配置。
// 还原结果只用于计算（冲突检测、下次提醒），不再受编辑器上限约束。
func scheduleFromGoal(goal *db.Goal) ScheduleDraft {
	return ScheduleDraft{
		Cadence:       goal.Cadence,
		Weekdays:      decodeWeekdays(goal.WeekdaysCSV),
		IntervalDays:  goal.IntervalDays,
		ReminderTimes: decodeReminderTimes(goal.ReminderTimesCSV),
		Timezone:      goal.Timezone,
		StartDate:     goal.StartDate,
	}
}

// ScheduleForGoal 导出已持久化目标的节奏配置，供展示层使用。
func ScheduleForGoal(goal *db.Goal) ScheduleDraft {
	return scheduleFromGoal(goal)
}

// applyScheduleToGoal 把草稿节奏写入目标字段
func applyScheduleToGoal(schedule ScheduleDraft, goal *db.Goal) {
	goal.Cadence = schedule.Cadence
	goal.WeekdaysCSV = encodeWeekdays(schedule.Weekdays)
	goal.IntervalDays = schedule.IntervalDays
	goal.ReminderTimesCSV = encodeReminderTimes(schedule.ReminderTimes)
	goal.Timezone = schedule.Timezone
	goal.StartDate = schedule.StartDate
}

// scheduleAnchor 返回间隔节奏的起算日：优先开始日期，缺省用创建日。
func scheduleAnchor(goal *db.Goal) time.Time {
	if goal.StartDate != nil {
		return normalizeToDate(*goal.StartDate)
	}
	return normalizeToDate(goal.CreatedAt)
}

// isScheduledDay 判断某天是否为应打卡日，纯函数。
// anchor 仅对 interval 节奏有意义；开始日期之前的日期一律不算。
func isScheduledDay(schedule ScheduleDraft, anchor, day time.Time) bool {
	day = normalizeToDate(day)
	if schedule.StartDate != nil && day.Before(normalizeToDate(*schedule.StartDate)) {
		return false
	}

	switch schedule.Cadence {
	case CadenceDaily:
		return true
	case CadenceWeekdays:
		wd := day.Weekday()
		return wd >= time.Monday && wd <= time.Friday
	case CadenceWeekly:
		wd := day.Weekday()
		for _, d := range schedule.Weekdays {
			if d == wd {
				return true
			}
		}
		return false
	case CadenceInterval:
		if schedule.IntervalDays <= 0 {
			return false
		}
		anchor = normalizeToDate(anchor)
		if day.Before(anchor) {
			return false
		}
		days := int(day.Sub(anchor).Hours() / 24)
		return days%schedule.IntervalDays == 0
	}
	return false
}
