package service

import (
	"fmt"
	"time"

	"github.com/stridelog/internal/db"
	"gorm.io/gorm"
)

// ScheduleConflictService 检测草稿节奏与已有活跃目标的提醒冲突。
// 冲突定义：两个目标可能落在同一天，且提醒时间相距不足 5 分钟。
// 结果仅用于展示，永远不会阻止保存。
type ScheduleConflictService struct {
	db *gorm.DB
}

// NewScheduleConflictService 构造 ScheduleConflictService
func NewScheduleConflictService(gdb *gorm.DB) *ScheduleConflictService {
	return &ScheduleConflictService{db: gdb}
}

// Describe 返回首个冲突的可读描述，无冲突时返回空串。
// excludeGoalID 用于编辑已有目标时排除自身。
func (s *ScheduleConflictService) Describe(schedule ScheduleDraft, excludeGoalID uint) (string, error) {
	if len(schedule.ReminderTimes) == 0 {
		return "", nil
	}

	var goals []db.Goal
	query := s.db.Where("status = ?", db.GoalStatusActive)
	if excludeGoalID > 0 {
		query = query.Where("id <> ?", excludeGoalID)
	}
	if err := query.Find(&goals).Error; err != nil {
		return "", fmt.Errorf("load goals for conflict check: %w", err)
	}

	for i := range goals {
		other := scheduleFromGoal(&goals[i])
		if len(other.ReminderTimes) == 0 || !cadencesOverlap(schedule, other) {
			continue
		}
		for _, t := range schedule.ReminderTimes {
			for _, ot := range other.ReminderTimes {
				if clockDistance(t, ot) < MinReminderGapMinutes {
					return fmt.Sprintf("提醒时间 %s 与「%s」的 %s 过近", t, goals[i].Title, ot), nil
				}
			}
		}
	}

	return "", nil
}

// cadencesOverlap 判断两个节奏是否可能落在同一天。
// daily 覆盖所有日；interval 的落点随开始日期漂移，按可能任意一天处理。
func cadencesOverlap(a, b ScheduleDraft) bool {
	if a.Cadence == CadenceDaily || b.Cadence == CadenceDaily {
		return true
	}
	if a.Cadence == CadenceInterval || b.Cadence == CadenceInterval {
		return true
	}
	if a.Cadence == CadenceWeekdays && b.Cadence == CadenceWeekdays {
		return true
	}
	if a.Cadence == CadenceWeekdays {
		return hasWorkday(b.Weekdays)
	}
	if b.Cadence == CadenceWeekdays {
		return hasWorkday(a.Weekdays)
	}

	for _, d := range a.Weekdays {
		for _, od := range b.Weekdays {
			if d == od {
				return true
			}
		}
	}
	return false
}

func hasWorkday(days []time.Weekday) bool {
	for _, d := range days {
		if d >= time.Monday && d <= time.Friday {
			return true
		}
	}
	return false
}
