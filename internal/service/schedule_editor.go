package service

import (
	"strings"
	"time"
)

// 节奏编辑器：全部操作落在向导会话的 ScheduleDraft 上。
// 每次变更后重新计算与已有目标的提醒冲突描述，冲突只展示不拦截。

// refreshConflict 重算冲突提示；查询失败时保留上一次的描述。
func (s *WizardService) refreshConflict(sess *WizardSession) {
	if s.conflicts == nil {
		return
	}
	if msg, err := s.conflicts.Describe(sess.Draft.Schedule, 0); err == nil {
		sess.ConflictMessage = msg
	}
}

// SetScheduleCadence 切换打卡节奏
func (s *WizardService) SetScheduleCadence(id, cadence string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		if err := sess.Draft.Schedule.SetCadence(strings.TrimSpace(cadence)); err != nil {
			return err
		}
		s.refreshConflict(sess)
		return nil
	})
}

// SetScheduleWeekdays 覆盖每周打卡日
func (s *WizardService) SetScheduleWeekdays(id string, days []time.Weekday) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		sess.Draft.Schedule.SetWeekdays(days)
		s.refreshConflict(sess)
		return nil
	})
}

// SetScheduleIntervalDays 更新间隔天数
func (s *WizardService) SetScheduleIntervalDays(id string, days int) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		if err := sess.Draft.Schedule.SetIntervalDays(days); err != nil {
			return err
		}
		s.refreshConflict(sess)
		return nil
	})
}

// SetScheduleTimezone 更新时区，空值回退 Local。
func (s *WizardService) SetScheduleTimezone(id, timezone string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		tz := strings.TrimSpace(timezone)
		if tz == "" {
			tz = "Local"
		}
		if tz != "Local" {
			if _, err := time.LoadLocation(tz); err != nil {
				return &ValidationError{
					Hint:   "无法识别的时区",
					HintEN: "unknown timezone",
				}
			}
		}
		sess.Draft.Schedule.Timezone = tz
		return nil
	})
}

// SetScheduleStartDate 更新开始日期，nil 表示立即生效。
func (s *WizardService) SetScheduleStartDate(id string, startDate *time.Time) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		sess.Draft.Schedule.StartDate = startDate
		return nil
	})
}

// AddScheduleTime 添加提醒时间。
// 与已有时间不足 5 分钟、超出数量上限或格式非法时返回 accepted=false，
// 草稿保持不变；accepted 的语义与编辑器一致，不产生错误。
func (s *WizardService) AddScheduleTime(id, clock string) (bool, *WizardSession, error) {
	accepted := false
	sess, err := s.withSession(id, func(sess *WizardSession) error {
		t, parseErr := ParseClock(strings.TrimSpace(clock))
		if parseErr != nil {
			return nil
		}
		accepted = sess.Draft.Schedule.AddTime(t)
		if accepted {
			s.refreshConflict(sess)
		}
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return accepted, sess, nil
}

// RemoveScheduleTime 移除提醒时间，不存在或格式非法时为空操作。
func (s *WizardService) RemoveScheduleTime(id, clock string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		t, parseErr := ParseClock(strings.TrimSpace(clock))
		if parseErr != nil {
			return nil
		}
		sess.Draft.Schedule.RemoveTime(t)
		s.refreshConflict(sess)
		return nil
	})
}
