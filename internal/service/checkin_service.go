package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stridelog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrQuestionNotFound 在打卡指向的问题不存在时返回
	ErrQuestionNotFound = errors.New("question not found")
	// ErrCheckInNotFound 在指定打卡记录不存在时返回
	ErrCheckInNotFound = errors.New("check-in not found")
)

// CheckInService 负责打卡记录的写入与区间查询。
// 同一问题同一天的打卡是幂等的：重复提交只更新已有记录。
type CheckInService struct {
	db *gorm.DB
}

// CheckInInput 定义一次打卡提交
type CheckInInput struct {
	QuestionID uint
	LogDate    time.Time
	Value      string
	Note       string
	Source     string
	LoggedAt   *time.Time
}

// CheckInFilter 指定查询区间；QuestionID 为 0 时按目标维度查询。
type CheckInFilter struct {
	GoalID     uint
	QuestionID uint
	Start      time.Time
	End        time.Time
}

// GoalHeatmapEntry 表示热力图中单个目标单日的打卡强度
type GoalHeatmapEntry struct {
	LogDate   time.Time
	GoalID    uint
	GoalTitle string
	Category  string
	Count     int
}

// GoalStats 汇总目标在区间内的完成情况。
// 期望次数按节奏推算，连胜只在应打卡的日期上计算。
type GoalStats struct {
	RangeStart     time.Time
	RangeEnd       time.Time
	CompletedDays  int
	ExpectedDays   int
	CompletionRate float64
	CurrentStreak  int
	LongestStreak  int
}

// NewCheckInService 构造 CheckInService
func NewCheckInService(gdb *gorm.DB) *CheckInService {
	return &CheckInService{db: gdb}
}

// Upsert 处理幂等打卡：回答先按问题类型校验，通过后
// 以 (question_id, log_date) 为键插入或更新。
func (s *CheckInService) Upsert(input CheckInInput) (*db.CheckIn, error) {
	var question db.Question
	if err := s.db.First(&question, input.QuestionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("find question: %w", err)
	}

	value, numeric, skipped, verr := validateCheckInValue(&question, input.Value)
	if verr != nil {
		return nil, verr
	}

	logDate := normalizeToDate(input.LogDate)
	record := db.CheckIn{
		QuestionID:   question.ID,
		GoalID:       question.GoalID,
		LogDate:      logDate,
		Value:        value,
		NumericValue: numeric,
		Skipped:      skipped,
		Note:         strings.TrimSpace(input.Note),
		Source:       strings.TrimSpace(input.Source),
		LoggedAt:     input.LoggedAt,
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "question_id"}, {Name: "log_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "numeric_value", "skipped", "note", "source", "logged_at", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert check-in: %w", err)
	}

	if err := s.db.Where("question_id = ? AND log_date = ?", question.ID, logDate).First(&record).Error; err != nil {
		return nil, fmt.Errorf("reload check-in: %w", err)
	}

	return &record, nil
}

// validateCheckInValue 按问题类型校验并规范化回答。
// 空回答仅在问题允许留空时接受，落库为 Skipped 记录；
// 数值越界直接拒绝，不做截断。
func validateCheckInValue(question *db.Question, raw string) (string, *float64, bool, *ValidationError) {
	value := strings.TrimSpace(raw)
	if value == "" {
		if !question.AllowEmpty {
			return "", nil, false, &ValidationError{
				Hint:   "该问题不允许留空",
				HintEN: "this question does not allow an empty answer",
			}
		}
		return "", nil, true, nil
	}

	switch ResponseType(question.ResponseType) {
	case ResponseYesNo:
		lower := strings.ToLower(value)
		if lower != "yes" && lower != "no" {
			return "", nil, false, &ValidationError{
				Hint:   "回答只能是 yes 或 no",
				HintEN: "answer must be yes or no",
			}
		}
		return lower, nil, false, nil
	case ResponseNumeric, ResponseScale, ResponseSlider:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", nil, false, &ValidationError{
				Hint:   "回答必须是数字",
				HintEN: "answer must be a number",
			}
		}
		if n < question.MinValue || n > question.MaxValue {
			return "", nil, false, &ValidationError{
				Hint:   fmt.Sprintf("数值需在 %g 到 %g 之间", question.MinValue, question.MaxValue),
				HintEN: fmt.Sprintf("value must be between %g and %g", question.MinValue, question.MaxValue),
			}
		}
		return value, &n, false, nil
	case ResponseMultipleChoice:
		for _, option := range decodeOptions(question.OptionsJSON) {
			if strings.EqualFold(option, value) {
				return option, nil, false, nil
			}
		}
		return "", nil, false, &ValidationError{
			Hint:   "回答不在选项列表中",
			HintEN: "answer is not one of the options",
		}
	case ResponseTimeOfDay:
		if _, err := ParseClock(value); err != nil {
			return "", nil, false, &ValidationError{
				Hint:   "时间格式应为 HH:MM",
				HintEN: "time must be in HH:MM format",
			}
		}
		return value, nil, false, nil
	case ResponseFreeText:
		return value, nil, false, nil
	}

	return "", nil, false, &ValidationError{
		Hint:   "不支持的回答类型",
		HintEN: "unsupported response type",
	}
}

// Delete 删除指定打卡记录
func (s *CheckInService) Delete(id uint) error {
	result := s.db.Delete(&db.CheckIn{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete check-in: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCheckInNotFound
	}
	return nil
}

// ListBetween 返回区间内的打卡记录，按日期升序。
func (s *CheckInService) ListBetween(filter CheckInFilter) ([]db.CheckIn, error) {
	if filter.GoalID == 0 && filter.QuestionID == 0 {
		return nil, fmt.Errorf("goal id or question id is required")
	}

	start := normalizeToDate(filter.Start)
	end := normalizeToDate(filter.End)

	query := s.db.Model(&db.CheckIn{})
	if filter.QuestionID > 0 {
		query = query.Where("question_id = ?", filter.QuestionID)
	} else {
		query = query.Where("goal_id = ?", filter.GoalID)
	}

	var records []db.CheckIn
	if err := query.
		Where("log_date BETWEEN ? AND ?", start, end).
		Order("log_date ASC").
		Order("question_id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	return records, nil
}

// History 返回目标最近的打卡记录，按日期倒序分页。
func (s *CheckInService) History(goalID uint, limit, offset int) ([]db.CheckIn, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.Model(&db.CheckIn{}).Where("goal_id = ?", goalID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count check-ins: %w", err)
	}

	var records []db.CheckIn
	if err := s.db.Where("goal_id = ?", goalID).
		Order("log_date DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("list check-in history: %w", err)
	}
	return records, total, nil
}

// HeatmapRange 返回区间内所有目标的逐日打卡强度，跳过类记录不计入。
func (s *CheckInService) HeatmapRange(start, end time.Time) ([]GoalHeatmapEntry, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range: end before start")
	}

	normalizedStart := normalizeToDate(start)
	normalizedEnd := normalizeToDate(end)

	var rows []GoalHeatmapEntry
	if err := s.db.Model(&db.CheckIn{}).
		Select("check_ins.log_date AS log_date, check_ins.goal_id AS goal_id, goals.title AS goal_title, goals.category AS category, COUNT(check_ins.id) AS count").
		Joins("JOIN goals ON goals.id = check_ins.goal_id").
		Where("check_ins.log_date BETWEEN ? AND ?", normalizedStart, normalizedEnd).
		Where("check_ins.skipped = ?", false).
		Group("check_ins.log_date, check_ins.goal_id, goals.title, goals.category").
		Order("check_ins.log_date ASC, goals.title ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list heatmap check-ins: %w", err)
	}

	return rows, nil
}

// StatsBetween 计算目标在区间内的完成天数、期望天数与连胜。
// 只有按节奏应打卡的日期参与统计，非打卡日的回答不抬高完成率。
func (s *CheckInService) StatsBetween(goal *db.Goal, start, end time.Time) (*GoalStats, error) {
	if goal == nil {
		return nil, ErrGoalNotFound
	}

	records, err := s.ListBetween(CheckInFilter{GoalID: goal.ID, Start: start, End: end})
	if err != nil {
		return nil, err
	}

	answered := make(map[string]bool)
	for _, r := range records {
		if !r.Skipped {
			answered[r.LogDate.Format("2006-01-02")] = true
		}
	}

	schedule := scheduleFromGoal(goal)
	anchor := scheduleAnchor(goal)

	stats := &GoalStats{RangeStart: start, RangeEnd: end}

	var scheduledDone []bool
	for day := normalizeToDate(start); !day.After(normalizeToDate(end)); day = day.AddDate(0, 0, 1) {
		if !isScheduledDay(schedule, anchor, day) {
			continue
		}
		stats.ExpectedDays++
		done := answered[day.Format("2006-01-02")]
		if done {
			stats.CompletedDays++
		}
		scheduledDone = append(scheduledDone, done)
	}

	if stats.ExpectedDays > 0 {
		stats.CompletionRate = float64(stats.CompletedDays) / float64(stats.ExpectedDays)
	}

	stats.CurrentStreak, stats.LongestStreak = scheduledStreaks(scheduledDone)
	return stats, nil
}

// scheduledStreaks 基于应打卡日的完成序列计算连胜。
// 末位未完成视为“今天还没打卡”，不打断当前连胜。
func scheduledStreaks(done []bool) (current, longest int) {
	run := 0
	for _, d := range done {
		if d {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}

	tail := len(done) - 1
	if tail >= 0 && !done[tail] {
		tail--
	}
	for i := tail; i >= 0; i-- {
		if !done[i] {
			break
		}
		current++
	}
	return current, longest
}

func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
