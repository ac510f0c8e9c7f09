package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stridelog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrGoalNotFound 在指定目标不存在时返回
	ErrGoalNotFound = errors.New("goal not found")
)

// GoalService 负责已提交目标的查询与维护。
// 提交流程 CommitDraft 在一个事务里落库目标与问题，
// 事务提交后才通知提醒调度器，失败不会留下半个目标。
type GoalService struct {
	db         *gorm.DB
	categories *CategoryService
	scheduler  ReminderScheduler
}

// GoalFilter 描述目标列表过滤条件
type GoalFilter struct {
	Status   string
	Category string
	Search   string
}

// GoalUpdateInput 定义提交后仍可修改的字段
type GoalUpdateInput struct {
	Title               string
	Motivation          string
	CelebrationMessage  string
	CategoryCode        string
	CustomCategoryLabel string
}

// NewGoalService 构造 GoalService；scheduler 可为 nil（测试或脚本场景）。
func NewGoalService(gdb *gorm.DB, categories *CategoryService, scheduler ReminderScheduler) *GoalService {
	return &GoalService{db: gdb, categories: categories, scheduler: scheduler}
}

// encodeOptions 选项列表序列化为 JSON 字符串，空列表存空串。
func encodeOptions(options []string) string {
	if len(options) == 0 {
		return ""
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return ""
	}
	return string(raw)
}

// decodeOptions 还原选项列表，空串与坏数据都按无选项处理。
func decodeOptions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var options []string
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return nil
	}
	return options
}

// List 返回目标集合，预载问题列表，支持状态/分类/关键字过滤。
func (s *GoalService) List(filter GoalFilter) ([]db.Goal, error) {
	var goals []db.Goal

	query := s.db.Model(&db.Goal{}).Preload("Questions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		like := fmt.Sprintf("%%%s%%", strings.TrimSpace(filter.Search))
		query = query.Where("title LIKE ? OR motivation LIKE ?", like, like)
	}

	if err := query.Order("created_at DESC").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// Get 根据 ID 获取目标及其问题
func (s *GoalService) Get(id uint) (*db.Goal, error) {
	var goal db.Goal
	err := s.db.Preload("Questions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	}).First(&goal, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &goal, nil
}

// CommitDraft 校验草稿并在单个事务里创建目标、问题与分类记录。
// 事务成功后通知调度器安排提醒；任何失败都不产生部分数据，
// 调用方（向导会话）保留草稿供重试。
func (s *GoalService) CommitDraft(ctx context.Context, draft GoalDraft) (*db.Goal, error) {
	if verr := validateGoalDraft(&draft); verr != nil {
		return nil, verr
	}

	label, custom := draft.ResolvedCategory()

	goal := db.Goal{
		Title:              strings.TrimSpace(draft.Title),
		Motivation:         strings.TrimSpace(draft.Motivation),
		CelebrationMessage: strings.TrimSpace(draft.CelebrationMessage),
		Category:           label,
		CategoryCustom:     custom,
		Status:             db.GoalStatusActive,
	}
	applyScheduleToGoal(draft.Schedule, &goal)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.categories.Ensure(tx, label, !custom); err != nil {
			return err
		}
		if err := tx.Create(&goal).Error; err != nil {
			return err
		}

		questions := make([]db.Question, 0, len(draft.Questions))
		for i, q := range draft.Questions {
			provenance := q.Provenance
			if provenance == "" {
				provenance = ProvenanceManual
			}
			questions = append(questions, db.Question{
				GoalID:       goal.ID,
				Position:     i,
				Prompt:       strings.TrimSpace(q.Prompt),
				ResponseType: string(q.ResponseType),
				OptionsJSON:  encodeOptions(dedupOptions(q.Options)),
				MinValue:     q.MinValue,
				MaxValue:     q.MaxValue,
				AllowEmpty:   q.AllowEmpty,
				Active:       q.Active,
				Provenance:   provenance,
			})
		}
		if err := tx.Create(&questions).Error; err != nil {
			return err
		}
		goal.Questions = questions
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persist goal: %w", err)
	}

	if s.scheduler != nil {
		s.scheduler.Schedule(&goal)
	}
	return &goal, nil
}

// Update 修改目标的标题、动机、庆祝语与分类。
func (s *GoalService) Update(id uint, input GoalUpdateInput) (*db.Goal, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, &ValidationError{
			Hint:   "请先填写目标标题",
			HintEN: "goal title is required",
		}
	}

	probe := GoalDraft{
		Title:               title,
		CategoryCode:        strings.TrimSpace(input.CategoryCode),
		CustomCategoryLabel: strings.TrimSpace(input.CustomCategoryLabel),
	}
	if !probe.CategoryResolved() {
		return nil, &ValidationError{
			Hint:   "请选择目标分类",
			HintEN: "pick a goal category",
		}
	}
	label, custom := probe.ResolvedCategory()

	var goal db.Goal
	if err := s.db.First(&goal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("find goal: %w", err)
	}

	goal.Title = title
	goal.Motivation = strings.TrimSpace(input.Motivation)
	goal.CelebrationMessage = strings.TrimSpace(input.CelebrationMessage)
	goal.Category = label
	goal.CategoryCustom = custom

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.categories.Ensure(tx, label, !custom); err != nil {
			return err
		}
		return tx.Save(&goal).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	return &goal, nil
}

// Archive 归档目标并撤销其提醒
func (s *GoalService) Archive(id uint) (*db.Goal, error) {
	var goal db.Goal
	if err := s.db.First(&goal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("find goal: %w", err)
	}

	goal.Status = db.GoalStatusArchived
	if err := s.db.Save(&goal).Error; err != nil {
		return nil, fmt.Errorf("archive goal: %w", err)
	}

	if s.scheduler != nil {
		s.scheduler.Unschedule(goal.ID)
	}
	return &goal, nil
}
