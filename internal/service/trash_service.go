package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stridelog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrTrashItemNotFound 在回收站条目不存在时返回
	ErrTrashItemNotFound = errors.New("trash item not found")
)

// TrashService 实现目标的软删除生命周期。
// 删除时把目标连同问题与打卡序列化成快照存入回收站，活动数据直接清除；
// 恢复时从快照重建（分配新 ID），超过保留期的条目由后台任务清理。
type TrashService struct {
	db         *gorm.DB
	categories *CategoryService
	scheduler  ReminderScheduler
}

// TrashSnapshot 是回收站条目里的完整目标快照
type TrashSnapshot struct {
	Goal      db.Goal       `json:"goal"`
	Questions []db.Question `json:"questions"`
	CheckIns  []db.CheckIn  `json:"check_ins"`
}

// NewTrashService 构造 TrashService；scheduler 可为 nil。
func NewTrashService(gdb *gorm.DB, categories *CategoryService, scheduler ReminderScheduler) *TrashService {
	return &TrashService{db: gdb, categories: categories, scheduler: scheduler}
}

// MoveToTrash 把目标移入回收站。
// 快照写入与活动数据删除在同一事务内完成，任一失败目标保持原样。
func (s *TrashService) MoveToTrash(goalID uint, note string) (*db.GoalTrashItem, error) {
	var goal db.Goal
	if err := s.db.Preload("Questions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	}).First(&goal, goalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("find goal: %w", err)
	}

	var checkIns []db.CheckIn
	if err := s.db.Where("goal_id = ?", goal.ID).Order("log_date ASC").Find(&checkIns).Error; err != nil {
		return nil, fmt.Errorf("load check-ins: %w", err)
	}

	snapshot := TrashSnapshot{
		Goal:      goal,
		Questions: goal.Questions,
		CheckIns:  checkIns,
	}
	snapshot.Goal.Questions = nil

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal trash snapshot: %w", err)
	}

	item := db.GoalTrashItem{
		GoalTitle: goal.Title,
		Snapshot:  string(raw),
		Note:      strings.TrimSpace(note),
		TrashedAt: time.Now(),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("goal_id = ?", goal.ID).Delete(&db.CheckIn{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("goal_id = ?", goal.ID).Delete(&db.Question{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&db.Goal{}, goal.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("move goal to trash: %w", err)
	}

	if s.scheduler != nil {
		s.scheduler.Unschedule(goal.ID)
	}
	return &item, nil
}

// List 返回回收站条目，最近删除的在前。
func (s *TrashService) List() ([]db.GoalTrashItem, error) {
	var items []db.GoalTrashItem
	if err := s.db.Order("trashed_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list trash items: %w", err)
	}
	return items, nil
}

// Preview 返回条目及其解码后的快照，供恢复前查看。
func (s *TrashService) Preview(itemID uint) (*db.GoalTrashItem, *TrashSnapshot, error) {
	var item db.GoalTrashItem
	if err := s.db.First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrTrashItemNotFound
		}
		return nil, nil, fmt.Errorf("find trash item: %w", err)
	}

	var snapshot TrashSnapshot
	if err := json.Unmarshal([]byte(item.Snapshot), &snapshot); err != nil {
		return nil, nil, fmt.Errorf("decode trash snapshot: %w", err)
	}
	return &item, &snapshot, nil
}

// RestoreFromTrash 从快照重建目标。
// 问题与打卡用新 ID 重建并保持关联；reactivate 为 true 时恢复为
// 活跃状态并重新安排提醒，否则恢复为归档状态。
func (s *TrashService) RestoreFromTrash(itemID uint, reactivate bool) (*db.Goal, error) {
	_, snapshot, err := s.Preview(itemID)
	if err != nil {
		return nil, err
	}

	goal := snapshot.Goal
	goal.Model = gorm.Model{}
	goal.Questions = nil
	if reactivate {
		goal.Status = db.GoalStatusActive
	} else {
		goal.Status = db.GoalStatusArchived
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if goal.Category != "" {
			if _, err := s.categories.Ensure(tx, goal.Category, !goal.CategoryCustom); err != nil {
				return err
			}
		}
		if err := tx.Create(&goal).Error; err != nil {
			return err
		}

		questionIDs := make(map[uint]uint, len(snapshot.Questions))
		for _, q := range snapshot.Questions {
			oldID := q.ID
			q.Model = gorm.Model{}
			q.GoalID = goal.ID
			if err := tx.Create(&q).Error; err != nil {
				return err
			}
			questionIDs[oldID] = q.ID
			goal.Questions = append(goal.Questions, q)
		}

		for _, c := range snapshot.CheckIns {
			newQuestionID, ok := questionIDs[c.QuestionID]
			if !ok {
				continue
			}
			c.Model = gorm.Model{}
			c.QuestionID = newQuestionID
			c.GoalID = goal.ID
			if err := tx.Create(&c).Error; err != nil {
				return err
			}
		}

		return tx.Unscoped().Delete(&db.GoalTrashItem{}, itemID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("restore goal from trash: %w", err)
	}

	if reactivate && s.scheduler != nil {
		s.scheduler.Schedule(&goal)
	}
	return &goal, nil
}

// PermanentlyDelete 彻底删除回收站条目
func (s *TrashService) PermanentlyDelete(itemID uint) error {
	result := s.db.Unscoped().Delete(&db.GoalTrashItem{}, itemID)
	if result.Error != nil {
		return fmt.Errorf("delete trash item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTrashItemNotFound
	}
	return nil
}

// PurgeOldItems 清理超过保留期的条目，返回清理数量。
// olderThanDays 非正数时使用默认保留期；重复执行安全。
func (s *TrashService) PurgeOldItems(olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = db.TrashRetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result := s.db.Unscoped().Where("trashed_at < ?", cutoff).Delete(&db.GoalTrashItem{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge trash items: %w", result.Error)
	}
	return result.RowsAffected, nil
}
