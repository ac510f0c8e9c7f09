package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stridelog/internal/db"
	"gorm.io/gorm"
)

var (
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryInUse    = errors.New("category is associated with goals")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryBuiltin  = errors.New("builtin category cannot be deleted")
)

// CategoryService 管理目标分类。
// 内置分类在启动时补齐；自定义分类在目标提交时按需创建。
type CategoryService struct {
	db *gorm.DB
}

// NewCategoryService 构造 CategoryService
func NewCategoryService(gdb *gorm.DB) *CategoryService {
	return &CategoryService{db: gdb}
}

// categorySlug 生成忽略大小写的唯一键
func categorySlug(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}

// List 返回分类及其目标使用数，内置分类排前。
func (s *CategoryService) List() ([]db.Category, error) {
	var categories []db.Category
	if err := s.db.
		Model(&db.Category{}).
		Select("categories.*, COUNT(goals.id) AS goal_count").
		Joins("LEFT JOIN goals ON goals.category = categories.name AND goals.deleted_at IS NULL").
		Group("categories.id").
		Order("categories.builtin DESC").
		Order("categories.sort_order ASC").
		Order("categories.id ASC").
		Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Create 新建自定义分类，名称忽略大小写后必须唯一。
func (s *CategoryService) Create(name string) (*db.Category, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, errors.New("category name is required")
	}

	var existing db.Category
	if err := s.db.Where("slug = ?", categorySlug(trimmed)).First(&existing).Error; err == nil {
		return nil, ErrCategoryExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check category: %w", err)
	}

	category := db.Category{Name: trimmed, Slug: categorySlug(trimmed)}
	if err := s.db.Create(&category).Error; err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &category, nil
}

// Delete 删除分类；内置分类或仍被目标引用的分类拒绝删除。
func (s *CategoryService) Delete(id uint) error {
	var category db.Category
	if err := s.db.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("find category: %w", err)
	}
	if category.Builtin {
		return ErrCategoryBuiltin
	}

	var count int64
	if err := s.db.Model(&db.Goal{}).Where("category = ?", category.Name).Count(&count).Error; err != nil {
		return fmt.Errorf("count category goals: %w", err)
	}
	if count > 0 {
		return ErrCategoryInUse
	}

	return s.db.Delete(&category).Error
}

// Ensure 按名称（忽略大小写）查找分类，不存在则在给定事务里创建。
// 目标提交时用它为自定义标签落一行分类记录。
func (s *CategoryService) Ensure(tx *gorm.DB, name string, builtin bool) (*db.Category, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, errors.New("category name is required")
	}

	var category db.Category
	err := tx.Where("slug = ?", categorySlug(trimmed)).First(&category).Error
	if err == nil {
		return &category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find category: %w", err)
	}

	category = db.Category{Name: trimmed, Slug: categorySlug(trimmed), Builtin: builtin}
	if err := tx.Create(&category).Error; err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &category, nil
}

// EnsureBuiltins 启动时补齐内置分类行，重复执行安全。
func (s *CategoryService) EnsureBuiltins() error {
	for i, code := range builtinCategoryCodes {
		category, err := s.Ensure(s.db, code, true)
		if err != nil {
			return fmt.Errorf("ensure builtin category %s: %w", code, err)
		}
		if !category.Builtin || category.SortOrder != i {
			if err := s.db.Model(category).Updates(map[string]any{
				"builtin":    true,
				"sort_order": i,
			}).Error; err != nil {
				return fmt.Errorf("update builtin category %s: %w", code, err)
			}
		}
	}
	return nil
}
