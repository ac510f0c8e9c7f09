package db

import "gorm.io/gorm"

// Category 定义了目标分类模型
// Builtin 表示内置分类，不允许删除；名称在忽略大小写后唯一。
type Category struct {
	gorm.Model
	Name      string `gorm:"unique;not null"`
	Slug      string `gorm:"unique;not null"`
	Builtin   bool   `gorm:"default:false"`
	SortOrder int    `gorm:"default:0"`
	GoalCount int64  `gorm:"->;-:migration"`
}
