package db

import (
	"time"

	"gorm.io/gorm"
)

// Goal 定义了已提交的目标模型
// 分类存储解析后的标签：内置分类存 code，自定义分类存用户输入的标签
// 节奏配置直接落在列上（Cadence/WeekdaysCSV/IntervalDays/ReminderTimesCSV），
// 避免为单用户场景引入额外的关联表
// Status 仅使用 active/archived，归档目标不再参与提醒调度
type Goal struct {
	gorm.Model
	Title              string `gorm:"not null"`
	Motivation         string `gorm:"type:text"`
	CelebrationMessage string
	Category           string `gorm:"index"`
	CategoryCustom     bool
	Status             string `gorm:"index;default:active"`

	// 提醒节奏，详见 service.ScheduleDraft
	Cadence          string
	WeekdaysCSV      string
	IntervalDays     int
	ReminderTimesCSV string
	Timezone         string
	StartDate        *time.Time

	Questions []Question `gorm:"constraint:OnDelete:CASCADE"`
}

const (
	GoalStatusActive   = "active"
	GoalStatusArchived = "archived"
)

// Question 记录目标下的单个追踪问题
// Position 保证展示顺序稳定；OptionsJSON 仅在多选类型时非空
// MinValue/MaxValue 仅对数值类（numeric/scale/slider）有意义
// Provenance 标记问题来源（manual/template/suggestion），便于统计模板使用率
type Question struct {
	gorm.Model
	GoalID       uint   `gorm:"index"`
	Goal         Goal   `gorm:"constraint:OnDelete:CASCADE"`
	Position     int    `gorm:"index"`
	Prompt       string `gorm:"not null"`
	ResponseType string `gorm:"not null"`
	OptionsJSON  string `gorm:"type:text"`
	MinValue     float64
	MaxValue     float64
	AllowEmpty   bool
	Active       bool `gorm:"default:true"`
	Provenance   string
}
