package db

import (
	"time"

	"gorm.io/gorm"
)

// ReminderDispatch 记录调度器每次触发的提醒
// 推送通道由部署层决定，这里仅落审计行（Channel 当前固定为 log）
// Status 使用 sent/skipped，skipped 表示触发时目标已归档或被删除
type ReminderDispatch struct {
	gorm.Model
	GoalID  uint      `gorm:"index"`
	FireAt  time.Time `gorm:"index"`
	Channel string
	Status  string
	Detail  string
}

const (
	ReminderStatusSent    = "sent"
	ReminderStatusSkipped = "skipped"
)
