package db

import (
	"time"

	"gorm.io/gorm"
)

// GoalTrashItem 保存被删除目标的序列化快照
// Snapshot 为 JSON 文本，包含目标、问题与打卡记录，恢复时整体重建
// Note 为删除时用户填写的备注；TrashedAt 用于计算保留窗口
// 超过保留期的条目由后台清理任务静默移除
type GoalTrashItem struct {
	gorm.Model
	GoalTitle string `gorm:"not null"`
	Snapshot  string `gorm:"type:text;not null"`
	Note      string
	TrashedAt time.Time `gorm:"index"`
}

// TrashRetentionDays 回收站默认保留天数，超期条目在启动与每日清理时被移除。
const TrashRetentionDays = 30
