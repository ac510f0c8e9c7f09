package db

import (
	"time"

	"gorm.io/gorm"
)

// CheckIn 记录某个问题在某一天的打卡数据
// Question + LogDate 采用唯一索引保证幂等；GoalID 冗余存储便于按目标做区间扫描
// Value 保存原始字符串形式，NumericValue 仅对数值类问题填充，便于聚合统计
// Skipped 表示用户使用"允许留空"跳过了该问题
// Source 标记打卡来源（manual/api/seed）
type CheckIn struct {
	gorm.Model
	GoalID       uint      `gorm:"index"`
	QuestionID   uint      `gorm:"index;index:idx_checkin_unique,unique"`
	Question     Question  `gorm:"constraint:OnDelete:CASCADE"`
	LogDate      time.Time `gorm:"index:idx_checkin_unique,unique"`
	Value        string
	NumericValue *float64
	Skipped      bool
	Note         string
	Source       string
	LoggedAt     *time.Time
}

func (CheckIn) TableName() string {
	return "check_ins"
}
