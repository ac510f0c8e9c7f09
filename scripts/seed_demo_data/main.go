package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stridelog/internal/config"
	"github.com/stridelog/internal/db"
	"github.com/stridelog/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// 演示数据生成器
func main() {
	// 初始化数据库
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成演示数据...")

	categories := service.NewCategoryService(db.DB)
	if err := categories.EnsureBuiltins(); err != nil {
		log.Fatal("初始化内置分类失败:", err)
	}
	goals := service.NewGoalService(db.DB, categories, service.NoopScheduler{})
	checkIns := service.NewCheckInService(db.DB)

	// 创建演示用户
	createDemoUser()

	// 创建演示目标
	demoGoals := createDemoGoals(goals)

	// 回填最近六周的打卡记录
	createDemoCheckIns(checkIns, demoGoals)

	fmt.Println("演示数据生成完成！")
	fmt.Println("用户: admin (密码: admin123)")
	fmt.Printf("目标: %d 个演示目标\n", len(demoGoals))
}

// 创建演示用户
func createDemoUser() {
	// 检查是否已存在用户
	var count int64
	db.DB.Model(&db.User{}).Count(&count)
	if count > 0 {
		fmt.Println("用户已存在，跳过创建")
		return
	}

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	admin := db.User{
		Username: "admin",
		Password: string(hashedPassword),
	}
	db.DB.Create(&admin)

	fmt.Println("✅ 演示用户创建完成")
}

// 创建演示目标
func createDemoGoals(goals *service.GoalService) []db.Goal {
	// 已有目标时直接复用，避免重复生成
	var count int64
	db.DB.Model(&db.Goal{}).Count(&count)
	if count > 0 {
		fmt.Println("目标已存在，跳过创建")
		existing, err := goals.List(service.GoalFilter{Status: db.GoalStatusActive})
		if err != nil {
			log.Printf("查询已有目标失败: %v", err)
			return nil
		}
		return existing
	}

	drafts := buildDemoDrafts()

	created := make([]db.Goal, 0, len(drafts))
	for _, draft := range drafts {
		goal, err := goals.CommitDraft(context.Background(), draft)
		if err != nil {
			log.Printf("创建目标 %q 失败: %v", draft.Title, err)
			continue
		}
		created = append(created, *goal)
	}

	fmt.Println("✅ 演示目标创建完成")
	return created
}

// buildDemoDrafts 组装覆盖各种节奏与回答类型的目标草稿
func buildDemoDrafts() []service.GoalDraft {
	weekly := service.NewScheduleDraft()
	weekly.Cadence = service.CadenceWeekly
	weekly.Weekdays = []time.Weekday{time.Monday, time.Wednesday, time.Friday}

	interval := service.NewScheduleDraft()
	interval.Cadence = service.CadenceInterval
	interval.IntervalDays = 2

	morning := service.NewScheduleDraft()
	if t, err := service.ParseClock("07:00"); err == nil {
		morning.AddTime(t)
	}

	evening := service.NewScheduleDraft()
	if t, err := service.ParseClock("21:30"); err == nil {
		evening.AddTime(t)
	}

	return []service.GoalDraft{
		{
			Title:              "每天晨跑",
			Motivation:         "为秋天的半程马拉松做准备，**坚持**就是一切。",
			CelebrationMessage: "又跑完一天，离终点线更近了！",
			CategoryCode:       "fitness",
			Questions: []service.QuestionDraft{
				{
					Prompt:       "今天完成晨跑了吗？",
					ResponseType: service.ResponseYesNo,
					Active:       true,
					Provenance:   service.ProvenanceManual,
				},
				{
					Prompt:       "跑了多少公里？",
					ResponseType: service.ResponseNumeric,
					MinValue:     0,
					MaxValue:     42,
					AllowEmpty:   true,
					Active:       true,
					Provenance:   service.ProvenanceManual,
				},
			},
			Schedule: morning,
		},
		{
			Title:              "睡前阅读半小时",
			Motivation:         "少刷手机，把睡前时间还给书。",
			CelebrationMessage: "今晚的你比昨晚多懂了一点。",
			CategoryCode:       "learning",
			Questions: []service.QuestionDraft{
				{
					Prompt:       "今天读书了吗？",
					ResponseType: service.ResponseYesNo,
					Active:       true,
					Provenance:   service.ProvenanceManual,
				},
			},
			Schedule: evening,
		},
		{
			Title:              "一周三练",
			Motivation:         "力量训练，周一三五各一次。",
			CelebrationMessage: "练完这组，给自己鼓个掌。",
			CategoryCode:       "health",
			Questions: []service.QuestionDraft{
				{
					Prompt:       "今天去健身房了吗？",
					ResponseType: service.ResponseYesNo,
					Active:       true,
					Provenance:   service.ProvenanceManual,
				},
				{
					Prompt:       "训练强度感觉如何？",
					ResponseType: service.ResponseScale,
					MinValue:     1,
					MaxValue:     5,
					AllowEmpty:   true,
					Active:       true,
					Provenance:   service.ProvenanceManual,
				},
			},
			Schedule: weekly,
		},
		{
			Title:              "冥想十分钟",
			Motivation:         "每天留十分钟给自己，观察呼吸。",
			CategoryCode:       "mindfulness",
			Questions: []service.QuestionDraft{
				{
					Prompt:       "冥想了多少分钟？",
					ResponseType: service.ResponseNumeric,
					MinValue:     0,
					MaxValue:     120,
					Active:       true,
					Provenance:   service.ProvenanceManual,
				},
				{
					Prompt:       "几点开始冥想的？",
					ResponseType: service.ResponseTimeOfDay,
					AllowEmpty:   true,
					Active:       true,
					Provenance:   service.ProvenanceManual,
				},
			},
			Schedule: service.NewScheduleDraft(),
		},
		{
			Title:               "隔天记账",
			Motivation:          "看清钱花在哪里，才谈得上计划。",
			CategoryCode:        service.CategoryCodeCustom,
			CustomCategoryLabel: "理财习惯",
			Questions: []service.QuestionDraft{
				{
					Prompt:       "账目记清楚了吗？",
					ResponseType: service.ResponseYesNo,
					Active:       true,
					Provenance:   service.ProvenanceManual,
				},
				{
					Prompt:       "今天最大一笔支出是什么？",
					ResponseType: service.ResponseFreeText,
					AllowEmpty:   true,
					Active:       true,
					Provenance:   service.ProvenanceManual,
				},
			},
			Schedule: interval,
		},
	}
}

// 回填打卡记录，固定模式便于反复生成相同的演示曲线
func createDemoCheckIns(checkIns *service.CheckInService, goals []db.Goal) {
	if len(goals) == 0 {
		fmt.Println("没有可用目标，跳过打卡回填")
		return
	}

	// 清理旧的演示打卡
	db.DB.Exec("DELETE FROM check_ins WHERE source = ?", "seed")

	today := time.Now()
	seeded := 0

	for dayOffset := 42; dayOffset >= 1; dayOffset-- {
		date := today.AddDate(0, 0, -dayOffset)
		for goalIdx, goal := range goals {
			if !demoDayActive(goal.Cadence, date, dayOffset, goalIdx) {
				continue
			}
			for _, question := range goal.Questions {
				if !question.Active {
					continue
				}
				value, ok := demoAnswer(service.ResponseType(question.ResponseType), question, dayOffset, goalIdx)
				if !ok {
					continue
				}
				_, err := checkIns.Upsert(service.CheckInInput{
					QuestionID: question.ID,
					LogDate:    date,
					Value:      value,
					Source:     "seed",
				})
				if err != nil {
					log.Printf("回填打卡失败 (goal=%d date=%s): %v", goal.ID, date.Format("2006-01-02"), err)
					continue
				}
				seeded++
			}
		}
	}

	fmt.Printf("✅ 打卡记录回填完成，共 %d 条\n", seeded)
}

// demoDayActive 判断该目标在演示曲线上这一天是否打卡。
// 故意留出缺卡日，让连击和热力图看起来真实。
func demoDayActive(cadence string, date time.Time, dayOffset, goalIdx int) bool {
	switch cadence {
	case service.CadenceWeekly:
		switch date.Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
			return dayOffset%11 != 0
		}
		return false
	case service.CadenceInterval:
		return dayOffset%2 == 0
	default:
		// 每日节奏：每隔一段漏打一天
		return (dayOffset+goalIdx*3)%7 != 0
	}
}

// demoAnswer 按回答类型给出合法的演示答案
func demoAnswer(t service.ResponseType, question db.Question, dayOffset, goalIdx int) (string, bool) {
	switch t {
	case service.ResponseYesNo:
		if (dayOffset+goalIdx)%9 == 0 {
			return "no", true
		}
		return "yes", true
	case service.ResponseNumeric:
		span := question.MaxValue - question.MinValue
		value := question.MinValue + span*float64(dayOffset%5+3)/10
		return fmt.Sprintf("%.1f", value), true
	case service.ResponseScale, service.ResponseSlider:
		steps := int(question.MaxValue-question.MinValue) + 1
		if steps < 1 {
			steps = 1
		}
		return fmt.Sprintf("%d", int(question.MinValue)+dayOffset%steps), true
	case service.ResponseTimeOfDay:
		return fmt.Sprintf("%02d:%02d", 6+dayOffset%3, (dayOffset*7)%60), true
	case service.ResponseFreeText:
		notes := []string{"午饭", "地铁通勤", "买了本书", "给家里买菜"}
		return notes[dayOffset%len(notes)], true
	}
	return "", false
}
