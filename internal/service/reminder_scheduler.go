package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stridelog/internal/db"
	"github.com/stridelog/internal/logger"
	"gorm.io/gorm"
)

// ReminderScheduler 抽象提醒调度，由构造方注入而非全局单例。
// 测试与脚本使用 NoopScheduler。
type ReminderScheduler interface {
	// Schedule 为目标安排下一次提醒，重复调用会重置已有定时器。
	Schedule(goal *db.Goal)
	// Unschedule 撤销目标的提醒定时器
	Unschedule(goalID uint)
	// RescheduleAll 重建全部活跃目标的定时器，启动时调用。
	RescheduleAll() error
}

// 提醒投递渠道与每日后台任务间隔。
// 推送通道（APNs/FCM）属于部署层，这里只落审计记录。
const (
	ReminderChannelLog   = "log"
	housekeepingInterval = 24 * time.Hour
)

// NextOccurrence 计算 after 之后第一次应触发提醒的时刻，纯函数。
// anchor 为 interval 节奏的起算日；没有提醒时间或两年内无落点时 ok=false。
func NextOccurrence(schedule ScheduleDraft, anchor, after time.Time) (time.Time, bool) {
	if len(schedule.ReminderTimes) == 0 {
		return time.Time{}, false
	}

	loc := time.Local
	if schedule.Timezone != "" && schedule.Timezone != "Local" {
		if parsed, err := time.LoadLocation(schedule.Timezone); err == nil {
			loc = parsed
		}
	}
	after = after.In(loc)

	day := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, loc)
	for i := 0; i < 366*2; i++ {
		if isScheduledDay(schedule, anchor, day) {
			for _, t := range schedule.ReminderTimes {
				candidate := day.Add(time.Duration(t) * time.Minute)
				if candidate.After(after) {
					return candidate, true
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

// dailyTask 是挂在调度器上的每日后台任务
type dailyTask struct {
	name string
	run  func() error
}

// TimerScheduler 基于每目标一个 time.Timer 的提醒调度实现。
// 定时器触发时写一条 ReminderDispatch 审计记录并重新装载下一次。
// 另带一个每日滴答，执行注册的后台任务（回收站清理、会话清理）。
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[uint]*time.Timer
	tasks  []dailyTask

	db  *gorm.DB
	log logger.Logger

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewTimerScheduler 构造 TimerScheduler
func NewTimerScheduler(gdb *gorm.DB, log logger.Logger) *TimerScheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &TimerScheduler{
		timers:  make(map[uint]*time.Timer),
		db:      gdb,
		log:     log,
		stopped: make(chan struct{}),
	}
}

// AddDailyTask 注册每日执行的后台任务，需在 Start 前调用。
func (s *TimerScheduler) AddDailyTask(name string, run func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, dailyTask{name: name, run: run})
}

// Start 重建全部定时器并启动每日后台循环，ctx 取消即停止。
func (s *TimerScheduler) Start(ctx context.Context) error {
	if err := s.RescheduleAll(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(housekeepingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.Stop()
				return
			case <-s.stopped:
				return
			case <-ticker.C:
				s.runDailyTasks()
			}
		}
	}()
	return nil
}

// Stop 停止全部定时器与后台循环，幂等。
func (s *TimerScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, timer := range s.timers {
			timer.Stop()
			delete(s.timers, id)
		}
	})
}

// runDailyTasks 顺序执行注册任务，失败只记日志不中断。
func (s *TimerScheduler) runDailyTasks() {
	s.mu.Lock()
	tasks := append([]dailyTask(nil), s.tasks...)
	s.mu.Unlock()

	for _, task := range tasks {
		if err := task.run(); err != nil {
			s.log.Errorf("每日任务 %s 执行失败: %v", task.name, err)
			continue
		}
		s.log.Debugf("每日任务 %s 完成", task.name)
	}
}

// Schedule 为目标装载下一次提醒。
// 非活跃目标或算不出下一次触发时间时撤销已有定时器。
func (s *TimerScheduler) Schedule(goal *db.Goal) {
	if goal == nil {
		return
	}
	if goal.Status != db.GoalStatusActive {
		s.Unschedule(goal.ID)
		return
	}

	next, ok := NextOccurrence(scheduleFromGoal(goal), scheduleAnchor(goal), time.Now())
	if !ok {
		s.Unschedule(goal.ID)
		return
	}

	goalID := goal.ID
	s.mu.Lock()
	if existing, exists := s.timers[goalID]; exists {
		existing.Stop()
	}
	s.timers[goalID] = time.AfterFunc(time.Until(next), func() {
		s.fire(goalID)
	})
	s.mu.Unlock()

	s.log.Debugf("目标 %d 的提醒已安排在 %s", goalID, next.Format(time.RFC3339))
}

// Unschedule 撤销目标的提醒定时器
func (s *TimerScheduler) Unschedule(goalID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, exists := s.timers[goalID]; exists {
		timer.Stop()
		delete(s.timers, goalID)
	}
}

// RescheduleAll 清空现有定时器后为全部活跃目标重新装载
func (s *TimerScheduler) RescheduleAll() error {
	s.mu.Lock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	var goals []db.Goal
	if err := s.db.Where("status = ?", db.GoalStatusActive).Find(&goals).Error; err != nil {
		return fmt.Errorf("load goals for reschedule: %w", err)
	}

	for i := range goals {
		s.Schedule(&goals[i])
	}
	s.log.Infof("已重建 %d 个目标的提醒定时器", len(goals))
	return nil
}

// fire 在定时器触发时落一条投递记录并装载下一次。
// 目标此刻可能已删除或归档：删除则静默放弃，归档则记 skipped。
func (s *TimerScheduler) fire(goalID uint) {
	s.mu.Lock()
	delete(s.timers, goalID)
	s.mu.Unlock()

	var goal db.Goal
	if err := s.db.First(&goal, goalID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Errorf("提醒触发时加载目标 %d 失败: %v", goalID, err)
		}
		return
	}

	dispatch := db.ReminderDispatch{
		GoalID:  goal.ID,
		FireAt:  time.Now(),
		Channel: ReminderChannelLog,
	}
	if goal.Status == db.GoalStatusActive {
		dispatch.Status = db.ReminderStatusSent
		dispatch.Detail = fmt.Sprintf("该打卡了：%s", goal.Title)
	} else {
		dispatch.Status = db.ReminderStatusSkipped
		dispatch.Detail = "目标已归档"
	}

	if err := s.db.Create(&dispatch).Error; err != nil {
		s.log.Errorf("写入提醒记录失败 goal=%d: %v", goalID, err)
	} else if dispatch.Status == db.ReminderStatusSent {
		s.log.Infof("提醒已投递 goal=%d title=%s", goal.ID, goal.Title)
	}

	if goal.Status == db.GoalStatusActive {
		s.Schedule(&goal)
	}
}

// NoopScheduler 不做任何调度，测试与一次性脚本使用。
type NoopScheduler struct{}

func (NoopScheduler) Schedule(*db.Goal)    {}
func (NoopScheduler) Unschedule(uint)      {}
func (NoopScheduler) RescheduleAll() error { return nil }
