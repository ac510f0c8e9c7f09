package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stridelog/internal/config"
	"github.com/stridelog/internal/db"
	"github.com/stridelog/internal/handler"
	"github.com/stridelog/internal/logger"
	"github.com/stridelog/internal/router"
	"github.com/stridelog/internal/service"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "初始化日志失败:", err)
		os.Exit(1)
	}

	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		} else {
			log.Warnf("无法加载时区 %q，继续使用系统时区: %v", cfg.Timezone, err)
		}
	}

	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Errorf("failed to initialize database: %v", err)
		os.Exit(1)
	}

	if err := db.EnsureUser(cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		log.Warnf("创建管理员账号失败: %v", err)
	}

	categories := service.NewCategoryService(db.DB)
	if err := categories.EnsureBuiltins(); err != nil {
		log.Warnf("补齐内置分类失败: %v", err)
	}

	scheduler := service.NewTimerScheduler(db.DB, log)
	goals := service.NewGoalService(db.DB, categories, scheduler)
	conflicts := service.NewScheduleConflictService(db.DB)
	wizard := service.NewWizardService(goals, conflicts)
	checkIns := service.NewCheckInService(db.DB)
	trash := service.NewTrashService(db.DB, categories, scheduler)
	system := service.NewSystemSettingService(db.DB)
	inference := service.NewInferenceService(system, log)
	motivation := service.NewMotivationService(system, log)

	scheduler.AddDailyTask("trash-purge", func() error {
		purged, err := trash.PurgeOldItems(cfg.TrashRetentionDays)
		if purged > 0 {
			log.Infof("回收站清理完成，移除 %d 条过期条目", purged)
		}
		return err
	})
	scheduler.AddDailyTask("wizard-prune", func() error {
		if pruned := wizard.PruneIdleSessions(0); pruned > 0 {
			log.Infof("清理 %d 个空闲的创建会话", pruned)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := scheduler.Start(ctx); err != nil {
		log.Errorf("启动提醒调度器失败: %v", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	// 启动时先清一次过期回收站条目，失败不阻塞启动
	go func() {
		if _, err := trash.PurgeOldItems(cfg.TrashRetentionDays); err != nil {
			log.Warnf("启动清理回收站失败: %v", err)
		}
	}()

	api := handler.NewAPI(db.DB, handler.Services{
		Wizard:     wizard,
		Goals:      goals,
		Categories: categories,
		CheckIns:   checkIns,
		Trash:      trash,
		System:     system,
		Inference:  inference,
		Motivation: motivation,
	}, log)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret)
	log.Infof("StrideLog 服务启动，监听 %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Errorf("failed to run server: %v", err)
		os.Exit(1)
	}
}
