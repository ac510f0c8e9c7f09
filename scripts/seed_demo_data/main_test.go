package main

import (
	"strconv"
	"testing"
	"time"

	"github.com/stridelog/internal/db"
	"github.com/stridelog/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSeedTestDB(t *testing.T) func() {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:seed-demo?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := gdb.AutoMigrate(&db.User{}, &db.Goal{}, &db.Question{}, &db.CheckIn{}, &db.Category{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestCreateDemoGoalsSeedsVariation(t *testing.T) {
	cleanup := setupSeedTestDB(t)
	defer cleanup()

	categories := service.NewCategoryService(db.DB)
	if err := categories.EnsureBuiltins(); err != nil {
		t.Fatalf("failed to ensure builtin categories: %v", err)
	}
	goals := service.NewGoalService(db.DB, categories, service.NoopScheduler{})

	created := createDemoGoals(goals)
	if len(created) != 5 {
		t.Fatalf("expected 5 demo goals, got %d", len(created))
	}

	cadences := make(map[string]bool)
	hasCustomCategory := false
	for _, goal := range created {
		cadences[goal.Cadence] = true
		if goal.CategoryCustom {
			hasCustomCategory = true
		}
		active := 0
		for _, q := range goal.Questions {
			if q.Active {
				active++
			}
		}
		if active == 0 {
			t.Fatalf("goal %q has no active questions", goal.Title)
		}
	}

	if !cadences[service.CadenceDaily] || !cadences[service.CadenceWeekly] || !cadences[service.CadenceInterval] {
		t.Fatalf("expected daily, weekly, and interval cadences, got %v", cadences)
	}
	if !hasCustomCategory {
		t.Fatalf("expected at least one goal with a custom category")
	}

	// 再次运行应复用已有目标而不是重复创建
	again := createDemoGoals(goals)
	if len(again) != len(created) {
		t.Fatalf("expected rerun to reuse %d goals, got %d", len(created), len(again))
	}
	var count int64
	db.DB.Model(&db.Goal{}).Count(&count)
	if count != int64(len(created)) {
		t.Fatalf("expected %d goals in db after rerun, got %d", len(created), count)
	}
}

func TestCreateDemoCheckInsBackfillsHistory(t *testing.T) {
	cleanup := setupSeedTestDB(t)
	defer cleanup()

	categories := service.NewCategoryService(db.DB)
	if err := categories.EnsureBuiltins(); err != nil {
		t.Fatalf("failed to ensure builtin categories: %v", err)
	}
	goals := service.NewGoalService(db.DB, categories, service.NoopScheduler{})
	checkIns := service.NewCheckInService(db.DB)

	created := createDemoGoals(goals)
	createDemoCheckIns(checkIns, created)

	var entries []db.CheckIn
	if err := db.DB.Find(&entries).Error; err != nil {
		t.Fatalf("failed to list check-ins: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected seeded check-ins, got none")
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.Source != "seed" {
			t.Fatalf("expected source seed, got %q for check-in %d", entry.Source, entry.ID)
		}
		if entry.LogDate.After(now) {
			t.Fatalf("expected backfilled dates only, got %s", entry.LogDate.Format("2006-01-02"))
		}
	}

	// 重复执行应先清理旧的演示记录，总量保持稳定
	first := len(entries)
	createDemoCheckIns(checkIns, created)
	var count int64
	db.DB.Model(&db.CheckIn{}).Count(&count)
	if count != int64(first) {
		t.Fatalf("expected rerun to keep %d check-ins, got %d", first, count)
	}
}

func TestDemoAnswerStaysWithinQuestionRange(t *testing.T) {
	question := db.Question{ResponseType: string(service.ResponseNumeric), MinValue: 0, MaxValue: 42}
	for offset := 1; offset <= 42; offset++ {
		value, ok := demoAnswer(service.ResponseNumeric, question, offset, 0)
		if !ok || value == "" {
			t.Fatalf("expected numeric answer for offset %d", offset)
		}
	}

	scale := db.Question{ResponseType: string(service.ResponseScale), MinValue: 1, MaxValue: 5}
	for offset := 1; offset <= 42; offset++ {
		value, ok := demoAnswer(service.ResponseScale, scale, offset, 0)
		if !ok {
			t.Fatalf("expected scale answer for offset %d", offset)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			t.Fatalf("scale answer %q is not an integer: %v", value, err)
		}
		if n < 1 || n > 5 {
			t.Fatalf("scale answer %d out of range for offset %d", n, offset)
		}
	}
}
