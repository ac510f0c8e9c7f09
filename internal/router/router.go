package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stridelog/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由。
// /ping、/healthz 与 /api/login 公开，其余 /api 路由要求登录会话。
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("stridelog_session", store))
	r.Use(api.LocaleMiddleware())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	r.GET("/healthz", api.HealthCheck)

	apiGroup := r.Group("/api")
	apiGroup.POST("/login", handler.Login)

	auth := apiGroup.Group("")
	auth.Use(handler.AuthRequired())
	{
		auth.POST("/logout", handler.Logout)

		// 创建向导
		auth.POST("/wizard", api.StartWizard)
		auth.GET("/wizard/:id", api.GetWizard)
		auth.DELETE("/wizard/:id", api.CancelWizard)
		auth.PUT("/wizard/:id/intent", api.UpdateWizardIntent)
		auth.PUT("/wizard/:id/commitment", api.UpdateWizardCommitment)
		auth.POST("/wizard/:id/advance", api.AdvanceWizard)
		auth.POST("/wizard/:id/back", api.BackWizard)
		auth.POST("/wizard/:id/commit", api.CommitWizard)
		auth.POST("/wizard/:id/infer", api.InferWizardGoal)
		auth.POST("/wizard/:id/motivation/suggest", api.SuggestWizardMotivation)

		// 问题编辑器
		auth.POST("/wizard/:id/questions/begin", api.BeginWizardQuestion)
		auth.POST("/wizard/:id/questions", api.SaveWizardQuestion)
		auth.PUT("/wizard/:id/questions/composer", api.UpdateWizardComposer)
		auth.DELETE("/wizard/:id/questions/composer", api.ResetWizardComposer)
		auth.POST("/wizard/:id/questions/template", api.ApplyWizardTemplate)
		auth.POST("/wizard/:id/questions/:qid/edit", api.EditWizardQuestion)
		auth.DELETE("/wizard/:id/questions/:qid", api.RemoveWizardQuestion)

		// 节奏与提醒
		auth.PUT("/wizard/:id/schedule", api.UpdateWizardSchedule)
		auth.POST("/wizard/:id/schedule/times", api.AddWizardReminderTime)
		auth.DELETE("/wizard/:id/schedule/times", api.RemoveWizardReminderTime)

		// 目标与打卡
		auth.GET("/goals", api.ListGoals)
		auth.GET("/goals/:id", api.GetGoal)
		auth.PUT("/goals/:id", api.UpdateGoal)
		auth.POST("/goals/:id/archive", api.ArchiveGoal)
		auth.DELETE("/goals/:id", api.DeleteGoal)
		auth.POST("/goals/:id/checkins", api.UpsertCheckIn)
		auth.GET("/goals/:id/checkins", api.ListCheckIns)
		auth.DELETE("/goals/:id/checkins/:checkinId", api.DeleteCheckIn)
		auth.GET("/goals/:id/calendar", api.GetGoalCalendar)
		auth.GET("/goals/:id/stats", api.GetGoalStats)
		auth.GET("/goals/:id/history", api.GetGoalHistory)

		// 热力图
		auth.GET("/heatmap", api.GetHeatmap)
		auth.GET("/heatmap.png", api.GetHeatmapImage)

		// 回收站
		auth.GET("/trash", api.ListTrash)
		auth.GET("/trash/:id", api.GetTrashItem)
		auth.POST("/trash/:id/restore", api.RestoreTrashItem)
		auth.DELETE("/trash/:id", api.DeleteTrashItem)
		auth.POST("/trash/purge", api.PurgeTrash)

		// 模板与分类
		auth.GET("/templates", api.ListTemplates)
		auth.GET("/categories", api.ListCategories)
		auth.POST("/categories", api.CreateCategory)
		auth.DELETE("/categories/:id", api.DeleteCategory)

		// 系统设置
		auth.GET("/settings", api.GetSystemSettings)
		auth.PUT("/settings", api.UpdateSystemSettings)
		auth.POST("/settings/ai/test", api.TestAIConnection)
	}

	return r
}
