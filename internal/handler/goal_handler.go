package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stridelog/internal/db"
	"github.com/stridelog/internal/service"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	motivationMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	motivationSanitizer = bluemonday.UGCPolicy()
)

type goalUpdateRequest struct {
	Title               string `json:"title"`
	Motivation          string `json:"motivation"`
	CelebrationMessage  string `json:"celebration_message"`
	CategoryCode        string `json:"category_code"`
	CustomCategoryLabel string `json:"custom_category_label"`
}

// ListGoals 返回目标列表，支持状态、分类与关键词过滤
func (a *API) ListGoals(c *gin.Context) {
	filter := service.GoalFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}

	goals, err := a.goals.List(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取目标列表失败")
		return
	}

	items := make([]gin.H, 0, len(goals))
	for _, goal := range goals {
		items = append(items, goalToPayload(goal))
	}

	c.JSON(http.StatusOK, gin.H{
		"goals": items,
		"total": len(items),
	})
}

// GetGoal 返回目标详情，动机渲染为可安全展示的 HTML。
func (a *API) GetGoal(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	goal, err := a.goals.Get(goalID)
	if err != nil {
		a.handleGoalError(c, err)
		return
	}

	payload := gin.H{"goal": goalToPayload(*goal)}
	if strings.TrimSpace(goal.Motivation) != "" {
		rendered, err := renderMotivationHTML(goal.Motivation)
		if err == nil {
			payload["motivation_html"] = rendered
		}
	}

	c.JSON(http.StatusOK, payload)
}

// UpdateGoal 修改提交后仍可编辑的字段
func (a *API) UpdateGoal(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	var payload goalUpdateRequest
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	goal, err := a.goals.Update(goalID, service.GoalUpdateInput{
		Title:               payload.Title,
		Motivation:          payload.Motivation,
		CelebrationMessage:  payload.CelebrationMessage,
		CategoryCode:        payload.CategoryCode,
		CustomCategoryLabel: payload.CustomCategoryLabel,
	})
	if err != nil {
		a.handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// ArchiveGoal 归档目标并停掉它的提醒
func (a *API) ArchiveGoal(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	goal, err := a.goals.Archive(goalID)
	if err != nil {
		a.handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// DeleteGoal 把目标连同问题与打卡移入回收站
func (a *API) DeleteGoal(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	item, err := a.trash.MoveToTrash(goalID, c.Query("note"))
	if err != nil {
		a.handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trashed":    true,
		"trash_item": trashItemToPayload(*item),
	})
}

func (a *API) handleGoalError(c *gin.Context, err error) {
	respondServiceError(c, err, "", func(err error) {
		switch {
		case errors.Is(err, service.ErrGoalNotFound):
			respondError(c, http.StatusNotFound, "目标不存在")
		default:
			respondError(c, http.StatusInternalServerError, "操作失败")
		}
	})
}

func goalToPayload(goal db.Goal) gin.H {
	schedule := service.ScheduleForGoal(&goal)

	weekdays := make([]int, 0, len(schedule.Weekdays))
	for _, day := range schedule.Weekdays {
		weekdays = append(weekdays, int(day))
	}
	times := make([]string, 0, len(schedule.ReminderTimes))
	for _, t := range schedule.ReminderTimes {
		times = append(times, t.String())
	}

	item := gin.H{
		"id":                  goal.ID,
		"title":               goal.Title,
		"motivation":          goal.Motivation,
		"celebration_message": goal.CelebrationMessage,
		"category":            goal.Category,
		"category_custom":     goal.CategoryCustom,
		"status":              goal.Status,
		"created_at":          goal.CreatedAt.Format(dateFormat),
		"schedule": gin.H{
			"cadence":        schedule.Cadence,
			"weekdays":       weekdays,
			"interval_days":  schedule.IntervalDays,
			"reminder_times": times,
			"timezone":       schedule.Timezone,
		},
	}
	if goal.StartDate != nil {
		item["start_date"] = goal.StartDate.Format(dateFormat)
	}
	if len(goal.Questions) > 0 {
		questions := make([]gin.H, 0, len(goal.Questions))
		for _, q := range goal.Questions {
			questions = append(questions, questionToPayload(q))
		}
		item["questions"] = questions
	}
	return item
}

func questionToPayload(q db.Question) gin.H {
	item := gin.H{
		"id":            q.ID,
		"position":      q.Position,
		"prompt":        q.Prompt,
		"response_type": q.ResponseType,
		"allow_empty":   q.AllowEmpty,
		"active":        q.Active,
		"provenance":    q.Provenance,
	}

	responseType := service.ResponseType(q.ResponseType)
	if responseType.HasOptions() {
		item["options"] = decodeOptionList(q.OptionsJSON)
	}
	if responseType.HasRange() {
		item["min_value"] = q.MinValue
		item["max_value"] = q.MaxValue
	}
	return item
}

func decodeOptionList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	var options []string
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return []string{}
	}
	return options
}

func renderMotivationHTML(content string) (string, error) {
	var buf bytes.Buffer
	if err := motivationMarkdown.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return string(motivationSanitizer.SanitizeBytes(buf.Bytes())), nil
}
