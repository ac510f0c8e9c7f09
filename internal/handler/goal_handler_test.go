package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stridelog/internal/db"
	"github.com/stridelog/internal/service"
)

type goalResponseBody struct {
	ID                 uint   `json:"id"`
	Title              string `json:"title"`
	Motivation         string `json:"motivation"`
	CelebrationMessage string `json:"celebration_message"`
	Category           string `json:"category"`
	CategoryCustom     bool   `json:"category_custom"`
	Status             string `json:"status"`
	CreatedAt          string `json:"created_at"`
	StartDate          string `json:"start_date"`
	Schedule           struct {
		Cadence       string   `json:"cadence"`
		Weekdays      []int    `json:"weekdays"`
		IntervalDays  int      `json:"interval_days"`
		ReminderTimes []string `json:"reminder_times"`
		Timezone      string   `json:"timezone"`
	} `json:"schedule"`
	Questions []struct {
		ID           uint     `json:"id"`
		Position     int      `json:"position"`
		Prompt       string   `json:"prompt"`
		ResponseType string   `json:"response_type"`
		AllowEmpty   bool     `json:"allow_empty"`
		Active       bool     `json:"active"`
		Provenance   string   `json:"provenance"`
		Options      []string `json:"options"`
	} `json:"questions"`
}

// createHandlerGoal 通过创建向导落一个最小可用的目标，
// 默认带一个是/否问题和 07:30 的每日提醒。
func createHandlerGoal(t *testing.T, api *API, title, categoryCode string) *db.Goal {
	t.Helper()

	sess := api.wizard.Start(service.ModeForm, "zh")
	if _, err := api.wizard.UpdateIntent(sess.ID, service.IntentInput{Title: title, CategoryCode: categoryCode}); err != nil {
		t.Fatalf("failed to set intent: %v", err)
	}
	if _, err := api.wizard.BeginQuestion(sess.ID); err != nil {
		t.Fatalf("failed to open composer: %v", err)
	}
	if _, err := api.wizard.SetComposerPrompt(sess.ID, "今天完成了吗？"); err != nil {
		t.Fatalf("failed to set prompt: %v", err)
	}
	if _, err := api.wizard.SaveQuestion(sess.ID); err != nil {
		t.Fatalf("failed to save question: %v", err)
	}
	if _, _, err := api.wizard.AddScheduleTime(sess.ID, "07:30"); err != nil {
		t.Fatalf("failed to add reminder time: %v", err)
	}

	goal, err := api.wizard.Commit(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("failed to commit goal: %v", err)
	}
	return goal
}

func goalParams(id uint) gin.Params {
	return gin.Params{gin.Param{Key: "id", Value: strconv.FormatUint(uint64(id), 10)}}
}

func TestListGoalsFilters(t *testing.T) {
	api, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	run := createHandlerGoal(t, api, "每天晨跑", "fitness")
	createHandlerGoal(t, api, "读半小时书", "learning")
	review := createHandlerGoal(t, api, "每周复盘", "work")
	if _, err := api.goals.Archive(review.ID); err != nil {
		t.Fatalf("failed to archive goal: %v", err)
	}

	type listBody struct {
		Goals []goalResponseBody `json:"goals"`
		Total int                `json:"total"`
	}
	list := func(query string) listBody {
		t.Helper()
		w := performRequest(t, api.ListGoals, http.MethodGet, "/api/goals"+query, nil, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp listBody
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode list: %v", err)
		}
		return resp
	}

	all := list("")
	if all.Total != 3 {
		t.Fatalf("expected 3 goals, got %d", all.Total)
	}

	active := list("?status=active")
	if active.Total != 2 {
		t.Fatalf("expected 2 active goals, got %d", active.Total)
	}
	for _, goal := range active.Goals {
		if goal.Status != "active" {
			t.Fatalf("unexpected status in active list: %q", goal.Status)
		}
	}

	archived := list("?status=archived")
	if archived.Total != 1 || archived.Goals[0].Title != "每周复盘" {
		t.Fatalf("unexpected archived list: %+v", archived)
	}

	fitness := list("?category=fitness")
	if fitness.Total != 1 || fitness.Goals[0].ID != run.ID {
		t.Fatalf("unexpected category filter result: %+v", fitness)
	}

	search := list("?search=" + "晨跑")
	if search.Total != 1 || search.Goals[0].Title != "每天晨跑" {
		t.Fatalf("unexpected search result: %+v", search)
	}

	if len(all.Goals[0].Questions) != 1 {
		t.Fatalf("expected preloaded questions, got %+v", all.Goals[0].Questions)
	}
	if got := all.Goals[0].Schedule.ReminderTimes; len(got) != 1 || got[0] != "07:30" {
		t.Fatalf("unexpected schedule times: %v", got)
	}
}

func TestGetGoalRendersMotivationHTML(t *testing.T) {
	api, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	goal := createHandlerGoal(t, api, "每天晨跑", "fitness")

	w := performRequest(t, api.UpdateGoal, http.MethodPut, "/api/goals/"+strconv.Itoa(int(goal.ID)),
		map[string]any{
			"title":         "每天晨跑",
			"category_code": "fitness",
			"motivation":    "想要**更有精神**\n\n<script>alert(1)</script>",
		}, goalParams(goal.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = performRequest(t, api.GetGoal, http.MethodGet, "/api/goals/"+strconv.Itoa(int(goal.ID)), nil, goalParams(goal.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Goal           goalResponseBody `json:"goal"`
		MotivationHTML string           `json:"motivation_html"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.Contains(resp.MotivationHTML, "<strong>更有精神</strong>") {
		t.Fatalf("expected rendered markdown, got %q", resp.MotivationHTML)
	}
	if strings.Contains(resp.MotivationHTML, "<script>") {
		t.Fatalf("expected script tags to be stripped, got %q", resp.MotivationHTML)
	}
	if resp.Goal.Motivation == "" {
		t.Fatal("expected raw motivation to be kept")
	}
}

func TestGetGoalErrors(t *testing.T) {
	api, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	w := performRequest(t, api.GetGoal, http.MethodGet, "/api/goals/abc", nil,
		gin.Params{gin.Param{Key: "id", Value: "abc"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad id, got %d", w.Code)
	}

	w = performRequest(t, api.GetGoal, http.MethodGet, "/api/goals/999", nil, goalParams(999))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "目标不存在" {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}
}

func TestUpdateGoal(t *testing.T) {
	api, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	goal := createHandlerGoal(t, api, "每天晨跑", "fitness")

	// 标题不能清空
	w := performRequest(t, api.UpdateGoal, http.MethodPut, "/api/goals/"+strconv.Itoa(int(goal.ID)),
		map[string]any{"title": "  ", "category_code": "fitness"}, goalParams(goal.ID))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	var failed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &failed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if failed.Error != "请先填写目标标题" {
		t.Fatalf("unexpected error message: %q", failed.Error)
	}

	// 换成自定义分类
	w = performRequest(t, api.UpdateGoal, http.MethodPut, "/api/goals/"+strconv.Itoa(int(goal.ID)),
		map[string]any{
			"title":                 "傍晚慢跑",
			"category_code":         "custom",
			"custom_category_label": "夜间运动",
			"celebration_message":   "跑完啦！",
		}, goalParams(goal.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Goal goalResponseBody `json:"goal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Goal.Title != "傍晚慢跑" || resp.Goal.Category != "夜间运动" || !resp.Goal.CategoryCustom {
		t.Fatalf("unexpected goal after update: %+v", resp.Goal)
	}
	if resp.Goal.CelebrationMessage != "跑完啦！" {
		t.Fatalf("unexpected celebration message: %q", resp.Goal.CelebrationMessage)
	}

	// 自定义分类被顺手建档
	var category db.Category
	if err := db.DB.Where("name = ?", "夜间运动").First(&category).Error; err != nil {
		t.Fatalf("expected custom category to be created: %v", err)
	}
	if category.Builtin {
		t.Fatal("custom category should not be builtin")
	}

	w = performRequest(t, api.UpdateGoal, http.MethodPut, "/api/goals/999",
		map[string]any{"title": "不存在", "category_code": "health"}, goalParams(999))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestArchiveGoal(t *testing.T) {
	api, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	goal := createHandlerGoal(t, api, "每天晨跑", "fitness")

	w := performRequest(t, api.ArchiveGoal, http.MethodPost, "/api/goals/"+strconv.Itoa(int(goal.ID))+"/archive", nil, goalParams(goal.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp struct {
		Goal goalResponseBody `json:"goal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Goal.Status != "archived" {
		t.Fatalf("expected archived status, got %q", resp.Goal.Status)
	}

	w = performRequest(t, api.ArchiveGoal, http.MethodPost, "/api/goals/999/archive", nil, goalParams(999))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestDeleteGoalMovesToTrash(t *testing.T) {
	api, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	goal := createHandlerGoal(t, api, "每天晨跑", "fitness")

	w := performRequest(t, api.DeleteGoal, http.MethodDelete,
		"/api/goals/"+strconv.Itoa(int(goal.ID))+"?note="+"换个玩法", nil, goalParams(goal.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Trashed   bool `json:"trashed"`
		TrashItem struct {
			ID        uint   `json:"id"`
			GoalTitle string `json:"goal_title"`
			Note      string `json:"note"`
			ExpiresAt string `json:"expires_at"`
		} `json:"trash_item"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Trashed || resp.TrashItem.GoalTitle != "每天晨跑" {
		t.Fatalf("unexpected trash payload: %+v", resp)
	}
	if resp.TrashItem.Note != "换个玩法" {
		t.Fatalf("unexpected note: %q", resp.TrashItem.Note)
	}
	if resp.TrashItem.ExpiresAt == "" {
		t.Fatal("expected expiry timestamp")
	}

	// 列表不再返回已删除目标
	w = performRequest(t, api.ListGoals, http.MethodGet, "/api/goals", nil, nil)
	var list struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if list.Total != 0 {
		t.Fatalf("expected empty goal list, got %d", list.Total)
	}

	w = performRequest(t, api.DeleteGoal, http.MethodDelete, "/api/goals/999", nil, goalParams(999))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}
