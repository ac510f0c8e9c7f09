package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stridelog/internal/service"
)

type categoryBody struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Label     string `json:"label"`
	Slug      string `json:"slug"`
	Builtin   bool   `json:"builtin"`
	GoalCount int64  `json:"goal_count"`
}

func listHandlerCategories(t *testing.T, api *API, query string) []categoryBody {
	t.Helper()
	w := performRequest(t, api.ListCategories, http.MethodGet, "/api/categories"+query, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Categories []categoryBody `json:"categories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode categories: %v", err)
	}
	return resp.Categories
}

func TestListCategoriesLocalized(t *testing.T) {
	api, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	createHandlerGoal(t, api, "每天晨跑", "fitness")

	categories := listHandlerCategories(t, api, "")
	if len(categories) != 7 {
		t.Fatalf("expected 7 builtin categories, got %d", len(categories))
	}
	byName := make(map[string]categoryBody, len(categories))
	for _, category := range categories {
		if !category.Builtin {
			t.Fatalf("expected only builtins, got %+v", category)
		}
		byName[category.Name] = category
	}
	if byName["fitness"].Label != "健身" {
		t.Fatalf("expected zh label, got %q", byName["fitness"].Label)
	}
	if byName["fitness"].GoalCount != 1 {
		t.Fatalf("expected fitness goal count 1, got %d", byName["fitness"].GoalCount)
	}
	if byName["health"].GoalCount != 0 {
		t.Fatalf("expected health goal count 0, got %d", byName["health"].GoalCount)
	}

	english := listHandlerCategories(t, api, "?lang=en")
	for _, category := range english {
		if category.Name == "fitness" && category.Label != "Fitness" {
			t.Fatalf("expected english label, got %q", category.Label)
		}
	}
}

func TestCreateCategory(t *testing.T) {
	api, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	w := performRequest(t, api.CreateCategory, http.MethodPost, "/api/categories",
		map[string]any{}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing name, got %d", w.Code)
	}
	var failed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &failed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if failed.Error != "请填写分类名称" {
		t.Fatalf("unexpected error message: %q", failed.Error)
	}

	w = performRequest(t, api.CreateCategory, http.MethodPost, "/api/categories",
		map[string]any{"name": "居家整理"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Category categoryBody `json:"category"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Category.Name != "居家整理" || created.Category.Builtin {
		t.Fatalf("unexpected category: %+v", created.Category)
	}
	if created.Category.ID == 0 {
		t.Fatal("expected category id to be assigned")
	}

	// 同名（含空白差异）重复创建被拒绝
	w = performRequest(t, api.CreateCategory, http.MethodPost, "/api/categories",
		map[string]any{"name": " 居家整理 "}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &failed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if failed.Error != "分类已存在" {
		t.Fatalf("unexpected error message: %q", failed.Error)
	}

	// 与内置分类撞名同样算重复
	w = performRequest(t, api.CreateCategory, http.MethodPost, "/api/categories",
		map[string]any{"name": "health"}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for builtin name, got %d", w.Code)
	}

	categories := listHandlerCategories(t, api, "")
	if len(categories) != 8 {
		t.Fatalf("expected 8 categories, got %d", len(categories))
	}
	// 自定义分类排在内置之后，label 就是名称本身
	last := categories[len(categories)-1]
	if last.Name != "居家整理" || last.Label != "居家整理" {
		t.Fatalf("unexpected trailing category: %+v", last)
	}
}

func TestDeleteCategoryGuards(t *testing.T) {
	api, cleanup := setupHandlerTestDB(t)
	defer cleanup()

	categories := listHandlerCategories(t, api, "")
	builtinID := categories[0].ID

	w := performRequest(t, api.DeleteCategory, http.MethodDelete,
		"/api/categories/"+strconv.Itoa(int(builtinID)), nil, goalParams(builtinID))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for builtin, got %d", w.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "内置分类不能删除" {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}

	w = performRequest(t, api.DeleteCategory, http.MethodDelete, "/api/categories/999", nil, goalParams(999))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}

	// 建一个自定义分类并挂上目标
	sess := api.wizard.Start(service.ModeForm, "zh")
	if _, err := api.wizard.UpdateIntent(sess.ID, service.IntentInput{
		Title:               "整理书桌",
		CategoryCode:        "custom",
		CustomCategoryLabel: "居家整理",
	}); err != nil {
		t.Fatalf("failed to set intent: %v", err)
	}
	if _, err := api.wizard.BeginQuestion(sess.ID); err != nil {
		t.Fatalf("failed to open composer: %v", err)
	}
	if _, err := api.wizard.SetComposerPrompt(sess.ID, "桌面清爽吗？"); err != nil {
		t.Fatalf("failed to set prompt: %v", err)
	}
	if _, err := api.wizard.SaveQuestion(sess.ID); err != nil {
		t.Fatalf("failed to save question: %v", err)
	}
	goal, err := api.wizard.Commit(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("failed to commit goal: %v", err)
	}

	var customID uint
	for _, category := range listHandlerCategories(t, api, "") {
		if category.Name == "居家整理" {
			customID = category.ID
		}
	}
	if customID == 0 {
		t.Fatal("expected custom category to exist")
	}

	w = performRequest(t, api.DeleteCategory, http.MethodDelete,
		"/api/categories/"+strconv.Itoa(int(customID)), nil, goalParams(customID))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409 while in use, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "仍有目标在使用该分类" {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}

	// 目标进回收站后分类即可删除
	if _, err := api.trash.MoveToTrash(goal.ID, ""); err != nil {
		t.Fatalf("failed to trash goal: %v", err)
	}
	w = performRequest(t, api.DeleteCategory, http.MethodDelete,
		"/api/categories/"+strconv.Itoa(int(customID)), nil, goalParams(customID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var deleted struct {
		Deleted bool `json:"deleted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &deleted); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !deleted.Deleted {
		t.Fatal("expected deleted true")
	}
}
