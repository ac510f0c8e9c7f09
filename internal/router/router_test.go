package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stridelog/internal/db"
	"github.com/stridelog/internal/handler"
	"github.com/stridelog/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setupTestRouter(t *testing.T) (*gin.Engine, func()) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:router-test?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.User{},
		&db.Goal{},
		&db.Question{},
		&db.CheckIn{},
		&db.GoalTrashItem{},
		&db.ReminderDispatch{},
		&db.Category{},
		&db.SystemSetting{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb
	if err := db.EnsureUser("admin", "secret123"); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	categories := service.NewCategoryService(gdb)
	if err := categories.EnsureBuiltins(); err != nil {
		t.Fatalf("failed to ensure builtin categories: %v", err)
	}

	scheduler := service.NoopScheduler{}
	goals := service.NewGoalService(gdb, categories, scheduler)
	system := service.NewSystemSettingService(gdb)

	api := handler.NewAPI(gdb, handler.Services{
		Wizard:     service.NewWizardService(goals, service.NewScheduleConflictService(gdb)),
		Goals:      goals,
		Categories: categories,
		CheckIns:   service.NewCheckInService(gdb),
		Trash:      service.NewTrashService(gdb, categories, scheduler),
		System:     system,
		Inference:  service.NewInferenceService(system, nil),
		Motivation: service.NewMotivationService(system, nil),
	}, nil)

	engine := SetupRouter(api, "test-secret")

	return engine, func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func serveJSON(t *testing.T, engine *gin.Engine, method, target string, body any, cookies []string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, pair := range cookies {
		req.Header.Add("Cookie", pair)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func loginCookies(t *testing.T, engine *gin.Engine) []string {
	t.Helper()

	w := serveJSON(t, engine, http.MethodPost, "/api/login",
		map[string]any{"username": "admin", "password": "secret123"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", w.Code, w.Body.String())
	}

	cookies := w.Result().Cookies()
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	if len(pairs) == 0 {
		t.Fatal("expected a session cookie")
	}
	return pairs
}

func TestPublicEndpoints(t *testing.T) {
	engine, cleanup := setupTestRouter(t)
	defer cleanup()

	w := serveJSON(t, engine, http.MethodGet, "/ping", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var ping struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ping); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if ping.Message != "pong" {
		t.Fatalf("unexpected ping response: %q", ping.Message)
	}

	w = serveJSON(t, engine, http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAPIRequiresSession(t *testing.T) {
	engine, cleanup := setupTestRouter(t)
	defer cleanup()

	protected := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/goals"},
		{http.MethodPost, "/api/wizard"},
		{http.MethodGet, "/api/trash"},
		{http.MethodGet, "/api/settings"},
		{http.MethodGet, "/api/heatmap"},
	}
	for _, route := range protected {
		w := serveJSON(t, engine, route.method, route.target, nil, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected status 401, got %d", route.method, route.target, w.Code)
		}
	}

	cookies := loginCookies(t, engine)
	w := serveJSON(t, engine, http.MethodGet, "/api/goals", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 with session, got %d: %s", w.Code, w.Body.String())
	}
}

func TestWizardRoutesResolveParams(t *testing.T) {
	engine, cleanup := setupTestRouter(t)
	defer cleanup()

	cookies := loginCookies(t, engine)

	w := serveJSON(t, engine, http.MethodPost, "/api/wizard", nil, cookies)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Session struct {
			ID   string `json:"id"`
			Step string `json:"step"`
		} `json:"session"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Session.ID == "" || created.Session.Step != "intent" {
		t.Fatalf("unexpected session: %+v", created.Session)
	}

	w = serveJSON(t, engine, http.MethodPut, "/api/wizard/"+created.Session.ID+"/intent",
		map[string]any{"title": "每天晨跑", "category_code": "fitness"}, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = serveJSON(t, engine, http.MethodGet, "/api/wizard/"+created.Session.ID, nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var fetched struct {
		Session struct {
			Draft struct {
				Title string `json:"title"`
			} `json:"draft"`
		} `json:"session"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if fetched.Session.Draft.Title != "每天晨跑" {
		t.Fatalf("unexpected draft title: %q", fetched.Session.Draft.Title)
	}

	w = serveJSON(t, engine, http.MethodDelete, "/api/wizard/"+created.Session.ID, nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}
