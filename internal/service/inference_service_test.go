package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stridelog/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupInferenceTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:inference-test?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.SystemSetting{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

// chatCompletionStub 伪造 chat completions 接口，记录最后一次请求
type chatCompletionStub struct {
	t       *testing.T
	content string

	lastPath string
	lastAuth string
	lastBody string
}

func (c *chatCompletionStub) Do(req *http.Request) (*http.Response, error) {
	c.t.Helper()
	c.lastPath = req.URL.Path
	c.lastAuth = req.Header.Get("Authorization")
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			c.t.Fatalf("read stub request body: %v", err)
		}
		c.lastBody = string(raw)
	}

	body := fmt.Sprintf(`{"choices":[{"message":{"role":"assistant","content":%q}}],"usage":{"prompt_tokens":10,"completion_tokens":20}}`, c.content)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}, nil
}

func TestFallbackInferenceKeywordRules(t *testing.T) {
	running := FallbackInference("每天跑步三十分钟")
	if running.CategoryCode != "fitness" {
		t.Fatalf("expected fitness, got %q", running.CategoryCode)
	}
	if running.ResponseType != ResponseYesNo || running.Cadence != CadenceDaily {
		t.Fatalf("unexpected rule output: %+v", running)
	}
	if running.ReminderTime != "07:30" {
		t.Fatalf("unexpected reminder: %q", running.ReminderTime)
	}
	if running.Source != SuggestionSourceKeyword {
		t.Fatalf("expected keyword source, got %q", running.Source)
	}
	if running.Motivation != cannedMotivation("fitness") {
		t.Fatalf("unexpected motivation: %q", running.Motivation)
	}

	water := FallbackInference("提醒我多喝水")
	if water.CategoryCode != "health" || water.ResponseType != ResponseNumeric {
		t.Fatalf("unexpected water rule output: %+v", water)
	}
	if water.MinValue != 0 || water.MaxValue != 12 {
		t.Fatalf("unexpected water range: %g-%g", water.MinValue, water.MaxValue)
	}

	family := FallbackInference("每周给家人打电话")
	if family.Cadence != CadenceWeekly {
		t.Fatalf("expected weekly cadence, got %q", family.Cadence)
	}
	if len(family.Weekdays) != 1 || family.Weekdays[0] != time.Sunday {
		t.Fatalf("unexpected weekdays: %v", family.Weekdays)
	}

	english := FallbackInference("Go for a RUN before breakfast")
	if english.CategoryCode != "fitness" {
		t.Fatalf("expected english keyword match, got %q", english.CategoryCode)
	}
}

func TestFallbackInferenceDefaults(t *testing.T) {
	got := FallbackInference("  练 书法  ")
	if got.Title != "练 书法" {
		t.Fatalf("expected collapsed whitespace title, got %q", got.Title)
	}
	if got.CategoryCode != CategoryCodeCustom || got.CategoryLabel != "生活习惯" {
		t.Fatalf("expected custom category fallback, got %+v", got)
	}
	if got.ResponseType != ResponseFreeText || got.Cadence != CadenceDaily {
		t.Fatalf("unexpected default suggestion: %+v", got)
	}

	empty := FallbackInference("")
	if empty.Title != "我的新目标" {
		t.Fatalf("expected placeholder title, got %q", empty.Title)
	}

	long := FallbackInference(strings.Repeat("写", 60))
	if got := len([]rune(long.Title)); got != fallbackTitleRuneLimit {
		t.Fatalf("expected title truncated to %d runes, got %d", fallbackTitleRuneLimit, got)
	}
}

func TestFallbackInferenceDeterministic(t *testing.T) {
	first := FallbackInference("睡前读书")
	second := FallbackInference("睡前读书")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected deterministic output, got %+v and %+v", first, second)
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare", input: `{"title":"a"}`, want: `{"title":"a"}`},
		{name: "fenced", input: "```json\n{\"title\":\"a\"}\n```", want: `{"title":"a"}`},
		{name: "prose", input: "好的，这是结果：{\"title\":\"a\"} 希望有帮助", want: `{"title":"a"}`},
		{name: "empty", input: "   ", wantErr: true},
		{name: "no-object", input: "抱歉我做不到", wantErr: true},
	}
	for _, tc := range cases {
		got, err := extractJSONObject(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestSanitizeInference(t *testing.T) {
	if _, err := sanitizeInference(inferencePayload{}); err == nil {
		t.Fatal("expected error without title")
	}

	minValue, maxValue := 5.0, 2.0
	got, err := sanitizeInference(inferencePayload{
		Title:        " 早睡早起 ",
		Category:     "Health",
		ResponseType: "emoji",
		MinValue:     &minValue,
		MaxValue:     &maxValue,
		Cadence:      "hourly",
		ReminderTime: "25:00",
	})
	if err != nil {
		t.Fatalf("sanitizeInference returned error: %v", err)
	}
	if got.Title != "早睡早起" {
		t.Fatalf("expected trimmed title, got %q", got.Title)
	}
	if got.CategoryCode != "health" {
		t.Fatalf("expected builtin category match, got %q", got.CategoryCode)
	}
	if got.ResponseType != ResponseYesNo {
		t.Fatalf("expected bad type to fall back to yes/no, got %q", got.ResponseType)
	}
	if got.Prompt != "今天完成了吗？" {
		t.Fatalf("expected default prompt, got %q", got.Prompt)
	}
	if got.Cadence != CadenceDaily {
		t.Fatalf("expected bad cadence to fall back to daily, got %q", got.Cadence)
	}
	if got.ReminderTime != "" {
		t.Fatalf("expected bad reminder dropped, got %q", got.ReminderTime)
	}
	if got.Source != SuggestionSourceModel {
		t.Fatalf("expected model source, got %q", got.Source)
	}

	// 自定义分类标签原样保留
	custom, err := sanitizeInference(inferencePayload{Title: "练字", Category: "书法练习"})
	if err != nil {
		t.Fatalf("sanitizeInference returned error: %v", err)
	}
	if custom.CategoryCode != CategoryCodeCustom || custom.CategoryLabel != "书法练习" {
		t.Fatalf("expected custom category, got %+v", custom)
	}

	// 多选缺选项退回是/否
	choice, err := sanitizeInference(inferencePayload{Title: "心情", ResponseType: "multiple_choice"})
	if err != nil {
		t.Fatalf("sanitizeInference returned error: %v", err)
	}
	if choice.ResponseType != ResponseYesNo {
		t.Fatalf("expected choice without options to fall back, got %q", choice.ResponseType)
	}

	// 数值范围颠倒时用类型默认
	scale, err := sanitizeInference(inferencePayload{Title: "强度", ResponseType: "scale", MinValue: &minValue, MaxValue: &maxValue})
	if err != nil {
		t.Fatalf("sanitizeInference returned error: %v", err)
	}
	wantMin, wantMax := ResponseScale.DefaultRange()
	if scale.MinValue != wantMin || scale.MaxValue != wantMax {
		t.Fatalf("expected default range %g-%g, got %g-%g", wantMin, wantMax, scale.MinValue, scale.MaxValue)
	}

	// weekly 无星期退回 daily
	weekly, err := sanitizeInference(inferencePayload{Title: "复盘", Cadence: "weekly", Weekdays: []int{9}})
	if err != nil {
		t.Fatalf("sanitizeInference returned error: %v", err)
	}
	if weekly.Cadence != CadenceDaily {
		t.Fatalf("expected weekly without weekdays to fall back, got %q", weekly.Cadence)
	}
}

func TestInferGoalConfigurationFallsBackWithoutKey(t *testing.T) {
	cleanup := setupInferenceTestDB(t)
	defer cleanup()

	settings := NewSystemSettingService(db.DB)
	svc := NewInferenceService(settings, nil)

	got := svc.InferGoalConfiguration(context.Background(), "每天冥想十分钟")
	if got.Source != SuggestionSourceKeyword {
		t.Fatalf("expected keyword fallback, got %q", got.Source)
	}
	if got.CategoryCode != "mindfulness" {
		t.Fatalf("expected mindfulness rule, got %q", got.CategoryCode)
	}
}

func TestInferGoalConfigurationParsesModelPayload(t *testing.T) {
	cleanup := setupInferenceTestDB(t)
	defer cleanup()

	settings := NewSystemSettingService(db.DB)
	if _, err := settings.UpdateSettings(SystemSettingsInput{AIProvider: "openai", OpenAIAPIKey: "sk-test"}); err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}

	stub := &chatCompletionStub{
		t: t,
		content: "```json\n" +
			`{"title":"每天背二十个单词","category":"learning","motivation":"词汇量就是底气","question":"今天背了多少个单词？",` +
			`"response_type":"numeric","min_value":0,"max_value":100,"cadence":"weekdays","reminder_time":"20:30"}` +
			"\n```",
	}

	svc := NewInferenceService(settings, nil)
	svc.SetHTTPClient(stub)

	got := svc.InferGoalConfiguration(context.Background(), "我想坚持背单词")
	if got.Source != SuggestionSourceModel {
		t.Fatalf("expected model source, got %q", got.Source)
	}
	if got.Title != "每天背二十个单词" || got.CategoryCode != "learning" {
		t.Fatalf("unexpected suggestion: %+v", got)
	}
	if got.ResponseType != ResponseNumeric || got.MinValue != 0 || got.MaxValue != 100 {
		t.Fatalf("unexpected question config: %+v", got)
	}
	if got.Cadence != CadenceWeekdays || got.ReminderTime != "20:30" {
		t.Fatalf("unexpected schedule hints: %+v", got)
	}

	if !strings.HasSuffix(stub.lastPath, "/chat/completions") {
		t.Fatalf("unexpected endpoint path: %q", stub.lastPath)
	}
	if stub.lastAuth != "Bearer sk-test" {
		t.Fatalf("unexpected authorization header: %q", stub.lastAuth)
	}
	if !strings.Contains(stub.lastBody, "我想坚持背单词") {
		t.Fatalf("expected user text in request body, got %q", stub.lastBody)
	}
}

func TestTypingDelayFor(t *testing.T) {
	if got := TypingDelayFor("短"); got != minTypingDelay {
		t.Fatalf("expected minimum delay, got %v", got)
	}
	if got := TypingDelayFor(strings.Repeat("字", 30)); got != 900*time.Millisecond {
		t.Fatalf("expected 900ms for 30 runes, got %v", got)
	}
	if got := TypingDelayFor(strings.Repeat("长", 200)); got != maxTypingDelay {
		t.Fatalf("expected capped delay, got %v", got)
	}
}

func TestCoachLine(t *testing.T) {
	if got := CoachLine(StepIntent, "zh"); got != "先说说你想养成什么目标吧" {
		t.Fatalf("unexpected zh line: %q", got)
	}
	if got := CoachLine(StepRhythm, "en-US"); got != "Now set the rhythm and reminders" {
		t.Fatalf("unexpected en line: %q", got)
	}
	if got := CoachLine(WizardStep("nonsense"), "zh"); got != "" {
		t.Fatalf("expected empty line for unknown step, got %q", got)
	}
}
