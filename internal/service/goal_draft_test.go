package service

import (
	"testing"
	"time"
)

func TestResponseTypeDefaults(t *testing.T) {
	cases := []struct {
		t          ResponseType
		hasRange   bool
		hasOptions bool
		min, max   float64
	}{
		{t: ResponseYesNo},
		{t: ResponseNumeric, hasRange: true, min: 0, max: 100},
		{t: ResponseScale, hasRange: true, min: 1, max: 10},
		{t: ResponseSlider, hasRange: true, min: 0, max: 100},
		{t: ResponseMultipleChoice, hasOptions: true},
		{t: ResponseFreeText},
		{t: ResponseTimeOfDay},
	}

	for _, tc := range cases {
		if tc.t.HasRange() != tc.hasRange {
			t.Fatalf("%s HasRange = %v, want %v", tc.t, tc.t.HasRange(), tc.hasRange)
		}
		if tc.t.HasOptions() != tc.hasOptions {
			t.Fatalf("%s HasOptions = %v, want %v", tc.t, tc.t.HasOptions(), tc.hasOptions)
		}
		gotMin, gotMax := tc.t.DefaultRange()
		if gotMin != tc.min || gotMax != tc.max {
			t.Fatalf("%s DefaultRange = (%g, %g), want (%g, %g)", tc.t, gotMin, gotMax, tc.min, tc.max)
		}
	}

	if ResponseType("emoji").Valid() {
		t.Fatal("expected unknown type to be invalid")
	}
}

func TestDedupOptions(t *testing.T) {
	got := dedupOptions([]string{" 跑步 ", "", "跑步", "瑜伽", "YOGA", "yoga"})
	if len(got) != 3 {
		t.Fatalf("expected 3 options, got %v", got)
	}
	if got[0] != "跑步" || got[1] != "瑜伽" || got[2] != "YOGA" {
		t.Fatalf("expected first spelling to win, got %v", got)
	}
}

func TestValidateQuestionDraft(t *testing.T) {
	q := NewQuestionDraft()
	if err := validateQuestionDraft(q); err == nil {
		t.Fatal("expected error for empty prompt")
	}

	q.Prompt = "今天运动了吗？"
	if err := validateQuestionDraft(q); err != nil {
		t.Fatalf("expected valid yes/no question, got %v", err)
	}

	q.applyTypeDefaults(ResponseMultipleChoice)
	if err := validateQuestionDraft(q); err == nil {
		t.Fatal("expected error for multiple choice without options")
	}

	q.Options = []string{"晨练", "晚练"}
	if err := validateQuestionDraft(q); err != nil {
		t.Fatalf("expected valid multiple choice, got %v", err)
	}

	q.applyTypeDefaults(ResponseNumeric)
	q.MinValue, q.MaxValue = 10, 5
	if err := validateQuestionDraft(q); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestGoalDraftResolvedCategory(t *testing.T) {
	draft := NewGoalDraft()
	if draft.CategoryResolved() {
		t.Fatal("expected empty draft to be unresolved")
	}

	draft.CategoryCode = "health"
	label, custom := draft.ResolvedCategory()
	if label != "health" || custom {
		t.Fatalf("expected builtin category, got label=%q custom=%v", label, custom)
	}

	draft.CategoryCode = CategoryCodeCustom
	if draft.CategoryResolved() {
		t.Fatal("expected custom category without label to be unresolved")
	}

	draft.CustomCategoryLabel = " 晨间例行 "
	if !draft.CategoryResolved() {
		t.Fatal("expected custom category with label to be resolved")
	}
	label, custom = draft.ResolvedCategory()
	if label != "晨间例行" || !custom {
		t.Fatalf("expected trimmed custom label, got label=%q custom=%v", label, custom)
	}
}

func TestValidateGoalDraft(t *testing.T) {
	draft := NewGoalDraft()
	if err := validateGoalDraft(&draft); err == nil {
		t.Fatal("expected error for missing title")
	}

	draft.Title = "每天跑步"
	if err := validateGoalDraft(&draft); err == nil {
		t.Fatal("expected error for missing category")
	}

	draft.CategoryCode = "fitness"
	if err := validateGoalDraft(&draft); err == nil {
		t.Fatal("expected error without active questions")
	}

	question := NewQuestionDraft()
	question.Prompt = "今天跑了吗？"
	question.Active = false
	draft.Questions = append(draft.Questions, question)
	if err := validateGoalDraft(&draft); err == nil {
		t.Fatal("expected error when all questions disabled")
	}

	draft.Questions[0].Active = true
	if err := validateGoalDraft(&draft); err != nil {
		t.Fatalf("expected draft to validate, got %v", err)
	}
}

func TestGoalDraftCloneIsDeep(t *testing.T) {
	draft := NewGoalDraft()
	draft.Title = "冥想"
	question := NewQuestionDraft()
	question.ID = "q-1"
	question.Prompt = "冥想了几分钟？"
	question.applyTypeDefaults(ResponseMultipleChoice)
	question.Options = []string{"10 分钟", "20 分钟"}
	draft.Questions = append(draft.Questions, question)
	draft.Schedule.SetWeekdays([]time.Weekday{time.Monday})

	cloned := draft.Clone()
	cloned.Questions[0].Prompt = "改过的问题"
	cloned.Questions[0].Options[0] = "改过的选项"
	cloned.Schedule.Weekdays[0] = time.Sunday

	if draft.Questions[0].Prompt != "冥想了几分钟？" {
		t.Fatal("expected question prompt to be copied")
	}
	if draft.Questions[0].Options[0] != "10 分钟" {
		t.Fatal("expected question options to be copied")
	}
	if draft.Schedule.Weekdays[0] != time.Monday {
		t.Fatal("expected schedule weekdays to be copied")
	}
}
