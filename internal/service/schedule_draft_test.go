package service

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		input   string
		want    MinuteOfDay
		wantErr bool
	}{
		{input: "00:00", want: 0},
		{input: "07:30", want: 450},
		{input: "23:59", want: 1439},
		{input: "24:00", wantErr: true},
		{input: "7:5", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseClock(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q) expected error, got %v", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q) returned error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("ParseClock(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestMinuteOfDayString(t *testing.T) {
	if got := MinuteOfDay(450).String(); got != "07:30" {
		t.Fatalf("expected 07:30, got %s", got)
	}
	if got := MinuteOfDay(0).String(); got != "00:00" {
		t.Fatalf("expected 00:00, got %s", got)
	}
}

func TestScheduleDraftAddTimeKeepsGapAndOrder(t *testing.T) {
	draft := NewScheduleDraft()

	if !draft.AddTime(MinuteOfDay(21 * 60)) {
		t.Fatal("expected 21:00 to be accepted")
	}
	if !draft.AddTime(MinuteOfDay(7 * 60)) {
		t.Fatal("expected 07:00 to be accepted")
	}

	// 与 07:00 间隔不足 5 分钟
	if draft.AddTime(MinuteOfDay(7*60 + 4)) {
		t.Fatal("expected 07:04 to be rejected")
	}
	if len(draft.ReminderTimes) != 2 {
		t.Fatalf("expected 2 reminder times, got %d", len(draft.ReminderTimes))
	}

	if draft.ReminderTimes[0].String() != "07:00" || draft.ReminderTimes[1].String() != "21:00" {
		t.Fatalf("expected sorted times, got %v", draft.ReminderTimes)
	}
}

func TestScheduleDraftAddTimeWrapsMidnight(t *testing.T) {
	draft := NewScheduleDraft()

	if !draft.AddTime(MinuteOfDay(23*60 + 58)) {
		t.Fatal("expected 23:58 to be accepted")
	}
	// 环形时钟上 00:01 与 23:58 只差 3 分钟
	if draft.AddTime(MinuteOfDay(1)) {
		t.Fatal("expected 00:01 to be rejected")
	}
	if !draft.AddTime(MinuteOfDay(12 * 60)) {
		t.Fatal("expected 12:00 to be accepted")
	}
}

func TestScheduleDraftAddTimeRespectsLimit(t *testing.T) {
	draft := NewScheduleDraft()

	for i, clock := range []string{"08:00", "13:00", "20:00"} {
		parsed, err := ParseClock(clock)
		if err != nil {
			t.Fatalf("parse %s: %v", clock, err)
		}
		if !draft.AddTime(parsed) {
			t.Fatalf("expected time %d to be accepted", i)
		}
	}

	if draft.AddTime(MinuteOfDay(10 * 60)) {
		t.Fatal("expected fourth time to be rejected")
	}
	if len(draft.ReminderTimes) != 3 {
		t.Fatalf("expected 3 times, got %d", len(draft.ReminderTimes))
	}
}

func TestScheduleDraftRemoveTime(t *testing.T) {
	draft := NewScheduleDraft()
	draft.AddTime(MinuteOfDay(480))
	draft.AddTime(MinuteOfDay(1200))

	draft.RemoveTime(MinuteOfDay(480))
	if draft.HasTime(MinuteOfDay(480)) {
		t.Fatal("expected 08:00 to be removed")
	}
	if !draft.HasTime(MinuteOfDay(1200)) {
		t.Fatal("expected 20:00 to remain")
	}

	// 不存在的时间为空操作
	draft.RemoveTime(MinuteOfDay(600))
	if len(draft.ReminderTimes) != 1 {
		t.Fatalf("expected 1 time, got %d", len(draft.ReminderTimes))
	}
}

func TestScheduleDraftSetCadence(t *testing.T) {
	draft := NewScheduleDraft()
	draft.SetWeekdays([]time.Weekday{time.Monday, time.Friday})

	if err := draft.SetCadence(CadenceWeekly); err != nil {
		t.Fatalf("SetCadence weekly returned error: %v", err)
	}
	if len(draft.Weekdays) != 2 {
		t.Fatalf("expected weekdays to survive weekly switch, got %v", draft.Weekdays)
	}

	// 切回每日会清空每周配置
	if err := draft.SetCadence(CadenceDaily); err != nil {
		t.Fatalf("SetCadence daily returned error: %v", err)
	}
	if len(draft.Weekdays) != 0 {
		t.Fatalf("expected weekdays to be cleared, got %v", draft.Weekdays)
	}

	if err := draft.SetCadence("hourly"); err == nil {
		t.Fatal("expected error for unsupported cadence")
	}
	if draft.Cadence != CadenceDaily {
		t.Fatalf("expected cadence to stay daily, got %s", draft.Cadence)
	}
}

func TestScheduleDraftSetWeekdaysDedupes(t *testing.T) {
	draft := NewScheduleDraft()
	draft.SetWeekdays([]time.Weekday{time.Friday, time.Monday, time.Friday, time.Weekday(9)})

	if len(draft.Weekdays) != 2 {
		t.Fatalf("expected 2 weekdays, got %v", draft.Weekdays)
	}
	if draft.Weekdays[0] != time.Monday || draft.Weekdays[1] != time.Friday {
		t.Fatalf("expected sorted weekdays, got %v", draft.Weekdays)
	}
}

func TestScheduleDraftSetIntervalDays(t *testing.T) {
	draft := NewScheduleDraft()

	if err := draft.SetIntervalDays(1); err == nil {
		t.Fatal("expected error for interval below minimum")
	}
	if err := draft.SetIntervalDays(31); err == nil {
		t.Fatal("expected error for interval above maximum")
	}
	if draft.IntervalDays != IntervalDaysMin {
		t.Fatalf("expected interval unchanged, got %d", draft.IntervalDays)
	}

	if err := draft.SetIntervalDays(3); err != nil {
		t.Fatalf("SetIntervalDays returned error: %v", err)
	}
	if draft.IntervalDays != 3 {
		t.Fatalf("expected interval 3, got %d", draft.IntervalDays)
	}
}

func TestValidateScheduleDraft(t *testing.T) {
	weekly := NewScheduleDraft()
	weekly.Cadence = CadenceWeekly
	if err := validateScheduleDraft(weekly); err == nil {
		t.Fatal("expected error for weekly cadence without weekdays")
	}

	weekly.SetWeekdays([]time.Weekday{time.Tuesday})
	if err := validateScheduleDraft(weekly); err != nil {
		t.Fatalf("expected weekly draft to validate, got %v", err)
	}

	interval := NewScheduleDraft()
	interval.Cadence = CadenceInterval
	interval.IntervalDays = 1
	if err := validateScheduleDraft(interval); err == nil {
		t.Fatal("expected error for interval below minimum")
	}
}

func TestScheduleDraftCloneIsDeep(t *testing.T) {
	draft := NewScheduleDraft()
	draft.Cadence = CadenceWeekly
	draft.SetWeekdays([]time.Weekday{time.Monday})
	draft.AddTime(MinuteOfDay(480))
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local)
	draft.StartDate = &start

	cloned := draft.Clone()
	cloned.Weekdays[0] = time.Sunday
	cloned.ReminderTimes[0] = MinuteOfDay(0)
	*cloned.StartDate = start.AddDate(0, 1, 0)

	if draft.Weekdays[0] != time.Monday {
		t.Fatal("expected weekdays to be copied")
	}
	if draft.ReminderTimes[0] != MinuteOfDay(480) {
		t.Fatal("expected reminder times to be copied")
	}
	if !draft.StartDate.Equal(start) {
		t.Fatal("expected start date to be copied")
	}
}
