package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stridelog/internal/db"
	"github.com/stridelog/internal/service"
)

const defaultCalendarView = "monthly"

type checkInRequest struct {
	QuestionID uint   `json:"question_id" binding:"required"`
	LogDate    string `json:"log_date" binding:"required"`
	Value      string `json:"value"`
	Note       string `json:"note"`
	LoggedAt   string `json:"logged_at"`
}

// UpsertCheckIn 提交或修正一次打卡。
// 同一问题同一天重复提交会覆盖之前的回答。
func (a *API) UpsertCheckIn(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	var payload checkInRequest
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	logDate, err := time.ParseInLocation(dateFormat, payload.LogDate, time.Local)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的打卡日期")
		return
	}

	goal, err := a.goals.Get(goalID)
	if err != nil {
		a.handleGoalError(c, err)
		return
	}
	owned := false
	for _, q := range goal.Questions {
		if q.ID == payload.QuestionID {
			owned = true
			break
		}
	}
	if !owned {
		respondError(c, http.StatusNotFound, "该问题不属于这个目标")
		return
	}

	input := service.CheckInInput{
		QuestionID: payload.QuestionID,
		LogDate:    logDate,
		Value:      payload.Value,
		Note:       payload.Note,
		Source:     "manual",
	}
	if payload.LoggedAt != "" {
		loggedAt, err := time.Parse(time.RFC3339, payload.LoggedAt)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的打卡时间")
			return
		}
		input.LoggedAt = &loggedAt
	}

	entry, err := a.checkIns.Upsert(input)
	if err != nil {
		a.handleCheckInError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"checkin": checkInToPayload(*entry)})
}

// ListCheckIns 返回目标在区间内的打卡记录。
// 支持 question_id 过滤，start/end 缺省为本月。
func (a *API) ListCheckIns(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	start, end := resolveRange(c.Query("start"), c.Query("view"))
	filter := service.CheckInFilter{
		GoalID: goalID,
		Start:  start,
		End:    end,
	}
	if raw := strings.TrimSpace(c.Query("question_id")); raw != "" {
		questionID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的问题ID")
			return
		}
		filter.QuestionID = uint(questionID)
	}

	entries, err := a.checkIns.ListBetween(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"range": gin.H{
			"start": start.Format(dateFormat),
			"end":   end.Format(dateFormat),
		},
		"checkins": serializeCheckIns(entries),
	})
}

// DeleteCheckIn 删除单条打卡
func (a *API) DeleteCheckIn(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	checkInID, err := parseUintParam(c, "checkinId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的打卡记录ID")
		return
	}

	if err := a.checkIns.Delete(checkInID); err != nil {
		a.handleCheckInError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true, "goal_id": goalID})
}

// GetGoalCalendar 返回日历视图数据：区间内的打卡记录加统计摘要。
// view 支持 monthly/weekly，start 决定区间锚点。
func (a *API) GetGoalCalendar(c *gin.Context) {
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

	view := c.DefaultQuery("view", defaultCalendarView)
	start, end := resolveRange(c.Query("start"), view)

	entries, err := a.checkIns.ListBetween(service.CheckInFilter{
		GoalID: goalID,
		Start:  start,
		End:    end,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	stats, err := a.checkIns.StatsBetween(goal, start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "统计打卡数据失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"goal": goalToPayload(*goal),
		"view": view,
		"range": gin.H{
			"start": start.Format(dateFormat),
			"end":   end.Format(dateFormat),
		},
		"checkins": serializeCheckIns(entries),
		"stats":    serializeGoalStats(stats),
	})
}

// GetGoalStats 返回区间统计，start/end 缺省为本月。
func (a *API) GetGoalStats(c *gin.Context) {
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

	start, end := resolveRange(c.Query("start"), c.Query("view"))
	if raw := strings.TrimSpace(c.Query("end")); raw != "" {
		if parsed, err := time.ParseInLocation(dateFormat, raw, time.Local); err == nil {
			end = parsed
		}
	}

	stats, err := a.checkIns.StatsBetween(goal, start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "统计打卡数据失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": serializeGoalStats(stats)})
}

// GetGoalHistory 返回目标的打卡历史，按日期倒序分页。
func (a *API) GetGoalHistory(c *gin.Context) {
	goalID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, total, err := a.checkIns.History(goalID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取打卡历史失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checkins": serializeCheckIns(entries),
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (a *API) handleCheckInError(c *gin.Context, err error) {
	respondServiceError(c, err, "", func(err error) {
		switch {
		case errors.Is(err, service.ErrQuestionNotFound):
			respondError(c, http.StatusNotFound, "问题不存在")
		case errors.Is(err, service.ErrCheckInNotFound):
			respondError(c, http.StatusNotFound, "打卡记录不存在")
		default:
			respondError(c, http.StatusInternalServerError, "操作失败")
		}
	})
}

func serializeCheckIns(entries []db.CheckIn) []gin.H {
	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		items = append(items, checkInToPayload(entry))
	}
	return items
}

func checkInToPayload(entry db.CheckIn) gin.H {
	item := gin.H{
		"id":          entry.ID,
		"goal_id":     entry.GoalID,
		"question_id": entry.QuestionID,
		"log_date":    entry.LogDate.Format(dateFormat),
		"value":       entry.Value,
		"skipped":     entry.Skipped,
		"note":        entry.Note,
		"source":      entry.Source,
	}
	if entry.NumericValue != nil {
		item["numeric_value"] = *entry.NumericValue
	}
	if entry.LoggedAt != nil {
		item["logged_at"] = entry.LoggedAt.Format(time.RFC3339)
	}
	return item
}

func serializeGoalStats(stats *service.GoalStats) gin.H {
	return gin.H{
		"range_start":     stats.RangeStart.Format(dateFormat),
		"range_end":       stats.RangeEnd.Format(dateFormat),
		"completed_days":  stats.CompletedDays,
		"expected_days":   stats.ExpectedDays,
		"completion_rate": stats.CompletionRate,
		"current_streak":  stats.CurrentStreak,
		"longest_streak":  stats.LongestStreak,
	}
}

func resolveRange(startStr, view string) (time.Time, time.Time) {
	var start time.Time
	var err error

	if startStr != "" {
		start, err = time.ParseInLocation(dateFormat, startStr, time.Local)
	}
	if err != nil || startStr == "" {
		today := time.Now()
		start = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	}

	switch strings.ToLower(view) {
	case "weekly":
		weekday := int(start.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start = start.AddDate(0, 0, -weekday+1)
		end := start.AddDate(0, 0, 6)
		return start, end
	default:
		start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
		end := start.AddDate(0, 1, -1)
		return start, end
	}
}
