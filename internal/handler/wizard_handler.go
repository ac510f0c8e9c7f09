package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stridelog/internal/locale"
	"github.com/stridelog/internal/service"
)

type wizardStartRequest struct {
	Mode     string `json:"mode"`
	Language string `json:"language"`
}

type wizardIntentRequest struct {
	Title               string `json:"title"`
	CategoryCode        string `json:"category_code"`
	CustomCategoryLabel string `json:"custom_category_label"`
}

type wizardCommitmentRequest struct {
	Motivation         string `json:"motivation"`
	CelebrationMessage string `json:"celebration_message"`
}

type composerUpdateRequest struct {
	Prompt       *string   `json:"prompt"`
	ResponseType *string   `json:"response_type"`
	Options      *[]string `json:"options"`
	AddOption    *string   `json:"add_option"`
	RemoveOption *string   `json:"remove_option"`
	MinValue     *float64  `json:"min_value"`
	MaxValue     *float64  `json:"max_value"`
	AllowEmpty   *bool     `json:"allow_empty"`
	Active       *bool     `json:"active"`
}

type scheduleUpdateRequest struct {
	Cadence      *string `json:"cadence"`
	Weekdays     *[]int  `json:"weekdays"`
	IntervalDays *int    `json:"interval_days"`
	Timezone     *string `json:"timezone"`
	StartDate    *string `json:"start_date"`
}

// StartWizard 开启一次目标创建会话。
// mode 为 wizard 或 form，language 决定教练文案与提示语言。
func (a *API) StartWizard(c *gin.Context) {
	var payload wizardStartRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}
	}
	if payload.Language == "" {
		payload.Language = requestLanguage(c)
	}

	sess := a.wizard.Start(payload.Mode, payload.Language)
	hint, _ := a.wizard.AdvanceHint(sess.ID)
	c.JSON(http.StatusCreated, gin.H{
		"session": a.wizardSessionPayload(sess, hint),
		"coach":   service.CoachLine(sess.Step, sess.Language),
	})
}

// GetWizard 返回会话当前快照
func (a *API) GetWizard(c *gin.Context) {
	id := c.Param("id")
	sess, err := a.wizard.Get(id)
	if err != nil {
		a.handleWizardError(c, err, "")
		return
	}

	hint, _ := a.wizard.AdvanceHint(id)
	c.JSON(http.StatusOK, gin.H{
		"session": a.wizardSessionPayload(sess, hint),
		"coach":   service.CoachLine(sess.Step, sess.Language),
	})
}

// CancelWizard 丢弃会话，不落库任何数据
func (a *API) CancelWizard(c *gin.Context) {
	if err := a.wizard.Cancel(c.Param("id")); err != nil {
		a.handleWizardError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// UpdateWizardIntent 更新目标标题与分类
func (a *API) UpdateWizardIntent(c *gin.Context) {
	var payload wizardIntentRequest
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	sess, err := a.wizard.UpdateIntent(c.Param("id"), service.IntentInput{
		Title:               payload.Title,
		CategoryCode:        payload.CategoryCode,
		CustomCategoryLabel: payload.CustomCategoryLabel,
	})
	if err != nil {
		a.handleWizardError(c, err, "")
		return
	}
	a.respondWizardSession(c, sess)
}

// UpdateWizardCommitment 更新动机与庆祝语
func (a *API) UpdateWizardCommitment(c *gin.Context) {
	var payload wizardCommitmentRequest
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	sess, err := a.wizard.UpdateCommitment(c.Param("id"), service.CommitmentInput{
		Motivation:         payload.Motivation,
		CelebrationMessage: payload.CelebrationMessage,
	})
	if err != nil {
		a.handleWizardError(c, err, "")
		return
	}
	a.respondWizardSession(c, sess)
}

// AdvanceWizard 前进一步；在确认页触发提交并返回新目标。
func (a *API) AdvanceWizard(c *gin.Context) {
	id := c.Param("id")
	language := a.wizardLanguage(id)

	sess, goal, err := a.wizard.Forward(c.Request.Context(), id)
	if err != nil {
		a.handleWizardError(c, err, language)
		return
	}

	if goal != nil {
		c.JSON(http.StatusCreated, gin.H{
			"committed": true,
			"goal":      goalToPayload(*goal),
		})
		return
	}

	hint, _ := a.wizard.AdvanceHint(id)
	c.JSON(http.StatusOK, gin.H{
		"session": a.wizardSessionPayload(sess, hint),
		"coach":   service.CoachLine(sess.Step, sess.Language),
	})
}

// BackWizard 回退一步，第一步时保持不动
func (a *API) BackWizard(c *gin.Context) {
	sess, err := a.wizard.Back(c.Param("id"))
	if err != nil {
		a.handleWizardError(c, err, "")
		return
	}
	a.respondWizardSession(c, sess)
}

// CommitWizard 立即提交草稿（表单模式的保存入口）
func (a *API) CommitWizard(c *gin.Context) {
	id := c.Param("id")
	language := a.wizardLanguage(id)

	goal, err := a.wizard.Commit(c.Request.Context(), id)
	if err != nil {
		a.handleWizardError(c, err, language)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"committed": true,
		"goal":      goalToPayload(*goal),
	})
}

// BeginWizardQuestion 打开一个空白问题编辑器
func (a *API) BeginWizardQuestion(c *gin.Context) {
	sess, err := a.wizard.BeginQuestion(c.Param("id"))
	if err != nil {
		a.handleWizardError(c, err, "")
		return
	}
	a.respondWizardSession(c, sess)
}

// EditWizardQuestion 把已保存的问题载入编辑器
func (a *API) EditWizardQuestion(c *gin.Context) {
	sess, err := a.wizard.EditQuestion(c.Param("id"), c.Param("qid"))
	if err != nil {
		a.handleWizardError(c, err, "")
		return
	}
	a.respondWizardSession(c, sess)
}

// UpdateWizardComposer 更新编辑器中的问题字段。
// 请求体只携带要变更的字段，范围调整需要同时给出 min_value 与 max_value
// 中至少一个，缺失的一端沿用当前值。
func (a *API) UpdateWizardComposer(c *gin.Context) {
	var payload composerUpdateRequest
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	id := c.Param("id")
	language := a.wizardLanguage(id)

	var sess *service.WizardSession
	var err error

	apply := func(fn func() (*service.WizardSession, error)) bool {
		if err != nil {
			return false
		}
		sess, err = fn()
		return err == nil
	}

	if payload.Prompt != nil {
		apply(func() (*service.WizardSession, error) {
			return a.wizard.SetComposerPrompt(id, *payload.Prompt)
		})
	}
	if payload.ResponseType != nil {
		apply(func() (*service.WizardSession, error) {
			return a.wizard.SetComposerResponseType(id, service.ResponseType(*payload.ResponseType))
		})
	}
	if payload.Options != nil {
		apply(func() (*service.WizardSession, error) {
			return a.wizard.SetComposerOptions(id, *payload.Options)
		})
	}
	if payload.AddOption != nil {
		apply(func() (*service.WizardSession, error) {
			return a.wizard.AddComposerOption(id, *payload.AddOption)
		})
	}
	if payload.RemoveOption != nil {
		apply(func() (*service.WizardSession, error) {
			return a.wizard.RemoveComposerOption(id, *payload.RemoveOption)
		})
	}
	if err == nil && (payload.MinValue != nil || payload.MaxValue != nil) {
		apply(func() (*service.WizardSession, error) {
			current, getErr := a.wizard.Get(id)
			if getErr != nil {
				return nil, getErr
			}
			if current.Composer == nil {
				return nil, service.ErrComposerInactive
			}
			minValue := current.Composer.MinValue
			maxValue := current.Composer.MaxValue
			if payload.MinValue != nil {
				minValue = *payload.MinValue
			}
			if payload.MaxValue != nil {
				maxValue = *payload.MaxValue
			}
			return a.wizard.SetComposerRange(id, minValue, maxValue)
		})
	}
	if payload.AllowEmpty != nil {
		apply(func() (*service.WizardSession, error) {
			return a.wizard.SetComposerAllowEmpty(id, *payload.AllowEmpty)
		})
	}
	if payload.Active != nil {
		apply(func() (*service.WizardSession, error) {
			return a.wizard.SetComposerActive(id, *payload.Active)
		})
	}

	if err != nil {
		a.handleWizardError(c, err, language)
		return
	}
	if sess == nil {
		sess, err = a.wizard.Get(id)
		if err != nil {
			a.handleWizardError(c, err, language)
			return
		}
	}
	a.respondWizardSession(c, sess)
}

// SaveWizardQuestion 把编辑器中的问题保存进草稿
func (a *API) SaveWizardQuestion(c *gin.Context) {
	id := c.Param("id")
	sess, err := a.wizard.SaveQuestion(id)
	if err != nil {
		a.handleWizardError(c, err, a.wizardLanguage(id))
		return
	}
	a.respondWizardSession(c, sess)
}

// ResetWizardComposer 放弃编辑器中的改动
func (a *API) ResetWizardComposer(c *gin.Context) {
	sess, err := a.wizard.ResetComposer(c.Param("id"))
	if err != nil {
		a.handleWizardError(c, err, "")
		return
	}
	a.respondWizardSession(c, sess)
}

// RemoveWizardQuestion 从草稿中删除一个问题
func (a *API) RemoveWizardQuestion(c *gin.Context) {
	sess, err := a.wizard.RemoveQuestion(c.Param("id"), c.Param("qid"))
	if err != nil {
		a.handleWizardError(c, err, "")
		return
	}
	a.respondWizardSession(c, sess)
}

// ApplyWizardTemplate 把问题模板追加进草稿
func (a *API) ApplyWizardTemplate(c *gin.Context) {
	var payload struct {
		TemplateID string `json:"template_id" binding:"required"`
	}
	if !bindJSON(c, &payload, "请选择问题模板") {
		return
	}

	id := c.Param("id")
	sess, err := a.wizard.ApplyTemplate(id, payload.TemplateID)
	if err != nil {
		a.handleWizardError(c, err, a.wizardLanguage(id))
		return
	}
	a.respondWizardSession(c, sess)
}

// UpdateWizardSchedule 更新节奏配置。
// 请求体只携带要变更的字段；start_date 传空串表示清除。
func (a *API) UpdateWizardSchedule(c *gin.Context) {
	var payload scheduleUpdateRequest
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	id := c.Param("id")
	language := a.wizardLanguage(id)

	var sess *service.WizardSession
	var err error

	apply := func(fn func() (*service.WizardSession, error)) {
		if err != nil {
			return
		}
		sess, err = fn()
	}

	if payload.Cadence != nil {
		apply(func() (*service.WizardSession, error) {
			return a.wizard.SetScheduleCadence(id, *payload.Cadence)
		})
	}
	if payload.Weekdays != nil {
		days := make([]time.Weekday, 0, len(*payload.Weekdays))
		for _, d := range *payload.Weekdays {
			days = append(days, time.Weekday(d))
		}
		apply(func() (*service.WizardSession, error) {
			return a.wizard.SetScheduleWeekdays(id, days)
		})
	}
	if payload.IntervalDays != nil {
		apply(func() (*service.WizardSession, error) {
			return a.wizard.SetScheduleIntervalDays(id, *payload.IntervalDays)
		})
	}
	if payload.Timezone != nil {
		apply(func() (*service.WizardSession, error) {
			return a.wizard.SetScheduleTimezone(id, *payload.Timezone)
		})
	}
	if err == nil && payload.StartDate != nil {
		startPtr, ok := parseOptionalDate(*payload.StartDate)
		if !ok {
			respondError(c, http.StatusBadRequest, "无效的开始日期")
			return
		}
		apply(func() (*service.WizardSession, error) {
			return a.wizard.SetScheduleStartDate(id, startPtr)
		})
	}

	if err != nil {
		a.handleWizardError(c, err, language)
		return
	}
	if sess == nil {
		sess, err = a.wizard.Get(id)
		if err != nil {
			a.handleWizardError(c, err, language)
			return
		}
	}
	a.respondWizardSession(c, sess)
}

// AddWizardReminderTime 添加提醒时间。
// 超出数量上限或与已有时间过近时 accepted 为 false，草稿不变。
func (a *API) AddWizardReminderTime(c *gin.Context) {
	var payload struct {
		Time string `json:"time" binding:"required"`
	}
	if !bindJSON(c, &payload, "请填写提醒时间") {
		return
	}

	id := c.Param("id")
	accepted, sess, err := a.wizard.AddScheduleTime(id, payload.Time)
	if err != nil {
		a.handleWizardError(c, err, a.wizardLanguage(id))
		return
	}

	hint, _ := a.wizard.AdvanceHint(id)
	c.JSON(http.StatusOK, gin.H{
		"accepted": accepted,
		"session":  a.wizardSessionPayload(sess, hint),
	})
}

// RemoveWizardReminderTime 移除提醒时间（?time=07:30）
func (a *API) RemoveWizardReminderTime(c *gin.Context) {
	clock := strings.TrimSpace(c.Query("time"))
	if clock == "" {
		respondError(c, http.StatusBadRequest, "请指定要移除的提醒时间")
		return
	}

	sess, err := a.wizard.RemoveScheduleTime(c.Param("id"), clock)
	if err != nil {
		a.handleWizardError(c, err, "")
		return
	}
	a.respondWizardSession(c, sess)
}

// InferWizardGoal 把自由文本交给模型解析并应用到草稿。
// 解析失败时由关键词回退兜底，接口总是返回一份建议。
func (a *API) InferWizardGoal(c *gin.Context) {
	var payload struct {
		Text string `json:"text" binding:"required"`
	}
	if !bindJSON(c, &payload, "请描述你想养成的目标") {
		return
	}

	id := c.Param("id")
	suggestion := a.inference.InferGoalConfiguration(c.Request.Context(), payload.Text)

	sess, err := a.wizard.ApplySuggestion(id, suggestion)
	if err != nil {
		a.handleWizardError(c, err, a.wizardLanguage(id))
		return
	}

	hint, _ := a.wizard.AdvanceHint(id)
	c.JSON(http.StatusOK, gin.H{
		"suggestion":      goalSuggestionPayload(suggestion, sess.Language),
		"typing_delay_ms": service.TypingDelayFor(payload.Text).Milliseconds(),
		"coach":           service.CoachLine(sess.Step, sess.Language),
		"session":         a.wizardSessionPayload(sess, hint),
	})
}

// SuggestWizardMotivation 为当前草稿生成一句动机文案。
// 只返回建议文本，不直接写入草稿。
func (a *API) SuggestWizardMotivation(c *gin.Context) {
	sess, err := a.wizard.Get(c.Param("id"))
	if err != nil {
		a.handleWizardError(c, err, "")
		return
	}

	label, _ := sess.Draft.ResolvedCategory()
	text := a.motivation.SuggestMotivation(c.Request.Context(), sess.Draft.Title, label)
	c.JSON(http.StatusOK, gin.H{"motivation": text})
}

func (a *API) respondWizardSession(c *gin.Context, sess *service.WizardSession) {
	hint, _ := a.wizard.AdvanceHint(sess.ID)
	c.JSON(http.StatusOK, gin.H{"session": a.wizardSessionPayload(sess, hint)})
}

// wizardLanguage 读取会话语言用于错误提示，会话不存在时返回空。
func (a *API) wizardLanguage(id string) string {
	sess, err := a.wizard.Get(id)
	if err != nil {
		return ""
	}
	return sess.Language
}

func (a *API) handleWizardError(c *gin.Context, err error, language string) {
	respondServiceError(c, err, language, func(err error) {
		switch {
		case errors.Is(err, service.ErrWizardSessionNotFound):
			respondError(c, http.StatusNotFound, "创建会话不存在或已过期")
		case errors.Is(err, service.ErrComposerInactive):
			respondError(c, http.StatusConflict, "当前没有正在编辑的问题")
		case errors.Is(err, service.ErrGoalNotFound):
			respondError(c, http.StatusNotFound, "目标不存在")
		default:
			respondError(c, http.StatusInternalServerError, "操作失败")
		}
	})
}

func (a *API) wizardSessionPayload(sess *service.WizardSession, hint *service.ValidationError) gin.H {
	payload := gin.H{
		"id":          sess.ID,
		"mode":        sess.Mode,
		"language":    sess.Language,
		"step":        sess.Step,
		"can_advance": hint == nil,
		"draft":       goalDraftPayload(sess.Draft, sess.Language),
		"created_at":  sess.CreatedAt.Format(time.RFC3339),
		"updated_at":  sess.UpdatedAt.Format(time.RFC3339),
	}
	if hint != nil {
		payload["hint"] = gin.H{"zh": hint.Hint, "en": hint.HintEN}
	}
	if sess.Composer != nil {
		payload["composer"] = questionDraftPayload(*sess.Composer, sess.Language)
	}
	if sess.ConflictMessage != "" {
		payload["conflict"] = sess.ConflictMessage
	}
	return payload
}

func goalDraftPayload(draft service.GoalDraft, language string) gin.H {
	questions := make([]gin.H, 0, len(draft.Questions))
	for _, q := range draft.Questions {
		questions = append(questions, questionDraftPayload(q, language))
	}

	label, custom := draft.ResolvedCategory()
	if !custom && label != "" {
		label = locale.CategoryLabel(language, label)
	}

	return gin.H{
		"title":               draft.Title,
		"motivation":          draft.Motivation,
		"celebration_message": draft.CelebrationMessage,
		"category": gin.H{
			"code":         draft.CategoryCode,
			"custom_label": draft.CustomCategoryLabel,
			"label":        label,
			"resolved":     draft.CategoryResolved(),
		},
		"questions":             questions,
		"active_question_count": draft.ActiveQuestionCount(),
		"schedule":              scheduleDraftPayload(draft.Schedule, language),
	}
}

func questionDraftPayload(q service.QuestionDraft, language string) gin.H {
	payload := gin.H{
		"id":                  q.ID,
		"prompt":              q.Prompt,
		"response_type":       q.ResponseType,
		"response_type_label": locale.ResponseTypeLabel(language, string(q.ResponseType)),
		"allow_empty":         q.AllowEmpty,
		"active":              q.Active,
		"provenance":          q.Provenance,
	}
	if q.ResponseType.HasOptions() {
		payload["options"] = q.Options
	}
	if q.ResponseType.HasRange() {
		payload["min_value"] = q.MinValue
		payload["max_value"] = q.MaxValue
	}
	return payload
}

func scheduleDraftPayload(s service.ScheduleDraft, language string) gin.H {
	weekdays := make([]gin.H, 0, len(s.Weekdays))
	for _, day := range s.Weekdays {
		weekdays = append(weekdays, gin.H{
			"day":   int(day),
			"label": locale.WeekdayLabel(language, day),
		})
	}

	times := make([]string, 0, len(s.ReminderTimes))
	for _, t := range s.ReminderTimes {
		times = append(times, t.String())
	}

	payload := gin.H{
		"cadence":            s.Cadence,
		"cadence_label":      locale.CadenceLabel(language, s.Cadence),
		"weekdays":           weekdays,
		"interval_days":      s.IntervalDays,
		"reminder_times":     times,
		"timezone":           s.Timezone,
		"max_reminder_times": s.MaxReminderTimes,
	}
	if s.StartDate != nil {
		payload["start_date"] = s.StartDate.Format(dateFormat)
	}
	return payload
}

func goalSuggestionPayload(s service.GoalSuggestion, language string) gin.H {
	question := gin.H{
		"prompt":        s.Prompt,
		"response_type": s.ResponseType,
	}
	if s.ResponseType.HasOptions() {
		question["options"] = s.Options
	}
	if s.ResponseType.HasRange() {
		question["min_value"] = s.MinValue
		question["max_value"] = s.MaxValue
	}

	label := s.CategoryLabel
	if s.CategoryCode != "" && s.CategoryCode != service.CategoryCodeCustom {
		label = locale.CategoryLabel(language, s.CategoryCode)
	}

	payload := gin.H{
		"title":          s.Title,
		"category_code":  s.CategoryCode,
		"category_label": label,
		"motivation":     s.Motivation,
		"question":       question,
		"cadence":        s.Cadence,
		"source":         s.Source,
	}
	if len(s.Weekdays) > 0 {
		weekdays := make([]int, 0, len(s.Weekdays))
		for _, day := range s.Weekdays {
			weekdays = append(weekdays, int(day))
		}
		payload["weekdays"] = weekdays
	}
	if s.ReminderTime != "" {
		payload["reminder_time"] = s.ReminderTime
	}
	return payload
}
