package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stridelog/internal/db"
)

var (
	// ErrWizardSessionNotFound 会话不存在或已被取消/提交
	ErrWizardSessionNotFound = errors.New("wizard session not found")
	// ErrComposerInactive 在未开启问题编辑器时调用编辑器操作返回
	ErrComposerInactive = errors.New("question composer not active")
)

// WizardStep 表示创建流程的步骤，顺序固定且不可跳跃。
type WizardStep string

const (
	StepIntent     WizardStep = "intent"
	StepPrompts    WizardStep = "prompts"
	StepRhythm     WizardStep = "rhythm"
	StepCommitment WizardStep = "commitment"
	StepReview     WizardStep = "review"
)

// wizardSteps 为前进顺序；commitment 可直接跳过（不设门槛）。
var wizardSteps = []WizardStep{StepIntent, StepPrompts, StepRhythm, StepCommitment, StepReview}

// 会话模式：向导逐步填写，或简单表单一次写入。
const (
	ModeWizard = "wizard"
	ModeForm   = "form"
)

// wizardSessionIdleTTL 空闲会话的保留时长，超时由后台任务清理。
const wizardSessionIdleTTL = 2 * time.Hour

// WizardSession 保存一次创建流程的全部服务器端状态。
// Composer 非空表示正在编辑一个问题草稿；composerSaved 记录被编辑问题
// 的原始配置，重新选回原类型时用于恢复选项/范围。
type WizardSession struct {
	ID       string
	Mode     string
	Language string
	Step     WizardStep
	Draft    GoalDraft

	Composer      *QuestionDraft
	composerSaved *QuestionDraft

	ConflictMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// clone 返回深拷贝，避免调用方拿到内部可变状态。
func (sess *WizardSession) clone() *WizardSession {
	cloned := *sess
	cloned.Draft = sess.Draft.Clone()
	if sess.Composer != nil {
		c := sess.Composer.Clone()
		cloned.Composer = &c
	}
	if sess.composerSaved != nil {
		c := sess.composerSaved.Clone()
		cloned.composerSaved = &c
	}
	return &cloned
}

// WizardService 管理内存中的向导会话并驱动步骤流转。
// 会话按 uuid 索引，互斥锁保护；持久化只发生在 Commit。
type WizardService struct {
	mu       sync.Mutex
	sessions map[string]*WizardSession

	goals     *GoalService
	conflicts *ScheduleConflictService
}

// NewWizardService 构造 WizardService
func NewWizardService(goals *GoalService, conflicts *ScheduleConflictService) *WizardService {
	return &WizardService{
		sessions:  make(map[string]*WizardSession),
		goals:     goals,
		conflicts: conflicts,
	}
}

// Start 创建新会话。mode 非法时按 wizard 处理；form 模式不限制提醒数量。
func (s *WizardService) Start(mode, language string) *WizardSession {
	if mode != ModeForm {
		mode = ModeWizard
	}

	sess := &WizardSession{
		ID:        uuid.NewString(),
		Mode:      mode,
		Language:  strings.TrimSpace(language),
		Step:      StepIntent,
		Draft:     NewGoalDraft(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if mode == ModeForm {
		sess.Draft.Schedule.MaxReminderTimes = 0
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess.clone()
}

// Get 返回会话快照
func (s *WizardService) Get(id string) (*WizardSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrWizardSessionNotFound
	}
	return sess.clone(), nil
}

// Cancel 丢弃会话及其全部草稿状态
func (s *WizardService) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(id)
	if _, ok := s.sessions[key]; !ok {
		return ErrWizardSessionNotFound
	}
	delete(s.sessions, key)
	return nil
}

// withSession 在锁内执行 fn，成功后刷新 UpdatedAt 并返回快照。
func (s *WizardService) withSession(id string, fn func(*WizardSession) error) (*WizardSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrWizardSessionNotFound
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.UpdatedAt = time.Now()
	return sess.clone(), nil
}

// IntentInput 对应第一步可填写的字段
type IntentInput struct {
	Title               string
	CategoryCode        string
	CustomCategoryLabel string
}

// UpdateIntent 更新目标标题与分类
func (s *WizardService) UpdateIntent(id string, input IntentInput) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		sess.Draft.Title = strings.TrimSpace(input.Title)
		sess.Draft.CategoryCode = strings.TrimSpace(input.CategoryCode)
		sess.Draft.CustomCategoryLabel = strings.TrimSpace(input.CustomCategoryLabel)
		return nil
	})
}

// CommitmentInput 对应承诺步骤的可选字段，都允许为空。
type CommitmentInput struct {
	Motivation         string
	CelebrationMessage string
}

// UpdateCommitment 更新动机与庆祝语
func (s *WizardService) UpdateCommitment(id string, input CommitmentInput) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		sess.Draft.Motivation = strings.TrimSpace(input.Motivation)
		sess.Draft.CelebrationMessage = strings.TrimSpace(input.CelebrationMessage)
		return nil
	})
}

// stepIndex 返回步骤序号，未知步骤返回 -1。
func stepIndex(step WizardStep) int {
	for i, s := range wizardSteps {
		if s == step {
			return i
		}
	}
	return -1
}

// advanceBlocker 是纯函数：只读草稿状态，返回阻止前进的原因。
// 返回 nil 表示当前步骤允许前进；review 为终点，始终返回提示。
func advanceBlocker(sess *WizardSession) *ValidationError {
	switch sess.Step {
	case StepIntent:
		if strings.TrimSpace(sess.Draft.Title) == "" {
			return &ValidationError{
				Hint:   "请先填写目标标题",
				HintEN: "add a goal title to continue",
			}
		}
		if !sess.Draft.CategoryResolved() {
			return &ValidationError{
				Hint:   "请选择目标分类",
				HintEN: "pick a goal category to continue",
			}
		}
		return nil
	case StepPrompts:
		if sess.Draft.ActiveQuestionCount() == 0 {
			return &ValidationError{
				Hint:   "至少添加一个追踪问题",
				HintEN: "add at least one question to continue",
			}
		}
		return nil
	case StepRhythm:
		return validateScheduleDraft(sess.Draft.Schedule)
	case StepCommitment:
		// 承诺步骤可留空，永远不拦截
		return nil
	case StepReview:
		return &ValidationError{
			Hint:   "已是最后一步，请提交目标",
			HintEN: "review is the last step, commit the goal",
		}
	}
	return &ValidationError{
		Hint:   "未知的向导步骤",
		HintEN: "unknown wizard step",
	}
}

// CanAdvance 判断会话当前步骤能否前进
func (s *WizardService) CanAdvance(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[strings.TrimSpace(id)]
	if !ok {
		return false, ErrWizardSessionNotFound
	}
	return advanceBlocker(sess) == nil, nil
}

// AdvanceHint 返回当前步骤的前进提示，可前进时为 nil。
func (s *WizardService) AdvanceHint(id string) (*ValidationError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrWizardSessionNotFound
	}
	return advanceBlocker(sess), nil
}

// Forward 前进一步；在 review 步骤改为提交目标。
// 校验不通过时返回 *ValidationError，会话保持原步骤不变。
func (s *WizardService) Forward(ctx context.Context, id string) (*WizardSession, *db.Goal, error) {
	s.mu.Lock()
	sess, ok := s.sessions[strings.TrimSpace(id)]
	if !ok {
		s.mu.Unlock()
		return nil, nil, ErrWizardSessionNotFound
	}

	if sess.Step == StepReview {
		s.mu.Unlock()
		goal, err := s.Commit(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return nil, goal, nil
	}

	if blocker := advanceBlocker(sess); blocker != nil {
		s.mu.Unlock()
		return nil, nil, blocker
	}

	idx := stepIndex(sess.Step)
	sess.Step = wizardSteps[idx+1]
	sess.UpdatedAt = time.Now()
	snapshot := sess.clone()
	s.mu.Unlock()
	return snapshot, nil, nil
}

// Back 回退一步；已在第一步时保持不动。
func (s *WizardService) Back(id string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		if idx := stepIndex(sess.Step); idx > 0 {
			sess.Step = wizardSteps[idx-1]
		}
		return nil
	})
}

// Commit 校验整个草稿并持久化为目标。
// 成功后会话被丢弃；失败时会话原样保留，调用方可修正后重试。
func (s *WizardService) Commit(ctx context.Context, id string) (*db.Goal, error) {
	s.mu.Lock()
	key := strings.TrimSpace(id)
	sess, ok := s.sessions[key]
	if !ok {
		s.mu.Unlock()
		return nil, ErrWizardSessionNotFound
	}
	draft := sess.Draft.Clone()
	s.mu.Unlock()

	if verr := validateGoalDraft(&draft); verr != nil {
		return nil, verr
	}

	// 持久化在锁外进行，避免数据库耗时阻塞其他会话
	goal, err := s.goals.CommitDraft(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("commit goal draft: %w", err)
	}

	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	return goal, nil
}

// PruneIdleSessions 清理空闲超过 ttl 的会话，返回清理数量。
// 由后台每日任务调用，ttl<=0 时使用默认值。
func (s *WizardService) PruneIdleSessions(ttl time.Duration) int {
	if ttl <= 0 {
		ttl = wizardSessionIdleTTL
	}
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			pruned++
		}
	}
	return pruned
}

// SessionCount 返回存活会话数量，主要用于健康检查与测试。
func (s *WizardService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
