package service

import "strings"

// ValidationError 表示可直接回显给用户的校验失败。
// Hint 为中文提示，HintEN 为英文提示，由 handler 依据请求语言挑选。
type ValidationError struct {
	Hint   string
	HintEN string
}

func (e *ValidationError) Error() string {
	return e.Hint
}

// Provenance 标记问题草稿的来源
const (
	ProvenanceManual     = "manual"
	ProvenanceTemplate   = "template"
	ProvenanceSuggestion = "suggestion"
)

// CategoryCodeCustom 表示用户自定义分类，此时需要提供非空的自定义名称。
const CategoryCodeCustom = "custom"

// builtinCategoryCodes 为内置分类代码，顺序即客户端展示顺序。
var builtinCategoryCodes = []string{
	"health",
	"fitness",
	"learning",
	"work",
	"mindfulness",
	"finance",
	"social",
}

// BuiltinCategoryCodes 返回内置分类代码的拷贝
func BuiltinCategoryCodes() []string {
	return append([]string(nil), builtinCategoryCodes...)
}

// IsBuiltinCategory 判断代码是否为内置分类
func IsBuiltinCategory(code string) bool {
	for _, c := range builtinCategoryCodes {
		if c == code {
			return true
		}
	}
	return false
}

// QuestionDraft 是向导里未持久化的追踪问题。
// ID 在首次保存进草稿列表时分配（uuid），编辑场景用它定位原位置。
type QuestionDraft struct {
	ID           string
	Prompt       string
	ResponseType ResponseType
	Options      []string
	MinValue     float64
	MaxValue     float64
	AllowEmpty   bool
	Active       bool
	Provenance   string
}

// NewQuestionDraft 返回编辑器默认问题：是/否类型，启用状态。
func NewQuestionDraft() QuestionDraft {
	return QuestionDraft{
		ResponseType: ResponseYesNo,
		Active:       true,
		Provenance:   ProvenanceManual,
	}
}

// applyTypeDefaults 将类型相关字段重置为新类型的默认配置
func (q *QuestionDraft) applyTypeDefaults(t ResponseType) {
	q.ResponseType = t
	q.Options = nil
	q.MinValue, q.MaxValue = t.DefaultRange()
}

// Clone 返回深拷贝
func (q QuestionDraft) Clone() QuestionDraft {
	cloned := q
	cloned.Options = append([]string(nil), q.Options...)
	return cloned
}

// dedupOptions 清洗选项列表：去掉首尾空白与空项，
// 按忽略大小写去重且保留首次出现的写法与顺序。
func dedupOptions(options []string) []string {
	seen := make(map[string]bool, len(options))
	cleaned := make([]string, 0, len(options))
	for _, opt := range options {
		trimmed := strings.TrimSpace(opt)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}

// validateQuestionDraft 校验单个问题草稿，保存与提交共用同一套判定。
func validateQuestionDraft(q QuestionDraft) *ValidationError {
	if strings.TrimSpace(q.Prompt) == "" {
		return &ValidationError{
			Hint:   "请先填写问题内容",
			HintEN: "question prompt is required",
		}
	}
	if !q.ResponseType.Valid() {
		return &ValidationError{
			Hint:   "不支持的回答类型",
			HintEN: "unsupported response type",
		}
	}
	if q.ResponseType.HasOptions() && len(dedupOptions(q.Options)) == 0 {
		return &ValidationError{
			Hint:   "多选题至少需要一个选项",
			HintEN: "multiple choice needs at least one option",
		}
	}
	if q.ResponseType.HasRange() && q.MinValue > q.MaxValue {
		return &ValidationError{
			Hint:   "最小值不能大于最大值",
			HintEN: "min value cannot exceed max value",
		}
	}
	return nil
}

// GoalDraft 聚合一次目标创建流程的全部未提交状态。
type GoalDraft struct {
	Title               string
	Motivation          string
	CategoryCode        string
	CustomCategoryLabel string
	CelebrationMessage  string
	Questions           []QuestionDraft
	Schedule            ScheduleDraft
}

// NewGoalDraft 返回空草稿，节奏使用向导默认值。
func NewGoalDraft() GoalDraft {
	return GoalDraft{Schedule: NewScheduleDraft()}
}

// CategoryResolved 分类已确定：选择了内置分类，或自定义且名称非空。
func (d *GoalDraft) CategoryResolved() bool {
	code := strings.TrimSpace(d.CategoryCode)
	if code == "" {
		return false
	}
	if code == CategoryCodeCustom {
		return strings.TrimSpace(d.CustomCategoryLabel) != ""
	}
	return IsBuiltinCategory(code)
}

// ResolvedCategory 返回最终落库的分类标签以及是否为自定义分类。
func (d *GoalDraft) ResolvedCategory() (string, bool) {
	if strings.TrimSpace(d.CategoryCode) == CategoryCodeCustom {
		return strings.TrimSpace(d.CustomCategoryLabel), true
	}
	return strings.TrimSpace(d.CategoryCode), false
}

// ActiveQuestionCount 统计启用状态的问题数量
func (d *GoalDraft) ActiveQuestionCount() int {
	count := 0
	for _, q := range d.Questions {
		if q.Active {
			count++
		}
	}
	return count
}

// questionIndex 按 ID 定位问题草稿，找不到返回 -1。
func (d *GoalDraft) questionIndex(id string) int {
	for i, q := range d.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// Clone 返回深拷贝，供会话读接口与提交流程使用。
func (d GoalDraft) Clone() GoalDraft {
	cloned := d
	cloned.Questions = make([]QuestionDraft, len(d.Questions))
	for i, q := range d.Questions {
		cloned.Questions[i] = q.Clone()
	}
	cloned.Schedule = d.Schedule.Clone()
	return cloned
}

// validateGoalDraft 提交前整体校验，与向导分步校验保持同一语义。
func validateGoalDraft(d *GoalDraft) *ValidationError {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{
			Hint:   "请先填写目标标题",
			HintEN: "goal title is required",
		}
	}
	if !d.CategoryResolved() {
		return &ValidationError{
			Hint:   "请选择目标分类",
			HintEN: "pick a goal category",
		}
	}
	if d.ActiveQuestionCount() == 0 {
		return &ValidationError{
			Hint:   "至少需要一个启用的追踪问题",
			HintEN: "at least one active question is required",
		}
	}
	for _, q := range d.Questions {
		if err := validateQuestionDraft(q); err != nil {
			return err
		}
	}
	return validateScheduleDraft(d.Schedule)
}
