package service

import (
	"strings"

	"github.com/google/uuid"
)

// 问题编辑器：同一时刻只编辑一个问题草稿，状态挂在向导会话上。
// 新建问题 Composer.ID 为空，保存时分配 uuid 并追加；
// 编辑已有问题时保存会原位覆盖，列表位置不变。

// BeginQuestion 打开空白编辑器，默认是/否类型。
func (s *WizardService) BeginQuestion(id string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		draft := NewQuestionDraft()
		sess.Composer = &draft
		sess.composerSaved = nil
		return nil
	})
}

// EditQuestion 载入已有问题的拷贝进入编辑器。
// 原始配置同时快照到 composerSaved，切换类型后再选回原类型时恢复。
func (s *WizardService) EditQuestion(id, questionID string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		idx := sess.Draft.questionIndex(questionID)
		if idx < 0 {
			return &ValidationError{
				Hint:   "问题不存在",
				HintEN: "question not found",
			}
		}
		loaded := sess.Draft.Questions[idx].Clone()
		saved := sess.Draft.Questions[idx].Clone()
		sess.Composer = &loaded
		sess.composerSaved = &saved
		return nil
	})
}

// composerOf 取出当前编辑器状态，未开启时报错。
func composerOf(sess *WizardSession) (*QuestionDraft, error) {
	if sess.Composer == nil {
		return nil, ErrComposerInactive
	}
	return sess.Composer, nil
}

// SetComposerPrompt 更新问题文案
func (s *WizardService) SetComposerPrompt(id, prompt string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		composer, err := composerOf(sess)
		if err != nil {
			return err
		}
		composer.Prompt = strings.TrimSpace(prompt)
		return nil
	})
}

// SetComposerResponseType 切换回答类型。
// 切到新类型时选项与数值范围重置为该类型默认值；
// 编辑场景下选回问题原本的类型则恢复保存过的配置。
func (s *WizardService) SetComposerResponseType(id string, t ResponseType) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		composer, err := composerOf(sess)
		if err != nil {
			return err
		}
		if !t.Valid() {
			return &ValidationError{
				Hint:   "不支持的回答类型",
				HintEN: "unsupported response type",
			}
		}
		if t == composer.ResponseType {
			return nil
		}
		if sess.composerSaved != nil && sess.composerSaved.ResponseType == t {
			composer.ResponseType = t
			composer.Options = append([]string(nil), sess.composerSaved.Options...)
			composer.MinValue = sess.composerSaved.MinValue
			composer.MaxValue = sess.composerSaved.MaxValue
			return nil
		}
		composer.applyTypeDefaults(t)
		return nil
	})
}

// SetComposerOptions 覆盖选项列表，忽略大小写去重并保留首次写法。
func (s *WizardService) SetComposerOptions(id string, options []string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		composer, err := composerOf(sess)
		if err != nil {
			return err
		}
		composer.Options = dedupOptions(options)
		return nil
	})
}

// AddComposerOption 追加一个选项；与已有选项重复（忽略大小写）时为空操作。
func (s *WizardService) AddComposerOption(id, option string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		composer, err := composerOf(sess)
		if err != nil {
			return err
		}
		composer.Options = dedupOptions(append(composer.Options, option))
		return nil
	})
}

// RemoveComposerOption 按忽略大小写匹配删除选项
func (s *WizardService) RemoveComposerOption(id, option string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		composer, err := composerOf(sess)
		if err != nil {
			return err
		}
		target := strings.ToLower(strings.TrimSpace(option))
		for i, existing := range composer.Options {
			if strings.ToLower(existing) == target {
				composer.Options = append(composer.Options[:i], composer.Options[i+1:]...)
				return nil
			}
		}
		return nil
	})
}

// SetComposerRange 更新数值边界。
// min>max 不在这里拦截，保存时统一校验并给出内联提示。
func (s *WizardService) SetComposerRange(id string, minValue, maxValue float64) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		composer, err := composerOf(sess)
		if err != nil {
			return err
		}
		composer.MinValue = minValue
		composer.MaxValue = maxValue
		return nil
	})
}

// SetComposerAllowEmpty 设置是否允许跳过
func (s *WizardService) SetComposerAllowEmpty(id string, allow bool) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		composer, err := composerOf(sess)
		if err != nil {
			return err
		}
		composer.AllowEmpty = allow
		return nil
	})
}

// SetComposerActive 设置问题启用状态
func (s *WizardService) SetComposerActive(id string, active bool) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		composer, err := composerOf(sess)
		if err != nil {
			return err
		}
		composer.Active = active
		return nil
	})
}

// CanSaveQuestion 判断编辑器当前内容能否保存
func (s *WizardService) CanSaveQuestion(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[strings.TrimSpace(id)]
	if !ok {
		return false, ErrWizardSessionNotFound
	}
	if sess.Composer == nil {
		return false, nil
	}
	return validateQuestionDraft(*sess.Composer) == nil, nil
}

// SaveQuestion 校验并落入草稿列表。
// 编辑已有问题时原位更新保持顺序；新问题分配 uuid 后追加到末尾。
// 保存成功后编辑器复位。
func (s *WizardService) SaveQuestion(id string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		composer, err := composerOf(sess)
		if err != nil {
			return err
		}

		composer.Options = dedupOptions(composer.Options)
		if verr := validateQuestionDraft(*composer); verr != nil {
			return verr
		}

		saved := composer.Clone()
		if saved.ID == "" {
			saved.ID = uuid.NewString()
			sess.Draft.Questions = append(sess.Draft.Questions, saved)
		} else {
			idx := sess.Draft.questionIndex(saved.ID)
			if idx < 0 {
				return &ValidationError{
					Hint:   "问题不存在",
					HintEN: "question not found",
				}
			}
			sess.Draft.Questions[idx] = saved
		}

		sess.Composer = nil
		sess.composerSaved = nil
		return nil
	})
}

// RemoveQuestion 从草稿列表删除问题；若该问题正在编辑则一并复位编辑器。
func (s *WizardService) RemoveQuestion(id, questionID string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		idx := sess.Draft.questionIndex(questionID)
		if idx < 0 {
			return &ValidationError{
				Hint:   "问题不存在",
				HintEN: "question not found",
			}
		}
		sess.Draft.Questions = append(sess.Draft.Questions[:idx], sess.Draft.Questions[idx+1:]...)
		if sess.Composer != nil && sess.Composer.ID == questionID {
			sess.Composer = nil
			sess.composerSaved = nil
		}
		return nil
	})
}

// ResetComposer 丢弃编辑器内容，幂等：只清空编辑器局部状态，
// 已保存的问题列表不受影响。
func (s *WizardService) ResetComposer(id string) (*WizardSession, error) {
	return s.withSession(id, func(sess *WizardSession) error {
		sess.Composer = nil
		sess.composerSaved = nil
		return nil
	})
}
