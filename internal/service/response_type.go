package service

// ResponseType 描述问题的回答形式，取值为封闭枚举。
// 切换类型时与类型相关的字段（选项、数值范围）会重置为该类型的默认值。
type ResponseType string

const (
	ResponseYesNo          ResponseType = "yes_no"
	ResponseNumeric        ResponseType = "numeric"
	ResponseScale          ResponseType = "scale"
	ResponseSlider         ResponseType = "slider"
	ResponseMultipleChoice ResponseType = "multiple_choice"
	ResponseFreeText       ResponseType = "free_text"
	ResponseTimeOfDay      ResponseType = "time_of_day"
)

// AllResponseTypes 返回全部合法类型，顺序即向导中展示顺序。
func AllResponseTypes() []ResponseType {
	return []ResponseType{
		ResponseYesNo,
		ResponseNumeric,
		ResponseScale,
		ResponseSlider,
		ResponseMultipleChoice,
		ResponseFreeText,
		ResponseTimeOfDay,
	}
}

// Valid 判断类型是否属于枚举
func (t ResponseType) Valid() bool {
	switch t {
	case ResponseYesNo, ResponseNumeric, ResponseScale, ResponseSlider,
		ResponseMultipleChoice, ResponseFreeText, ResponseTimeOfDay:
		return true
	}
	return false
}

// HasRange 数值类类型需要 min/max 边界
func (t ResponseType) HasRange() bool {
	switch t {
	case ResponseNumeric, ResponseScale, ResponseSlider:
		return true
	}
	return false
}

// HasOptions 仅多选类型拥有选项列表
func (t ResponseType) HasOptions() bool {
	return t == ResponseMultipleChoice
}

// DefaultRange 返回类型的默认数值边界；非数值类型返回 (0, 0)。
func (t ResponseType) DefaultRange() (float64, float64) {
	switch t {
	case ResponseNumeric:
		return 0, 100
	case ResponseScale:
		return 1, 10
	case ResponseSlider:
		return 0, 100
	}
	return 0, 0
}
