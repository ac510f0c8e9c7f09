package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stridelog/internal/locale"
	"github.com/stridelog/internal/service"
)

const dateFormat = "2006-01-02"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondValidationError 按请求语言返回校验提示。
// language 为空时回退到请求语言协商结果。
func respondValidationError(c *gin.Context, verr *service.ValidationError, language string) {
	if language == "" {
		language = requestLanguage(c)
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error": locale.Pick(language, verr.HintEN, verr.Hint),
		"hint": gin.H{
			"zh": verr.Hint,
			"en": verr.HintEN,
		},
	})
}

// respondServiceError 把服务层错误翻译成 HTTP 响应。
// *ValidationError 映射为 400，其余交给 fallback。
func respondServiceError(c *gin.Context, err error, language string, fallback func(error)) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		respondValidationError(c, verr, language)
		return
	}
	fallback(err)
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parseOptionalDate(value string) (*time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, true
	}

	t, err := time.ParseInLocation(dateFormat, value, time.Local)
	if err != nil {
		return nil, false
	}

	return &t, true
}
