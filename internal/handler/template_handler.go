package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stridelog/internal/locale"
	"github.com/stridelog/internal/service"
)

// ListTemplates 返回问题模板目录，category 为空时返回全部
func (a *API) ListTemplates(c *gin.Context) {
	language := requestLanguage(c)
	templates := service.PromptTemplateList(c.Query("category"))

	items := make([]gin.H, 0, len(templates))
	for _, tpl := range templates {
		item := gin.H{
			"id":             tpl.ID,
			"category_code":  tpl.CategoryCode,
			"category_label": locale.CategoryLabel(language, tpl.CategoryCode),
			"name":           tpl.Name,
			"prompt":         tpl.Prompt,
			"response_type":  tpl.ResponseType,
		}
		if tpl.ResponseType.HasOptions() {
			item["options"] = tpl.Options
		}
		if tpl.ResponseType.HasRange() {
			item["min_value"] = tpl.MinValue
			item["max_value"] = tpl.MaxValue
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"templates": items})
}
