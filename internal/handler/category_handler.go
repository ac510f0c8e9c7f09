package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stridelog/internal/locale"
	"github.com/stridelog/internal/service"
)

// ListCategories 返回分类列表及各分类下的目标数
func (a *API) ListCategories(c *gin.Context) {
	language := requestLanguage(c)

	categories, err := a.categories.List()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取分类列表失败")
		return
	}

	items := make([]gin.H, 0, len(categories))
	for _, category := range categories {
		label := category.Name
		if category.Builtin {
			label = locale.CategoryLabel(language, category.Name)
		}
		items = append(items, gin.H{
			"id":         category.ID,
			"name":       category.Name,
			"label":      label,
			"slug":       category.Slug,
			"builtin":    category.Builtin,
			"goal_count": category.GoalCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{"categories": items})
}

// CreateCategory 新建自定义分类
func (a *API) CreateCategory(c *gin.Context) {
	var payload struct {
		Name string `json:"name" binding:"required"`
	}
	if !bindJSON(c, &payload, "请填写分类名称") {
		return
	}

	category, err := a.categories.Create(payload.Name)
	if err != nil {
		a.handleCategoryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"category": gin.H{
			"id":      category.ID,
			"name":    category.Name,
			"slug":    category.Slug,
			"builtin": category.Builtin,
		},
	})
}

// DeleteCategory 删除自定义分类，内置或仍被使用的分类不可删
func (a *API) DeleteCategory(c *gin.Context) {
	categoryID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的分类ID")
		return
	}

	if err := a.categories.Delete(categoryID); err != nil {
		a.handleCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (a *API) handleCategoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCategoryExists):
		respondError(c, http.StatusConflict, "分类已存在")
	case errors.Is(err, service.ErrCategoryNotFound):
		respondError(c, http.StatusNotFound, "分类不存在")
	case errors.Is(err, service.ErrCategoryBuiltin):
		respondError(c, http.StatusBadRequest, "内置分类不能删除")
	case errors.Is(err, service.ErrCategoryInUse):
		respondError(c, http.StatusConflict, "仍有目标在使用该分类")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
