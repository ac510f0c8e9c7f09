package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stridelog/internal/db"
	"github.com/stridelog/internal/service"
)

// ListTrash 返回回收站条目，最近删除的在前
func (a *API) ListTrash(c *gin.Context) {
	items, err := a.trash.List()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取回收站失败")
		return
	}

	payload := make([]gin.H, 0, len(items))
	for _, item := range items {
		payload = append(payload, trashItemToPayload(item))
	}

	c.JSON(http.StatusOK, gin.H{"items": payload, "total": len(payload)})
}

// GetTrashItem 返回条目详情与快照预览
func (a *API) GetTrashItem(c *gin.Context) {
	itemID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的回收站条目ID")
		return
	}

	item, snapshot, err := a.trash.Preview(itemID)
	if err != nil {
		a.handleTrashError(c, err)
		return
	}

	questions := make([]gin.H, 0, len(snapshot.Questions))
	for _, q := range snapshot.Questions {
		questions = append(questions, questionToPayload(q))
	}

	c.JSON(http.StatusOK, gin.H{
		"item": trashItemToPayload(*item),
		"snapshot": gin.H{
			"goal":          goalToPayload(snapshot.Goal),
			"questions":     questions,
			"checkin_count": len(snapshot.CheckIns),
		},
	})
}

// RestoreTrashItem 从快照重建目标。
// reactivate 为 true 时恢复为活跃状态并重新安排提醒。
func (a *API) RestoreTrashItem(c *gin.Context) {
	itemID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的回收站条目ID")
		return
	}

	var payload struct {
		Reactivate bool `json:"reactivate"`
	}
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}
	}

	goal, err := a.trash.RestoreFromTrash(itemID, payload.Reactivate)
	if err != nil {
		a.handleTrashError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"restored": true,
		"goal":     goalToPayload(*goal),
	})
}

// DeleteTrashItem 彻底删除回收站条目，不可恢复
func (a *API) DeleteTrashItem(c *gin.Context) {
	itemID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的回收站条目ID")
		return
	}

	if err := a.trash.PermanentlyDelete(itemID); err != nil {
		a.handleTrashError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// PurgeTrash 清理超过保留期的条目
func (a *API) PurgeTrash(c *gin.Context) {
	var payload struct {
		OlderThanDays int `json:"older_than_days"`
	}
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}
	}

	purged, err := a.trash.PurgeOldItems(payload.OlderThanDays)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "清理回收站失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"purged": purged})
}

func (a *API) handleTrashError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTrashItemNotFound):
		respondError(c, http.StatusNotFound, "回收站条目不存在")
	case errors.Is(err, service.ErrGoalNotFound):
		respondError(c, http.StatusNotFound, "目标不存在")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}

func trashItemToPayload(item db.GoalTrashItem) gin.H {
	expiresAt := item.TrashedAt.AddDate(0, 0, db.TrashRetentionDays)
	return gin.H{
		"id":         item.ID,
		"goal_title": item.GoalTitle,
		"note":       item.Note,
		"trashed_at": item.TrashedAt.Format(time.RFC3339),
		"expires_at": expiresAt.Format(time.RFC3339),
	}
}
