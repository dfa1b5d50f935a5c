package pictures

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aurelle/picflow/api/common"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UpdatePicture 更新图片的用户可编辑字段
// PATCH /api/pictures/:id
// 只接受 title/rating/isPublic/collectionId，其余键一律忽略
func (h *Handler) UpdatePicture(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid picture id")
		return
	}

	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	updates := make(map[string]interface{})

	if v, ok := raw["title"]; ok {
		title, ok := v.(string)
		if !ok || title == "" {
			common.RespondError(c, http.StatusBadRequest, "Title must be a non-empty string")
			return
		}
		updates["title"] = title
	}

	if v, ok := raw["rating"]; ok {
		rating, ok := v.(float64)
		if !ok || rating < 1 || rating > 5 || rating != float64(int(rating)) {
			common.RespondError(c, http.StatusBadRequest, "Rating must be an integer between 1 and 5")
			return
		}
		updates["rating"] = int(rating)
	}

	if v, ok := raw["isPublic"]; ok {
		isPublic, ok := v.(bool)
		if !ok {
			common.RespondError(c, http.StatusBadRequest, "isPublic must be a boolean")
			return
		}
		updates["is_public"] = isPublic
	}

	if v, ok := raw["collectionId"]; ok {
		switch value := v.(type) {
		case nil:
			updates["collection_id"] = nil
		case float64:
			updates["collection_id"] = uint(value)
		default:
			common.RespondError(c, http.StatusBadRequest, "collectionId must be a number or null")
			return
		}
	}

	if len(updates) == 0 {
		common.RespondError(c, http.StatusBadRequest, "No editable fields in request")
		return
	}

	picture, err := h.repo.UpdateEditable(uint(id), updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.RespondError(c, http.StatusNotFound, "Picture not found")
			return
		}
		common.RespondError(c, http.StatusInternalServerError, "Failed to update picture")
		return
	}

	if h.cacheHelper != nil {
		_ = h.cacheHelper.InvalidatePicture(c.Request.Context(), picture.Identifier)
	}

	common.RespondSuccess(c, toView(picture))
}
