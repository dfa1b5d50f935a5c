package pictures

import (
	"net/http"
	"strconv"

	"github.com/aurelle/picflow/api/common"
	"github.com/gin-gonic/gin"
)

// ListPictures 分页获取图片列表
// GET /api/pictures?page=1&limit=20&collection_id=3&search=sunset
func (h *Handler) ListPictures(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit > 100 {
		limit = 100
	}
	search := c.Query("search")

	var collectionID *uint
	if raw := c.Query("collection_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			common.RespondError(c, http.StatusBadRequest, "Invalid collection_id")
			return
		}
		id := uint(parsed)
		collectionID = &id
	}

	result, total, err := h.repo.List(collectionID, search, page, limit)
	if err != nil {
		common.RespondError(c, http.StatusInternalServerError, "Failed to list pictures")
		return
	}

	views := make([]pictureView, len(result))
	for i, p := range result {
		views[i] = toView(p)
	}

	common.RespondSuccess(c, gin.H{
		"pictures": views,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}
