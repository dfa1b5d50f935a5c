package pictures

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aurelle/picflow/api/common"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetPicture 获取单张图片的完整表示
// GET /api/pictures/:id
func (h *Handler) GetPicture(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid picture id")
		return
	}

	picture, err := h.repo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.RespondError(c, http.StatusNotFound, "Picture not found")
			return
		}
		common.RespondError(c, http.StatusInternalServerError, "Failed to load picture")
		return
	}

	common.RespondSuccess(c, toView(picture))
}
