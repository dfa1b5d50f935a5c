package pictures

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aurelle/picflow/api/common"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DeletePicture 删除图片记录及其存储对象
// DELETE /api/pictures/:id
func (h *Handler) DeletePicture(c *gin.Context) {
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

	if err := h.ingestService.Delete(c.Request.Context(), picture); err != nil {
		common.RespondError(c, http.StatusInternalServerError, "Failed to delete picture")
		return
	}

	common.RespondSuccessMessage(c, "Picture deleted", nil)
}
