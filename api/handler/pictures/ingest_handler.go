package pictures

import (
	"log"
	"net/http"

	"github.com/aurelle/picflow/api/common"
	"github.com/aurelle/picflow/internal/ingest"
	"github.com/aurelle/picflow/utils"
	"github.com/gin-gonic/gin"
)

// IngestPicture 摄取一张图片
// POST /api/pictures/:hash/:filename?collection=name，请求体为原始图片字节
func (h *Handler) IngestPicture(c *gin.Context) {
	hash := c.Param("hash")
	filename := c.Param("filename")
	if hash == "" || filename == "" {
		common.RespondErrorCode(c, http.StatusBadRequest, common.CodeValidation, "Hash and filename are required")
		return
	}

	collectionName := c.Query("collection")

	result, err := h.ingestService.Ingest(c.Request.Context(), hash, c.Request.Body, filename, collectionName)
	if err != nil {
		h.respondIngestError(c, filename, err)
		return
	}

	picture := result.Picture
	common.RespondSuccess(c, gin.H{
		"id":            picture.ID,
		"title":         picture.Title,
		"src":           picture.ThumbURL,
		"fullscreenUrl": picture.DetailURL,
		"isDuplicate":   result.IsDuplicate,
	})
}

// respondIngestError 按错误分类返回机器可读的失败原因
func (h *Handler) respondIngestError(c *gin.Context, filename string, err error) {
	switch {
	case ingest.IsValidation(err):
		common.RespondErrorCode(c, http.StatusBadRequest, common.CodeValidation, err.Error())
	case ingest.IsTransient(err):
		log.Printf("[Ingest] Transient failure for %s: %v", utils.SanitizeLogFilename(filename), err)
		common.RespondErrorCode(c, http.StatusServiceUnavailable, common.CodeTransient, "Storage backend temporarily unavailable")
	default:
		log.Printf("[Ingest] Unexpected failure for %s: %v", utils.SanitizeLogFilename(filename), err)
		common.RespondErrorCode(c, http.StatusInternalServerError, common.CodeTransient, "Internal server error")
	}
}
