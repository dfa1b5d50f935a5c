package collections

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aurelle/picflow/api/common"
	repo "github.com/aurelle/picflow/database/repo/collections"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 集合相关接口处理器
type Handler struct {
	repo *repo.Repository
}

// NewHandler 创建处理器
func NewHandler(collectionRepo *repo.Repository) *Handler {
	return &Handler{repo: collectionRepo}
}

type collectionView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// ListCollections 获取全部集合
// GET /api/collections
func (h *Handler) ListCollections(c *gin.Context) {
	result, err := h.repo.List()
	if err != nil {
		common.RespondError(c, http.StatusInternalServerError, "Failed to list collections")
		return
	}

	views := make([]collectionView, len(result))
	for i, col := range result {
		views[i] = collectionView{ID: col.ID, Name: col.Name}
	}
	common.RespondSuccess(c, views)
}

// CreateCollection 创建集合，名称已存在时返回已有集合
// POST /api/collections
func (h *Handler) CreateCollection(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Collection name is required")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		common.RespondError(c, http.StatusBadRequest, "Collection name is required")
		return
	}

	collection, err := h.repo.FindOrCreate(name)
	if err != nil {
		common.RespondError(c, http.StatusInternalServerError, "Failed to create collection")
		return
	}

	common.RespondSuccess(c, collectionView{ID: collection.ID, Name: collection.Name})
}

// DeleteCollection 删除集合，所属图片保留并退回未分组
// DELETE /api/collections/:id
func (h *Handler) DeleteCollection(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid collection id")
		return
	}

	if _, err := h.repo.GetByID(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.RespondError(c, http.StatusNotFound, "Collection not found")
			return
		}
		common.RespondError(c, http.StatusInternalServerError, "Failed to load collection")
		return
	}

	if err := h.repo.Delete(uint(id)); err != nil {
		common.RespondError(c, http.StatusInternalServerError, "Failed to delete collection")
		return
	}

	common.RespondSuccessMessage(c, "Collection deleted", nil)
}
