package pictures

import (
	"fmt"

	"github.com/aurelle/picflow/database/models"
	"gorm.io/gorm"
)

// RepositoryInterface 图片仓库接口
type RepositoryInterface interface {
	// Create 创建图片记录；哈希冲突时返回 gorm.ErrDuplicatedKey
	Create(picture *models.Picture) error
	// GetByHash 通过内容哈希获取图片（去重账本查询）
	GetByHash(hash string) (*models.Picture, error)
	// GetByID 通过主键获取图片
	GetByID(id uint) (*models.Picture, error)
	// GetByIdentifier 通过标识符获取图片
	GetByIdentifier(identifier string) (*models.Picture, error)
	// List 分页获取图片列表
	List(collectionID *uint, search string, page, limit int) ([]*models.Picture, int64, error)
	// UpdateEditable 更新用户可编辑字段（会触碰 UpdatedAt）
	UpdateEditable(id uint, updates map[string]interface{}) (*models.Picture, error)
	// Delete 删除图片记录
	Delete(picture *models.Picture) error
}

// 确保 Repository 实现了 RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)

// Repository 图片仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 创建图片记录
// 唯一索引冲突原样透传给调用方，由摄取服务走回读路径
func (r *Repository) Create(picture *models.Picture) error {
	return r.db.Create(picture).Error
}

// GetByHash 通过内容哈希获取图片
func (r *Repository) GetByHash(hash string) (*models.Picture, error) {
	var picture models.Picture
	err := r.db.Where("file_hash = ?", hash).First(&picture).Error
	if err != nil {
		return nil, err
	}
	return &picture, nil
}

// GetByID 通过主键获取图片
func (r *Repository) GetByID(id uint) (*models.Picture, error) {
	var picture models.Picture
	err := r.db.Preload("Collection").First(&picture, id).Error
	if err != nil {
		return nil, err
	}
	return &picture, nil
}

// GetByIdentifier 通过标识符获取图片
func (r *Repository) GetByIdentifier(identifier string) (*models.Picture, error) {
	var picture models.Picture
	err := r.db.Where("identifier = ?", identifier).First(&picture).Error
	if err != nil {
		return nil, err
	}
	return &picture, nil
}

// List 分页获取图片列表
func (r *Repository) List(collectionID *uint, search string, page, limit int) ([]*models.Picture, int64, error) {
	query := r.db.Model(&models.Picture{})

	if collectionID != nil {
		query = query.Where("collection_id = ?", *collectionID)
	}

	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("original_name LIKE ? OR title LIKE ? OR file_hash LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if total == 0 {
		return []*models.Picture{}, 0, nil
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	offset := (page - 1) * limit

	var result []*models.Picture
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&result).Error
	if err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

// UpdateEditable 更新用户可编辑字段
// 只允许 models.EditableFields 中的列，其余键被丢弃；走 Updates 以更新 UpdatedAt
func (r *Repository) UpdateEditable(id uint, updates map[string]interface{}) (*models.Picture, error) {
	allowed := make(map[string]interface{}, len(updates))
	for _, field := range models.EditableFields {
		if v, ok := updates[field]; ok {
			allowed[field] = v
		}
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("no editable fields in update")
	}

	if err := r.db.Model(&models.Picture{}).Where("id = ?", id).Updates(allowed).Error; err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// Delete 删除图片记录
func (r *Repository) Delete(picture *models.Picture) error {
	err := r.db.Unscoped().Delete(picture).Error
	if err != nil {
		return fmt.Errorf("failed to delete picture: %w", err)
	}
	return nil
}
