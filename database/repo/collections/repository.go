package collections

import (
	"errors"

	"github.com/aurelle/picflow/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository 集合仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindOrCreate 按名称获取集合，不存在则创建
// 并发创建同名集合时依赖唯一索引 + 回读收敛到同一行
func (r *Repository) FindOrCreate(name string) (*models.Collection, error) {
	var collection models.Collection
	err := r.db.Where("name = ?", name).First(&collection).Error
	if err == nil {
		return &collection, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	collection = models.Collection{Name: name}
	err = r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&collection).Error
	if err != nil {
		return nil, err
	}

	// OnConflict DoNothing 不回填已有行的主键，统一回读
	err = r.db.Where("name = ?", name).First(&collection).Error
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

// GetByID 通过主键获取集合
func (r *Repository) GetByID(id uint) (*models.Collection, error) {
	var collection models.Collection
	err := r.db.First(&collection, id).Error
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

// List 获取全部集合
func (r *Repository) List() ([]*models.Collection, error) {
	var result []*models.Collection
	err := r.db.Order("name ASC").Find(&result).Error
	return result, err
}

// Delete 删除集合，所属图片退回未分组状态
func (r *Repository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Picture{}).Where("collection_id = ?", id).
			UpdateColumn("collection_id", nil).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Collection{}, id).Error
	})
}
