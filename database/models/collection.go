package models

import "gorm.io/gorm"

// Collection 图片集合（文件夹式分组）
type Collection struct {
	gorm.Model
	Name string `gorm:"uniqueIndex:idx_collection_name;not null"`

	Pictures []*Picture `gorm:"foreignKey:CollectionID"`
}
