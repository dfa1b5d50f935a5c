package models

import (
	"time"

	"gorm.io/gorm"
)

// Picture 图片资源记录
// FileHash 上的唯一索引是去重账本的核心约束：同一份字节只会有一行
type Picture struct {
	gorm.Model
	Identifier   string `gorm:"uniqueIndex:idx_identifier;not null"`
	FileHash     string `gorm:"uniqueIndex:idx_filehash;not null"`
	Title        string `gorm:"not null"`
	OriginalName string `gorm:"not null"`
	FileSize     int64  `gorm:"not null"`
	MimeType     string `gorm:"not null"`
	Width        int
	Height       int

	// 拍摄元数据（EXIF），缺失时 TakenAt 回退为上传时间
	TakenAt   *time.Time
	Camera    string
	Lens      string
	Latitude  *float64
	Longitude *float64

	// 三种渲染版本的存储路径与访问链接
	OriginalPath string `gorm:"not null"`
	ThumbPath    string `gorm:"not null"`
	DetailPath   string `gorm:"not null"`
	OriginalURL  string `gorm:"not null"`
	ThumbURL     string `gorm:"not null"`
	DetailURL    string `gorm:"not null"`

	CollectionID *uint       `gorm:"index"`
	Collection   *Collection `gorm:"foreignKey:CollectionID"`

	IsPublic bool `gorm:"default:true;not null"`
	Rating   int  `gorm:"default:3;not null"`
}

// EditableFields 用户可编辑字段集合；只有这部分修改会触碰 UpdatedAt
// 其余簿记更新需使用 UpdateColumns 绕过时间戳
var EditableFields = []string{"title", "rating", "is_public", "collection_id"}
