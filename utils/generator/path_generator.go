package generator

import (
	"fmt"
	"time"
)

// Rendition 派生图种类
type Rendition string

const (
	RenditionOriginal Rendition = "original"
	RenditionThumb    Rendition = "thumb"
	RenditionDetail   Rendition = "detail"
)

// PathGenerator 分层路径生成器
type PathGenerator struct{}

// NewPathGenerator 创建路径生成器
func NewPathGenerator() *PathGenerator {
	return &PathGenerator{}
}

// StorageIdentifiers 存储标识对
type StorageIdentifiers struct {
	Identifier  string // 业务标识符，如 a1b2c3d4e5f6（不含扩展名）
	StoragePath string // 存储路径，如 original/2024/01/15/a1b2c3d4e5f6.jpg
}

// GenerateOriginalIdentifiers 生成原图的 identifier 和 storage_path
// 原图按上传时的字节原样存储，扩展名沿用探测到的类型
func (pg *PathGenerator) GenerateOriginalIdentifiers(fileHash string, ext string, uploadTime time.Time) StorageIdentifiers {
	hash := fileHash[:12]
	datePath := uploadTime.Format("2006/01/02")

	return StorageIdentifiers{
		Identifier:  hash,
		StoragePath: fmt.Sprintf("original/%s/%s%s", datePath, hash, ext),
	}
}

// GenerateRenditionIdentifiers 生成缩略图/大图的 identifier 和 storage_path
func (pg *PathGenerator) GenerateRenditionIdentifiers(fileHash string, rendition Rendition, uploadTime time.Time) StorageIdentifiers {
	hash := fileHash[:12]
	datePath := uploadTime.Format("2006/01/02")
	identifier := fmt.Sprintf("%s_%s", hash, rendition)

	return StorageIdentifiers{
		Identifier:  identifier,
		StoragePath: fmt.Sprintf("%s/%s/%s.webp", rendition, datePath, identifier),
	}
}
