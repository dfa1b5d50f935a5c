package cache

import (
	"context"
	"log"
	"time"

	"github.com/aurelle/picflow/database/models"
)

// Helper 图片缓存助手，封装元数据与小图字节的缓存读写
type Helper struct {
	provider     Provider
	metadataTTL  time.Duration
	imageDataTTL time.Duration
	maxImageSize int64
}

// NewHelper 创建缓存助手
// maxImageSizeKB 以上的图片数据不缓存，避免大对象挤掉热数据
func NewHelper(provider Provider, metadataTTLSec, imageDataTTLSec int, maxImageSizeKB int64) *Helper {
	if metadataTTLSec <= 0 {
		metadataTTLSec = 3600
	}
	if imageDataTTLSec <= 0 {
		imageDataTTLSec = 1800
	}
	if maxImageSizeKB <= 0 {
		maxImageSizeKB = 512
	}
	return &Helper{
		provider:     provider,
		metadataTTL:  time.Duration(metadataTTLSec) * time.Second,
		imageDataTTL: time.Duration(imageDataTTLSec) * time.Second,
		maxImageSize: maxImageSizeKB * 1024,
	}
}

func pictureKey(identifier string) string {
	return "picture:meta:" + identifier
}

func pictureDataKey(storagePath string) string {
	return "picture:data:" + storagePath
}

// CachePicture 缓存图片元数据
func (h *Helper) CachePicture(ctx context.Context, picture *models.Picture) error {
	if h == nil || h.provider == nil {
		return nil
	}
	return h.provider.Set(ctx, pictureKey(picture.Identifier), picture, h.metadataTTL)
}

// GetCachedPicture 获取缓存的图片元数据
func (h *Helper) GetCachedPicture(ctx context.Context, identifier string) (*models.Picture, error) {
	if h == nil || h.provider == nil {
		return nil, ErrCacheMiss
	}
	var picture models.Picture
	if err := h.provider.Get(ctx, pictureKey(identifier), &picture); err != nil {
		return nil, err
	}
	return &picture, nil
}

// InvalidatePicture 删除图片元数据缓存
func (h *Helper) InvalidatePicture(ctx context.Context, identifier string) error {
	if h == nil || h.provider == nil {
		return nil
	}
	return h.provider.Delete(ctx, pictureKey(identifier))
}

// CachePictureData 缓存渲染版本字节，超过上限的直接跳过
func (h *Helper) CachePictureData(ctx context.Context, storagePath string, data []byte) error {
	if h == nil || h.provider == nil {
		return nil
	}
	if int64(len(data)) > h.maxImageSize {
		return nil
	}
	return h.provider.Set(ctx, pictureDataKey(storagePath), data, h.imageDataTTL)
}

// GetCachedPictureData 获取缓存的渲染版本字节
func (h *Helper) GetCachedPictureData(ctx context.Context, storagePath string) ([]byte, error) {
	if h == nil || h.provider == nil {
		return nil, ErrCacheMiss
	}
	var data []byte
	if err := h.provider.Get(ctx, pictureDataKey(storagePath), &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrCacheMiss
	}
	return data, nil
}

// InvalidatePictureData 删除渲染版本字节缓存
func (h *Helper) InvalidatePictureData(ctx context.Context, storagePaths ...string) {
	if h == nil || h.provider == nil {
		return
	}
	for _, p := range storagePaths {
		if err := h.provider.Delete(ctx, pictureDataKey(p)); err != nil {
			// 缓存清理失败只记录，不影响主流程
			log.Printf("[Cache] Failed to invalidate %s: %v", p, err)
		}
	}
}
