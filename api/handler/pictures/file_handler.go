package pictures

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/aurelle/picflow/api/common"
	"github.com/aurelle/picflow/database/models"
	"github.com/aurelle/picflow/storage"
	"github.com/aurelle/picflow/utils"
	"github.com/aurelle/picflow/utils/generator"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	metaGroup        singleflight.Group
	fileFetchGroup   singleflight.Group
	metaFetchTimeout = 30 * time.Second
)

var errTemporaryFailure = errors.New("temporary failure, should be retried")

// ServeOriginal 提供原图
// GET /pictures/raw/:identifier
func (h *Handler) ServeOriginal(c *gin.Context) {
	h.serveRendition(c, generator.RenditionOriginal)
}

// ServeThumb 提供缩略图
// GET /pictures/thumb/:identifier
func (h *Handler) ServeThumb(c *gin.Context) {
	h.serveRendition(c, generator.RenditionThumb)
}

// ServeDetail 提供大图
// GET /pictures/detail/:identifier
func (h *Handler) ServeDetail(c *gin.Context) {
	h.serveRendition(c, generator.RenditionDetail)
}

func (h *Handler) serveRendition(c *gin.Context, rendition generator.Rendition) {
	identifier := c.Param("identifier")
	if identifier == "" {
		common.RespondError(c, http.StatusBadRequest, "Picture identifier is required")
		return
	}

	picture, err := h.fetchPictureMetadata(c.Request.Context(), identifier)
	if err != nil {
		h.handleMetadataError(c, utils.SanitizeLogMessage(identifier), err)
		return
	}

	if !picture.IsPublic {
		common.RespondError(c, http.StatusForbidden, "This picture is private")
		return
	}

	storagePath, contentType := renditionTarget(picture, rendition)
	if storagePath == "" {
		common.RespondError(c, http.StatusNotFound, "Rendition not available")
		return
	}

	// 检查缓存
	if data, err := h.cacheHelper.GetCachedPictureData(c.Request.Context(), storagePath); err == nil {
		h.servePictureData(c, picture, rendition, contentType, data)
		return
	}

	// 本地存储走 sendfile
	if opener, ok := h.storage.(storage.FileOpener); ok {
		if h.serveBySendfile(c, picture, rendition, storagePath, contentType, opener) {
			return
		}
	}

	// 远程存储
	data, err := h.fetchFromStorage(storagePath)
	if err != nil {
		log.Printf("[ServeRendition] Failed to get %s %s: %v", rendition, utils.SanitizeLogMessage(identifier), err)
		common.RespondError(c, http.StatusNotFound, "Picture file not found")
		return
	}

	h.servePictureData(c, picture, rendition, contentType, data)
}

// renditionTarget 按渲染种类选出存储路径与内容类型
func renditionTarget(p *models.Picture, rendition generator.Rendition) (string, string) {
	switch rendition {
	case generator.RenditionThumb:
		return p.ThumbPath, "image/webp"
	case generator.RenditionDetail:
		return p.DetailPath, "image/webp"
	default:
		return p.OriginalPath, p.MimeType
	}
}

// fetchPictureMetadata 查询图片元数据（缓存 + singleflight 防击穿）
func (h *Handler) fetchPictureMetadata(ctx context.Context, identifier string) (*models.Picture, error) {
	if picture, err := h.cacheHelper.GetCachedPicture(ctx, identifier); err == nil {
		return picture, nil
	}

	resultChan := metaGroup.DoChan(identifier, func() (interface{}, error) {
		picture, err := h.repo.GetByIdentifier(identifier)
		if err != nil {
			if isTransientError(err) {
				return nil, errTemporaryFailure
			}
			return nil, err
		}

		go func(p *models.Picture) {
			if h.cacheHelper == nil {
				return
			}
			if cacheErr := h.cacheHelper.CachePicture(context.Background(), p); cacheErr != nil {
				log.Printf("Failed to cache picture metadata for '%s': %v", p.Identifier, cacheErr)
			}
		}(picture)

		return picture, nil
	})

	select {
	case result := <-resultChan:
		if result.Err != nil {
			if errors.Is(result.Err, errTemporaryFailure) {
				metaGroup.Forget(identifier)
			}
			return nil, result.Err
		}
		return result.Val.(*models.Picture), nil
	case <-time.After(metaFetchTimeout):
		metaGroup.Forget(identifier)
		return nil, errTemporaryFailure
	}
}

// fetchFromStorage 从存储获取文件字节（带 singleflight 防击穿）
func (h *Handler) fetchFromStorage(storagePath string) ([]byte, error) {
	v, err, _ := fileFetchGroup.Do(storagePath, func() (interface{}, error) {
		// 双重检查缓存
		if data, err := h.cacheHelper.GetCachedPictureData(context.Background(), storagePath); err == nil {
			return data, nil
		}

		stream, err := h.storage.GetWithContext(context.Background(), storagePath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = stream.Close() }()

		data, err := io.ReadAll(stream)
		if err != nil {
			return nil, err
		}

		// 异步缓存
		go func() {
			if h.cacheHelper != nil {
				_ = h.cacheHelper.CachePictureData(context.Background(), storagePath, data)
			}
		}()

		return data, nil
	})

	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// serveBySendfile 使用 sendfile 零拷贝传输
func (h *Handler) serveBySendfile(c *gin.Context, picture *models.Picture, rendition generator.Rendition, storagePath, contentType string, opener storage.FileOpener) bool {
	file, err := opener.OpenFile(c.Request.Context(), storagePath)
	if err != nil {
		return false
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return false
	}

	setRenditionHeaders(c, picture, rendition, contentType)
	http.ServeContent(c.Writer, c.Request, picture.OriginalName, stat.ModTime(), file)
	return true
}

// servePictureData 直接提供内存中的图片字节
func (h *Handler) servePictureData(c *gin.Context, picture *models.Picture, rendition generator.Rendition, contentType string, data []byte) {
	setRenditionHeaders(c, picture, rendition, contentType)
	http.ServeContent(c.Writer, c.Request, picture.OriginalName, time.Time{}, bytes.NewReader(data))
}

func setRenditionHeaders(c *gin.Context, picture *models.Picture, rendition generator.Rendition, contentType string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	// 内容寻址，文件永不变化
	c.Header("Cache-Control", "public, max-age=2592000, immutable")

	if rendition == generator.RenditionOriginal && picture.OriginalName != "" {
		asciiName := toASCII(picture.OriginalName)
		rfc5987Name := url.QueryEscape(picture.OriginalName)
		if asciiName == picture.OriginalName {
			c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, asciiName))
		} else {
			c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"; filename*=UTF-8''%s`, asciiName, rfc5987Name))
		}
	}
}

// handleMetadataError 处理元数据查询错误
func (h *Handler) handleMetadataError(c *gin.Context, identifier string, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		common.RespondError(c, http.StatusNotFound, "Picture not found")
		return
	}

	if errors.Is(err, errTemporaryFailure) {
		log.Printf("Temporary failure fetching picture metadata for '%s': %v", identifier, err)
		common.RespondError(c, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry")
		return
	}

	log.Printf("Failed to fetch picture metadata for '%s': %v", identifier, err)
	common.RespondError(c, http.StatusInternalServerError, "Error retrieving picture")
}

// isTransientError 检查是否为临时错误
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"temporary",
		"i/o timeout",
		"no such host",
		"network is unreachable",
	}

	for _, pattern := range patterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// toASCII 将字符串转换为 ASCII 表示（非 ASCII 字符转为下划线）
func toASCII(s string) string {
	var result []rune
	for _, r := range s {
		if r > unicode.MaxASCII {
			result = append(result, '_')
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}
