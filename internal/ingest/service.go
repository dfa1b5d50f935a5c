package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aurelle/picflow/cache"
	"github.com/aurelle/picflow/database/models"
	"github.com/aurelle/picflow/database/repo/collections"
	"github.com/aurelle/picflow/database/repo/pictures"
	"github.com/aurelle/picflow/internal/derivative"
	"github.com/aurelle/picflow/storage"
	"github.com/aurelle/picflow/utils"
	"github.com/aurelle/picflow/utils/generator"
	"github.com/aurelle/picflow/utils/pool"
	"github.com/aurelle/picflow/utils/validator"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// mimeExtensions 原图存储扩展名
var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Result 摄取结果
type Result struct {
	Picture     *models.Picture
	IsDuplicate bool
}

// Service 图片摄取服务
// 对同一内容哈希幂等：并发的相同上传通过唯一索引 + 回读收敛到同一行
type Service struct {
	repo        pictures.RepositoryInterface
	collections *collections.Repository
	storage     storage.Provider
	generator   derivative.Generator
	cacheHelper *cache.Helper
	pathGen     *generator.PathGenerator
	baseURL     string
}

// NewService 创建摄取服务
func NewService(
	repo pictures.RepositoryInterface,
	collectionsRepo *collections.Repository,
	storageProvider storage.Provider,
	gen derivative.Generator,
	cacheHelper *cache.Helper,
	baseURL string,
) *Service {
	return &Service{
		repo:        repo,
		collections: collectionsRepo,
		storage:     storageProvider,
		generator:   gen,
		cacheHelper: cacheHelper,
		pathGen:     generator.NewPathGenerator(),
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

// Ingest 摄取一张图片
// claimedHash 是客户端预先计算的内容哈希；去重命中直接返回已有记录，
// 未命中时服务端边暂存边重新计算哈希并校验，全量处理完成后才写行。
func (s *Service) Ingest(ctx context.Context, claimedHash string, body io.Reader, filename, collectionName string) (*Result, error) {
	claimedHash = strings.ToLower(claimedHash)
	if !hashPattern.MatchString(claimedHash) {
		return nil, newValidationError("invalid content hash", nil)
	}

	// 去重命中路径：除读以外无任何副作用
	existing, err := s.repo.GetByHash(claimedHash)
	if err == nil {
		return &Result{Picture: existing, IsDuplicate: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newTransientError("database error during hash check", err)
	}

	// 暂存载荷并流式重算哈希
	var staged bytes.Buffer
	hasher := sha256.New()
	writer := io.MultiWriter(&staged, hasher)

	buf := pool.SharedBufferPool.Get().([]byte)
	defer pool.SharedBufferPool.Put(buf)

	if _, err := io.CopyBuffer(writer, body, buf); err != nil {
		// 传输中断，不会产生任何行或对象
		return nil, newTransientError("failed to read upload stream", err)
	}

	computedHash := hex.EncodeToString(hasher.Sum(nil))
	if computedHash != claimedHash {
		return nil, newValidationError(
			fmt.Sprintf("content hash mismatch: claimed %s, computed %s", claimedHash[:12], computedHash[:12]), nil)
	}

	data := staged.Bytes()
	if len(data) == 0 {
		return nil, newValidationError("empty payload", nil)
	}

	// 校验文件类型
	headerLen := 512
	if len(data) < headerLen {
		headerLen = len(data)
	}
	isImage, mimeType := validator.IsImageBytes(data[:headerLen])
	if !isImage {
		return nil, newValidationError(fmt.Sprintf("unsupported file type: %s", mimeType), nil)
	}

	// 生成派生图并提取元数据
	genResult, err := s.generator.Generate(ctx, data)
	if err != nil {
		return nil, newValidationError("failed to process image", err)
	}

	uploadTime := time.Now()
	ext := mimeExtensions[mimeType]

	originalIDs := s.pathGen.GenerateOriginalIdentifiers(computedHash, ext, uploadTime)
	thumbIDs := s.pathGen.GenerateRenditionIdentifiers(computedHash, generator.RenditionThumb, uploadTime)
	detailIDs := s.pathGen.GenerateRenditionIdentifiers(computedHash, generator.RenditionDetail, uploadTime)

	// 三个对象互不依赖，并行写入存储
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.storage.SaveWithContext(egCtx, originalIDs.StoragePath, bytes.NewReader(data))
	})
	eg.Go(func() error {
		return s.storage.SaveWithContext(egCtx, thumbIDs.StoragePath, bytes.NewReader(genResult.ThumbData))
	})
	eg.Go(func() error {
		return s.storage.SaveWithContext(egCtx, detailIDs.StoragePath, bytes.NewReader(genResult.DetailData))
	})
	if err := eg.Wait(); err != nil {
		s.cleanupBlobs(originalIDs.StoragePath, thumbIDs.StoragePath, detailIDs.StoragePath)
		return nil, newTransientError("failed to save uploaded file", err)
	}

	var collectionID *uint
	if collectionName != "" {
		collection, err := s.collections.FindOrCreate(collectionName)
		if err != nil {
			s.cleanupBlobs(originalIDs.StoragePath, thumbIDs.StoragePath, detailIDs.StoragePath)
			return nil, newTransientError("failed to resolve target collection", err)
		}
		collectionID = &collection.ID
	}

	takenAt := genResult.Meta.TakenAt
	if takenAt == nil {
		takenAt = &uploadTime
	}

	links := utils.BuildRenditionLinks(s.baseURL, originalIDs.Identifier)

	picture := &models.Picture{
		Identifier:   originalIDs.Identifier,
		FileHash:     computedHash,
		Title:        titleFromFilename(filename),
		OriginalName: filename,
		FileSize:     int64(len(data)),
		MimeType:     mimeType,
		Width:        genResult.Width,
		Height:       genResult.Height,
		TakenAt:      takenAt,
		Camera:       genResult.Meta.Camera,
		Lens:         genResult.Meta.Lens,
		Latitude:     genResult.Meta.Latitude,
		Longitude:    genResult.Meta.Longitude,
		OriginalPath: originalIDs.StoragePath,
		ThumbPath:    thumbIDs.StoragePath,
		DetailPath:   detailIDs.StoragePath,
		OriginalURL:  links.Original,
		ThumbURL:     links.Thumb,
		DetailURL:    links.Detail,
		CollectionID: collectionID,
		IsPublic:     true,
		Rating:       3,
	}

	if err := s.repo.Create(picture); err != nil {
		if isDuplicateKeyError(err) {
			// 与另一份相同上传竞争落败：回读胜者即可。
			// 存储路径由哈希推导，双方写入的是同一批对象，无需清理。
			winner, readErr := s.repo.GetByHash(computedHash)
			if readErr != nil {
				return nil, newTransientError("failed to re-read picture after duplicate insert", readErr)
			}
			return &Result{Picture: winner, IsDuplicate: true}, nil
		}

		s.cleanupBlobs(originalIDs.StoragePath, thumbIDs.StoragePath, detailIDs.StoragePath)
		return nil, newTransientError("failed to save picture metadata", err)
	}

	if s.cacheHelper != nil {
		go func() {
			if err := s.cacheHelper.CachePicture(context.Background(), picture); err != nil {
				log.Printf("[Ingest] Failed to warm cache for %s: %v", picture.Identifier, err)
			}
		}()
	}

	return &Result{Picture: picture, IsDuplicate: false}, nil
}

// Delete 删除图片记录及其全部存储对象
func (s *Service) Delete(ctx context.Context, picture *models.Picture) error {
	if err := s.repo.Delete(picture); err != nil {
		return newTransientError("failed to delete picture metadata", err)
	}

	s.cleanupBlobs(picture.OriginalPath, picture.ThumbPath, picture.DetailPath)

	if s.cacheHelper != nil {
		_ = s.cacheHelper.InvalidatePicture(ctx, picture.Identifier)
		s.cacheHelper.InvalidatePictureData(ctx, picture.OriginalPath, picture.ThumbPath, picture.DetailPath)
	}
	return nil
}

// cleanupBlobs 尽力删除已写入的存储对象
func (s *Service) cleanupBlobs(paths ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := s.storage.DeleteWithContext(ctx, p); err != nil {
			log.Printf("[Ingest] Failed to clean up blob %s: %v", p, err)
		}
	}
}

// isDuplicateKeyError 识别唯一约束冲突
// TranslateError 开启时为 gorm.ErrDuplicatedKey，部分驱动仍以原始错误透出
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique failed") ||
		strings.Contains(msg, "duplicate key")
}

// titleFromFilename 去掉扩展名作为默认标题
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	if title == "" {
		return base
	}
	return title
}
