package pictures

import (
	"time"

	"github.com/aurelle/picflow/cache"
	"github.com/aurelle/picflow/database/models"
	repo "github.com/aurelle/picflow/database/repo/pictures"
	"github.com/aurelle/picflow/internal/ingest"
	"github.com/aurelle/picflow/storage"
)

// Handler 图片相关接口处理器
type Handler struct {
	ingestService *ingest.Service
	repo          repo.RepositoryInterface
	storage       storage.Provider
	cacheHelper   *cache.Helper
}

// NewHandler 创建处理器
func NewHandler(
	ingestService *ingest.Service,
	pictureRepo repo.RepositoryInterface,
	storageProvider storage.Provider,
	cacheHelper *cache.Helper,
) *Handler {
	return &Handler{
		ingestService: ingestService,
		repo:          pictureRepo,
		storage:       storageProvider,
		cacheHelper:   cacheHelper,
	}
}

// pictureView 完整的图片表示
type pictureView struct {
	ID           uint       `json:"id"`
	Identifier   string     `json:"identifier"`
	Hash         string     `json:"hash"`
	Title        string     `json:"title"`
	OriginalName string     `json:"originalName"`
	FileSize     int64      `json:"fileSize"`
	MimeType     string     `json:"mimeType"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	TakenAt      *time.Time `json:"takenAt,omitempty"`
	Camera       string     `json:"camera,omitempty"`
	Lens         string     `json:"lens,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	Src          string     `json:"src"`
	FullscreenURL string    `json:"fullscreenUrl"`
	OriginalURL  string     `json:"originalUrl"`
	CollectionID *uint      `json:"collectionId,omitempty"`
	Collection   string     `json:"collection,omitempty"`
	IsPublic     bool       `json:"isPublic"`
	Rating       int        `json:"rating"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// toView 转换为对外表示
func toView(p *models.Picture) pictureView {
	view := pictureView{
		ID:            p.ID,
		Identifier:    p.Identifier,
		Hash:          p.FileHash,
		Title:         p.Title,
		OriginalName:  p.OriginalName,
		FileSize:      p.FileSize,
		MimeType:      p.MimeType,
		Width:         p.Width,
		Height:        p.Height,
		TakenAt:       p.TakenAt,
		Camera:        p.Camera,
		Lens:          p.Lens,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		Src:           p.ThumbURL,
		FullscreenURL: p.DetailURL,
		OriginalURL:   p.OriginalURL,
		CollectionID:  p.CollectionID,
		IsPublic:      p.IsPublic,
		Rating:        p.Rating,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Collection != nil {
		view.Collection = p.Collection.Name
	}
	return view
}
