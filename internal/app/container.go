package app

import (
	"fmt"

	"github.com/aurelle/picflow/cache"
	"github.com/aurelle/picflow/config"
	"github.com/aurelle/picflow/database"
	collectionsRepo "github.com/aurelle/picflow/database/repo/collections"
	picturesRepo "github.com/aurelle/picflow/database/repo/pictures"
	"github.com/aurelle/picflow/internal/derivative"
	"github.com/aurelle/picflow/internal/ingest"
	"github.com/aurelle/picflow/storage"
)

// Container 应用依赖容器，按初始化顺序持有各层实例
type Container struct {
	Config         *config.Config
	Database       *database.Factory
	PictureRepo    *picturesRepo.Repository
	CollectionRepo *collectionsRepo.Repository
	Storage        *storage.Factory
	CacheProvider  cache.Provider
	CacheHelper    *cache.Helper
	Generator      derivative.Generator
	IngestService  *ingest.Service
}

// NewContainer 组装全部依赖
func NewContainer(cfg *config.Config) (*Container, error) {
	dbFactory, err := database.NewFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	storageFactory, err := storage.NewFactory(cfg)
	if err != nil {
		_ = dbFactory.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cacheProvider, err := cache.NewProvider(cfg)
	if err != nil {
		_ = dbFactory.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	cacheHelper := cache.NewHelper(cacheProvider, cfg.CacheMetadataTTLSec, cfg.CacheImageDataTTLSec, cfg.CacheMaxImageSizeKB)

	db := dbFactory.GetProvider().DB()
	pictureRepo := picturesRepo.NewRepository(db)
	collectionRepo := collectionsRepo.NewRepository(db)

	gen := derivative.NewVipsGenerator(cfg.ThumbWidth, cfg.DetailWidth)

	ingestService := ingest.NewService(
		pictureRepo,
		collectionRepo,
		storageFactory.GetDefault(),
		gen,
		cacheHelper,
		cfg.BaseURL(),
	)

	return &Container{
		Config:         cfg,
		Database:       dbFactory,
		PictureRepo:    pictureRepo,
		CollectionRepo: collectionRepo,
		Storage:        storageFactory,
		CacheProvider:  cacheProvider,
		CacheHelper:    cacheHelper,
		Generator:      gen,
		IngestService:  ingestService,
	}, nil
}

// Close 释放容器持有的资源
func (c *Container) Close() error {
	if c.CacheProvider != nil {
		_ = c.CacheProvider.Close()
	}
	if c.Database != nil {
		return c.Database.Close()
	}
	return nil
}
