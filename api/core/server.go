package core

import (
	"net/http"
	"time"

	collectionsHandler "github.com/aurelle/picflow/api/handler/collections"
	picturesHandler "github.com/aurelle/picflow/api/handler/pictures"
	"github.com/aurelle/picflow/api/middleware"
	"github.com/aurelle/picflow/config"
	"github.com/aurelle/picflow/internal/app"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// 启动 gin
func setupRouter(container *app.Container) (*gin.Engine, func()) {
	cfg := container.Config
	router := gin.New()

	// 仅在开发版本时启用 gin 日志
	if config.CommitHash == "n/a" {
		router.Use(gin.Logger())
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.BaseURL()},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.SetTrustedProxies(nil)

	// 请求体大小限制，摄取接口直接传原始字节
	router.Use(middleware.MaxBytesReader(int64(cfg.UploadMaxSizeMB) << 20))

	// 请求ID追踪
	router.Use(middleware.RequestID())

	// 速率限制
	apiRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitApiRPS, cfg.RateLimitApiBurst, cfg.RateLimitExpireTime)
	imageRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitImageRPS, cfg.RateLimitImageBurst, cfg.RateLimitExpireTime)
	cleanup := func() {
		apiRateLimiter.StopCleanup()
		imageRateLimiter.StopCleanup()
	}

	registerRoutes(router, container, apiRateLimiter, imageRateLimiter)

	return router, cleanup
}

// registerRoutes 注册全部路由
func registerRoutes(router *gin.Engine, container *app.Container, apiRateLimiter, imageRateLimiter *middleware.IPRateLimiter) {
	router.GET("/health", healthHandler(container))
	router.GET("/version", versionHandler)

	pictures := picturesHandler.NewHandler(
		container.IngestService,
		container.PictureRepo,
		container.Storage.GetDefault(),
		container.CacheHelper,
	)
	collections := collectionsHandler.NewHandler(container.CollectionRepo)

	// 公共文件接口
	fileGroup := router.Group("/pictures")
	fileGroup.Use(imageRateLimiter.Middleware())
	{
		fileGroup.GET("/raw/:identifier", pictures.ServeOriginal)       // GET /pictures/raw/{identifier}
		fileGroup.GET("/thumb/:identifier", pictures.ServeThumb)        // GET /pictures/thumb/{identifier}
		fileGroup.GET("/detail/:identifier", pictures.ServeDetail)      // GET /pictures/detail/{identifier}
	}

	apiGroup := router.Group("/api")
	apiGroup.Use(apiRateLimiter.Middleware())
	apiGroup.Use(func(c *gin.Context) { // 所有API禁止缓存
		c.Header("Cache-Control", "no-store")
		c.Next()
	})
	{
		picturesGroup := apiGroup.Group("/pictures")
		{
			picturesGroup.POST("/:hash/:filename", pictures.IngestPicture) // POST /api/pictures/{hash}/{filename}
			picturesGroup.GET("", pictures.ListPictures)                   // GET /api/pictures
			picturesGroup.GET("/:id", pictures.GetPicture)                 // GET /api/pictures/{id}
			picturesGroup.PATCH("/:id", pictures.UpdatePicture)            // PATCH /api/pictures/{id}
			picturesGroup.DELETE("/:id", pictures.DeletePicture)           // DELETE /api/pictures/{id}
		}

		collectionsGroup := apiGroup.Group("/collections")
		{
			collectionsGroup.GET("", collections.ListCollections)          // GET /api/collections
			collectionsGroup.POST("", collections.CreateCollection)        // POST /api/collections
			collectionsGroup.DELETE("/:id", collections.DeleteCollection)  // DELETE /api/collections/{id}
		}
	}
}

// StartServer 创建 http.Server
func StartServer(container *app.Container) (*http.Server, func()) {
	cfg := container.Config
	router, clean := setupRouter(container)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, clean
}
