package core

import (
	"context"
	"net/http"
	"time"

	"github.com/aurelle/picflow/api/common"
	"github.com/aurelle/picflow/config"
	"github.com/aurelle/picflow/internal/app"
	"github.com/gin-gonic/gin"
)

// healthHandler 聚合各依赖的健康状态
func healthHandler(container *app.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{
			"database": checkDatabaseHealth(container),
			"cache":    checkCacheHealth(container),
			"storage":  checkStorageHealth(container),
		}

		httpStatus := http.StatusOK
		for _, result := range checks {
			if s, ok := result.(string); ok && s != "ok" {
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}

		c.JSON(httpStatus, gin.H{
			"status":  statusText(httpStatus),
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"version": config.Version,
			"checks":  checks,
		})
	}
}

func statusText(httpStatus int) string {
	if httpStatus == http.StatusOK {
		return "ok"
	}
	return "degraded"
}

func versionHandler(c *gin.Context) {
	common.RespondSuccess(c, gin.H{
		"version": config.Version,
		"commit":  config.CommitHash,
	})
}

func checkDatabaseHealth(container *app.Container) string {
	if container.Database == nil {
		return "not initialized"
	}
	if err := container.Database.Ping(); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func checkCacheHealth(container *app.Container) string {
	if container.CacheProvider == nil {
		return "not initialized"
	}
	return "ok"
}

func checkStorageHealth(container *app.Container) string {
	if container.Storage == nil {
		return "not initialized"
	}
	provider := container.Storage.GetDefault()
	if provider == nil {
		return "error: no default storage provider"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := provider.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
