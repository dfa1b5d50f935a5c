package collections

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aurelle/picflow/database/models"
	repo "github.com/aurelle/picflow/database/repo/collections"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:collections_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Collection{}, &models.Picture{}))

	h := NewHandler(repo.NewRepository(db))

	router := gin.New()
	router.GET("/api/collections", h.ListCollections)
	router.POST("/api/collections", h.CreateCollection)
	router.DELETE("/api/collections/:id", h.DeleteCollection)
	return router, db
}

func do(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateCollectionIsIdempotentByName(t *testing.T) {
	router, db := setupRouter(t)

	body, _ := json.Marshal(map[string]string{"name": "holiday"})
	w := do(router, http.MethodPost, "/api/collections", body)
	require.Equal(t, http.StatusOK, w.Code)

	// 同名再建返回已有集合
	w = do(router, http.MethodPost, "/api/collections", body)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.Collection{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateCollectionRejectsBlankName(t *testing.T) {
	router, _ := setupRouter(t)

	for _, body := range []string{`{}`, `{"name":""}`, `{"name":"   "}`} {
		w := do(router, http.MethodPost, "/api/collections", []byte(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
}

func TestListCollections(t *testing.T) {
	router, db := setupRouter(t)
	require.NoError(t, db.Create(&models.Collection{Name: "b"}).Error)
	require.NoError(t, db.Create(&models.Collection{Name: "a"}).Error)

	w := do(router, http.MethodGet, "/api/collections", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "a", resp.Data[0].Name)
	assert.Equal(t, "b", resp.Data[1].Name)
}

func TestDeleteCollection(t *testing.T) {
	router, db := setupRouter(t)

	collection := &models.Collection{Name: "doomed"}
	require.NoError(t, db.Create(collection).Error)

	w := do(router, http.MethodDelete, fmt.Sprintf("/api/collections/%d", collection.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodDelete, fmt.Sprintf("/api/collections/%d", collection.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodDelete, "/api/collections/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
