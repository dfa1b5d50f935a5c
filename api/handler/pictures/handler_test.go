package pictures

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aurelle/picflow/database/models"
	collectionsRepo "github.com/aurelle/picflow/database/repo/collections"
	picturesRepo "github.com/aurelle/picflow/database/repo/pictures"
	"github.com/aurelle/picflow/internal/derivative"
	"github.com/aurelle/picflow/internal/ingest"
	"github.com/aurelle/picflow/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubGenerator 不解码，返回固定派生图
type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, data []byte) (*derivative.Result, error) {
	return &derivative.Result{
		Width:      800,
		Height:     600,
		ThumbData:  []byte("thumb-bytes"),
		DetailData: []byte("detail-bytes"),
	}, nil
}

type handlerEnv struct {
	router *gin.Engine
	db     *gorm.DB
}

func setupHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Collection{}, &models.Picture{}))

	localStorage, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	pRepo := picturesRepo.NewRepository(db)
	cRepo := collectionsRepo.NewRepository(db)
	service := ingest.NewService(pRepo, cRepo, localStorage, stubGenerator{}, nil, "http://example.test")

	h := NewHandler(service, pRepo, localStorage, nil)

	router := gin.New()
	router.POST("/api/pictures/:hash/:filename", h.IngestPicture)
	router.GET("/api/pictures", h.ListPictures)
	router.GET("/api/pictures/:id", h.GetPicture)
	router.PATCH("/api/pictures/:id", h.UpdatePicture)
	router.DELETE("/api/pictures/:id", h.DeletePicture)
	router.GET("/pictures/raw/:identifier", h.ServeOriginal)
	router.GET("/pictures/thumb/:identifier", h.ServeThumb)
	router.GET("/pictures/detail/:identifier", h.ServeDetail)

	return &handlerEnv{router: router, db: db}
}

func pngPayload(suffix string) []byte {
	sig := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return append(sig, []byte(suffix)...)
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type envelope struct {
	Status string                 `json:"status"`
	Msg    string                 `json:"msg"`
	Code   string                 `json:"code"`
	Data   map[string]interface{} `json:"data"`
}

func (e *handlerEnv) do(t *testing.T, method, path string, body []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, path, bytes.NewReader(body))
	require.NoError(t, err)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func (e *handlerEnv) ingest(t *testing.T, payload []byte, filename string) envelope {
	t.Helper()
	w, env := e.do(t, http.MethodPost, "/api/pictures/"+hashOf(payload)+"/"+filename, payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return env
}

func TestIngestEndpointCreatesAndDeduplicates(t *testing.T) {
	env := setupHandlerEnv(t)
	payload := pngPayload("first")

	created := env.ingest(t, payload, "sunset.png")
	assert.Equal(t, "success", created.Status)
	assert.Equal(t, false, created.Data["isDuplicate"])
	assert.Equal(t, "sunset", created.Data["title"])
	assert.NotEmpty(t, created.Data["src"])
	assert.NotEmpty(t, created.Data["fullscreenUrl"])

	// 改名重传同一内容：幂等，回到同一资源
	w, dup := env.do(t, http.MethodPost, "/api/pictures/"+hashOf(payload)+"/renamed.png", payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, dup.Data["isDuplicate"])
	assert.Equal(t, created.Data["id"], dup.Data["id"])

	var count int64
	env.db.Model(&models.Picture{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestIngestEndpointRejectsHashMismatch(t *testing.T) {
	env := setupHandlerEnv(t)
	payload := pngPayload("real")
	wrongHash := hashOf(pngPayload("other"))

	w, resp := env.do(t, http.MethodPost, "/api/pictures/"+wrongHash+"/a.png", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "validation", resp.Code)
}

func TestIngestEndpointRejectsNonImage(t *testing.T) {
	env := setupHandlerEnv(t)
	payload := []byte("just some text")

	w, resp := env.do(t, http.MethodPost, "/api/pictures/"+hashOf(payload)+"/notes.txt", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", resp.Code)
}

func TestGetPictureReturnsFullView(t *testing.T) {
	env := setupHandlerEnv(t)
	created := env.ingest(t, pngPayload("view"), "view.png")
	id := int(created.Data["id"].(float64))

	w, resp := env.do(t, http.MethodGet, fmt.Sprintf("/api/pictures/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "view", resp.Data["title"])
	assert.Equal(t, "image/png", resp.Data["mimeType"])
	assert.Equal(t, float64(800), resp.Data["width"])
	assert.NotEmpty(t, resp.Data["hash"])
	assert.NotEmpty(t, resp.Data["originalUrl"])
}

func TestGetPictureNotFound(t *testing.T) {
	env := setupHandlerEnv(t)

	w, _ := env.do(t, http.MethodGet, "/api/pictures/12345", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/pictures/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPictures(t *testing.T) {
	env := setupHandlerEnv(t)
	env.ingest(t, pngPayload("l1"), "a.png")
	env.ingest(t, pngPayload("l2"), "b.png")

	w, resp := env.do(t, http.MethodGet, "/api/pictures?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), resp.Data["total"])
	assert.Len(t, resp.Data["pictures"], 2)
}

func TestUpdatePictureEditableFields(t *testing.T) {
	env := setupHandlerEnv(t)
	created := env.ingest(t, pngPayload("edit"), "edit.png")
	id := int(created.Data["id"].(float64))

	body, _ := json.Marshal(map[string]interface{}{"title": "renamed", "rating": 5, "isPublic": false})
	w, resp := env.do(t, http.MethodPatch, fmt.Sprintf("/api/pictures/%d", id), body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "renamed", resp.Data["title"])
	assert.Equal(t, float64(5), resp.Data["rating"])
	assert.Equal(t, false, resp.Data["isPublic"])
}

func TestUpdatePictureRejectsBadRating(t *testing.T) {
	env := setupHandlerEnv(t)
	created := env.ingest(t, pngPayload("rate"), "rate.png")
	id := int(created.Data["id"].(float64))

	for _, rating := range []interface{}{0, 6, 3.5, "five"} {
		body, _ := json.Marshal(map[string]interface{}{"rating": rating})
		w, _ := env.do(t, http.MethodPatch, fmt.Sprintf("/api/pictures/%d", id), body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "rating %v must be rejected", rating)
	}
}

func TestUpdatePictureIgnoresProtectedFields(t *testing.T) {
	env := setupHandlerEnv(t)
	created := env.ingest(t, pngPayload("prot"), "prot.png")
	id := int(created.Data["id"].(float64))

	body, _ := json.Marshal(map[string]interface{}{"hash": "0000", "fileSize": 1})
	w, _ := env.do(t, http.MethodPatch, fmt.Sprintf("/api/pictures/%d", id), body)
	assert.Equal(t, http.StatusBadRequest, w.Code, "request with only protected fields has nothing to apply")
}

func TestDeletePictureThenIngestAgain(t *testing.T) {
	env := setupHandlerEnv(t)
	payload := pngPayload("del")
	created := env.ingest(t, payload, "del.png")
	id := int(created.Data["id"].(float64))

	w, _ := env.do(t, http.MethodDelete, fmt.Sprintf("/api/pictures/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/pictures/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 删除后重新摄取是新资源
	again := env.ingest(t, payload, "del.png")
	assert.Equal(t, false, again.Data["isDuplicate"])
}

func TestServeRenditions(t *testing.T) {
	env := setupHandlerEnv(t)
	payload := pngPayload("serve")
	env.ingest(t, payload, "serve.png")

	var picture models.Picture
	require.NoError(t, env.db.First(&picture).Error)

	w, _ := env.do(t, http.MethodGet, "/pictures/thumb/"+picture.Identifier, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/webp", w.Header().Get("Content-Type"))
	assert.Equal(t, "thumb-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Cache-Control"), "immutable")

	w, _ = env.do(t, http.MethodGet, "/pictures/detail/"+picture.Identifier, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "detail-bytes", w.Body.String())

	w, _ = env.do(t, http.MethodGet, "/pictures/raw/"+picture.Identifier, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, w.Body.Bytes())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestServeRenditionNotFound(t *testing.T) {
	env := setupHandlerEnv(t)

	w, _ := env.do(t, http.MethodGet, "/pictures/thumb/nosuchid", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServePrivatePictureIsForbidden(t *testing.T) {
	env := setupHandlerEnv(t)
	env.ingest(t, pngPayload("priv"), "priv.png")

	var picture models.Picture
	require.NoError(t, env.db.First(&picture).Error)
	require.NoError(t, env.db.Model(&picture).Update("is_public", false).Error)

	w, _ := env.do(t, http.MethodGet, "/pictures/thumb/"+picture.Identifier, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
