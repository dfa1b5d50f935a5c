package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/aurelle/picflow/database/models"
	"github.com/aurelle/picflow/database/repo/collections"
	"github.com/aurelle/picflow/database/repo/pictures"
	"github.com/aurelle/picflow/internal/derivative"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// pngPayload 带 PNG 签名的载荷，内容由后缀区分
func pngPayload(suffix string) []byte {
	sig := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return append(sig, []byte(suffix)...)
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// fakeStorage 内存存储
type fakeStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	saves    int
	failSave bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) SaveWithContext(ctx context.Context, storagePath string, file io.Reader) error {
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return fmt.Errorf("storage backend unavailable")
	}
	f.saves++
	f.objects[storagePath] = data
	return nil
}

func (f *fakeStorage) GetWithContext(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[storagePath]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", storagePath)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) DeleteWithContext(ctx context.Context, storagePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, storagePath)
	return nil
}

func (f *fakeStorage) Exists(ctx context.Context, storagePath string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[storagePath]
	return ok, nil
}

func (f *fakeStorage) Health(ctx context.Context) error { return nil }
func (f *fakeStorage) Name() string                     { return "fake" }

func (f *fakeStorage) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeStorage) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

// fakeGenerator 不解码，按固定尺寸返回派生图
type fakeGenerator struct {
	failOn []byte
}

func (g *fakeGenerator) Generate(ctx context.Context, data []byte) (*derivative.Result, error) {
	if g.failOn != nil && bytes.Contains(data, g.failOn) {
		return nil, fmt.Errorf("corrupt image data")
	}
	return &derivative.Result{
		Width:      640,
		Height:     480,
		ThumbData:  []byte("thumb:" + string(data[len(data)-1:])),
		DetailData: []byte("detail:" + string(data[len(data)-1:])),
	}, nil
}

type testEnv struct {
	db      *gorm.DB
	service *Service
	storage *fakeStorage
	gen     *fakeGenerator
}

func setupService(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// 单连接串行化写入，并发摄取测试不受 SQLITE_BUSY 干扰
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Collection{}, &models.Picture{}))

	st := newFakeStorage()
	gen := &fakeGenerator{failOn: []byte("corrupt")}
	svc := NewService(
		pictures.NewRepository(db),
		collections.NewRepository(db),
		st,
		gen,
		nil,
		"http://localhost:8080",
	)

	return &testEnv{db: db, service: svc, storage: st, gen: gen}
}

func TestIngestCreatesPictureAndBlobs(t *testing.T) {
	env := setupService(t)
	payload := pngPayload("one")

	result, err := env.service.Ingest(context.Background(), hashOf(payload), bytes.NewReader(payload), "sunset.png", "")
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)

	p := result.Picture
	assert.Equal(t, hashOf(payload), p.FileHash)
	assert.Equal(t, "sunset", p.Title)
	assert.Equal(t, "sunset.png", p.OriginalName)
	assert.Equal(t, "image/png", p.MimeType)
	assert.Equal(t, int64(len(payload)), p.FileSize)
	assert.Equal(t, 640, p.Width)
	assert.Equal(t, 480, p.Height)
	assert.NotNil(t, p.TakenAt, "upload time stands in when capture time is absent")
	assert.NotEmpty(t, p.ThumbURL)
	assert.NotEmpty(t, p.DetailURL)

	// 原图 + 两个渲染版本
	assert.Equal(t, 3, env.storage.objectCount())

	stored, ok := env.storage.objects[p.OriginalPath]
	require.True(t, ok)
	assert.Equal(t, payload, stored, "original bytes stored untouched")
}

func TestIngestSameHashIsIdempotent(t *testing.T) {
	env := setupService(t)
	payload := pngPayload("two")
	hash := hashOf(payload)

	first, err := env.service.Ingest(context.Background(), hash, bytes.NewReader(payload), "a.png", "")
	require.NoError(t, err)
	savesAfterFirst := env.storage.saveCount()

	// 第二次上传同一内容：只读回已有记录，不触碰存储
	second, err := env.service.Ingest(context.Background(), hash, bytes.NewReader(payload), "renamed.png", "")
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.Picture.ID, second.Picture.ID)
	assert.Equal(t, "a", second.Picture.Title, "original row wins, rename has no effect")
	assert.Equal(t, savesAfterFirst, env.storage.saveCount())

	var count int64
	env.db.Model(&models.Picture{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestIngestConcurrentSameContentConvergesToOneRow(t *testing.T) {
	env := setupService(t)
	payload := pngPayload("race")
	hash := hashOf(payload)

	const workers = 8
	results := make([]*Result, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.service.Ingest(context.Background(), hash, bytes.NewReader(payload), "race.png", "")
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].Picture.ID, results[i].Picture.ID)
		if !results[i].IsDuplicate {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one caller observes the insert")

	var count int64
	env.db.Model(&models.Picture{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestIngestRaceLoserRereadsWinner(t *testing.T) {
	env := setupService(t)
	payload := pngPayload("loser")
	hash := hashOf(payload)

	// 先让胜者落库
	winner, err := env.service.Ingest(context.Background(), hash, bytes.NewReader(payload), "winner.png", "")
	require.NoError(t, err)

	// 模拟竞争落败方：绕过命中检查直接插入，撞唯一索引
	dup := *winner.Picture
	dup.ID = 0
	dup.Identifier = "original/2026/01/01/other"
	err = env.db.Create(&dup).Error
	require.Error(t, err)
	assert.True(t, isDuplicateKeyError(err))
}

func TestIngestRejectsMalformedHash(t *testing.T) {
	env := setupService(t)

	for _, hash := range []string{"", "abc", "XYZ", hashOf([]byte("x"))[:63], hashOf([]byte("x")) + "0"} {
		_, err := env.service.Ingest(context.Background(), hash, bytes.NewReader(pngPayload("x")), "a.png", "")
		assert.True(t, IsValidation(err), "hash %q must be rejected as validation failure", hash)
	}
}

func TestIngestUppercaseHashIsNormalized(t *testing.T) {
	env := setupService(t)
	payload := pngPayload("upper")
	hash := hashOf(payload)

	result, err := env.service.Ingest(context.Background(), toUpper(hash), bytes.NewReader(payload), "a.png", "")
	require.NoError(t, err)
	assert.Equal(t, hash, result.Picture.FileHash)
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func TestIngestHashMismatchLeavesNoTrace(t *testing.T) {
	env := setupService(t)
	payload := pngPayload("actual")
	otherHash := hashOf(pngPayload("claimed"))

	_, err := env.service.Ingest(context.Background(), otherHash, bytes.NewReader(payload), "a.png", "")
	assert.True(t, IsValidation(err))

	var count int64
	env.db.Model(&models.Picture{}).Count(&count)
	assert.Zero(t, count)
	assert.Zero(t, env.storage.objectCount())
}

func TestIngestRejectsNonImagePayload(t *testing.T) {
	env := setupService(t)
	payload := []byte("plain text, definitely not an image")

	_, err := env.service.Ingest(context.Background(), hashOf(payload), bytes.NewReader(payload), "notes.txt", "")
	assert.True(t, IsValidation(err))
	assert.Zero(t, env.storage.objectCount())
}

func TestIngestGeneratorFailureIsValidation(t *testing.T) {
	env := setupService(t)
	payload := pngPayload("corrupt trailer")

	_, err := env.service.Ingest(context.Background(), hashOf(payload), bytes.NewReader(payload), "broken.png", "")
	assert.True(t, IsValidation(err))
	assert.Zero(t, env.storage.objectCount())

	var count int64
	env.db.Model(&models.Picture{}).Count(&count)
	assert.Zero(t, count)
}

func TestIngestStorageFailureIsTransient(t *testing.T) {
	env := setupService(t)
	env.storage.failSave = true
	payload := pngPayload("stored")

	_, err := env.service.Ingest(context.Background(), hashOf(payload), bytes.NewReader(payload), "a.png", "")
	assert.True(t, IsTransient(err))

	var count int64
	env.db.Model(&models.Picture{}).Count(&count)
	assert.Zero(t, count, "no row without all blobs persisted")
}

type severedReader struct {
	data []byte
	pos  int
}

func (r *severedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data)/2 {
		return 0, fmt.Errorf("connection reset by peer")
	}
	n := copy(p, r.data[r.pos:len(r.data)/2])
	r.pos += n
	return n, nil
}

func TestIngestSeveredStreamLeavesNoTrace(t *testing.T) {
	env := setupService(t)
	payload := pngPayload("will be cut off halfway through the stream")

	_, err := env.service.Ingest(context.Background(), hashOf(payload), &severedReader{data: payload}, "a.png", "")
	assert.True(t, IsTransient(err))

	var count int64
	env.db.Model(&models.Picture{}).Count(&count)
	assert.Zero(t, count)
	assert.Zero(t, env.storage.objectCount())
}

func TestIngestCollectionAutoCreate(t *testing.T) {
	env := setupService(t)

	p1 := pngPayload("c1")
	first, err := env.service.Ingest(context.Background(), hashOf(p1), bytes.NewReader(p1), "a.png", "holiday")
	require.NoError(t, err)
	require.NotNil(t, first.Picture.CollectionID)

	// 同名集合复用，不重复创建
	p2 := pngPayload("c2")
	second, err := env.service.Ingest(context.Background(), hashOf(p2), bytes.NewReader(p2), "b.png", "holiday")
	require.NoError(t, err)
	require.NotNil(t, second.Picture.CollectionID)
	assert.Equal(t, *first.Picture.CollectionID, *second.Picture.CollectionID)

	var count int64
	env.db.Model(&models.Collection{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestIngestWithoutCollection(t *testing.T) {
	env := setupService(t)
	payload := pngPayload("solo")

	result, err := env.service.Ingest(context.Background(), hashOf(payload), bytes.NewReader(payload), "a.png", "")
	require.NoError(t, err)
	assert.Nil(t, result.Picture.CollectionID)
}

func TestDeleteRemovesRowAndBlobs(t *testing.T) {
	env := setupService(t)
	payload := pngPayload("gone")

	result, err := env.service.Ingest(context.Background(), hashOf(payload), bytes.NewReader(payload), "a.png", "")
	require.NoError(t, err)
	require.Equal(t, 3, env.storage.objectCount())

	require.NoError(t, env.service.Delete(context.Background(), result.Picture))

	var count int64
	env.db.Model(&models.Picture{}).Count(&count)
	assert.Zero(t, count)
	assert.Zero(t, env.storage.objectCount())

	// 删除后同一内容可以重新摄取为新行
	again, err := env.service.Ingest(context.Background(), hashOf(payload), bytes.NewReader(payload), "a.png", "")
	require.NoError(t, err)
	assert.False(t, again.IsDuplicate)
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "sunset", titleFromFilename("sunset.jpg"))
	assert.Equal(t, "archive.tar", titleFromFilename("archive.tar.gz"))
	assert.Equal(t, "noext", titleFromFilename("noext"))
	assert.Equal(t, ".hidden", titleFromFilename(".hidden"))
}
