package collections

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aurelle/picflow/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Collection{}, &models.Picture{}))
	return db
}

func TestFindOrCreateIsIdempotent(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	first, err := repo.FindOrCreate("holiday")
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := repo.FindOrCreate("holiday")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestFindOrCreateConcurrentConvergesToOneRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	const workers = 8
	ids := make([]uint, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := repo.FindOrCreate("race")
			errs[i] = err
			if c != nil {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var count int64
	db.Model(&models.Collection{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestDeleteDetachesPictures(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	collection, err := repo.FindOrCreate("doomed")
	require.NoError(t, err)

	picture := &models.Picture{
		Identifier:   "original/2026/01/01/abc",
		FileHash:     fmt.Sprintf("%064d", 1),
		Title:        "survivor",
		OriginalPath: "original/2026/01/01/abc.jpg",
		CollectionID: &collection.ID,
	}
	require.NoError(t, db.Create(picture).Error)

	require.NoError(t, repo.Delete(collection.ID))

	_, err = repo.GetByID(collection.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	// 图片本身保留，只是退回未分组
	var survivor models.Picture
	require.NoError(t, db.First(&survivor, picture.ID).Error)
	assert.Nil(t, survivor.CollectionID)
}

func TestListOrdersByName(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	for _, name := range []string{"zoo", "alpha", "middle"} {
		_, err := repo.FindOrCreate(name)
		require.NoError(t, err)
	}

	result, err := repo.List()
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "alpha", result[0].Name)
	assert.Equal(t, "middle", result[1].Name)
	assert.Equal(t, "zoo", result[2].Name)
}
