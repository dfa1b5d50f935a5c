package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aurelle/picflow/database/models"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// migrateCmd 数据库迁移命令
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tools",
	Long:  `Migrate data from one database to another (e.g., SQLite to PostgreSQL).`,
}

// migrateRunCmd 执行迁移命令
var migrateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run database migration",
	Long: `Run database migration from source to target database.

Examples:
  # Migrate from SQLite to PostgreSQL
  picflow migrate run --from-sqlite ./data/picflow.db --to-postgres "host=localhost user=postgres password=secret dbname=picflow port=5432"`,
	Run: func(cmd *cobra.Command, args []string) {
		fromSQLite, _ := cmd.Flags().GetString("from-sqlite")
		toPostgres, _ := cmd.Flags().GetString("to-postgres")
		skipConfirm, _ := cmd.Flags().GetBool("yes")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		if err := runMigration(fromSQLite, toPostgres, skipConfirm, batchSize); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateRunCmd)

	migrateRunCmd.Flags().String("from-sqlite", "", "Source SQLite file path")
	migrateRunCmd.Flags().String("to-postgres", "", "Target PostgreSQL connection string")
	migrateRunCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	migrateRunCmd.Flags().Int("batch-size", 100, "Batch size for data migration")
}

// migrateStats 迁移统计
type migrateStats struct {
	collections int
	pictures    int
	skipped     int
	errors      []string
}

// runMigration 执行数据库迁移
func runMigration(fromSQLite, toPostgres string, skipConfirm bool, batchSize int) error {
	if fromSQLite == "" || toPostgres == "" {
		return fmt.Errorf("both --from-sqlite and --to-postgres are required")
	}

	log.Printf("Migrating from sqlite (%s) to postgres", fromSQLite)

	sourceDB, err := openDatabase(sqlite.Open(fromSQLite))
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	sqlDB, _ := sourceDB.DB()
	defer sqlDB.Close()

	targetDB, err := openDatabase(postgres.Open(toPostgres))
	if err != nil {
		return fmt.Errorf("failed to connect to target database: %w", err)
	}
	sqlDB2, _ := targetDB.DB()
	defer sqlDB2.Close()

	if !skipConfirm {
		fmt.Println("\nWarning: This will migrate all data from source to target database.")
		fmt.Print("Do you want to continue? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Migration cancelled.")
			return nil
		}
	}

	log.Println("Migrating database schema...")
	if err := targetDB.AutoMigrate(&models.Collection{}, &models.Picture{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	ctx := context.Background()
	stats := &migrateStats{}

	// 集合在前，图片的外键才能成立
	log.Println("Migrating collections...")
	if err := migrateCollections(ctx, sourceDB, targetDB, stats); err != nil {
		return fmt.Errorf("collections migration failed: %w", err)
	}

	log.Println("Migrating pictures...")
	if err := migratePictures(ctx, sourceDB, targetDB, stats, batchSize); err != nil {
		return fmt.Errorf("pictures migration failed: %w", err)
	}

	log.Printf("Migrated %d collections, %d pictures (skipped: %d, errors: %d)",
		stats.collections, stats.pictures, stats.skipped, len(stats.errors))
	for _, e := range stats.errors {
		log.Printf("  - %s", e)
	}

	if len(stats.errors) > 0 {
		return fmt.Errorf("migration completed with %d errors", len(stats.errors))
	}

	log.Println("Migration completed successfully!")
	return nil
}

// openDatabase 打开数据库连接
func openDatabase(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// migrateCollections 迁移集合数据
func migrateCollections(ctx context.Context, sourceDB, targetDB *gorm.DB, stats *migrateStats) error {
	var collections []models.Collection
	if err := sourceDB.WithContext(ctx).Find(&collections).Error; err != nil {
		return err
	}

	for _, collection := range collections {
		var count int64
		targetDB.WithContext(ctx).Model(&models.Collection{}).Where("id = ?", collection.ID).Count(&count)
		if count > 0 {
			stats.skipped++
			continue
		}

		collection.Pictures = nil
		if err := targetDB.WithContext(ctx).Create(&collection).Error; err != nil {
			stats.errors = append(stats.errors, fmt.Sprintf("failed to migrate collection %d: %v", collection.ID, err))
			continue
		}
		stats.collections++
	}
	return nil
}

// migratePictures 分批迁移图片数据
func migratePictures(ctx context.Context, sourceDB, targetDB *gorm.DB, stats *migrateStats, batchSize int) error {
	var offset int
	for {
		var batch []models.Picture
		if err := sourceDB.WithContext(ctx).Order("id ASC").Limit(batchSize).Offset(offset).Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		for _, picture := range batch {
			var count int64
			targetDB.WithContext(ctx).Model(&models.Picture{}).
				Where("id = ? OR file_hash = ?", picture.ID, picture.FileHash).Count(&count)
			if count > 0 {
				stats.skipped++
				continue
			}

			picture.Collection = nil
			if err := targetDB.WithContext(ctx).Create(&picture).Error; err != nil {
				stats.errors = append(stats.errors, fmt.Sprintf("failed to migrate picture %d: %v", picture.ID, err))
				continue
			}
			stats.pictures++
		}

		offset += batchSize
	}
}
