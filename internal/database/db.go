package database

import (
	"fmt"
	"time"

	"github.com/Baaaki/storyline/internal/config"
	"github.com/Baaaki/storyline/internal/models"
	"github.com/Baaaki/storyline/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Unique indexes AutoMigrate cannot express: case-insensitive usernames and
// the one-story-per-prompt identity rules.
var indexStatements = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_users_username_lower ON users (LOWER(username))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_story_user_per_day ON stories (prompt_id, user_id) WHERE user_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_story_device_per_day ON stories (prompt_id, device_token) WHERE user_id IS NULL AND device_token IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_story_ip_per_day ON stories (prompt_id, ip_hash) WHERE user_id IS NULL AND device_token IS NULL AND ip_hash IS NOT NULL`,
}

// Open returns a gorm handle for the given driver ("postgres" or "sqlite").
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(
			zap.NewStdLog(logger.Named("gorm")),
			gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
}

func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if cfg.DatabaseDriver == "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	DB = db
	logger.Log.Info("Database connected", zap.String("driver", cfg.DatabaseDriver))
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Quote{},
		&models.Story{},
		&models.Flower{},
		&models.PasswordResetToken{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for _, stmt := range indexStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	logger.Log.Info("Database migration completed")
	return nil
}
