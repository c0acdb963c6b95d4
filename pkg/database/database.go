package database

import (
	"time"

	"shopease-backend/internal/model"
	"shopease-backend/pkg/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Connect opens the database connection described by cfg, retrying with
// exponential backoff up to cfg.ConnectRetries attempts. The handle is
// returned to the caller and also stored in the package-level DB for
// handler access.
func Connect(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  cfg.GetDSN(),
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	}

	var db *gorm.DB
	var err error
	for attempt := 1; ; attempt++ {
		db, err = gorm.Open(postgres.New(pgConfig), gormConfig)
		if err == nil {
			break
		}
		if attempt >= cfg.ConnectRetries {
			return nil, &model.ConnectionError{Err: err}
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		log.Warn("failed to connect to database, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", sleep),
			zap.Error(err))
		time.Sleep(sleep)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, &model.ConnectionError{Err: err}
	}

	// Set connection pool settings from config
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info("database connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name))

	DB = db
	return db, nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Error
	}
}
