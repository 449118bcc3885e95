// Package repositories provides the data access layer.
// It handles all database operations and data persistence logic.
package repositories

import (
	"log"
	"time"

	"mebike/internal/config"
	"mebike/internal/models"
	"mebike/internal/repositories/cache"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB is the global database instance used across the application.
var DB *gorm.DB

// CacheService backs the wallet read cache.
var CacheService *cache.CacheService

// DBConfig holds database connection pool configuration
type DBConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

var dbConfig = DBConfig{
	MaxIdleConns:    10,
	MaxOpenConns:    100,
	ConnMaxLifetime: time.Hour,
	ConnMaxIdleTime: time.Minute * 30,
}

// Partial unique indexes GORM tags cannot express. These are load-bearing:
// the hold and scheduling invariants rely on the database rejecting the
// racing insert, not on application-level checks.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_reservations_user_active
		ON reservations (user_id)
		WHERE status IN ('PENDING', 'ACTIVE')`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_reservations_bike_active
		ON reservations (bike_id)
		WHERE status IN ('PENDING', 'ACTIVE') AND bike_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_reservations_template_start
		ON reservations (fixed_slot_template_id, start_time)
		WHERE status IN ('PENDING', 'ACTIVE') AND fixed_slot_template_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_job_outbox_type_dedupe
		ON job_outboxes (type, dedupe_key)
		WHERE status = 'PENDING' AND dedupe_key IS NOT NULL`,
}

// InitDB initializes the database connection.
// It sets up the connection pool, performs migrations,
// and configures the database with proper settings.
func InitDB() error {
	if err := initPostgres(); err != nil {
		return err
	}

	redisCfg := &cache.RedisConfig{
		Host:     config.GetEnv("REDIS_HOST", "localhost"),
		Port:     config.GetEnv("REDIS_PORT", "6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetIntEnv("REDIS_DB", 0),
	}
	CacheService = cache.NewCacheService(cache.NewRedisClient(redisCfg), 24*time.Hour)

	err := DB.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.WalletHold{},
		&models.WalletWithdrawal{},
		&models.PaymentAttempt{},
		&models.Station{},
		&models.Bike{},
		&models.Subscription{},
		&models.FixedSlotTemplate{},
		&models.FixedSlotDate{},
		&models.Reservation{},
		&models.Rental{},
		&models.JobOutbox{},
	)
	if err != nil {
		return err
	}

	for _, stmt := range partialIndexes {
		if err := DB.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}

func initPostgres() error {
	dsn := "host=" + config.GetEnv("DB_HOST", "localhost") +
		" user=" + config.GetEnv("DB_USER", "postgres") +
		" password=" + config.GetEnv("DB_PASSWORD", "postgres") +
		" dbname=" + config.GetEnv("DB_NAME", "mebike") +
		" port=" + config.GetEnv("DB_PORT", "5432") +
		" sslmode=" + config.GetEnv("DB_SSLMODE", "disable")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return err
	}

	DB = db

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(dbConfig.ConnMaxIdleTime)

	log.Println("connected to postgres")
	return nil
}

// RunInTransaction wraps fn in a single database transaction: commit on nil,
// rollback on any error, domain errors included. Use cases rely on this to
// keep multi-row invariants (reservation + rental + bike + outbox, or
// withdrawal + hold + reserved balance) atomic.
func RunInTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.Transaction(fn)
}
