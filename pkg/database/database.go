package database

import (
	"fmt"
	"log"
	"time"

	"lodging_booking/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	maxRetries = 10
	retryDelay = 5 * time.Second
)

// InitBookingDB connects to postgres, retrying while the database starts,
// and migrates the booking schema.
func InitBookingDB(dsn string) (*gorm.DB, error) {
	log.Printf("Connecting to booking database")

	var db *gorm.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		log.Printf("Database connection attempt %d/%d failed: %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Println("Database connection established successfully")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Place{}, &models.Room{}, &models.Reservation{}); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}
