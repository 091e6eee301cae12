package config

import (
	"fmt"
	"strings"

	"food-ordering-api/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB picks the driver from the DATABASE_URL scheme: postgres:// for the
// hosted database, sqlite:// or file: for local development.
func OpenDB(databaseURL string) (*gorm.DB, error) {
	dialector, err := dialectorFor(databaseURL)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// OpenMemoryDB opens a private in-memory SQLite database, migrated and ready.
func OpenMemoryDB(name string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func dialectorFor(databaseURL string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.Open(databaseURL), nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://")), nil
	case strings.HasPrefix(databaseURL, "file:"):
		return sqlite.Open(databaseURL), nil
	}
	return nil, fmt.Errorf("unsupported DATABASE_URL scheme")
}

// Migrate creates or updates every table the API uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.City{},
		&models.Restaurant{},
		&models.TeamMember{},
		&models.MenuItem{},
		&models.Driver{},
		&models.Voucher{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.LoyaltyPoints{},
		&models.LoyaltyTransaction{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}
