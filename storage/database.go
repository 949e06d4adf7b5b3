package storage

import (
	"os"

	"lan-linkup-server/logger"
	"lan-linkup-server/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func connectToDB() *gorm.DB {
	// Only load .env in development (when RENDER env var is not set)
	if os.Getenv("RENDER") == "" {
		err := godotenv.Load()
		if err != nil {
			logger.Warn("could not load .env file (this is normal in production)")
		}
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		logger.Fatal("DB_CONNECTION_STRING environment variable is required")
	}

	db, dbError := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if dbError != nil {
		logger.Fatal("error connecting to db", "error", dbError)
	}

	DB = db
	return db
}

func PerformMigrations(db *gorm.DB) {
	db.AutoMigrate(
		&models.User{},
		&models.Party{},
		&models.PartyAttendee{},
		&models.Friendship{},
		&models.Notification{},
	)
}

func InitializeDB() *gorm.DB {
	db := connectToDB()
	PerformMigrations(db)
	return db
}
