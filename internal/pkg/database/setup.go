package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

// GetDB returns the shared connection, nil before SetupDatabase ran.
func GetDB() *gorm.DB {
	return DB
}

func SetupDatabase() {
	var err error
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), &gorm.Config{})
		if err == nil {
			if env.GetEnvBool("DB_AUTO_MIGRATE", env.IsDev()) {
				if err := DB.AutoMigrate(models.All()...); err != nil {
					log.Printf("Auto migration failed: %v", err)
				}
			}
			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}
