// @title           ResQWave Coordination Service API
// @version         1.0
// @description     Alert lifecycle and real-time dispatch coordination for LoRa flood-warning terminals

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Enter the token with the `Bearer: ` prefix
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Xine003/ResQWave-sub002/config"
	"github.com/Xine003/ResQWave-sub002/models"
	"github.com/Xine003/ResQWave-sub002/routes"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// Initialize logging
	if err := config.SetupLogger(); err != nil {
		fmt.Printf("failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	// Load the .env file; environment variables may also be set externally
	if err := godotenv.Load(); err != nil {
		config.Warning("could not load .env file: %v", err)
	} else {
		config.Info("loaded .env file")
	}

	cfg := config.GetConfig()

	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("could not connect to the database: %v", err)
	}

	if cfg.DBMigrationMode == "drop" {
		log.Println("warning: running in drop mode, all tables will be dropped and recreated")
		if err := dropAndRecreateTables(db); err != nil {
			log.Fatalf("drop and recreate failed: %v", err)
		}
	} else {
		// Default AutoMigrate only adds new columns and tables
		if err := autoMigrate(db); err != nil {
			log.Fatalf("auto migration failed: %v", err)
		}
	}

	// Make sure the system has an administrator account
	ensureAdminExists(db, cfg)

	r := routes.SetupRouter(db, cfg)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = cfg.ServerPort
	}

	config.Info("server listening on: http://localhost:%s", port)
	if err := r.Run(":" + port); err != nil {
		config.Error("failed to start server: %v", err)
		os.Exit(1)
	}
}

// initDB initializes the database connection
func initDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	fmt.Println("Database connection established")
	return db, nil
}

// autoMigrate migrates all models (only adds new columns and tables)
func autoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Admin{},
		&models.Dispatcher{},
		&models.CommunityGroup{},
		&models.FocalPerson{},
		&models.Terminal{},
		&models.Alert{},
		&models.Respond{},
		&models.Result{},
		&models.IDCounter{},
	)

	if err != nil {
		return err
	}

	fmt.Println("Database migration completed")
	return nil
}

// dropAndRecreateTables drops and recreates all tables
func dropAndRecreateTables(db *gorm.DB) error {
	// Warning: this destroys all data
	log.Println("warning: dropping and recreating all tables")

	db.Exec("SET FOREIGN_KEY_CHECKS = 0")
	defer db.Exec("SET FOREIGN_KEY_CHECKS = 1")

	var tables []string
	err := db.Raw("SHOW TABLES").Scan(&tables).Error
	if err != nil {
		return fmt.Errorf("failed to get table names: %w", err)
	}

	for _, table := range tables {
		log.Printf("dropping table: %s", table)
		err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS `%s`", table)).Error
		if err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	log.Println("recreating all tables")
	return autoMigrate(db)
}

// ensureAdminExists makes sure there is at least one administrator account
func ensureAdminExists(db *gorm.DB, cfg *config.Config) {
	var count int64
	db.Model(&models.Admin{}).Count(&count)

	if count == 0 {
		defaultPassword := "admin123"
		if cfg.DefaultAdminPassword != "" {
			defaultPassword = cfg.DefaultAdminPassword
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("could not hash default admin password: %v", err)
			return
		}

		admin := models.Admin{
			BaseModel: models.BaseModel{ID: "ADM001"},
			Username:  "admin",
			Password:  string(hashedPassword),
			Email:     "admin@example.com",
			Phone:     "0000000000",
		}

		result := db.Create(&admin)
		if result.Error != nil {
			log.Printf("could not create default admin: %v", result.Error)
			return
		}

		log.Println("created default admin account (username: admin)")
	}
}
