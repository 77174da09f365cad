package database

import (
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sekikawa/project-management-api/internal/config"
	"github.com/sekikawa/project-management-api/internal/models"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
	)

	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	return nil
}

func Migrate() error {
	if err := DB.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Project{},
		&models.TeamMember{},
		&models.Milestone{},
		&models.Comment{},
		&models.Activity{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return SeedRoles(DB)
}

// SeedRoles inserts the fixed role set if absent. Roles are reference data;
// existing rows are left untouched.
func SeedRoles(db *gorm.DB) error {
	for _, role := range models.DefaultRoles() {
		var existing models.Role
		err := db.Where("`key` = ?", role.Key).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check role %s: %w", role.Key, err)
		}
		if err := db.Create(&role).Error; err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Key, err)
		}
	}
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (used for testing)
func SetDB(db *gorm.DB) {
	DB = db
}
