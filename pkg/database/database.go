// backend/pkg/database/database.go
package database

import (
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"quizzems/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	// Path is the sqlite file, ":memory:" for a throwaway database.
	Path string
	// Verbose logs every statement.
	Verbose bool
}

// Open connects to the configured database. Postgres is the production
// driver; sqlite serves local development and tests.
func Open(config *Config) (*gorm.DB, error) {
	// Authors may live in an external identity store, so collections don't
	// get a foreign key to users.
	gcfg := &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
	}
	if config.Verbose {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	switch config.Driver {
	case "", DriverPostgres:
		return NewPostgresDB(config, gcfg)
	case DriverSQLite:
		return NewSQLiteDB(config, gcfg)
	}
	return nil, fmt.Errorf("unknown database driver %q", config.Driver)
}

func NewPostgresDB(config *Config, gcfg *gorm.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		config.Host,
		config.User,
		config.Password,
		config.DBName,
		config.Port,
	)

	db, err := gorm.Open(postgres.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to postgres at %s:%s/%s", config.Host, config.Port, config.DBName)
	return db, nil
}

func NewSQLiteDB(config *Config, gcfg *gorm.Config) (*gorm.DB, error) {
	path := config.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), gcfg)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	log.Printf("Opened sqlite database %s", path)
	return db, nil
}

// Migrate creates or updates every table the server uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Collection{},
		&models.Item{},
		&models.CompletedQuiz{},
	)
}
