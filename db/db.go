package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cobranca/config"
	"cobranca/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/rs/zerolog"
)

// Connect abre conexão com o DB (sqlite3 por padrão) e, se configurado, faz automigrate.
func Connect(conf config.Configuration, log zerolog.Logger) (*gorm.DB, error) {
	database := strings.ToLower(strings.TrimSpace(conf.Database))
	if database == "" {
		database = "sqlite3"
	}

	var (
		db  *gorm.DB
		err error
	)

	switch database {
	case "postgres", "postgresql":
		log.Info().Str("host", conf.DbHost).Str("db", conf.DbName).Msg("db: using postgresql")
		dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
			conf.DbHost, conf.DbPort, conf.DbUser, conf.DbName, conf.DbPass, conf.DbSSLMode)
		db, err = gorm.Open("postgres", dsn)
	case "sqlite3", "sqlite":
		path := conf.DbPath
		if path == "" {
			path = "db/database.db"
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
		}
		log.Info().Str("path", path).Msg("db: using sqlite3")
		db, err = gorm.Open("sqlite3", path)
		if err == nil {
			// SQLite prefers a single writer.
			db.DB().SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unknown database %q", conf.Database)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", database, err)
	}

	db.LogMode(conf.DbDebug)

	if conf.AutoMigrate {
		if err := Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info().Msg("db: automigrate done")
	}
	return db, nil
}

// Migrate creates or updates the tables the billing dispatch reads and writes.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Customer{},
		&models.BillingRule{},
		&models.RunLog{},
		&models.RunClaim{},
		&models.MessageLog{},
		&models.WhatsAppConfig{},
	).Error
}
