// cmd/seeduser/main.go creates or resets an admin account.
// Usage: go run ./cmd/seeduser -username admin -password secret
package main

import (
	"context"
	"flag"
	"os"

	"github.com/shototoy/qr-attendance-api/internal/config"
	"github.com/shototoy/qr-attendance-api/internal/infra"
	"github.com/shototoy/qr-attendance-api/internal/model"
	"github.com/shototoy/qr-attendance-api/internal/service"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/clause"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	username := flag.String("username", "admin", "login name")
	password := flag.String("password", "", "password (required)")
	name := flag.String("name", "Administrator", "display name")
	flag.Parse()

	if *password == "" {
		log.Fatal().Msg("-password is required")
	}

	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect error")
	}

	hash, err := service.HashPassword(*password)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt error")
	}

	admin := model.StaffMember{
		Username:     *username,
		Name:         *name,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Active:       true,
	}
	err = db.WithContext(context.Background()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"password_hash", "name", "role", "active", "updated_at"}),
		}).
		Create(&admin).Error
	if err != nil {
		log.Fatal().Err(err).Msg("upsert error")
	}
	log.Info().Str("username", *username).Msg("admin account created or updated")
}
