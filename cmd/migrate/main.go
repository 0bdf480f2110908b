package main

import (
	"context"
	"os"
	mongoMigration "otithi/internal/migrations/mongo"
	usersrepo "otithi/internal/users/repository"
	"otithi/pkg/config"
	"time"
)

const JobName = "mongo-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetMongo()
	defer cfg.Client.GracefulShutdown(cfg.Log)

	cfg.Log.Info("Starting Mongo migration job")
	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo.Database(), cfg.Log); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}

	seedAdmin(ctx, cfg)
	cfg.Log.Info("Migration completed successfully")
}

// seedAdmin runs only when ADMIN_EMAIL is set.
func seedAdmin(ctx context.Context, cfg *config.Config) {
	email := os.Getenv(config.EnvAdminEmail)
	if email == "" {
		cfg.Log.Info("ADMIN_EMAIL not set, skipping admin seed")
		return
	}

	name := os.Getenv(config.EnvAdminName)
	if name == "" {
		name = config.DefaultAdminName
	}

	_, err := mongoMigration.SeedAdmin(ctx, usersrepo.NewMongoUserRepository(cfg), mongoMigration.AdminSeed{
		Email:    email,
		Password: os.Getenv(config.EnvAdminPassword),
		Name:     name,
	}, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Admin seed failed", "error", err)
	}
}
