//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/acumant/ai-portal/internal/database"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/acumant/ai-portal/pkg/config"
	"github.com/acumant/ai-portal/pkg/crypto"
	"github.com/acumant/ai-portal/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, "portal-seed")

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = cfg.Store.SeedPassword
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	fixture := entitlement.ReferenceFixture()
	if err := fixture.Apply(context.Background(), entitlement.NewGormStore(db), hash); err != nil {
		log.Fatalf("failed to seed reference data: %v", err)
	}

	fmt.Printf("Seeded %d organizations, %d tools and %d users\n",
		len(fixture.Organizations), len(fixture.Tools), len(fixture.Users))
	for _, u := range fixture.Users {
		fmt.Printf("  %-12s %-32s org=%s\n", u.Role, u.Email, u.OrganizationID)
	}
	fmt.Printf("Password for every seeded user: %s\n", password)
}
