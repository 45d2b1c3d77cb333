package main

import (
	"fmt"
	"os"

	"orghub-backend/pkg/config"
	"orghub-backend/pkg/database"
)

func main() {
	cfg, err := config.GetCached()
	if err != nil {
		fmt.Printf("[error] failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.PostgresDSN == "" {
		fmt.Printf("[error] POSTGRES_DSN is required for migrations\n")
		os.Exit(1)
	}

	if err := database.Migrate(cfg.PostgresDSN); err != nil {
		fmt.Printf("[error] migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Migrations applied\n")
}
