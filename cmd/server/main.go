package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handler "orghub-backend/api"
	"orghub-backend/pkg/config"
	"orghub-backend/pkg/database"
)

func main() {
	cfg, err := config.GetCached()
	if err != nil {
		fmt.Printf("[error] failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("[error] invalid configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := database.GetDatabase(database.DatabaseConfig{
		PostgresDSN: cfg.PostgresDSN,
		UseMemoryDB: cfg.UseMemoryDB,
		Debug:       cfg.Debug,
	})
	if err != nil {
		fmt.Printf("[error] failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.NewRouter(cfg, db),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		fmt.Printf("🚀 Server listening on :%s (%s)\n", cfg.Port, cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("[error] server stopped: %v\n", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Printf("⏳ Shutting down...\n")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		fmt.Printf("[warn] graceful shutdown failed: %v\n", err)
	}
	if err := database.CloseDatabase(); err != nil {
		fmt.Printf("[warn] database close failed: %v\n", err)
	}
	fmt.Printf("✅ Server stopped\n")
}
