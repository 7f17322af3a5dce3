package main

import (
	"context"
	"flag"
	"log"
	"os"

	"orderdesk/internal/config"
	"orderdesk/internal/db"
	"orderdesk/internal/migrate"

	"github.com/joho/godotenv"
)

func main() {
	rollback := flag.Int("rollback", 0, "revert this many migrations instead of applying")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[migrate] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if *rollback > 0 {
		if err := migrate.Rollback(ctx, pool, *rollback); err != nil {
			logger.Fatalf("rollback migrations: %v", err)
		}
		logger.Printf("rolled back %d migrations", *rollback)
		return
	}

	if err := migrate.Apply(ctx, pool, logger); err != nil {
		logger.Fatalf("apply migrations: %v", err)
	}

	logger.Println("migrations applied")
}
