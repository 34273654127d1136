package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"projecthub/internal/platform/config"
	"projecthub/internal/platform/database"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("load config", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		fail("open database", err)
	}
	defer db.Close()

	ctx := context.Background()
	applied, err := database.Migrate(ctx, db)
	if err != nil {
		fail("migrate", err)
	}
	for _, name := range applied {
		fmt.Println("Applied", name)
	}

	version, err := database.Version(ctx, db)
	if err != nil {
		fail("read schema version", err)
	}
	fmt.Printf("Schema at version %d\n", version)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
