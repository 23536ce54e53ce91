package main

import (
	"log"

	"attestd/internal/config"
	"attestd/internal/infra/db"
	"attestd/internal/infra/httpapi"
)

func main() {
	cfg := config.FromEnv()

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	srv := httpapi.NewServer(cfg, store)
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
