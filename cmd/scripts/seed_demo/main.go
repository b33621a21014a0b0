package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/wuwenbin0122/docchat/internal/db"
	"github.com/wuwenbin0122/docchat/internal/history"
	"github.com/wuwenbin0122/docchat/internal/models"
	"github.com/wuwenbin0122/docchat/internal/utils"
)

// Seeds PostgreSQL with the welcome chats and MongoDB with their documents.
// Existing welcome chats are replaced, so the script can be rerun.
func main() {
	if err := utils.LoadEnvFiles(); err != nil {
		log.Printf("config: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer postgres.Close()

	if err := postgres.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	for _, seed := range models.WelcomeChats(time.Now().UTC()) {
		if err := postgres.DeleteChat(ctx, seed.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			log.Fatalf("reset chat %s: %v", seed.ID, err)
		}
		if err := postgres.AppendExchange(ctx, seed.ID, history.DefaultOwner, seed.Messages...); err != nil {
			log.Fatalf("seed chat %s: %v", seed.ID, err)
		}
		log.Printf("seeded chat %s (%s) with %d messages", seed.ID, seed.Title, len(seed.Messages))
	}

	mongoStore, err := db.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		log.Fatalf("connect mongo: %v", err)
	}
	defer func() {
		if err := mongoStore.Close(context.Background()); err != nil {
			log.Printf("mongo: close error: %v", err)
		}
	}()

	if err := mongoStore.EnsureCollections(ctx); err != nil {
		log.Fatalf("ensure collections: %v", err)
	}

	written, err := mongoStore.SeedDocuments(ctx, models.WelcomeDocuments())
	if err != nil {
		log.Fatalf("seed documents: %v", err)
	}
	log.Printf("seeded %d documents", written)
}
