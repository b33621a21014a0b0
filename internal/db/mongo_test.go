package db_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wuwenbin0122/docchat/internal/db"
	"github.com/wuwenbin0122/docchat/internal/models"
	"github.com/wuwenbin0122/docchat/internal/utils"
)

func TestMongoSeedAndListDocuments(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping mongo integration test")
	}

	database := "docchat_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	cfg := utils.MongoConfig{
		URI:            uri,
		Database:       database,
		ConnectTimeout: 5 * time.Second,
	}

	store, err := db.NewMongo(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}
	defer func() {
		ctx := context.Background()
		store.Database.Drop(ctx)
		store.Close(ctx)
	}()

	ctx := context.Background()
	if err := store.EnsureCollections(ctx); err != nil {
		t.Fatalf("ensure collections failed: %v", err)
	}

	written, err := store.SeedDocuments(ctx, models.WelcomeDocuments())
	if err != nil {
		t.Fatalf("seed documents: %v", err)
	}
	if written != 3 {
		t.Fatalf("expected 3 documents written, got %d", written)
	}

	// seeding twice must not duplicate
	if _, err := store.SeedDocuments(ctx, models.WelcomeDocuments()); err != nil {
		t.Fatalf("reseed documents: %v", err)
	}

	docs, err := store.ListDocuments(ctx, "chat-1")
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != 2 || docs[0].Name != "Getting Started.pdf" || docs[1].Name != "User Guide.md" {
		t.Fatalf("unexpected documents %+v", docs)
	}

	docs, err = store.ListDocuments(ctx, "unknown")
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", docs)
	}
}
