package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wuwenbin0122/docchat/internal/docs"
	"github.com/wuwenbin0122/docchat/internal/models"
	"github.com/wuwenbin0122/docchat/internal/utils"
)

type Mongo struct {
	Client    *mongo.Client
	Database  *mongo.Database
	Documents *mongo.Collection
}

var _ docs.Lookup = (*Mongo)(nil)

// documentRecord is the stored form of a models.Document.
type documentRecord struct {
	ID        string    `bson:"_id"`
	ChatID    string    `bson:"chat_id"`
	Name      string    `bson:"name"`
	Type      string    `bson:"type"`
	CreatedAt time.Time `bson:"created_at"`
}

func NewMongo(ctx context.Context, cfg utils.MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo: uri is required")
	}

	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	db := client.Database(cfg.Database)
	return &Mongo{
		Client:    client,
		Database:  db,
		Documents: db.Collection("documents"),
	}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.Client.Disconnect(ctx)
}

func (m *Mongo) EnsureCollections(ctx context.Context) error {
	if m == nil || m.Database == nil {
		return fmt.Errorf("mongo: database not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.Documents.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "name", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure document index: %w", err)
	}

	return nil
}

// ListDocuments returns the documents of chatID sorted by name.
func (m *Mongo) ListDocuments(ctx context.Context, chatID string) ([]models.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := m.Documents.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find documents: %w", err)
	}
	defer cursor.Close(ctx)

	var records []documentRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("mongo: decode documents: %w", err)
	}

	out := make([]models.Document, 0, len(records))
	for _, r := range records {
		out = append(out, models.Document{ID: r.ID, Name: r.Name, Type: r.Type})
	}
	return out, nil
}

// SeedDocuments upserts every document of table, keyed by document id.
func (m *Mongo) SeedDocuments(ctx context.Context, table map[string][]models.Document) (int, error) {
	now := time.Now().UTC()
	written := 0
	for chatID, list := range table {
		for _, doc := range list {
			record := documentRecord{ID: doc.ID, ChatID: chatID, Name: doc.Name, Type: doc.Type, CreatedAt: now}
			_, err := m.Documents.ReplaceOne(ctx, bson.M{"_id": doc.ID}, record, options.Replace().SetUpsert(true))
			if err != nil {
				return written, fmt.Errorf("mongo: upsert document %s: %w", doc.ID, err)
			}
			written++
		}
	}
	return written, nil
}

func timeoutOrDefault(value time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return 10 * time.Second
}
