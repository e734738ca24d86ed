// Package mongo stores the document as a single record in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultDatabase is used when no database name is configured.
	DefaultDatabase = "ember"
	collectionName  = "ember_state"
	documentID      = "document"
)

type stateRecord struct {
	ID      string    `bson:"_id"`
	Payload string    `bson:"payload"`
	SavedAt time.Time `bson:"saved_at"`
}

// Backend keeps the document in the `ember_state` collection under a fixed id.
type Backend struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// New connects to uri and verifies the server is reachable.
func New(ctx context.Context, uri, database string) (*Backend, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		database = DefaultDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Backend{client: client, coll: client.Database(database).Collection(collectionName)}, nil
}

func (b *Backend) Name() string { return "mongo" }

func (b *Backend) Load(ctx context.Context) ([]byte, error) {
	var rec stateRecord
	err := b.coll.FindOne(ctx, bson.M{"_id": documentID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find state: %w", err)
	}
	return []byte(rec.Payload), nil
}

func (b *Backend) Save(ctx context.Context, payload []byte) error {
	rec := stateRecord{ID: documentID, Payload: string(payload), SavedAt: time.Now().UTC()}
	_, err := b.coll.ReplaceOne(ctx, bson.M{"_id": documentID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}
