package resultsink

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/hpsweep/internal/ctxlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 3 * time.Second

// Mongo inserts one document per record into a collection.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect dials uri and checks the server answers before returning.
func Connect(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	logger := ctxlog.FromContext(ctx)

	dialCtx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Debug("Connected to MongoDB.", "database", database, "collection", collection)
	return &Mongo{client: client, collection: client.Database(database).Collection(collection)}, nil
}

// Record stores rec as a new document keyed by its id.
func (m *Mongo) Record(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	if _, err := m.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to record run %s: %w", rec.ConfigPath, err)
	}
	return nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
