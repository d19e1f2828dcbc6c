package audit

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoRecorder stores events in a MongoDB collection.
type MongoRecorder struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoRecorder connects and pings the server.
func NewMongoRecorder(ctx context.Context, uri, database, collection string) (*MongoRecorder, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("audit: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("audit: ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "resource_id", Value: 1}, {Key: "at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("audit: create index: %w", err)
	}

	return &MongoRecorder{client: client, coll: coll}, nil
}

func (r *MongoRecorder) Record(ctx context.Context, e *Event) error {
	if _, err := r.coll.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

func (r *MongoRecorder) Recent(ctx context.Context, resourceID string, limit int) ([]Event, error) {
	filter := bson.M{}
	if resourceID != "" {
		filter["resource_id"] = resourceID
	}

	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("audit: find events: %w", err)
	}

	events := []Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("audit: decode events: %w", err)
	}
	return events, nil
}

func (r *MongoRecorder) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
