package sets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"cardtrack/internal/core"
)

// MongoDBStore stores set records in MongoDB, one collection per game.
type MongoDBStore struct {
	database *mongo.Database
}

// NewMongoDBStore creates collection indexes if needed.
func NewMongoDBStore(database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, g := range core.Games() {
		index := mongo.IndexModel{Keys: bson.D{{Key: g.DateField(), Value: -1}}}
		if _, err := database.Collection(g.Table()).Indexes().CreateOne(ctx, index); err != nil {
			return nil, fmt.Errorf("create %s indexes: %w", g.Table(), err)
		}
	}

	return &MongoDBStore{database: database}, nil
}

func mongoField(column string) string {
	if column == "id" {
		return "_id"
	}
	return column
}

func mongoFilter(filters []Filter) bson.M {
	filter := bson.M{}
	for _, f := range filters {
		field := mongoField(f.Column)
		if f.Op == OpEq {
			filter[field] = f.Value
			continue
		}
		cond, _ := filter[field].(bson.M)
		if cond == nil {
			cond = bson.M{}
		}
		if f.Op == OpGte {
			cond["$gte"] = f.Value
		} else {
			cond["$lte"] = f.Value
		}
		filter[field] = cond
	}
	return filter
}

// Query runs q against the game's collection.
func (s *MongoDBStore) Query(ctx context.Context, q Query) ([]core.SetRecord, error) {
	game, err := q.Validate()
	if err != nil {
		return nil, err
	}

	dir := 1
	if q.Order.Desc {
		dir = -1
	}
	sort := bson.D{}
	if q.Order.Column != "" && q.Order.Column != "id" {
		sort = append(sort, bson.E{Key: mongoField(q.Order.Column), Value: dir})
	}
	sort = append(sort, bson.E{Key: "_id", Value: dir})

	opts := options.Find().SetSort(sort)
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.database.Collection(q.Table).Find(ctx, mongoFilter(q.Filters), opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	defer cursor.Close(ctx)

	items := make([]core.SetRecord, 0)
	for cursor.Next(ctx) {
		var r core.SetRecord
		if err := cursor.Decode(&r); err != nil {
			return nil, fmt.Errorf("decode set document: %w", err)
		}
		r.Game = game
		items = append(items, r)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate sets cursor: %w", err)
	}
	return items, nil
}

// Get returns a set by id.
func (s *MongoDBStore) Get(ctx context.Context, game core.Game, id string) (*core.SetRecord, error) {
	if !game.Valid() {
		return nil, ErrNotFound
	}
	var r core.SetRecord
	err := s.database.Collection(game.Table()).FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query set: %w", err)
	}
	r.Game = game
	return &r, nil
}

// Upsert replaces records by id with a single bulk write.
func (s *MongoDBStore) Upsert(ctx context.Context, game core.Game, records []core.SetRecord) error {
	prepared, err := prepareRecords(game, records)
	if err != nil {
		return err
	}
	if len(prepared) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(prepared))
	for _, r := range prepared {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": r.ID}).
			SetReplacement(r).
			SetUpsert(true))
	}
	if _, err := s.database.Collection(game.Table()).BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("upsert sets: %w", err)
	}
	return nil
}

// Delete removes a set by id.
func (s *MongoDBStore) Delete(ctx context.Context, game core.Game, id string) error {
	if !game.Valid() {
		return ErrNotFound
	}
	res, err := s.database.Collection(game.Table()).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete set: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Close is a no-op; the shared storage owns the client.
func (s *MongoDBStore) Close() error {
	return nil
}
