// Package indexes ensures the MongoDB indexes the application relies on.
//
// EnsureAll is called once during startup, after the database connection is
// established. Index creation in MongoDB is idempotent when the definition
// matches an existing index, so repeated startups are safe. When a definition
// changed (for example an index gained the unique option), the old index is
// dropped and recreated.
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// spec describes one index we want to exist on a collection.
type spec struct {
	name   string
	keys   bson.D
	unique bool
}

// EnsureAll creates or reconciles every index the application depends on.
// Failures are collected per collection so one bad index does not mask
// the rest; the combined error is returned to the caller.
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	var problems []string

	ensure := func(coll string, specs []spec) {
		if err := ensureIndexSet(ctx, db.Collection(coll), specs, logger); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", coll, err))
		}
	}

	ensure("users", []spec{
		{name: "email_unique", keys: bson.D{{Key: "email", Value: 1}}, unique: true},
	})

	ensure("rooms", []spec{
		{name: "name_idx", keys: bson.D{{Key: "name", Value: 1}}},
		{name: "occupancy_state_idx", keys: bson.D{{Key: "occupancy_state", Value: 1}}},
	})

	// The unique index on room_id is the storage-level backstop for the
	// sole-occupancy rule: even if application logic misfires, a second
	// live allocation for the same room cannot be inserted.
	ensure("room_allocations", []spec{
		{name: "room_unique", keys: bson.D{{Key: "room_id", Value: 1}}, unique: true},
		{name: "user_idx", keys: bson.D{{Key: "user_id", Value: 1}}},
	})

	if len(problems) > 0 {
		return errors.New("index setup failed: " + strings.Join(problems, "; "))
	}
	return nil
}

// ensureIndexSet reconciles the desired specs against the indexes that
// already exist on the collection. An index whose key pattern and unique
// option match is left alone; a same-named index with a different
// definition is dropped and recreated.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, specs []spec, logger *zap.Logger) error {
	existing, err := listIndexes(ctx, coll)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}

	for _, s := range specs {
		cur, found := existing[s.name]
		if found && cur.matches(s) {
			continue
		}
		if found {
			logger.Info("dropping outdated index",
				zap.String("collection", coll.Name()),
				zap.String("index", s.name))
			if _, err := coll.Indexes().DropOne(ctx, s.name); err != nil {
				return fmt.Errorf("drop %s: %w", s.name, err)
			}
		}

		model := mongo.IndexModel{
			Keys:    s.keys,
			Options: options.Index().SetName(s.name).SetUnique(s.unique),
		}
		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
		logger.Info("created index",
			zap.String("collection", coll.Name()),
			zap.String("index", s.name),
			zap.Bool("unique", s.unique))
	}
	return nil
}

// indexInfo is the subset of a listed index we compare against a spec.
type indexInfo struct {
	keySig string
	unique bool
}

func (i indexInfo) matches(s spec) bool {
	return i.keySig == keySig(s.keys) && i.unique == s.unique
}

func listIndexes(ctx context.Context, coll *mongo.Collection) (map[string]indexInfo, error) {
	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make(map[string]indexInfo)
	for cursor.Next(ctx) {
		var doc struct {
			Name   string `bson:"name"`
			Key    bson.D `bson:"key"`
			Unique *bool  `bson:"unique"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out[doc.Name] = indexInfo{
			keySig: keySig(doc.Key),
			unique: doc.Unique != nil && *doc.Unique,
		}
	}
	return out, cursor.Err()
}

// keySig renders a key pattern as a stable comparison string.
func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, e := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", e.Key, e.Value))
	}
	return strings.Join(parts, ",")
}
