package mongostore

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jacentio/storefront/store"
)

// EnsureIndexes creates a unique index for every field in unique (collection
// to fields) and a plain index on the referencing field of every registered
// relationship. Existing indexes with the same keys are left alone.
func (s *Store) EnsureIndexes(ctx context.Context, unique map[string][]string) error {
	for _, m := range indexModels(unique, s.registry.AllRelationships()) {
		if _, err := s.db.Collection(m.collection).Indexes().CreateOne(ctx, m.model); err != nil {
			return fmt.Errorf("mongostore: create index on %s: %w", m.collection, err)
		}
	}
	return nil
}

type collectionIndex struct {
	collection string
	model      mongo.IndexModel
}

// indexModels lists the indexes EnsureIndexes creates, unique ones first.
func indexModels(unique map[string][]string, relationships []store.Relationship) []collectionIndex {
	var out []collectionIndex
	seen := make(map[string]bool)
	add := func(collection, field string, isUnique bool) {
		key := collection + "." + field
		if seen[key] {
			return
		}
		seen[key] = true
		opts := options.Index()
		if isUnique {
			opts.SetUnique(true)
		}
		out = append(out, collectionIndex{
			collection: collection,
			model:      mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}, Options: opts},
		})
	}

	collections := make([]string, 0, len(unique))
	for c := range unique {
		collections = append(collections, c)
	}
	sort.Strings(collections)
	for _, c := range collections {
		for _, field := range unique[c] {
			add(c, field, true)
		}
	}
	for _, rel := range relationships {
		add(rel.ChildCollection, rel.Field, false)
	}
	return out
}
