package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jacentio/storefront/store"
)

// tx is a store.Tx bound to the session carried by the context it is called with.
type tx struct {
	db *mongo.Database
}

var _ store.Tx = (*tx)(nil)

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

// Exists reports whether the document exists and, if it does, writes a guard
// token into it so concurrent writers of the document conflict with this transaction.
func (t *tx) Exists(ctx context.Context, collection, id string) (bool, error) {
	update := bson.D{{Key: "$set", Value: bson.D{{Key: guardField, Value: primitive.NewObjectID()}}}}
	res, err := t.db.Collection(collection).UpdateOne(ctx, byID(id), update)
	if err != nil {
		return false, mapError(err)
	}
	return res.MatchedCount > 0, nil
}

// Count returns how many child documents hold parentID at rel.Field.
// Dotted fields match inside arrays of sub-documents.
func (t *tx) Count(ctx context.Context, rel store.Relationship, parentID string) (int64, error) {
	n, err := t.db.Collection(rel.ChildCollection).CountDocuments(ctx, bson.D{{Key: rel.Field, Value: parentID}})
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (t *tx) Get(ctx context.Context, collection, id string, dst any) error {
	return findOne(ctx, t.db.Collection(collection), byID(id), dst)
}

func (t *tx) FindOne(ctx context.Context, collection, field, value string, dst any) error {
	return findOne(ctx, t.db.Collection(collection), bson.D{{Key: field, Value: value}}, dst)
}

func (t *tx) Insert(ctx context.Context, doc store.Document) error {
	if _, err := t.db.Collection(doc.Collection()).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongostore: insert %s %q: %w", doc.Collection(), doc.DocumentID(), mapError(err))
	}
	return nil
}

func (t *tx) Replace(ctx context.Context, doc store.Document) error {
	res, err := t.db.Collection(doc.Collection()).ReplaceOne(ctx, byID(doc.DocumentID()), doc)
	if err != nil {
		return fmt.Errorf("mongostore: replace %s %q: %w", doc.Collection(), doc.DocumentID(), mapError(err))
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) Delete(ctx context.Context, collection, id string, dst any) error {
	res := t.db.Collection(collection).FindOneAndDelete(ctx, byID(id))
	err := res.Err()
	if err == nil && dst != nil {
		err = res.Decode(dst)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if err != nil {
		return mapError(err)
	}
	return nil
}
