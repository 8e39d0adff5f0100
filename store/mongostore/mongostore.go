// Package mongostore implements store.Backend on MongoDB.
//
// Every transaction runs on a client session with snapshot read concern and
// majority write concern. Snapshot isolation only detects write-write
// conflicts, so a positive existence check inside a transaction also writes a
// guard token into the referenced document:
//
//	{$set: {_guard: ObjectId()}}
//
// A concurrent transaction deleting or replacing that document then conflicts
// with the writer and one of them fails with store.ErrConcurrentModification.
// Unique fields are enforced by unique indexes created with EnsureIndexes.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/jacentio/storefront/store"
)

// guardField is written by Exists to turn read-write races into write conflicts.
const guardField = "_guard"

// Store is a store.Backend backed by a MongoDB replica set.
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	registry *store.Registry
	config   Config
}

var _ store.Backend = (*Store)(nil)

// Connect dials uri and waits until the primary answers a ping.
func Connect(ctx context.Context, uri string, config Config) (*mongo.Client, error) {
	config.validate()
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(config.ConnectTimeout).
		SetConnectTimeout(config.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}
	return client, nil
}

// New creates a new Store on the configured database of client.
// The registry is used by EnsureIndexes to index reference fields.
func New(client *mongo.Client, registry *store.Registry, config Config) *Store {
	config.validate()
	if registry == nil {
		registry = store.NewRegistry()
	}
	return &Store{
		client:   client,
		db:       client.Database(config.Database),
		registry: registry,
		config:   config,
	}
}

// Client returns the client the store was created with.
func (s *Store) Client() *mongo.Client {
	return s.client
}

// Database returns the database the store reads and writes.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// RunInTransaction runs fn inside a multi-document transaction and commits it
// when fn returns nil. fn is called exactly once; transient errors are
// reported as store.ErrConcurrentModification rather than retried.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongostore: start session: %w", err)
	}
	// Ending the session aborts a transaction left open by a panic in fn.
	defer session.EndSession(context.Background())

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	return mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := session.StartTransaction(opts); err != nil {
			return fmt.Errorf("mongostore: start transaction: %w", err)
		}
		if err := fn(sc, &tx{db: s.db}); err != nil {
			_ = session.AbortTransaction(context.Background())
			return err
		}
		if err := sc.Err(); err != nil {
			_ = session.AbortTransaction(context.Background())
			return err
		}
		if err := session.CommitTransaction(sc); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// Get loads the document with the given ID into dst.
func (s *Store) Get(ctx context.Context, collection, id string, dst any) error {
	return findOne(ctx, s.db.Collection(collection), bson.D{{Key: "_id", Value: id}}, dst)
}

// FindOne loads the document whose field equals value into dst.
func (s *Store) FindOne(ctx context.Context, collection, field, value string, dst any) error {
	return findOne(ctx, s.db.Collection(collection), bson.D{{Key: field, Value: value}}, dst)
}

// List loads every document of the collection into dst sorted by sortField, then _id.
func (s *Store) List(ctx context.Context, collection, sortField string, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("mongostore: list destination must be a pointer to a slice, got %T", dst)
	}

	opts := options.Find().SetSort(listSort(sortField))
	cursor, err := s.db.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return fmt.Errorf("mongostore: find %s: %w", collection, err)
	}
	if err := cursor.All(ctx, dst); err != nil {
		return fmt.Errorf("mongostore: decode %s: %w", collection, err)
	}
	if rv.Elem().IsNil() {
		rv.Elem().Set(reflect.MakeSlice(rv.Elem().Type(), 0, 0))
	}
	return nil
}

func listSort(sortField string) bson.D {
	if sortField == "" || sortField == "_id" {
		return bson.D{{Key: "_id", Value: 1}}
	}
	return bson.D{{Key: sortField, Value: 1}, {Key: "_id", Value: 1}}
}

func findOne(ctx context.Context, coll *mongo.Collection, filter bson.D, dst any) error {
	err := coll.FindOne(ctx, filter).Decode(dst)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if err != nil {
		return mapError(err)
	}
	return nil
}
