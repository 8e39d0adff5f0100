package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// Transaction outcomes recorded on the outcome counter.
const (
	OutcomeCommitted = "committed"
	OutcomeAborted   = "aborted"
)

// Store runs guarded mutations against a Backend.
type Store struct {
	backend  Backend
	registry *Registry
	logger   *slog.Logger
	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// New creates a new Store instance.
// A nil registry disables the delete guard.
func New(backend Backend, registry *Registry, config Config) *Store {
	config.validate()

	outcomes, err := config.MeterProvider.Meter(instrumentationName).Int64Counter(
		"storefront.store.transactions",
		metric.WithDescription("Store transactions by operation and outcome."),
		metric.WithUnit("{transaction}"),
	)
	if err != nil {
		config.Logger.Warn("failed to create transaction counter", "error", err)
		outcomes = noop.Int64Counter{}
	}

	return &Store{
		backend:  backend,
		registry: registry,
		logger:   config.Logger,
		tracer:   config.TracerProvider.Tracer(instrumentationName),
		outcomes: outcomes,
	}
}

// Registry returns the relationship registry, or nil if not set.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Create inserts doc after checking that every document it references exists.
func (s *Store) Create(ctx context.Context, doc Document) error {
	return s.Transact(ctx, "create", doc.Collection(), func(ctx context.Context, tx Tx) error {
		if err := checkReferences(ctx, tx, doc); err != nil {
			return err
		}
		return tx.Insert(ctx, doc)
	})
}

// Update loads the document with the given ID into doc, lets apply modify it,
// checks its references and replaces the stored document.
// ErrNotFound is returned before apply runs when the document doesn't exist.
func (s *Store) Update(ctx context.Context, id string, doc Document, apply func() error) error {
	collection := doc.Collection()
	return s.Transact(ctx, "update", collection, func(ctx context.Context, tx Tx) error {
		if err := tx.Get(ctx, collection, id, doc); err != nil {
			return err
		}
		if apply != nil {
			if err := apply(); err != nil {
				return err
			}
		}
		if doc.DocumentID() != id {
			return fmt.Errorf("store: update changed %s id %q to %q", collection, id, doc.DocumentID())
		}
		if err := checkReferences(ctx, tx, doc); err != nil {
			return err
		}
		return tx.Replace(ctx, doc)
	})
}

// Delete removes the document with the given ID after checking that no registered
// relationship still references it. The deleted document is loaded into doc.
func (s *Store) Delete(ctx context.Context, id string, doc Document) error {
	collection := doc.Collection()
	return s.Transact(ctx, "delete", collection, func(ctx context.Context, tx Tx) error {
		if err := checkDependents(ctx, tx, s.registry, collection, id); err != nil {
			return err
		}
		return tx.Delete(ctx, collection, id, doc)
	})
}

// Get loads the document with the given ID into doc.
func (s *Store) Get(ctx context.Context, id string, doc Document) error {
	return s.backend.Get(ctx, doc.Collection(), id, doc)
}

// FindOne loads the document whose unique field equals value into doc.
func (s *Store) FindOne(ctx context.Context, field, value string, doc Document) error {
	return s.backend.FindOne(ctx, doc.Collection(), field, value, doc)
}

// List loads all documents of collection into dst, a pointer to a slice, sorted by sortField.
func (s *Store) List(ctx context.Context, collection, sortField string, dst any) error {
	return s.backend.List(ctx, collection, sortField, dst)
}

// Transact runs fn as one transaction named op on collection.
// Guard helpers are not applied; fn is responsible for its own checks.
func (s *Store) Transact(ctx context.Context, op, collection string, fn func(ctx context.Context, tx Tx) error) error {
	ctx, span := s.tracer.Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("db.collection.name", collection),
			attribute.String("db.operation.name", op),
		),
	)
	defer span.End()

	err := s.backend.RunInTransaction(ctx, fn)

	outcome := OutcomeCommitted
	if err != nil {
		outcome = OutcomeAborted
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("collection", collection),
		attribute.String("outcome", outcome),
	))

	if err != nil {
		level := slog.LevelDebug
		if errors.Is(err, ErrConcurrentModification) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "transaction aborted",
			"operation", op,
			"collection", collection,
			"error", err,
		)
		return err
	}

	s.logger.DebugContext(ctx, "transaction committed",
		"operation", op,
		"collection", collection,
	)
	return nil
}
