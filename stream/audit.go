// Package stream provides a DynamoDB Streams handler that audits the catalog
// tables for referential integrity violations.
//
// The transactional guard in package store is what keeps the data consistent;
// the auditor only reports records that should be impossible: a document
// removed while its dependent counters were non-zero, a negative counter, or a
// document whose referenced parent does not exist.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/storefront/internal/keys"
	"github.com/jacentio/storefront/store"
)

// Violation kinds.
const (
	KindOrphanedDependents = "orphaned_dependents"
	KindNegativeCounter    = "negative_counter"
	KindMissingParent      = "missing_parent"
)

// Getter loads documents by ID. store.Backend implementations satisfy it.
type Getter interface {
	Get(ctx context.Context, collection, id string, dst any) error
}

// Violation is one integrity problem found in a stream record.
type Violation struct {
	Kind       string
	EventID    string
	Collection string
	ID         string
	Detail     string
}

// Handler audits DynamoDB stream events of the collection tables.
type Handler struct {
	getter      Getter
	registry    *store.Registry
	tablePrefix string
	logger      *slog.Logger
}

// NewHandler creates a new stream handler for tables named tablePrefix + collection.
func NewHandler(getter Getter, registry *store.Registry, tablePrefix string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = store.NewRegistry()
	}
	return &Handler{
		getter:      getter,
		registry:    registry,
		tablePrefix: tablePrefix,
		logger:      logger,
	}
}

// HandleAudit logs every violation found in event at error level.
// This function is designed to be used as an AWS Lambda handler; it only
// fails, and so has the batch retried, when a lookup fails.
func (h *Handler) HandleAudit(ctx context.Context, event events.DynamoDBEvent) error {
	violations, err := h.Audit(ctx, event)
	for _, v := range violations {
		h.logger.ErrorContext(ctx, "integrity violation",
			"kind", v.Kind,
			"eventID", v.EventID,
			"collection", v.Collection,
			"id", v.ID,
			"detail", v.Detail,
		)
	}
	if err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "stream batch audited",
		"records", len(event.Records),
		"violations", len(violations),
	)
	return nil
}

// Audit returns the violations found in event.
func (h *Handler) Audit(ctx context.Context, event events.DynamoDBEvent) ([]Violation, error) {
	var violations []Violation
	for _, record := range event.Records {
		found, err := h.processRecord(ctx, record)
		if err != nil {
			return violations, fmt.Errorf("record %s: %w", record.EventID, err)
		}
		violations = append(violations, found...)
	}
	return violations, nil
}

// processRecord audits a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) ([]Violation, error) {
	collection, ok := h.collectionOf(record.EventSourceArn)
	if !ok {
		return nil, nil
	}
	id := getStringAttr(record.Change.Keys, "_id")
	violation := func(kind, detail string) Violation {
		return Violation{Kind: kind, EventID: record.EventID, Collection: collection, ID: id, Detail: detail}
	}

	switch record.EventName {
	case "REMOVE":
		var out []Violation
		for _, attr := range counterAttrs(record.Change.OldImage) {
			if n := getNumberAttr(record.Change.OldImage, attr); n > 0 {
				out = append(out, violation(KindOrphanedDependents, fmt.Sprintf("%s=%d", attr, n)))
			}
		}
		return out, nil

	case "INSERT", "MODIFY":
		var out []Violation
		image := record.Change.NewImage
		for _, attr := range counterAttrs(image) {
			if n := getNumberAttr(image, attr); n < 0 {
				out = append(out, violation(KindNegativeCounter, fmt.Sprintf("%s=%d", attr, n)))
			}
		}
		missing, err := h.missingParents(ctx, collection, id, image)
		if err != nil {
			return out, err
		}
		for _, m := range missing {
			out = append(out, violation(KindMissingParent, m))
		}
		return out, nil
	}
	return nil, nil
}

// missingParents returns "collection/id" for every parent referenced by image
// that doesn't exist. Records superseded by a later write are skipped; the
// later record is audited on its own.
func (h *Handler) missingParents(ctx context.Context, collection, id string, image map[string]events.DynamoDBAttributeValue) ([]string, error) {
	var missing []string
	for _, rel := range h.registry.ReferencesFrom(collection) {
		for _, parentID := range distinct(getPathValues(image, rel.Path())) {
			var parent struct{}
			err := h.getter.Get(ctx, rel.ParentCollection, parentID, &parent)
			if errors.Is(err, store.ErrNotFound) {
				missing = append(missing, rel.ParentCollection+"/"+parentID)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("get %s %q: %w", rel.ParentCollection, parentID, err)
			}
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	var current struct {
		Version int64 `bson:"version"`
	}
	err := h.getter.Get(ctx, collection, id, &current)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", collection, id, err)
	}
	if current.Version > getNumberAttr(image, "version") {
		return nil, nil
	}
	return missing, nil
}

// collectionOf maps a stream ARN of the form
// arn:aws:dynamodb:<region>:<account>:table/<table>/stream/<label> to a collection.
func (h *Handler) collectionOf(arn string) (string, bool) {
	parts := strings.Split(arn, "/")
	if len(parts) < 2 {
		return "", false
	}
	table := parts[1]
	if !strings.HasPrefix(table, h.tablePrefix) {
		return "", false
	}
	collection := strings.TrimPrefix(table, h.tablePrefix)
	if collection == "" || collection == "unique_constraints" {
		return "", false
	}
	return collection, true
}

// counterAttrs returns the dependent counter attributes of image in sorted order.
func counterAttrs(image map[string]events.DynamoDBAttributeValue) []string {
	var out []string
	for name := range image {
		if keys.IsCounterAttr(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

// getPathValues returns the strings found by following path through maps and lists.
func getPathValues(image map[string]events.DynamoDBAttributeValue, path []string) []string {
	if len(path) == 0 {
		return nil
	}
	v, ok := image[path[0]]
	if !ok {
		return nil
	}
	return collect(v, path[1:])
}

func collect(v events.DynamoDBAttributeValue, rest []string) []string {
	switch v.DataType() {
	case events.DataTypeList:
		var out []string
		for _, item := range v.List() {
			out = append(out, collect(item, rest)...)
		}
		return out
	case events.DataTypeMap:
		return getPathValues(v.Map(), rest)
	case events.DataTypeString:
		if len(rest) == 0 {
			return []string{v.String()}
		}
	}
	return nil
}

func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
