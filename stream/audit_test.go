package stream_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/storefront/store"
	"github.com/jacentio/storefront/stream"
)

const productsARN = "arn:aws:dynamodb:us-east-1:123456789012:table/storefront-products/stream/2024-05-01T00:00:00.000"

// fakeGetter serves documents by "collection/id"; versions are decoded into
// destinations with a Version field.
type fakeGetter struct {
	versions map[string]int64
	err      error
	calls    []string
}

func (f *fakeGetter) Get(_ context.Context, collection, id string, dst any) error {
	f.calls = append(f.calls, collection+"/"+id)
	if f.err != nil {
		return f.err
	}
	v, ok := f.versions[collection+"/"+id]
	if !ok {
		return store.ErrNotFound
	}
	if field := reflect.ValueOf(dst).Elem().FieldByName("Version"); field.IsValid() {
		field.SetInt(v)
	}
	return nil
}

func registry() *store.Registry {
	r := store.NewRegistry()
	r.Register(store.Relationship{ParentCollection: "categories", ChildCollection: "products", Field: "category_id"})
	r.Register(store.Relationship{ParentCollection: "products", ChildCollection: "reviews", Field: "product_id"})
	return r
}

func productRecord(eventName string, image map[string]events.DynamoDBAttributeValue) events.DynamoDBEventRecord {
	record := events.DynamoDBEventRecord{
		EventID:        "evt-1",
		EventName:      eventName,
		EventSourceArn: productsARN,
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{"_id": events.NewStringAttribute("p1")},
		},
	}
	if eventName == "REMOVE" {
		record.Change.OldImage = image
	} else {
		record.Change.NewImage = image
	}
	return record
}

func TestNewHandler(t *testing.T) {
	// Test with nil getter, registry and logger (should not panic)
	h := stream.NewHandler(nil, nil, "storefront-", nil)
	if h == nil {
		t.Fatal("expected non-nil Handler")
	}
}

func TestAudit_EmptyEvent(t *testing.T) {
	h := stream.NewHandler(&fakeGetter{}, registry(), "storefront-", nil)

	if err := h.HandleAudit(context.Background(), events.DynamoDBEvent{}); err != nil {
		t.Errorf("expected no error for empty event, got %v", err)
	}
}

func TestAudit_RemoveWithDependents(t *testing.T) {
	h := stream.NewHandler(&fakeGetter{}, registry(), "storefront-", nil)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		productRecord("REMOVE", map[string]events.DynamoDBAttributeValue{
			"_id":                      events.NewStringAttribute("p1"),
			"category_id":              events.NewStringAttribute("c1"),
			"_refs#reviews#product_id": events.NewNumberAttribute("2"),
		}),
	}}

	violations, err := h.Audit(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	v := violations[0]
	if v.Kind != stream.KindOrphanedDependents || v.Collection != "products" || v.ID != "p1" || v.EventID != "evt-1" {
		t.Errorf("unexpected violation %+v", v)
	}
	if v.Detail != "_refs#reviews#product_id=2" {
		t.Errorf("unexpected detail %q", v.Detail)
	}
}

func TestAudit_RemoveWithoutDependents(t *testing.T) {
	h := stream.NewHandler(&fakeGetter{}, registry(), "storefront-", nil)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		productRecord("REMOVE", map[string]events.DynamoDBAttributeValue{
			"_id":                      events.NewStringAttribute("p1"),
			"_refs#reviews#product_id": events.NewNumberAttribute("0"),
		}),
	}}

	violations, err := h.Audit(context.Background(), event)
	if err != nil || len(violations) != 0 {
		t.Errorf("expected no violations, got %v, %v", violations, err)
	}
}

func TestAudit_InsertWithExistingParent(t *testing.T) {
	getter := &fakeGetter{versions: map[string]int64{"categories/c1": 1}}
	h := stream.NewHandler(getter, registry(), "storefront-", nil)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		productRecord("INSERT", map[string]events.DynamoDBAttributeValue{
			"_id":         events.NewStringAttribute("p1"),
			"category_id": events.NewStringAttribute("c1"),
			"version":     events.NewNumberAttribute("1"),
		}),
	}}

	violations, err := h.Audit(context.Background(), event)
	if err != nil || len(violations) != 0 {
		t.Errorf("expected no violations, got %v, %v", violations, err)
	}
	if len(getter.calls) != 1 || getter.calls[0] != "categories/c1" {
		t.Errorf("expected one parent lookup, got %v", getter.calls)
	}
}

func TestAudit_InsertWithMissingParent(t *testing.T) {
	getter := &fakeGetter{versions: map[string]int64{"products/p1": 1}}
	h := stream.NewHandler(getter, registry(), "storefront-", nil)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		productRecord("INSERT", map[string]events.DynamoDBAttributeValue{
			"_id":         events.NewStringAttribute("p1"),
			"category_id": events.NewStringAttribute("gone"),
			"version":     events.NewNumberAttribute("1"),
		}),
	}}

	violations, err := h.Audit(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 1 || violations[0].Kind != stream.KindMissingParent || violations[0].Detail != "categories/gone" {
		t.Errorf("expected missing parent violation, got %+v", violations)
	}
}

func TestAudit_SupersededRecordSkipped(t *testing.T) {
	tests := []struct {
		name     string
		versions map[string]int64
	}{
		{"child deleted since", map[string]int64{}},
		{"child rewritten since", map[string]int64{"products/p1": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := stream.NewHandler(&fakeGetter{versions: tt.versions}, registry(), "storefront-", nil)
			event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
				productRecord("MODIFY", map[string]events.DynamoDBAttributeValue{
					"_id":         events.NewStringAttribute("p1"),
					"category_id": events.NewStringAttribute("gone"),
					"version":     events.NewNumberAttribute("1"),
				}),
			}}

			violations, err := h.Audit(context.Background(), event)
			if err != nil || len(violations) != 0 {
				t.Errorf("expected no violations, got %v, %v", violations, err)
			}
		})
	}
}

func TestAudit_NegativeCounter(t *testing.T) {
	getter := &fakeGetter{versions: map[string]int64{"categories/c1": 1}}
	h := stream.NewHandler(getter, registry(), "storefront-", nil)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		productRecord("MODIFY", map[string]events.DynamoDBAttributeValue{
			"_id":                      events.NewStringAttribute("p1"),
			"category_id":              events.NewStringAttribute("c1"),
			"_refs#reviews#product_id": events.NewNumberAttribute("-1"),
		}),
	}}

	violations, err := h.Audit(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 1 || violations[0].Kind != stream.KindNegativeCounter {
		t.Errorf("expected negative counter violation, got %+v", violations)
	}
}

func TestAudit_IgnoresOtherTables(t *testing.T) {
	getter := &fakeGetter{}
	h := stream.NewHandler(getter, registry(), "storefront-", nil)
	record := productRecord("REMOVE", map[string]events.DynamoDBAttributeValue{
		"_refs#reviews#product_id": events.NewNumberAttribute("5"),
	})
	record.EventSourceArn = "arn:aws:dynamodb:us-east-1:123456789012:table/storefront-unique_constraints/stream/2024"

	violations, err := h.Audit(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{record}})
	if err != nil || len(violations) != 0 {
		t.Errorf("expected record to be ignored, got %v, %v", violations, err)
	}
}

func TestHandleAudit_LookupFailure(t *testing.T) {
	boom := errors.New("throttled")
	h := stream.NewHandler(&fakeGetter{err: boom}, registry(), "storefront-", nil)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		productRecord("INSERT", map[string]events.DynamoDBAttributeValue{
			"_id":         events.NewStringAttribute("p1"),
			"category_id": events.NewStringAttribute("c1"),
		}),
	}}

	err := h.HandleAudit(context.Background(), event)
	if !errors.Is(err, boom) {
		t.Errorf("expected lookup error to fail the batch, got %v", err)
	}
}

func TestHandleAudit_ViolationsDoNotFailBatch(t *testing.T) {
	h := stream.NewHandler(&fakeGetter{}, registry(), "storefront-", nil)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		productRecord("REMOVE", map[string]events.DynamoDBAttributeValue{
			"_refs#reviews#product_id": events.NewNumberAttribute("1"),
		}),
	}}

	if err := h.HandleAudit(context.Background(), event); err != nil {
		t.Errorf("expected violations to be logged only, got %v", err)
	}
}
