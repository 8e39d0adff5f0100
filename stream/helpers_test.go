package stream

import (
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

// --- getStringAttr Tests ---

func TestGetStringAttr(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"name":    events.NewStringAttribute("test-value"),
		"empty":   events.NewStringAttribute(""),
		"unicode": events.NewStringAttribute("日本語"),
		"count":   events.NewNumberAttribute("3"),
	}

	tests := []struct {
		key      string
		expected string
	}{
		{"name", "test-value"},
		{"empty", ""},
		{"unicode", "日本語"},
		{"count", ""},
		{"missing", ""},
	}

	for _, tt := range tests {
		if got := getStringAttr(image, tt.key); got != tt.expected {
			t.Errorf("getStringAttr(%q) = %q, want %q", tt.key, got, tt.expected)
		}
	}
}

func TestGetStringAttr_NilImage(t *testing.T) {
	var image map[string]events.DynamoDBAttributeValue

	if result := getStringAttr(image, "name"); result != "" {
		t.Errorf("expected empty string for nil image, got %q", result)
	}
}

// --- getNumberAttr Tests ---

func TestGetNumberAttr(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"ttl":      events.NewNumberAttribute("1234567890"),
		"zero":     events.NewNumberAttribute("0"),
		"negative": events.NewNumberAttribute("-2"),
		"name":     events.NewStringAttribute("42"),
	}

	tests := []struct {
		key      string
		expected int64
	}{
		{"ttl", 1234567890},
		{"zero", 0},
		{"negative", -2},
		{"name", 0},
		{"missing", 0},
	}

	for _, tt := range tests {
		if got := getNumberAttr(image, tt.key); got != tt.expected {
			t.Errorf("getNumberAttr(%q) = %d, want %d", tt.key, got, tt.expected)
		}
	}
}

func TestGetNumberAttr_NilImage(t *testing.T) {
	var image map[string]events.DynamoDBAttributeValue

	if result := getNumberAttr(image, "ttl"); result != 0 {
		t.Errorf("expected 0 for nil image, got %d", result)
	}
}

// --- getPathValues Tests ---

func TestGetPathValues(t *testing.T) {
	line := func(productID string) events.DynamoDBAttributeValue {
		return events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
			"product_id": events.NewStringAttribute(productID),
			"quantity":   events.NewNumberAttribute("1"),
		})
	}
	image := map[string]events.DynamoDBAttributeValue{
		"user_id":  events.NewStringAttribute("u1"),
		"products": events.NewListAttribute([]events.DynamoDBAttributeValue{line("p1"), line("p2"), line("p1")}),
	}

	tests := []struct {
		path     string
		expected string
	}{
		{"user_id", "u1"},
		{"products.product_id", "p1,p2,p1"},
		{"products.quantity", ""},
		{"products", ""},
		{"missing", ""},
	}

	for _, tt := range tests {
		got := getPathValues(image, strings.Split(tt.path, "."))
		if strings.Join(got, ",") != tt.expected {
			t.Errorf("getPathValues(%q) = %v, want %s", tt.path, got, tt.expected)
		}
	}

	if got := distinct(getPathValues(image, []string{"products", "product_id"})); strings.Join(got, ",") != "p1,p2" {
		t.Errorf("distinct() = %v, want [p1 p2]", got)
	}
}

// --- counterAttrs Tests ---

func TestCounterAttrs(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"_refs#reviews#product_id":         events.NewNumberAttribute("1"),
		"_refs#orders#products.product_id": events.NewNumberAttribute("0"),
		"name":                             events.NewStringAttribute("Widget"),
		"_unique_pks":                      events.NewListAttribute(nil),
	}

	got := counterAttrs(image)
	want := "_refs#orders#products.product_id,_refs#reviews#product_id"
	if strings.Join(got, ",") != want {
		t.Errorf("counterAttrs() = %v, want %s", got, want)
	}
}

// --- collectionOf Tests ---

func TestCollectionOf(t *testing.T) {
	h := NewHandler(nil, nil, "storefront-", nil)

	tests := []struct {
		arn      string
		expected string
		ok       bool
	}{
		{"arn:aws:dynamodb:us-east-1:123456789012:table/storefront-products/stream/2024-05-01T00:00:00.000", "products", true},
		{"arn:aws:dynamodb:us-east-1:123456789012:table/storefront-unique_constraints/stream/2024-05-01T00:00:00.000", "", false},
		{"arn:aws:dynamodb:us-east-1:123456789012:table/other-products/stream/2024-05-01T00:00:00.000", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := h.collectionOf(tt.arn)
		if got != tt.expected || ok != tt.ok {
			t.Errorf("collectionOf(%q) = %q, %v; want %q, %v", tt.arn, got, ok, tt.expected, tt.ok)
		}
	}
}
