// Package dynamostore implements store.Backend on Amazon DynamoDB.
//
// Each collection is a table keyed by "_id". Unique fields are enforced with
// records in a shared constraints table, as in:
//
//	pk = keys.UniqueConstraintPK(collection, field, value), sk = "CONSTRAINT"
//
// Referenced documents carry one counter attribute per registered relationship
// (keys.CounterAttr) that child writes adjust in the same transaction. Reads
// inside a transaction are strongly consistent and everything they observe is
// re-asserted as a condition of the final TransactWriteItems call, so a
// concurrent change fails the commit with store.ErrConcurrentModification.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/storefront/internal/keys"
	"github.com/jacentio/storefront/store"
)

// Managed attribute names.
const (
	attrID         = "_id"
	attrVersion    = "version"
	attrCreatedAt  = "created_at"
	attrUpdatedAt  = "updated_at"
	attrEntityRef  = "entity_ref"
	attrUniquePKs  = "_unique_pks"
	attrPK         = "pk"
	attrSK         = "sk"
	constraintSK   = "CONSTRAINT"
	maxTransactOps = 100
)

// API is the subset of the DynamoDB client used by Store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Store is a store.Backend backed by DynamoDB.
type Store struct {
	client   API
	registry *store.Registry
	config   Config
	now      func() time.Time
}

var _ store.Backend = (*Store)(nil)

// New creates a new Store. The registry names the relationships whose
// counters are maintained; it must be the one the store.Store guards with.
func New(client API, registry *store.Registry, config Config) *Store {
	config.validate()
	if registry == nil {
		registry = store.NewRegistry()
	}
	return &Store{
		client:   client,
		registry: registry,
		config:   config,
		now:      time.Now,
	}
}

// TableName returns the table holding collection.
func (s *Store) TableName(collection string) string {
	return s.config.TablePrefix + collection
}

// RunInTransaction runs fn against a buffered transaction and commits its
// writes with a single TransactWriteItems call.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	t := newTx(s)
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit(ctx)
}

// Get loads the document with the given ID into dst.
func (s *Store) Get(ctx context.Context, collection, id string, dst any) error {
	raw, err := s.getItem(ctx, s.TableName(collection), idKey(id))
	if err != nil {
		return err
	}
	if raw == nil {
		return store.ErrNotFound
	}
	return unmarshal(raw, dst)
}

// FindOne loads the document whose unique field equals value into dst.
func (s *Store) FindOne(ctx context.Context, collection, field, value string, dst any) error {
	id, err := s.lookupUnique(ctx, collection, field, value)
	if err != nil {
		return err
	}
	return s.Get(ctx, collection, id, dst)
}

// List scans the collection's table and loads every document into dst sorted by sortField.
func (s *Store) List(ctx context.Context, collection, sortField string, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("dynamostore: list destination must be a pointer to a slice, got %T", dst)
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:      aws.String(s.TableName(collection)),
		ConsistentRead: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("dynamostore: scan %s: %w", collection, err)
		}
		items = append(items, page.Items...)
	}

	sortItems(items, sortField)

	if len(items) == 0 {
		rv.Elem().Set(reflect.MakeSlice(rv.Elem().Type(), 0, 0))
		return nil
	}
	if err := attributevalue.UnmarshalListOfMapsWithOptions(items, dst, decoderOptions); err != nil {
		return fmt.Errorf("dynamostore: decode %s: %w", collection, err)
	}
	return nil
}

// getItem performs a strongly consistent read, returning nil when the item is missing.
func (s *Store) getItem(ctx context.Context, table string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamostore: get %s: %w", table, err)
	}
	if len(result.Item) == 0 {
		return nil, nil
	}
	return result.Item, nil
}

// lookupUnique resolves a unique field value to the ID of the document holding it.
func (s *Store) lookupUnique(ctx context.Context, collection, field, value string) (string, error) {
	raw, err := s.getItem(ctx, s.config.UniqueTable, uniqueKey(keys.UniqueConstraintPK(collection, field, value)))
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", store.ErrNotFound
	}
	ref, _ := stringAttr(raw, attrEntityRef)
	refCollection, id, ok := keys.ParseEntityRef(ref)
	if !ok || refCollection != collection {
		return "", fmt.Errorf("dynamostore: malformed constraint record for %s.%s: %q", collection, field, ref)
	}
	return id, nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrID: &types.AttributeValueMemberS{Value: id},
	}
}

func uniqueKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrSK: &types.AttributeValueMemberS{Value: constraintSK},
	}
}

// Documents are encoded with the same field names they carry in MongoDB.
func encoderOptions(o *attributevalue.EncoderOptions) { o.TagKey = "bson" }
func decoderOptions(o *attributevalue.DecoderOptions) { o.TagKey = "bson" }

func marshal(doc any) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMapWithOptions(doc, encoderOptions)
	if err != nil {
		return nil, fmt.Errorf("dynamostore: encode: %w", err)
	}
	return item, nil
}

func unmarshal(raw map[string]types.AttributeValue, dst any) error {
	if err := attributevalue.UnmarshalMapWithOptions(raw, dst, decoderOptions); err != nil {
		return fmt.Errorf("dynamostore: decode: %w", err)
	}
	return nil
}

func stringAttr(raw map[string]types.AttributeValue, name string) (string, bool) {
	v, ok := raw[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return v.Value, true
}

func numberAttr(raw map[string]types.AttributeValue, name string) int64 {
	v, ok := raw[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(v.Value, 10, 64)
	return n
}

func number(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

// sortItems orders items ascending by the named attribute, then by ID.
func sortItems(items []map[string]types.AttributeValue, field string) {
	sort.SliceStable(items, func(i, j int) bool {
		if c := compareValues(items[i][field], items[j][field]); c != 0 {
			return c < 0
		}
		a, _ := stringAttr(items[i], attrID)
		b, _ := stringAttr(items[j], attrID)
		return a < b
	})
}

// compareValues orders missing values first, then numbers, then strings.
// Strings that both parse as RFC 3339 timestamps compare as times.
func compareValues(a, b types.AttributeValue) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		x, _ := strconv.ParseFloat(av.Value, 64)
		y, _ := strconv.ParseFloat(b.(*types.AttributeValueMemberN).Value, 64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case *types.AttributeValueMemberS:
		x, y := av.Value, b.(*types.AttributeValueMemberS).Value
		tx, errX := time.Parse(time.RFC3339Nano, x)
		ty, errY := time.Parse(time.RFC3339Nano, y)
		if errX == nil && errY == nil {
			return tx.Compare(ty)
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return 0
}

func rank(v types.AttributeValue) int {
	switch v.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return 0
	case *types.AttributeValueMemberN:
		return 1
	case *types.AttributeValueMemberS:
		return 2
	default:
		return 3
	}
}

// valuesAt returns the string values found by following path through maps and lists.
func valuesAt(raw map[string]types.AttributeValue, path []string) []string {
	if raw == nil || len(path) == 0 {
		return nil
	}
	return collect(raw[path[0]], path[1:])
}

func collect(v types.AttributeValue, rest []string) []string {
	switch av := v.(type) {
	case *types.AttributeValueMemberL:
		var out []string
		for _, elem := range av.Value {
			out = append(out, collect(elem, rest)...)
		}
		return out
	case *types.AttributeValueMemberM:
		if len(rest) == 0 {
			return nil
		}
		return collect(av.Value[rest[0]], rest[1:])
	case *types.AttributeValueMemberS:
		if len(rest) == 0 {
			return []string{av.Value}
		}
	}
	return nil
}

// distinct returns values without duplicates, keeping first occurrences in order.
func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// mapTransactionError maps DynamoDB transaction errors to store errors.
// ops are the operations in the order they were sent.
func mapTransactionError(err error, ops []*op) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			switch aws.ToString(reason.Code) {
			case "ConditionalCheckFailed":
				if i < len(ops) {
					switch o := ops[i]; o.role {
					case roleInsert:
						return fmt.Errorf("%w: %s %q", store.ErrAlreadyExists, o.collection, o.id)
					case roleUnique:
						return fmt.Errorf("%w: %s.%s", store.ErrDuplicateValue, o.collection, o.field)
					}
				}
				return fmt.Errorf("%w: condition failed on item %d", store.ErrConcurrentModification, i)
			case "TransactionConflict":
				return fmt.Errorf("%w: %s", store.ErrConcurrentModification, aws.ToString(reason.Message))
			}
		}
	}

	var conflict *types.TransactionConflictException
	if errors.As(err, &conflict) {
		return fmt.Errorf("%w: %w", store.ErrConcurrentModification, err)
	}

	return fmt.Errorf("dynamostore: commit: %w", err)
}
