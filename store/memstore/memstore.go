// Package memstore implements store.Backend in process memory.
//
// Documents are kept BSON-encoded, so a document read back is always a copy and
// field paths resolve the same way they do in MongoDB. Transactions are
// serialised by a store-wide lock and buffer their writes until commit.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/jacentio/storefront/store"
)

// Store is an in-memory store.Backend.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]bson.Raw
}

// New creates a new empty Store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]bson.Raw),
	}
}

// RunInTransaction runs fn while holding the store lock and applies its writes
// when fn succeeds. Writes are discarded if fn fails or panics.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{base: s.collections, writes: make(map[string]map[string]bson.Raw)}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for collection, docs := range t.writes {
		if s.collections[collection] == nil {
			s.collections[collection] = make(map[string]bson.Raw)
		}
		for id, raw := range docs {
			if raw == nil {
				delete(s.collections[collection], id)
				continue
			}
			s.collections[collection][id] = raw
		}
	}
	return nil
}

// Get loads a document by ID.
func (s *Store) Get(ctx context.Context, collection, id string, dst any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().Get(ctx, collection, id, dst)
}

// FindOne loads the document whose field equals value.
func (s *Store) FindOne(ctx context.Context, collection, field, value string, dst any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().FindOne(ctx, collection, field, value, dst)
}

// List loads all documents of a collection sorted ascending by sortField.
func (s *Store) List(_ context.Context, collection, sortField string, dst any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.view()
	var raws []bson.Raw
	v.each(collection, func(_ string, raw bson.Raw) bool {
		raws = append(raws, raw)
		return true
	})

	slices.SortStableFunc(raws, func(a, b bson.Raw) int {
		if c := compareValues(a.Lookup(sortField), b.Lookup(sortField)); c != 0 {
			return c
		}
		return strings.Compare(a.Lookup("_id").StringValue(), b.Lookup("_id").StringValue())
	})

	return decodeList(raws, dst)
}

// view returns a read-only transaction over the committed state.
func (s *Store) view() *tx {
	return &tx{base: s.collections}
}

// tx is a store.Tx that overlays buffered writes on the committed state.
// A nil entry in writes marks a deleted document.
type tx struct {
	base   map[string]map[string]bson.Raw
	writes map[string]map[string]bson.Raw
}

func (t *tx) lookup(collection, id string) (bson.Raw, bool) {
	if raw, ok := t.writes[collection][id]; ok {
		return raw, raw != nil
	}
	raw, ok := t.base[collection][id]
	return raw, ok
}

// each calls fn for every live document until fn returns false.
func (t *tx) each(collection string, fn func(id string, raw bson.Raw) bool) {
	for id, raw := range t.base[collection] {
		if _, overlaid := t.writes[collection][id]; overlaid {
			continue
		}
		if !fn(id, raw) {
			return
		}
	}
	for id, raw := range t.writes[collection] {
		if raw == nil {
			continue
		}
		if !fn(id, raw) {
			return
		}
	}
}

func (t *tx) put(collection, id string, raw bson.Raw) {
	if t.writes[collection] == nil {
		t.writes[collection] = make(map[string]bson.Raw)
	}
	t.writes[collection][id] = raw
}

func (t *tx) Exists(_ context.Context, collection, id string) (bool, error) {
	_, ok := t.lookup(collection, id)
	return ok, nil
}

func (t *tx) Count(_ context.Context, rel store.Relationship, parentID string) (int64, error) {
	path := rel.Path()
	var n int64
	t.each(rel.ChildCollection, func(_ string, raw bson.Raw) bool {
		if slices.Contains(ValuesAt(raw, path), parentID) {
			n++
		}
		return true
	})
	return n, nil
}

func (t *tx) Get(_ context.Context, collection, id string, dst any) error {
	raw, ok := t.lookup(collection, id)
	if !ok {
		return store.ErrNotFound
	}
	return bson.Unmarshal(raw, dst)
}

func (t *tx) FindOne(_ context.Context, collection, field, value string, dst any) error {
	var found bson.Raw
	t.each(collection, func(_ string, raw bson.Raw) bool {
		if v, ok := raw.Lookup(field).StringValueOK(); ok && v == value {
			found = raw
			return false
		}
		return true
	})
	if found == nil {
		return store.ErrNotFound
	}
	return bson.Unmarshal(found, dst)
}

func (t *tx) Insert(_ context.Context, doc store.Document) error {
	collection, id := doc.Collection(), doc.DocumentID()
	if _, ok := t.lookup(collection, id); ok {
		return store.ErrAlreadyExists
	}
	if err := t.checkUnique(doc); err != nil {
		return err
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("memstore: marshal %s: %w", collection, err)
	}
	t.put(collection, id, raw)
	return nil
}

func (t *tx) Replace(_ context.Context, doc store.Document) error {
	collection, id := doc.Collection(), doc.DocumentID()
	if _, ok := t.lookup(collection, id); !ok {
		return store.ErrNotFound
	}
	if err := t.checkUnique(doc); err != nil {
		return err
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("memstore: marshal %s: %w", collection, err)
	}
	t.put(collection, id, raw)
	return nil
}

func (t *tx) Delete(_ context.Context, collection, id string, dst any) error {
	raw, ok := t.lookup(collection, id)
	if !ok {
		return store.ErrNotFound
	}
	if dst != nil {
		if err := bson.Unmarshal(raw, dst); err != nil {
			return err
		}
	}
	t.put(collection, id, nil)
	return nil
}

// checkUnique fails with store.ErrDuplicateValue if another document of the
// collection already holds one of doc's unique values.
func (t *tx) checkUnique(doc store.Document) error {
	uf, ok := doc.(store.UniqueFielder)
	if !ok {
		return nil
	}
	collection, id := doc.Collection(), doc.DocumentID()
	for field, value := range uf.UniqueFields() {
		duplicate := false
		t.each(collection, func(otherID string, raw bson.Raw) bool {
			if otherID == id {
				return true
			}
			if v, ok := raw.Lookup(field).StringValueOK(); ok && v == value {
				duplicate = true
				return false
			}
			return true
		})
		if duplicate {
			return fmt.Errorf("%w: %s.%s", store.ErrDuplicateValue, collection, field)
		}
	}
	return nil
}

// ValuesAt returns every string found at the dotted path in doc, descending
// into arrays the way a MongoDB query on that path matches.
func ValuesAt(doc bson.Raw, path []string) []string {
	if len(path) == 0 {
		return nil
	}
	v, err := doc.LookupErr(path[0])
	if err != nil {
		return nil
	}
	return collect(v, path[1:])
}

func collect(v bson.RawValue, rest []string) []string {
	switch v.Type {
	case bson.TypeArray:
		values, err := v.Array().Values()
		if err != nil {
			return nil
		}
		var out []string
		for _, elem := range values {
			out = append(out, collect(elem, rest)...)
		}
		return out
	case bson.TypeEmbeddedDocument:
		return ValuesAt(v.Document(), rest)
	case bson.TypeString:
		if len(rest) == 0 {
			return []string{v.StringValue()}
		}
	}
	return nil
}

// compareValues orders strings, numbers and datetimes; a missing value sorts first.
func compareValues(a, b bson.RawValue) int {
	if a.Type == 0 || b.Type == 0 {
		switch {
		case a.Type == b.Type:
			return 0
		case a.Type == 0:
			return -1
		default:
			return 1
		}
	}
	if as, ok := a.StringValueOK(); ok {
		if bs, ok := b.StringValueOK(); ok {
			return strings.Compare(as, bs)
		}
	}
	if at, ok := a.TimeOK(); ok {
		if bt, ok := b.TimeOK(); ok {
			return at.Compare(bt)
		}
	}
	if a.IsNumber() && b.IsNumber() {
		af, bf := asFloat(a), asFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
	}
	return 0
}

func asFloat(v bson.RawValue) float64 {
	if f, ok := v.DoubleOK(); ok {
		return f
	}
	if i, ok := v.AsInt64OK(); ok {
		return float64(i)
	}
	return 0
}

// decodeList unmarshals raws into dst, which must point to a slice.
func decodeList(raws []bson.Raw, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("memstore: list destination must be a pointer to a slice, got %T", dst)
	}
	slice := reflect.MakeSlice(rv.Elem().Type(), 0, len(raws))
	for _, raw := range raws {
		elem := reflect.New(slice.Type().Elem())
		if err := bson.Unmarshal(raw, elem.Interface()); err != nil {
			return err
		}
		slice = reflect.Append(slice, elem.Elem())
	}
	rv.Elem().Set(slice)
	return nil
}
