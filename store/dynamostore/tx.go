package dynamostore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/storefront/internal/keys"
	"github.com/jacentio/storefront/store"
)

type itemKey struct {
	table string
	id    string
}

// tx buffers writes until commit. Reads go to the table unless the
// transaction already wrote the item.
type tx struct {
	s     *Store
	ops   []*op
	byKey map[itemKey]*op

	// stored holds items as read from the table; nil means missing.
	stored map[itemKey]map[string]types.AttributeValue
	// current holds items written by this transaction; nil means deleted.
	current map[itemKey]map[string]types.AttributeValue
	// uniques maps constraint keys written by this transaction to document IDs; "" means released.
	uniques map[string]string
}

var _ store.Tx = (*tx)(nil)

func newTx(s *Store) *tx {
	return &tx{
		s:       s,
		byKey:   make(map[itemKey]*op),
		stored:  make(map[itemKey]map[string]types.AttributeValue),
		current: make(map[itemKey]map[string]types.AttributeValue),
		uniques: make(map[string]string),
	}
}

func (t *tx) key(collection, id string) itemKey {
	return itemKey{table: t.s.TableName(collection), id: id}
}

func (t *tx) opFor(k itemKey, key map[string]types.AttributeValue) *op {
	if o, ok := t.byKey[k]; ok {
		return o
	}
	o := &op{kind: opCheck, table: k.table, key: key, id: k.id}
	t.byKey[k] = o
	t.ops = append(t.ops, o)
	return o
}

func (t *tx) docOp(collection, id string) *op {
	o := t.opFor(t.key(collection, id), idKey(id))
	o.collection = collection
	return o
}

// read returns the item as this transaction sees it, or nil if it doesn't exist.
func (t *tx) read(ctx context.Context, collection, id string) (map[string]types.AttributeValue, error) {
	k := t.key(collection, id)
	if item, ok := t.current[k]; ok {
		return item, nil
	}
	if item, ok := t.stored[k]; ok {
		return item, nil
	}
	item, err := t.s.getItem(ctx, k.table, idKey(id))
	if err != nil {
		return nil, err
	}
	t.stored[k] = item
	return item, nil
}

// fromTable reports whether the transaction's view of the item is the stored one.
func (t *tx) fromTable(collection, id string) (map[string]types.AttributeValue, bool) {
	k := t.key(collection, id)
	if _, own := t.current[k]; own {
		return nil, false
	}
	stored, ok := t.stored[k]
	return stored, ok && stored != nil
}

// observeVersion makes the commit fail if the item changes after it was read.
func (t *tx) observeVersion(collection, id string) {
	stored, ok := t.fromTable(collection, id)
	if !ok {
		return
	}
	o := t.docOp(collection, id)
	if v, ok := stored[attrVersion]; ok {
		o.require(attrVersion, cond{kind: condEquals, value: v})
	} else {
		o.require(attrVersion, cond{kind: condNotExists})
	}
}

// observeCounter makes the commit fail if a dependent counter changes after it was read.
func (t *tx) observeCounter(collection, id, attr string) {
	stored, ok := t.fromTable(collection, id)
	if !ok {
		return
	}
	o := t.docOp(collection, id)
	if n := numberAttr(stored, attr); n != 0 {
		o.require(attr, cond{kind: condEquals, value: number(n)})
	} else {
		o.require(attr, cond{kind: condEqualsOrMissing, value: number(0)})
	}
}

// Exists reports whether the document exists and, if it does, requires it to
// still exist at commit.
func (t *tx) Exists(ctx context.Context, collection, id string) (bool, error) {
	item, err := t.read(ctx, collection, id)
	if err != nil || item == nil {
		return false, err
	}
	if _, ok := t.fromTable(collection, id); ok {
		t.docOp(collection, id).require(attrID, cond{kind: condExists})
	}
	return true, nil
}

// Count reads the dependent counter kept on the parent document.
func (t *tx) Count(ctx context.Context, rel store.Relationship, parentID string) (int64, error) {
	item, err := t.read(ctx, rel.ParentCollection, parentID)
	if err != nil || item == nil {
		return 0, err
	}
	attr := keys.CounterAttr(rel.ChildCollection, rel.Field)
	n := numberAttr(item, attr)
	if _, ok := t.fromTable(rel.ParentCollection, parentID); ok {
		t.observeCounter(rel.ParentCollection, parentID, attr)
		if o, ok := t.byKey[t.key(rel.ParentCollection, parentID)]; ok {
			n += o.adds[attr]
		}
	}
	return n, nil
}

// Get loads a document into dst.
func (t *tx) Get(ctx context.Context, collection, id string, dst any) error {
	item, err := t.read(ctx, collection, id)
	if err != nil {
		return err
	}
	if item == nil {
		return store.ErrNotFound
	}
	t.observeVersion(collection, id)
	return unmarshal(item, dst)
}

// FindOne loads the document whose unique field equals value into dst.
func (t *tx) FindOne(ctx context.Context, collection, field, value string, dst any) error {
	pk := keys.UniqueConstraintPK(collection, field, value)
	id, own := t.uniques[pk]
	if !own {
		var err error
		if id, err = t.s.lookupUnique(ctx, collection, field, value); err != nil {
			return err
		}
	}
	if id == "" {
		return store.ErrNotFound
	}

	item, err := t.read(ctx, collection, id)
	if err != nil {
		return err
	}
	if item == nil {
		return store.ErrNotFound
	}
	if got, _ := stringAttr(item, field); got != value {
		return fmt.Errorf("%w: %s.%s changed during lookup", store.ErrConcurrentModification, collection, field)
	}
	t.observeVersion(collection, id)
	return unmarshal(item, dst)
}

// Insert buffers a conditional put of doc, its unique constraints and the
// counter increments on every document it references.
func (t *tx) Insert(ctx context.Context, doc store.Document) error {
	collection, id := doc.Collection(), doc.DocumentID()
	k := t.key(collection, id)
	if item, ok := t.current[k]; ok && item != nil {
		return fmt.Errorf("%w: %s %q", store.ErrAlreadyExists, collection, id)
	}

	item, err := marshal(doc)
	if err != nil {
		return err
	}
	now := t.s.now().UTC().Format(time.RFC3339Nano)
	item[attrID] = &types.AttributeValueMemberS{Value: id}
	item[attrVersion] = number(1)
	item[attrCreatedAt] = &types.AttributeValueMemberS{Value: now}
	item[attrUpdatedAt] = &types.AttributeValueMemberS{Value: now}
	item[attrEntityRef] = &types.AttributeValueMemberS{Value: keys.EntityRef(collection, id)}

	if pks := t.syncUniques(collection, id, nil, doc); len(pks) > 0 {
		item[attrUniquePKs] = stringList(pks)
	}

	o := t.docOp(collection, id)
	o.role = roleInsert
	o.put(item)
	o.require(attrID, cond{kind: condNotExists})

	t.adjustCounters(collection, nil, item)
	t.current[k] = item
	return nil
}

// Replace buffers a put of doc that keeps the stored dependent counters and
// creation time, moving unique constraints and reference counters as needed.
func (t *tx) Replace(ctx context.Context, doc store.Document) error {
	collection, id := doc.Collection(), doc.DocumentID()
	old, err := t.read(ctx, collection, id)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("%w: %s %q", store.ErrNotFound, collection, id)
	}
	t.observeVersion(collection, id)

	item, err := marshal(doc)
	if err != nil {
		return err
	}
	now := t.s.now().UTC().Format(time.RFC3339Nano)
	item[attrID] = &types.AttributeValueMemberS{Value: id}
	item[attrVersion] = number(numberAttr(old, attrVersion) + 1)
	item[attrCreatedAt] = &types.AttributeValueMemberS{Value: now}
	if v, ok := old[attrCreatedAt]; ok {
		item[attrCreatedAt] = v
	}
	item[attrUpdatedAt] = &types.AttributeValueMemberS{Value: now}
	item[attrEntityRef] = &types.AttributeValueMemberS{Value: keys.EntityRef(collection, id)}

	for _, rel := range t.s.registry.DependentsOf(collection) {
		attr := keys.CounterAttr(rel.ChildCollection, rel.Field)
		if v, ok := old[attr]; ok {
			item[attr] = v
		}
		t.observeCounter(collection, id, attr)
	}

	if pks := t.syncUniques(collection, id, old, doc); len(pks) > 0 {
		item[attrUniquePKs] = stringList(pks)
	}

	o := t.docOp(collection, id)
	o.put(item)

	t.adjustCounters(collection, old, item)
	t.current[t.key(collection, id)] = item
	return nil
}

// Delete buffers a conditional delete of the document, the release of its
// unique constraints and the counter decrements on documents it references.
func (t *tx) Delete(ctx context.Context, collection, id string, dst any) error {
	old, err := t.read(ctx, collection, id)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("%w: %s %q", store.ErrNotFound, collection, id)
	}
	t.observeVersion(collection, id)
	for _, rel := range t.s.registry.DependentsOf(collection) {
		t.observeCounter(collection, id, keys.CounterAttr(rel.ChildCollection, rel.Field))
	}

	if err := unmarshal(old, dst); err != nil {
		return err
	}

	o := t.docOp(collection, id)
	if o.kind == opPut && o.role == roleInsert {
		o.kind = opSkip
	} else {
		o.kind = opDelete
		o.item, o.adds = nil, nil
	}

	ref := keys.EntityRef(collection, id)
	for _, pk := range stringsAttr(old, attrUniquePKs) {
		t.releaseUnique(pk, ref)
	}

	t.adjustCounters(collection, old, nil)
	t.current[t.key(collection, id)] = nil
	return nil
}

// syncUniques claims the unique values of doc that old doesn't already hold,
// releases those of old that doc no longer holds and returns doc's constraint keys.
func (t *tx) syncUniques(collection, id string, old map[string]types.AttributeValue, doc store.Document) []string {
	var pks []string
	ref := keys.EntityRef(collection, id)

	if uf, ok := doc.(store.UniqueFielder); ok {
		fields := uf.UniqueFields()
		for _, field := range sortedKeys(fields) {
			value := fields[field]
			if value == "" {
				continue
			}
			pk := keys.UniqueConstraintPK(collection, field, value)
			pks = append(pks, pk)
			if prev, _ := stringAttr(old, field); old != nil && prev == value {
				continue
			}
			t.claimUnique(pk, collection, id, field, value, ref)
		}
	}

	for _, pk := range stringsAttr(old, attrUniquePKs) {
		if !slices.Contains(pks, pk) {
			t.releaseUnique(pk, ref)
		}
	}
	return pks
}

func (t *tx) claimUnique(pk, collection, id, field, value, ref string) {
	o := t.opFor(itemKey{table: t.s.config.UniqueTable, id: pk}, uniqueKey(pk))
	released := o.kind == opDelete
	o.role = roleUnique
	o.collection = collection
	o.field = field
	o.put(map[string]types.AttributeValue{
		attrPK:        &types.AttributeValueMemberS{Value: pk},
		attrSK:        &types.AttributeValueMemberS{Value: constraintSK},
		"collection":  &types.AttributeValueMemberS{Value: collection},
		"field_name":  &types.AttributeValueMemberS{Value: field},
		"field_value": &types.AttributeValueMemberS{Value: value},
		attrEntityRef: &types.AttributeValueMemberS{Value: ref},
	})
	// A record released earlier in this transaction is still owned by its
	// previous holder, whose condition stays in place.
	if !released {
		o.require(attrPK, cond{kind: condNotExists})
	}
	t.uniques[pk] = id
}

func (t *tx) releaseUnique(pk, ref string) {
	o := t.opFor(itemKey{table: t.s.config.UniqueTable, id: pk}, uniqueKey(pk))
	if o.kind == opPut {
		o.kind = opSkip
	} else {
		o.kind = opDelete
		o.require(attrEntityRef, cond{kind: condEquals, value: &types.AttributeValueMemberS{Value: ref}})
	}
	t.uniques[pk] = ""
}

// adjustCounters moves the dependent counters of every document referenced by
// old but not by item (decrement) or by item but not by old (increment).
func (t *tx) adjustCounters(collection string, old, item map[string]types.AttributeValue) {
	for _, rel := range t.s.registry.ReferencesFrom(collection) {
		before := distinct(valuesAt(old, rel.Path()))
		after := distinct(valuesAt(item, rel.Path()))
		for _, id := range after {
			if !slices.Contains(before, id) {
				t.addCounter(rel, id, 1)
			}
		}
		for _, id := range before {
			if !slices.Contains(after, id) {
				t.addCounter(rel, id, -1)
			}
		}
	}
}

func (t *tx) addCounter(rel store.Relationship, parentID string, delta int64) {
	o := t.docOp(rel.ParentCollection, parentID)
	if o.kind == opDelete || o.kind == opSkip {
		return
	}
	if o.kind != opPut {
		// ADD would otherwise create a stub item for a missing parent.
		o.require(attrID, cond{kind: condExists})
	}
	o.add(keys.CounterAttr(rel.ChildCollection, rel.Field), delta)
}

// commit sends the buffered operations as one TransactWriteItems call.
func (t *tx) commit(ctx context.Context) error {
	var (
		sent   []*op
		items  []types.TransactWriteItem
		writes bool
	)
	for _, o := range t.ops {
		o.normalize()
		if o.kind == opSkip || (o.kind == opCheck && len(o.conds) == 0) {
			continue
		}
		writes = writes || o.writes()
		sent = append(sent, o)
		items = append(items, o.transactItem())
	}
	if !writes {
		return nil
	}
	if len(items) > maxTransactOps {
		return fmt.Errorf("dynamostore: transaction touches %d items, limit is %d", len(items), maxTransactOps)
	}

	_, err := t.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err, sent)
}

func stringList(values []string) *types.AttributeValueMemberL {
	l := &types.AttributeValueMemberL{Value: make([]types.AttributeValue, 0, len(values))}
	for _, v := range values {
		l.Value = append(l.Value, &types.AttributeValueMemberS{Value: v})
	}
	return l
}

func stringsAttr(raw map[string]types.AttributeValue, name string) []string {
	l, ok := raw[name].(*types.AttributeValueMemberL)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l.Value))
	for _, v := range l.Value {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			out = append(out, s.Value)
		}
	}
	return out
}
