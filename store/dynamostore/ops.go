package dynamostore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type opKind int

const (
	opCheck opKind = iota
	opUpdate
	opPut
	opDelete
	opSkip
)

// role identifies what a failed condition on an op means to the caller.
type role int

const (
	roleOther role = iota
	roleInsert
	roleUnique
)

type condKind int

const (
	condExists condKind = iota
	condNotExists
	condEquals
	// condEqualsOrMissing treats a missing attribute as equal to a zero counter.
	condEqualsOrMissing
)

type cond struct {
	kind  condKind
	value types.AttributeValue
}

// op accumulates everything one transaction does to a single item.
// DynamoDB rejects transactions touching an item twice.
type op struct {
	kind  opKind
	table string
	key   map[string]types.AttributeValue
	item  map[string]types.AttributeValue
	conds map[string]cond
	adds  map[string]int64

	role       role
	collection string
	id         string
	field      string
}

func (o *op) require(attr string, c cond) {
	if o.conds == nil {
		o.conds = make(map[string]cond)
	}
	o.conds[attr] = c
}

func (o *op) add(attr string, delta int64) {
	if o.kind == opPut {
		o.item[attr] = number(numberAttr(o.item, attr) + delta)
		return
	}
	if o.adds == nil {
		o.adds = make(map[string]int64)
	}
	o.adds[attr] += delta
	if o.kind == opCheck {
		o.kind = opUpdate
	}
}

// put turns o into a put of item, folding in pending counter adjustments.
func (o *op) put(item map[string]types.AttributeValue) {
	for attr, delta := range o.adds {
		item[attr] = number(numberAttr(item, attr) + delta)
	}
	o.adds = nil
	o.item = item
	o.kind = opPut
}

func (o *op) writes() bool {
	return o.kind == opUpdate || o.kind == opPut || o.kind == opDelete
}

// expressions renders the condition and ADD update expressions of o.
type expressions struct {
	condition *string
	update    *string
	names     map[string]string
	values    map[string]types.AttributeValue
}

func (o *op) expressions() expressions {
	var (
		e       expressions
		conds   []string
		updates []string
	)
	names := map[string]string{}
	values := map[string]types.AttributeValue{}

	name := func(attr string) string {
		n := fmt.Sprintf("#a%d", len(names))
		names[n] = attr
		return n
	}
	value := func(v types.AttributeValue) string {
		p := fmt.Sprintf(":v%d", len(values))
		values[p] = v
		return p
	}

	for _, attr := range sortedKeys(o.conds) {
		c := o.conds[attr]
		n := name(attr)
		switch c.kind {
		case condExists:
			conds = append(conds, "attribute_exists("+n+")")
		case condNotExists:
			conds = append(conds, "attribute_not_exists("+n+")")
		case condEquals:
			conds = append(conds, n+" = "+value(c.value))
		case condEqualsOrMissing:
			conds = append(conds, "(attribute_not_exists("+n+") OR "+n+" = "+value(c.value)+")")
		}
	}
	if o.kind == opUpdate {
		for _, attr := range sortedKeys(o.adds) {
			updates = append(updates, name(attr)+" "+value(number(o.adds[attr])))
		}
	}

	if len(conds) > 0 {
		e.condition = aws.String(strings.Join(conds, " AND "))
	}
	if len(updates) > 0 {
		e.update = aws.String("ADD " + strings.Join(updates, ", "))
	}
	if len(names) > 0 {
		e.names = names
	}
	if len(values) > 0 {
		e.values = values
	}
	return e
}

// transactItem renders o as one TransactWriteItem.
func (o *op) transactItem() types.TransactWriteItem {
	e := o.expressions()
	switch o.kind {
	case opPut:
		return types.TransactWriteItem{Put: &types.Put{
			TableName:                 aws.String(o.table),
			Item:                      o.item,
			ConditionExpression:       e.condition,
			ExpressionAttributeNames:  e.names,
			ExpressionAttributeValues: e.values,
		}}
	case opDelete:
		return types.TransactWriteItem{Delete: &types.Delete{
			TableName:                 aws.String(o.table),
			Key:                       o.key,
			ConditionExpression:       e.condition,
			ExpressionAttributeNames:  e.names,
			ExpressionAttributeValues: e.values,
		}}
	case opUpdate:
		return types.TransactWriteItem{Update: &types.Update{
			TableName:                 aws.String(o.table),
			Key:                       o.key,
			UpdateExpression:          e.update,
			ConditionExpression:       e.condition,
			ExpressionAttributeNames:  e.names,
			ExpressionAttributeValues: e.values,
		}}
	default:
		return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(o.table),
			Key:                       o.key,
			ConditionExpression:       e.condition,
			ExpressionAttributeNames:  e.names,
			ExpressionAttributeValues: e.values,
		}}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// normalize drops zero counter adjustments; an update left with none becomes a check.
func (o *op) normalize() {
	for attr, delta := range o.adds {
		if delta == 0 {
			delete(o.adds, attr)
		}
	}
	if o.kind == opUpdate && len(o.adds) == 0 {
		o.kind = opCheck
	}
}
