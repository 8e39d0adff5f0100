// Package keys derives the auxiliary DynamoDB keys and attribute names used to
// enforce integrity rules that the table itself cannot express.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// counterPrefix marks attributes holding dependent counters.
const counterPrefix = "_refs#"

// EntityRef returns the type-qualified reference of a document (e.g. "products#64f0...").
func EntityRef(collection, id string) string {
	return collection + "#" + id
}

// UniqueConstraintPK computes a hash-distributed partition key for a unique constraint.
// Each (collection, field, value) triple lands on its own partition.
func UniqueConstraintPK(collection, field, value string) string {
	data := fmt.Sprintf("%s#%s#%s", collection, field, value)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:16])
}

// CounterAttr returns the attribute name, stored on a referenced document, that counts
// how many documents of childCollection reference it through field.
func CounterAttr(childCollection, field string) string {
	return counterPrefix + childCollection + "#" + field
}

// IsCounterAttr reports whether name was produced by CounterAttr.
func IsCounterAttr(name string) bool {
	return strings.HasPrefix(name, counterPrefix)
}

// ParseEntityRef splits a reference produced by EntityRef.
func ParseEntityRef(ref string) (collection, id string, ok bool) {
	collection, id, ok = strings.Cut(ref, "#")
	if !ok || collection == "" || id == "" {
		return "", "", false
	}
	return collection, id, true
}
