package mongostore

import (
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jacentio/storefront/store"
)

// Server error codes mapped to store errors.
const (
	codeWriteConflict = 112
	codeDuplicateKey  = 11000
)

const labelTransientTransaction = "TransientTransactionError"

var indexNamePattern = regexp.MustCompile(`index: (\S+)`)

// mapError maps driver errors to store errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if mongo.IsDuplicateKeyError(err) {
		if index := duplicateIndex(err); index == "_id_" {
			return fmt.Errorf("%w: %w", store.ErrAlreadyExists, err)
		}
		return fmt.Errorf("%w: %w", store.ErrDuplicateValue, err)
	}

	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorCode(codeWriteConflict) {
		return fmt.Errorf("%w: %w", store.ErrConcurrentModification, err)
	}

	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel(labelTransientTransaction) {
		return fmt.Errorf("%w: %w", store.ErrConcurrentModification, err)
	}

	return err
}

// duplicateIndex returns the name of the index a duplicate key error was raised on.
func duplicateIndex(err error) string {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == codeDuplicateKey {
				return indexName(e.Message)
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == codeDuplicateKey {
		return indexName(ce.Message)
	}
	return ""
}

func indexName(message string) string {
	m := indexNamePattern.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	return m[1]
}
