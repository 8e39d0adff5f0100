package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// tableWaitTimeout bounds how long CreateTables waits for a table to become active.
const tableWaitTimeout = 2 * time.Minute

// CreateTables creates the table of every collection and the unique
// constraints table, skipping tables that already exist.
func (s *Store) CreateTables(ctx context.Context, collections ...string) error {
	for _, c := range collections {
		if err := s.createTable(ctx, s.TableName(c), attrID); err != nil {
			return err
		}
	}
	return s.createTable(ctx, s.config.UniqueTable, attrPK, attrSK)
}

// createTable creates a pay-per-request table keyed by hash and optional range
// string attributes and waits until it is active.
func (s *Store) createTable(ctx context.Context, name string, keyAttrs ...string) error {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: types.BillingModePayPerRequest,
	}
	for i, attr := range keyAttrs {
		keyType := types.KeyTypeHash
		if i > 0 {
			keyType = types.KeyTypeRange
		}
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(attr),
			AttributeType: types.ScalarAttributeTypeS,
		})
		input.KeySchema = append(input.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(attr),
			KeyType:       keyType,
		})
	}

	_, err := s.client.CreateTable(ctx, input)
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("dynamostore: create table %s: %w", name, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, tableWaitTimeout); err != nil {
		return fmt.Errorf("dynamostore: wait for table %s: %w", name, err)
	}
	return nil
}
