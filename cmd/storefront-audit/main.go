// Command storefront-audit consumes the DynamoDB streams of the catalog tables
// and logs referential integrity violations.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/storefront/catalog"
	"github.com/jacentio/storefront/config"
	"github.com/jacentio/storefront/internal/server"
	"github.com/jacentio/storefront/store/dynamostore"
	"github.com/jacentio/storefront/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stdout)

	client, err := server.NewDynamoDBClient(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to create dynamodb client", "error", err)
		os.Exit(1)
	}

	registry := catalog.Relationships()
	backend := dynamostore.New(client, registry, dynamostore.Config{TablePrefix: cfg.DynamoDBTablePrefix})
	handler := stream.NewHandler(backend, registry, cfg.DynamoDBTablePrefix, logger)

	lambda.Start(handler.HandleAudit)
}
