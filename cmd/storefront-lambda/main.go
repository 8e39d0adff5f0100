// Command storefront-lambda serves the catalog API from AWS Lambda behind an
// API Gateway HTTP API.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/jacentio/storefront/config"
	"github.com/jacentio/storefront/internal/lambdaproxy"
	"github.com/jacentio/storefront/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stdout)

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	lambda.Start(lambdaproxy.New(adaptor.FiberApp(srv.App), logger).Handle)
}
