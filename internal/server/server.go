// Package server assembles the storefront components from a config.Config.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gofiber/fiber/v2"

	"github.com/jacentio/storefront/api"
	"github.com/jacentio/storefront/auth"
	"github.com/jacentio/storefront/catalog"
	"github.com/jacentio/storefront/config"
	"github.com/jacentio/storefront/mail"
	"github.com/jacentio/storefront/store"
	"github.com/jacentio/storefront/store/dynamostore"
	"github.com/jacentio/storefront/store/memstore"
	"github.com/jacentio/storefront/store/mongostore"
)

// Server is the assembled HTTP application and the resources it holds.
type Server struct {
	App   *fiber.App
	Store *store.Store

	closeBackend func(context.Context) error
}

// New opens the configured backend and builds the HTTP application on it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.RequireSecrets(); err != nil {
		return nil, err
	}

	registry := catalog.Relationships()
	backend, closeBackend, err := OpenBackend(ctx, cfg, registry, logger)
	if err != nil {
		return nil, err
	}

	srv, err := build(cfg, backend, registry, logger)
	if err != nil {
		_ = closeBackend(context.Background())
		return nil, err
	}
	srv.closeBackend = closeBackend
	return srv, nil
}

func build(cfg *config.Config, backend store.Backend, registry *store.Registry, logger *slog.Logger) (*Server, error) {
	st := store.New(backend, registry, store.Config{Logger: logger})

	tokens, err := auth.NewTokens(cfg.JWTPrivateKey)
	if err != nil {
		return nil, err
	}
	sender, err := mail.NewSMTPSender(mail.Config{
		Host:     cfg.MailHost,
		Port:     cfg.MailPort,
		Username: cfg.MailUser,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
	}, logger)
	if err != nil {
		return nil, err
	}

	passwords := auth.NewPasswords(auth.DefaultCost)
	service := catalog.NewService(st, passwords, logger)
	accounts := catalog.NewAccounts(st, passwords, tokens, sender, catalog.AccountsConfig{
		PublicBaseURL: cfg.PublicBaseURL,
		From:          cfg.MailFrom,
	}, logger)

	policy := api.DefaultPolicy()
	if cfg.RoutePolicyStrict {
		policy = api.StrictPolicy()
	}

	return &Server{
		App:   api.New(service, accounts, tokens, api.Config{Policy: policy, Logger: logger}),
		Store: st,
	}, nil
}

// Close shuts the HTTP application down and releases the backend.
func (s *Server) Close(ctx context.Context) error {
	err := s.App.ShutdownWithContext(ctx)
	if s.closeBackend != nil {
		err = errors.Join(err, s.closeBackend(ctx))
	}
	return err
}

// OpenBackend connects to the configured store driver. MongoDB unique and
// reference indexes are ensured on open; DynamoDB tables must already exist
// (see Migrate).
func OpenBackend(ctx context.Context, cfg *config.Config, registry *store.Registry, logger *slog.Logger) (store.Backend, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return memstore.New(), noop, nil

	case config.DriverDynamoDB:
		client, err := NewDynamoDBClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return dynamostore.New(client, registry, dynamoConfig(cfg)), noop, nil

	case config.DriverMongo:
		s, err := openMongo(ctx, cfg, registry)
		if err != nil {
			return nil, nil, err
		}
		if err := s.EnsureIndexes(ctx, catalog.UniqueFields()); err != nil {
			_ = s.Client().Disconnect(context.Background())
			return nil, nil, err
		}
		return s, s.Client().Disconnect, nil
	}
	return nil, nil, fmt.Errorf("%w: STORE_DRIVER %q", config.ErrInvalidValue, cfg.StoreDriver)
}

// Migrate creates the DynamoDB tables or the MongoDB indexes the catalog needs.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	registry := catalog.Relationships()

	switch cfg.StoreDriver {
	case config.DriverDynamoDB:
		client, err := NewDynamoDBClient(ctx, cfg)
		if err != nil {
			return err
		}
		s := dynamostore.New(client, registry, dynamoConfig(cfg))
		if err := s.CreateTables(ctx, catalog.Collections()...); err != nil {
			return err
		}
		logger.InfoContext(ctx, "dynamodb tables ready", "prefix", cfg.DynamoDBTablePrefix)

	case config.DriverMongo:
		s, err := openMongo(ctx, cfg, registry)
		if err != nil {
			return err
		}
		defer s.Client().Disconnect(context.Background())
		if err := s.EnsureIndexes(ctx, catalog.UniqueFields()); err != nil {
			return err
		}
		logger.InfoContext(ctx, "mongodb indexes ready", "database", cfg.MongoDatabase)

	default:
		logger.InfoContext(ctx, "nothing to migrate", "driver", cfg.StoreDriver)
	}
	return nil
}

// NewDynamoDBClient loads the AWS configuration for cfg.AWSRegion and points
// the client at cfg.DynamoDBEndpoint when set (DynamoDB Local).
func NewDynamoDBClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("server: load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	}), nil
}

func dynamoConfig(cfg *config.Config) dynamostore.Config {
	return dynamostore.Config{TablePrefix: cfg.DynamoDBTablePrefix}
}

func openMongo(ctx context.Context, cfg *config.Config, registry *store.Registry) (*mongostore.Store, error) {
	mcfg := mongostore.DefaultConfig()
	mcfg.Database = cfg.MongoDatabase
	client, err := mongostore.Connect(ctx, cfg.MongoURI, mcfg)
	if err != nil {
		return nil, err
	}
	return mongostore.New(client, registry, mcfg), nil
}
