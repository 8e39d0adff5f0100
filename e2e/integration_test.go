//go:build e2e

// Package e2e runs the catalog scenarios against real MongoDB and DynamoDB
// Local containers.
// Run with: go test -tags=e2e -v ./e2e/...
package e2e

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/jacentio/storefront/auth"
	"github.com/jacentio/storefront/catalog"
	"github.com/jacentio/storefront/config"
	"github.com/jacentio/storefront/internal/server"
	"github.com/jacentio/storefront/store"
	"github.com/jacentio/storefront/store/dynamostore"
	"github.com/jacentio/storefront/store/mongostore"
)

var (
	// testID keeps table prefixes and database names unique per run.
	testID string

	mongoURI         string
	dynamoDBEndpoint string
)

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	testID = uuid.New().String()[:8]
	ctx := context.Background()

	mongoC, err := startMongo(ctx)
	if err != nil {
		fmt.Printf("Failed to start MongoDB: %v\n", err)
		os.Exit(1)
	}
	dynamoC, err := startDynamoDBLocal(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Printf("Failed to start DynamoDB Local: %v\n", err)
		os.Exit(1)
	}

	// DynamoDB Local accepts any credentials.
	os.Setenv("AWS_ACCESS_KEY_ID", "e2e")
	os.Setenv("AWS_SECRET_ACCESS_KEY", "e2e")

	code := m.Run()

	if err := mongoC.Terminate(ctx); err != nil {
		fmt.Printf("Failed to terminate MongoDB: %v\n", err)
	}
	if err := dynamoC.Terminate(ctx); err != nil {
		fmt.Printf("Failed to terminate DynamoDB Local: %v\n", err)
	}
	os.Exit(code)
}

// startMongo runs a single-node replica set; transactions need one.
func startMongo(ctx context.Context) (testcontainers.Container, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, err
	}

	initiate := "rs.initiate({_id: 'rs0', members: [{_id: 0, host: 'localhost:27017'}]})"
	if code, _, err := c.Exec(ctx, []string{"mongosh", "--quiet", "--eval", initiate}); err != nil || code != 0 {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("rs.initiate exited %d: %w", code, err)
	}

	endpoint, err := c.PortEndpoint(ctx, "27017/tcp", "mongodb")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, err
	}
	mongoURI = endpoint + "/?directConnection=true"
	return c, nil
}

func startDynamoDBLocal(ctx context.Context) (testcontainers.Container, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "amazon/dynamodb-local:2.5.2",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"-jar", "DynamoDBLocal.jar", "-inMemory", "-sharedDb"},
			WaitingFor:   wait.ForListeningPort("8000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, err
	}

	endpoint, err := c.PortEndpoint(ctx, "8000/tcp", "http")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, err
	}
	dynamoDBEndpoint = endpoint
	return c, nil
}

// --- Backends ---

type backendFactory func(t *testing.T, registry *store.Registry) store.Backend

func backends() map[string]backendFactory {
	return map[string]backendFactory{
		"mongo":    newMongoBackend,
		"dynamodb": newDynamoDBBackend,
	}
}

func newMongoBackend(t *testing.T, registry *store.Registry) store.Backend {
	t.Helper()
	ctx := context.Background()

	cfg := mongostore.DefaultConfig()
	cfg.Database = "e2e_" + testID + "_" + uuid.New().String()[:8]
	client, err := mongostore.Connect(ctx, mongoURI, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Database(cfg.Database).Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	s := mongostore.New(client, registry, cfg)
	// The replica set may still be electing a primary right after rs.initiate.
	require.Eventually(t, func() bool {
		return s.EnsureIndexes(ctx, catalog.UniqueFields()) == nil
	}, 60*time.Second, time.Second)
	return s
}

func newDynamoDBBackend(t *testing.T, registry *store.Registry) store.Backend {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{AWSRegion: "us-east-1", DynamoDBEndpoint: dynamoDBEndpoint}
	client, err := server.NewDynamoDBClient(ctx, cfg)
	require.NoError(t, err)

	prefix := fmt.Sprintf("e2e-%s-%s-", testID, uuid.New().String()[:8])
	s := dynamostore.New(client, registry, dynamostore.Config{TablePrefix: prefix})
	require.NoError(t, s.CreateTables(ctx, catalog.Collections()...))
	return s
}

type fixture struct {
	service *catalog.Service
}

func newFixture(t *testing.T, factory backendFactory) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := catalog.Relationships()
	s := store.New(factory(t, registry), registry, store.Config{Logger: logger})
	return &fixture{service: catalog.NewService(s, auth.NewPasswords(bcrypt.MinCost), logger)}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) category(t *testing.T, name string) *catalog.Category {
	t.Helper()
	c, err := f.service.CreateCategory(context.Background(), catalog.CategoryInput{Name: name, Description: "Things to buy"})
	require.NoError(t, err)
	return c
}

func productInput(name, categoryID string) catalog.ProductInput {
	return catalog.ProductInput{
		Name:          name,
		Description:   "A fine product",
		Price:         ptr(9.99),
		CategoryID:    categoryID,
		StockQuantity: ptr(1),
	}
}

func (f *fixture) product(t *testing.T, name, categoryID string) *catalog.Product {
	t.Helper()
	p, err := f.service.CreateProduct(context.Background(), productInput(name, categoryID))
	require.NoError(t, err)
	return p
}

func (f *fixture) user(t *testing.T, email string) *catalog.User {
	t.Helper()
	u, err := f.service.CreateUser(context.Background(), catalog.UserInput{Username: "shopper", Email: email, Password: "secret"})
	require.NoError(t, err)
	return u
}

// --- Scenarios ---

func TestScenarios(t *testing.T) {
	scenarios := map[string]func(t *testing.T, f *fixture){
		"create and list sorted":             testCreateAndList,
		"product requires category":          testProductRequiresCategory,
		"duplicate category name":            testDuplicateCategoryName,
		"delete category with products":      testDeleteCategoryWithProducts,
		"order protects products and user":   testOrderProtectsReferences,
		"move product between categories":    testMoveProduct,
		"concurrent creates and delete":      testConcurrentCreateAndDelete,
		"review references checked in order": testReviewReferenceOrder,
	}

	for backend, factory := range backends() {
		t.Run(backend, func(t *testing.T) {
			for name, scenario := range scenarios {
				t.Run(name, func(t *testing.T) {
					scenario(t, newFixture(t, factory))
				})
			}
		})
	}
}

func testCreateAndList(t *testing.T, f *fixture) {
	ctx := context.Background()
	f.category(t, "Zoology")
	f.category(t, "Art supplies")

	categories, err := f.service.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Art supplies", categories[0].Name)
	assert.Equal(t, "Zoology", categories[1].Name)

	products, err := f.service.ListProducts(ctx)
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func testProductRequiresCategory(t *testing.T, f *fixture) {
	missing := store.NewID()
	_, err := f.service.CreateProduct(context.Background(), productInput("Orphan lamp", missing))

	var refErr *store.ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, missing, refErr.ID)

	products, err := f.service.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func testDuplicateCategoryName(t *testing.T, f *fixture) {
	f.category(t, "Garden")
	_, err := f.service.CreateCategory(context.Background(), catalog.CategoryInput{Name: "Garden", Description: "Again"})
	assert.ErrorIs(t, err, store.ErrDuplicateValue)
}

func testDeleteCategoryWithProducts(t *testing.T, f *fixture) {
	ctx := context.Background()
	c := f.category(t, "Kitchen")
	f.product(t, "Chef knife", c.ID)
	f.product(t, "Cutting board", c.ID)

	_, err := f.service.DeleteCategory(ctx, c.ID)
	var depErr *store.DependentsError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, int64(2), depErr.CountOf(catalog.CollectionProducts))

	got, err := f.service.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", got.Name)
}

func testOrderProtectsReferences(t *testing.T, f *fixture) {
	ctx := context.Background()
	c := f.category(t, "Office")
	p := f.product(t, "Stapler pro", c.ID)
	u := f.user(t, "buyer@example.com")

	order, err := f.service.CreateOrder(ctx, catalog.OrderInput{
		UserID:     u.ID,
		Products:   []catalog.OrderLineInput{{ProductID: p.ID, Quantity: ptr(2), Price: ptr(9.99)}},
		TotalPrice: ptr(19.98),
		Status:     catalog.StatusPending,
	})
	require.NoError(t, err)

	_, err = f.service.DeleteProduct(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrHasDependents)
	_, err = f.service.DeleteUser(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrHasDependents)

	_, err = f.service.DeleteOrder(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.service.DeleteProduct(ctx, p.ID)
	require.NoError(t, err)
	_, err = f.service.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
}

func testMoveProduct(t *testing.T, f *fixture) {
	ctx := context.Background()
	from := f.category(t, "Old shelf")
	to := f.category(t, "New shelf")
	p := f.product(t, "Moving box", from.ID)

	_, err := f.service.UpdateProduct(ctx, p.ID, productInput("Moving box", to.ID))
	require.NoError(t, err)

	_, err = f.service.DeleteCategory(ctx, from.ID)
	require.NoError(t, err)
	_, err = f.service.DeleteCategory(ctx, to.ID)
	assert.ErrorIs(t, err, store.ErrHasDependents)
}

// testConcurrentCreateAndDelete races product creates against the deletion of
// their category. Whatever interleaving wins, no product may end up
// referencing a deleted category.
func testConcurrentCreateAndDelete(t *testing.T, f *fixture) {
	ctx := context.Background()
	c := f.category(t, "Contested")

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.service.CreateProduct(ctx, productInput(fmt.Sprintf("Racer %02d", i), c.ID))
			if err != nil && !errors.Is(err, store.ErrReferenceNotFound) && !errors.Is(err, store.ErrConcurrentModification) {
				t.Errorf("unexpected create error: %v", err)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.service.DeleteCategory(ctx, c.ID)
		if err != nil && !errors.Is(err, store.ErrHasDependents) && !errors.Is(err, store.ErrConcurrentModification) {
			t.Errorf("unexpected delete error: %v", err)
		}
	}()
	wg.Wait()

	products, err := f.service.ListProducts(ctx)
	require.NoError(t, err)
	_, err = f.service.GetCategory(ctx, c.ID)
	if errors.Is(err, store.ErrNotFound) {
		assert.Empty(t, products, "products reference a deleted category")
		return
	}
	require.NoError(t, err)
}

func testReviewReferenceOrder(t *testing.T, f *fixture) {
	_, err := f.service.CreateReview(context.Background(), catalog.ReviewInput{
		ProductID: store.NewID(),
		UserID:    store.NewID(),
		Rating:    ptr(4),
	})

	var refErr *store.ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, catalog.CollectionUsers, refErr.Collection)
}
