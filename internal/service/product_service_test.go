package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"product-service/internal/models"
	"product-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepository wraps the in-memory store with hooks for failure injection.
type testRepository struct {
	*store.MemoryStore
	writes   int
	hideSKUs bool // makes GetProductBySKU miss, as in a lost pre-check race
	failWith error
}

func newTestRepository() *testRepository {
	return &testRepository{MemoryStore: store.NewMemoryStore()}
}

func (r *testRepository) CreateProduct(ctx context.Context, p *models.Product) error {
	if r.failWith != nil {
		return r.failWith
	}
	if err := r.MemoryStore.CreateProduct(ctx, p); err != nil {
		return err
	}
	r.writes++
	return nil
}

func (r *testRepository) UpdateProduct(ctx context.Context, p *models.Product) error {
	if err := r.MemoryStore.UpdateProduct(ctx, p); err != nil {
		return err
	}
	r.writes++
	return nil
}

func (r *testRepository) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	if r.hideSKUs {
		return nil, fmt.Errorf("product %q: %w", sku, store.ErrNotFound)
	}
	return r.MemoryStore.GetProductBySKU(ctx, sku)
}

func (r *testRepository) row(t *testing.T, id int64) models.Product {
	t.Helper()
	p, err := r.MemoryStore.GetProductByID(context.Background(), id)
	require.NoError(t, err)
	return *p
}

type recordingPublisher struct {
	events []*models.ProductEvent
	err    error
}

func (p *recordingPublisher) PublishProductEvent(_ context.Context, e *models.ProductEvent) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// blockingPublisher never completes on its own, like a broker that is unreachable.
type blockingPublisher struct {
	err error
}

func (p *blockingPublisher) PublishProductEvent(ctx context.Context, _ *models.ProductEvent) error {
	<-ctx.Done()
	p.err = ctx.Err()
	return p.err
}

type memoryIdempotency struct {
	keys map[string]int64
}

func (m *memoryIdempotency) GetIdempotencyKey(_ context.Context, key string) (int64, bool, error) {
	id, ok := m.keys[key]
	return id, ok, nil
}

func (m *memoryIdempotency) SetIdempotencyKey(_ context.Context, key string, productID int64, _ time.Duration) error {
	if _, ok := m.keys[key]; !ok {
		m.keys[key] = productID
	}
	return nil
}

func intPtr(i int) *int { return &i }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func laptopRequest(sku string) *models.CreateProductRequest {
	return &models.CreateProductRequest{
		ProductName: "Test Laptop",
		Category:    "Electronics",
		SKU:         sku,
		Stock:       intPtr(50),
		Price:       decPtr("999.99"),
	}
}

func fullUpdate(sku string, stock int) *models.UpdateProductRequest {
	return &models.UpdateProductRequest{
		ProductName: "Test Laptop",
		Category:    "Electronics",
		SKU:         sku,
		Stock:       intPtr(stock),
		Price:       decPtr("999.99"),
	}
}

func newTestService(opts Options) (*ProductService, *testRepository, *recordingPublisher) {
	repo := newTestRepository()
	pub := &recordingPublisher{}
	return NewProductService(repo, pub, nil, opts), repo, pub
}

func TestCreateProduct(t *testing.T) {
	svc, _, pub := newTestService(Options{})

	p, replayed, err := svc.CreateProduct(context.Background(), laptopRequest("LAPTEST001"), "")
	require.NoError(t, err)

	assert.False(t, replayed)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "active", p.Status)
	assert.Equal(t, 50, p.Stock)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("999.99")))
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.Equal(t, []string{models.EventTypeProductCreated}, pub.types())
	assert.Equal(t, "LAPTEST001", pub.events[0].SKU)
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	svc, repo, _ := newTestService(Options{})
	ctx := context.Background()

	_, _, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "")
	require.NoError(t, err)
	before := repo.Count()

	_, _, err = svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "")

	assert.ErrorIs(t, err, ErrDuplicateSKU)
	assert.Equal(t, before, repo.Count())
}

func TestCreateProductConstraintViolationIsDuplicate(t *testing.T) {
	svc, repo, _ := newTestService(Options{})
	ctx := context.Background()

	_, _, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "")
	require.NoError(t, err)

	repo.hideSKUs = true
	_, _, err = svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "")

	assert.ErrorIs(t, err, ErrDuplicateSKU)
	assert.Equal(t, 1, repo.Count())
}

func TestCreateProductStorageFailure(t *testing.T) {
	svc, repo, pub := newTestService(Options{})
	repo.failWith = errors.New("connection refused")

	_, _, err := svc.CreateProduct(context.Background(), laptopRequest("LAPTEST001"), "")

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateSKU)
	assert.Empty(t, pub.events)
}

func TestCreateProductAcceptsUnvalidatedRanges(t *testing.T) {
	svc, _, _ := newTestService(Options{})
	req := laptopRequest("NEG-1")
	req.Stock = intPtr(-10)
	req.Price = decPtr("0")

	p, _, err := svc.CreateProduct(context.Background(), req, "")
	require.NoError(t, err)

	assert.Equal(t, -10, p.Stock)
	assert.True(t, p.Price.IsZero())
}

func TestCreateProductIdempotencyReplay(t *testing.T) {
	repo := newTestRepository()
	idem := &memoryIdempotency{keys: map[string]int64{}}
	svc := NewProductService(repo, &recordingPublisher{}, idem, Options{})
	ctx := context.Background()

	first, replayed, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "key-1")
	require.NoError(t, err)

	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.writes)
}

func TestGetProduct(t *testing.T) {
	svc, _, _ := newTestService(Options{})
	ctx := context.Background()

	created, _, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "")
	require.NoError(t, err)

	got, err := svc.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *got)

	_, err = svc.GetProduct(ctx, 999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestListProductsPagination(t *testing.T) {
	svc, _, _ := newTestService(Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := svc.CreateProduct(ctx, laptopRequest(fmt.Sprintf("LAPTEST00%d", i)), "")
		require.NoError(t, err)
	}

	page, err := svc.ListProducts(ctx, 0, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = svc.ListProducts(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.Equal(t, "LAPTEST002", page[0].SKU)
}

func TestListProductsClampsBounds(t *testing.T) {
	svc, _, _ := newTestService(Options{MaxPageSize: 2})
	ctx := context.Background()

	empty, err := svc.ListProducts(ctx, 0, 100)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for i := 0; i < 3; i++ {
		_, _, err := svc.CreateProduct(ctx, laptopRequest(fmt.Sprintf("SKU-%d", i)), "")
		require.NoError(t, err)
	}

	page, err := svc.ListProducts(ctx, -5, 10000)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = svc.ListProducts(ctx, 0, -1)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestUpdateProduct(t *testing.T) {
	svc, _, pub := newTestService(Options{})
	ctx := context.Background()

	created, _, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "")
	require.NoError(t, err)

	updated, err := svc.UpdateProduct(ctx, created.ID, fullUpdate("LAPTEST001", 100))
	require.NoError(t, err)

	assert.Equal(t, 100, updated.Stock)
	assert.Equal(t, "LAPTEST001", updated.SKU)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	assert.Equal(t, []string{models.EventTypeProductCreated, models.EventTypeProductUpdated}, pub.types())
}

func TestUpdateProductWithoutChangesDoesNotWrite(t *testing.T) {
	svc, repo, pub := newTestService(Options{})
	ctx := context.Background()

	created, _, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "")
	require.NoError(t, err)

	same, err := svc.UpdateProduct(ctx, created.ID, fullUpdate("LAPTEST001", 50))
	require.NoError(t, err)

	assert.Equal(t, created.UpdatedAt, same.UpdatedAt)
	assert.Equal(t, 1, repo.writes)
	assert.Len(t, pub.events, 1)
}

func TestUpdateProductSKUConflict(t *testing.T) {
	svc, repo, _ := newTestService(Options{})
	ctx := context.Background()

	first, _, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "")
	require.NoError(t, err)
	second, _, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST002"), "")
	require.NoError(t, err)

	_, err = svc.UpdateProduct(ctx, second.ID, fullUpdate("LAPTEST001", 7))
	assert.ErrorIs(t, err, ErrDuplicateSKU)

	assert.Equal(t, *first, repo.row(t, first.ID))
	assert.Equal(t, *second, repo.row(t, second.ID))
}

func TestUpdateProductConstraintViolationIsDuplicate(t *testing.T) {
	svc, repo, _ := newTestService(Options{})
	ctx := context.Background()

	_, _, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "")
	require.NoError(t, err)
	second, _, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST002"), "")
	require.NoError(t, err)

	repo.hideSKUs = true
	_, err = svc.UpdateProduct(ctx, second.ID, fullUpdate("LAPTEST001", 7))

	assert.ErrorIs(t, err, ErrDuplicateSKU)
	assert.Equal(t, "LAPTEST002", repo.row(t, second.ID).SKU)
}

func TestUpdateProductNotFound(t *testing.T) {
	svc, _, _ := newTestService(Options{})

	_, err := svc.UpdateProduct(context.Background(), 999, fullUpdate("LAPTEST001", 1))

	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestPatchProduct(t *testing.T) {
	svc, _, _ := newTestService(Options{})
	ctx := context.Background()

	created, _, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "")
	require.NoError(t, err)

	patched, err := svc.PatchProduct(ctx, created.ID, &models.PatchProductRequest{Price: decPtr("1199.99")})
	require.NoError(t, err)

	assert.True(t, patched.Price.Equal(decimal.RequireFromString("1199.99")))
	assert.Equal(t, created.ProductName, patched.ProductName)
	assert.Equal(t, created.Stock, patched.Stock)
	assert.Equal(t, created.SKU, patched.SKU)

	_, err = svc.PatchProduct(ctx, created.ID, &models.PatchProductRequest{})
	assert.ErrorIs(t, err, ErrEmptyPatch)
}

func TestDeleteProduct(t *testing.T) {
	svc, _, pub := newTestService(Options{})
	ctx := context.Background()

	created, _, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(ctx, created.ID))

	_, err = svc.GetProduct(ctx, created.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, svc.DeleteProduct(ctx, created.ID), ErrProductNotFound)

	last := pub.events[len(pub.events)-1]
	assert.Equal(t, models.EventTypeProductDeleted, last.EventType)
	assert.Equal(t, created.ID, last.ProductID)
	assert.Equal(t, "LAPTEST001", last.SKU)
	assert.Nil(t, last.Product)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	repo := newTestRepository()
	svc := NewProductService(repo, &recordingPublisher{err: errors.New("broker down")}, nil, Options{})

	_, _, err := svc.CreateProduct(context.Background(), laptopRequest("LAPTEST001"), "")

	assert.NoError(t, err)
	assert.Equal(t, 1, repo.Count())
}

func TestPublishIsBoundedByTimeout(t *testing.T) {
	repo := newTestRepository()
	pub := &blockingPublisher{}
	svc := NewProductService(repo, pub, nil, Options{PublishTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, _, err := svc.CreateProduct(context.Background(), laptopRequest("LAPTEST001"), "")

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, pub.err, context.DeadlineExceeded)
	assert.Equal(t, 1, repo.Count())
}

func TestCreateProductRoundsPrice(t *testing.T) {
	svc, _, pub := newTestService(Options{})
	ctx := context.Background()
	req := laptopRequest("LAPTEST001")
	req.Price = decPtr("999.999")

	created, _, err := svc.CreateProduct(ctx, req, "")
	require.NoError(t, err)
	assert.True(t, created.Price.Equal(decimal.RequireFromString("1000.00")))

	got, err := svc.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *got)
	assert.True(t, pub.events[0].Product.Price.Equal(got.Price))
}

func TestUpdateProductWithUnroundedSamePriceDoesNotWrite(t *testing.T) {
	svc, repo, _ := newTestService(Options{})
	ctx := context.Background()
	req := laptopRequest("LAPTEST001")
	req.Price = decPtr("999.999")

	created, _, err := svc.CreateProduct(ctx, req, "")
	require.NoError(t, err)

	update := fullUpdate("LAPTEST001", 50)
	update.Price = decPtr("999.999")
	same, err := svc.UpdateProduct(ctx, created.ID, update)
	require.NoError(t, err)

	assert.Equal(t, created.UpdatedAt, same.UpdatedAt)
	assert.Equal(t, 1, repo.writes)
	assert.True(t, update.Price.Equal(decimal.RequireFromString("999.999")))
}

func TestPriceOutOfRangeIsRejectedBeforeStorage(t *testing.T) {
	svc, repo, _ := newTestService(Options{})
	ctx := context.Background()

	req := laptopRequest("BIG-1")
	req.Price = decPtr("123456789012345.5")
	_, _, err := svc.CreateProduct(ctx, req, "")
	assert.ErrorIs(t, err, ErrPriceOutOfRange)
	assert.Equal(t, 0, repo.Count())

	created, _, err := svc.CreateProduct(ctx, laptopRequest("LAPTEST001"), "")
	require.NoError(t, err)

	_, err = svc.PatchProduct(ctx, created.ID, &models.PatchProductRequest{Price: decPtr("10000000000")})
	assert.ErrorIs(t, err, ErrPriceOutOfRange)
	assert.Equal(t, 1, repo.writes)
}
