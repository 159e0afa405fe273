package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"product-service/internal/models"
	"product-service/internal/store"
	"product-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrDuplicateSKU    = errors.New("sku already exists")
	ErrEmptyPatch      = errors.New("no fields to update")
	ErrPriceOutOfRange = errors.New("price out of range")
)

// ProductRepository is the persistence the service needs; *store.Store satisfies it.
type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	ListProducts(ctx context.Context, offset, limit int) ([]models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) (*models.Product, error)
}

// EventPublisher publishes product lifecycle events.
type EventPublisher interface {
	PublishProductEvent(ctx context.Context, event *models.ProductEvent) error
}

// IdempotencyStore remembers which product a create request key produced.
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (int64, bool, error)
	SetIdempotencyKey(ctx context.Context, key string, productID int64, ttl time.Duration) error
}

// Options tunes the product service
type Options struct {
	MaxPageSize    int
	IdempotencyTTL time.Duration
	// PublishTimeout bounds how long a mutation waits on the event broker.
	PublishTimeout time.Duration
}

// ProductService handles product business logic
type ProductService struct {
	store          ProductRepository
	eventPublisher EventPublisher
	idempotency    IdempotencyStore
	opts           Options
	logger         *zap.Logger
}

// NewProductService creates a new product service. idempotency may be nil,
// which disables Idempotency-Key handling.
func NewProductService(
	store ProductRepository,
	eventPublisher EventPublisher,
	idempotency IdempotencyStore,
	opts Options,
) *ProductService {
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 1000
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}

	return &ProductService{
		store:          store,
		eventPublisher: eventPublisher,
		idempotency:    idempotency,
		opts:           opts,
		logger:         util.GetLogger(),
	}
}

// CreateProduct creates a product with status "active". When idempotencyKey
// was already used, the product created under it is returned and replayed is true.
func (s *ProductService) CreateProduct(ctx context.Context, req *models.CreateProductRequest, idempotencyKey string) (product *models.Product, replayed bool, err error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()
	defer observe("create")()

	price, err := normalizePrice(*req.Price)
	if err != nil {
		return nil, false, err
	}

	if existing := s.replay(ctx, idempotencyKey); existing != nil {
		s.logger.Info("Duplicate create request detected",
			zap.String("idempotency_key", idempotencyKey),
			zap.Int64("product_id", existing.ID))
		return existing, true, nil
	}

	s.logger.Info("Creating product",
		zap.String("sku", req.SKU),
		zap.String("product_name", req.ProductName))

	if err := s.ensureSKUAvailable(ctx, req.SKU, 0); err != nil {
		return nil, false, err
	}

	product = &models.Product{
		ProductName: req.ProductName,
		Category:    req.Category,
		SKU:         req.SKU,
		Stock:       *req.Stock,
		Price:       price,
		Status:      models.ProductStatusActive,
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, store.ErrDuplicateSKU) {
			return nil, false, s.duplicate("constraint", req.SKU)
		}
		return nil, false, fmt.Errorf("failed to create product: %w", err)
	}

	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU))

	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.SetIdempotencyKey(ctx, idempotencyKey, product.ID, s.opts.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(err))
		}
	}

	s.publish(ctx, models.EventTypeProductCreated, product)
	return product, false, nil
}

// GetProduct retrieves a product by ID
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.GetProduct")
	defer span.End()
	defer observe("get")()

	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	return product, nil
}

// ListProducts returns up to limit products after skipping skip of them.
// Negative values count as zero and limit is capped at the configured page size.
func (s *ProductService) ListProducts(ctx context.Context, skip, limit int) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.ListProducts")
	defer span.End()
	defer observe("list")()

	if skip < 0 {
		skip = 0
	}
	if limit < 0 {
		limit = 0
	}
	if limit > s.opts.MaxPageSize {
		limit = s.opts.MaxPageSize
	}

	products, err := s.store.ListProducts(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// UpdateProduct replaces every mutable field of the product
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, req *models.UpdateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct")
	defer span.End()
	defer observe("update")()

	return s.modify(ctx, id, req.Patch())
}

// PatchProduct applies only the fields present in req
func (s *ProductService) PatchProduct(ctx context.Context, id int64, req *models.PatchProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.PatchProduct")
	defer span.End()
	defer observe("patch")()

	if req.IsEmpty() {
		return nil, ErrEmptyPatch
	}
	return s.modify(ctx, id, req)
}

// DeleteProduct removes a product by ID
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "ProductService.DeleteProduct")
	defer span.End()
	defer observe("delete")()

	product, err := s.store.DeleteProduct(ctx, id)
	if err != nil {
		return s.notFound(err, id)
	}

	util.ProductsDeletedTotal.Inc()
	s.logger.Info("Product deleted",
		zap.Int64("product_id", id),
		zap.String("sku", product.SKU))

	s.publish(ctx, models.EventTypeProductDeleted, product)
	return nil
}

func (s *ProductService) modify(ctx context.Context, id int64, patch *models.PatchProductRequest) (*models.Product, error) {
	if patch.Price != nil {
		price, err := normalizePrice(*patch.Price)
		if err != nil {
			return nil, err
		}
		normalized := *patch
		normalized.Price = &price
		patch = &normalized
	}

	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}

	if patch.SKU != nil && *patch.SKU != product.SKU {
		if err := s.ensureSKUAvailable(ctx, *patch.SKU, id); err != nil {
			return nil, err
		}
	}

	if !patch.Apply(product) {
		return product, nil
	}

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, store.ErrDuplicateSKU) {
			return nil, s.duplicate("constraint", product.SKU)
		}
		return nil, s.notFound(err, id)
	}

	util.ProductsUpdatedTotal.Inc()
	s.logger.Info("Product updated",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU))

	s.publish(ctx, models.EventTypeProductUpdated, product)
	return product, nil
}

// ensureSKUAvailable fails with ErrDuplicateSKU when sku belongs to a product
// other than exceptID.
func (s *ProductService) ensureSKUAvailable(ctx context.Context, sku string, exceptID int64) error {
	existing, err := s.store.GetProductBySKU(ctx, sku)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check sku: %w", err)
	}
	if existing.ID == exceptID {
		return nil
	}
	return s.duplicate("precheck", sku)
}

// normalizePrice rounds price to the stored scale and rejects values the
// price column cannot hold.
func normalizePrice(price decimal.Decimal) (decimal.Decimal, error) {
	if !models.PriceInRange(price) {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrPriceOutOfRange, price)
	}
	return models.NormalizePrice(price), nil
}

func (s *ProductService) duplicate(detectedBy, sku string) error {
	util.DuplicateSKURejectedTotal.WithLabelValues(detectedBy).Inc()
	s.logger.Warn("SKU already exists",
		zap.String("sku", sku),
		zap.String("detected_by", detectedBy))
	return fmt.Errorf("%w: %s", ErrDuplicateSKU, sku)
}

func (s *ProductService) notFound(err error, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("Product not found", zap.Int64("product_id", id))
		return fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	return fmt.Errorf("product %d: %w", id, err)
}

// replay returns the product already created under key, if any. Lookup
// failures are logged and treated as a miss.
func (s *ProductService) replay(ctx context.Context, key string) *models.Product {
	if key == "" || s.idempotency == nil {
		return nil
	}

	productID, found, err := s.idempotency.GetIdempotencyKey(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.String("idempotency_key", key), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil
	}
	return product
}

// publish sends a lifecycle event without failing the caller. Deletions carry
// the id and sku of the removed product but no snapshot.
func (s *ProductService) publish(ctx context.Context, eventType string, product *models.Product) {
	if s.eventPublisher == nil {
		return
	}

	event := &models.ProductEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		ProductID: product.ID,
		SKU:       product.SKU,
	}
	if eventType != models.EventTypeProductDeleted {
		event.Product = product
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.PublishTimeout)
	defer cancel()

	if err := s.eventPublisher.PublishProductEvent(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(eventType).Inc()
		s.logger.Error("Failed to publish product event",
			zap.String("event_type", eventType),
			zap.Int64("product_id", product.ID),
			zap.Error(err))
		return
	}
	util.EventsPublishedTotal.WithLabelValues(eventType).Inc()
}

func observe(operation string) func() {
	start := time.Now()
	return func() {
		util.ProductOperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
