package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"product-service/internal/models"
)

// MemoryStore keeps products in memory with the same contract as Store,
// including the unique sku constraint. It backs tests that need no database.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.Product
	last   time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[int64]models.Product)}
}

// now returns a strictly increasing timestamp
func (m *MemoryStore) now() time.Time {
	t := time.Now().UTC()
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func (m *MemoryStore) skuTaken(sku string, exceptID int64) bool {
	for id, row := range m.rows {
		if row.SKU == sku && id != exceptID {
			return true
		}
	}
	return false
}

// Ping always succeeds
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Count returns the number of stored products
func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MemoryStore) CreateProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.skuTaken(product.SKU, 0) {
		return fmt.Errorf("%w: products_sku_key", ErrDuplicateSKU)
	}
	if product.Status == "" {
		product.Status = models.ProductStatusActive
	}

	m.nextID++
	now := m.now()
	product.Price = models.NormalizePrice(product.Price)
	product.ID = m.nextID
	product.CreatedAt = now
	product.UpdatedAt = now
	m.rows[product.ID] = *product
	return nil
}

func (m *MemoryStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return &row, nil
}

func (m *MemoryStore) GetProductBySKU(_ context.Context, sku string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.SKU == sku {
			found := row
			return &found, nil
		}
	}
	return nil, fmt.Errorf("product %q: %w", sku, ErrNotFound)
}

func (m *MemoryStore) ListProducts(_ context.Context, offset, limit int) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products := []models.Product{}
	for i := offset; i < len(ids) && len(products) < limit; i++ {
		products = append(products, m.rows[ids[i]])
	}
	return products, nil
}

func (m *MemoryStore) UpdateProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[product.ID]; !ok {
		return fmt.Errorf("product %d: %w", product.ID, ErrNotFound)
	}
	if m.skuTaken(product.SKU, product.ID) {
		return fmt.Errorf("%w: products_sku_key", ErrDuplicateSKU)
	}

	product.Price = models.NormalizePrice(product.Price)
	product.CreatedAt = m.rows[product.ID].CreatedAt
	product.UpdatedAt = m.now()
	m.rows[product.ID] = *product
	return nil
}

func (m *MemoryStore) DeleteProduct(_ context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	delete(m.rows, id)
	return &row, nil
}
