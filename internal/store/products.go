package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"product-service/internal/models"
)

const productColumns = "id, product_name, category, sku, stock, price, status, created_at, updated_at"

// CreateProduct inserts a product and reloads it from the returned row, so
// generated columns and the stored price scale are reflected in product.
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO products (product_name, category, sku, stock, price, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + productColumns

	err = tx.GetContext(ctx, product, query,
		product.ProductName, product.Category, product.SKU, product.Stock, product.Price, product.Status)
	if err != nil {
		return translateError(err)
	}

	return translateError(tx.Commit())
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductBySKU retrieves a product by SKU
func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE sku = $1", sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %q: %w", sku, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts returns up to limit products after skipping offset, in id order
func (s *Store) ListProducts(ctx context.Context, offset, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products ORDER BY id OFFSET $1 LIMIT $2", offset, limit)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// UpdateProduct overwrites every mutable column, refreshes updated_at and
// reloads product from the stored row
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE products
		SET product_name = $1, category = $2, sku = $3, stock = $4, price = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING ` + productColumns

	err = tx.GetContext(ctx, product, query,
		product.ProductName, product.Category, product.SKU, product.Stock, product.Price, product.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %d: %w", product.ID, ErrNotFound)
	}
	if err != nil {
		return translateError(err)
	}

	return translateError(tx.Commit())
}

// DeleteProduct removes a product by ID and returns the removed row
func (s *Store) DeleteProduct(ctx context.Context, id int64) (*models.Product, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var product models.Product
	err = tx.GetContext(ctx, &product,
		"DELETE FROM products WHERE id = $1 RETURNING "+productColumns, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &product, nil
}
