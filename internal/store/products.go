package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"backoffice-api/internal/models"
)

const productColumns = `id, name, description, price, stock_quantity, reorder_level, created_at, updated_at`

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products ORDER BY id")
	return products, err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ProductExistsByName reports whether another product already uses name
func (s *Store) ProductExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM products WHERE name = $1 AND id <> $2)", name, excludeID)
	return exists, err
}

// CreateProduct inserts a product and fills in its ID and timestamps
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, stock_quantity, reorder_level)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.Description, p.Price, p.StockQuantity, p.ReorderLevel).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return models.ErrDuplicateName
	}
	return err
}

// UpdateProduct overwrites the catalog fields of a product. Stock is left
// alone; p.StockQuantity is set to the current level.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, reorder_level = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING stock_quantity, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.Description, p.Price, p.ReorderLevel, p.ID).
		Scan(&p.StockQuantity, &p.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.ErrProductNotFound
	case isUniqueViolation(err):
		return models.ErrDuplicateName
	}
	return err
}

// DeleteProduct removes a product that no order item references
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if isForeignKeyViolation(err) {
		return models.ErrInUse
	}
	if err != nil {
		return err
	}
	return requireAffected(res, models.ErrProductNotFound)
}

// UpdateStock sets the stock level of a product
func (s *Store) UpdateStock(ctx context.Context, id int64, newQuantity int) error {
	if newQuantity < 0 {
		return models.ErrNegativeStock
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock_quantity = $1, updated_at = NOW() WHERE id = $2",
		newQuantity, id)
	if err != nil {
		return err
	}
	return requireAffected(res, models.ErrProductNotFound)
}

// AdjustStock adds delta (which may be negative) to the stock level in one statement.
// The guard keeps the stock from going below zero.
func (s *Store) AdjustStock(ctx context.Context, id int64, delta int) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = NOW()
		WHERE id = $2 AND stock_quantity + $1 >= 0
		RETURNING `+productColumns, delta, id)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetProductByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, models.ErrNegativeStock
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetLowStockProducts retrieves products whose stock is below their reorder level
func (s *Store) GetLowStockProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE stock_quantity < reorder_level ORDER BY stock_quantity, id")
	return products, err
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
