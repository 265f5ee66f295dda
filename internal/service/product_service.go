package service

import (
	"context"
	"strings"

	"backoffice-api/internal/models"
	"backoffice-api/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const defaultReorderLevel = 10

// ProductService manages the catalog. Reads go through the cache and fall back
// to the database when the cache misses or fails.
type ProductService struct {
	store  ProductStore
	cache  ProductCache
	logger *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(store ProductStore, cache ProductCache) *ProductService {
	return &ProductService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// ProductRequest carries the editable fields of a product
type ProductRequest struct {
	Name          string          `json:"name" binding:"required,max=100"`
	Description   *string         `json:"description" binding:"omitempty,max=500"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity" binding:"gte=0"`
	ReorderLevel  *int            `json:"reorderLevel" binding:"omitempty,gte=0"`
}

// StockAdjustmentRequest adds (or with a negative value removes) stock
type StockAdjustmentRequest struct {
	Delta int `json:"delta"`
}

// StockLevelRequest sets an absolute stock level, e.g. after a stocktake
type StockLevelRequest struct {
	StockQuantity *int `json:"stockQuantity" binding:"required"`
}

func (r *ProductRequest) toProduct() (*models.Product, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, models.Validationf("product name is required")
	}
	if !r.Price.IsPositive() {
		return nil, models.Validationf("price must be greater than zero")
	}
	if r.StockQuantity < 0 {
		return nil, models.Validationf("stock quantity cannot be negative")
	}

	reorder := defaultReorderLevel
	if r.ReorderLevel != nil {
		if *r.ReorderLevel < 0 {
			return nil, models.Validationf("reorder level cannot be negative")
		}
		reorder = *r.ReorderLevel
	}

	return &models.Product{
		Name:          name,
		Description:   r.Description,
		Price:         r.Price,
		StockQuantity: r.StockQuantity,
		ReorderLevel:  reorder,
	}, nil
}

// ListProducts returns the whole catalog
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.ListProducts")
	defer span.End()

	products, ok, err := s.cache.GetProductList(ctx)
	switch {
	case err != nil:
		util.ProductCacheTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Product cache read failed, falling back to DB", zap.Error(err))
	case ok:
		util.ProductCacheTotal.WithLabelValues("hit").Inc()
		return products, nil
	default:
		util.ProductCacheTotal.WithLabelValues("miss").Inc()
	}

	products, err = s.store.GetProducts(ctx)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	if err := s.cache.SetProductList(ctx, products); err != nil {
		s.logger.Warn("Failed to cache product list", zap.Error(err))
	}
	return products, nil
}

// GetProduct returns one product
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.GetProduct", attribute.Int64("product_id", id))
	defer span.End()

	product, ok, err := s.cache.GetProduct(ctx, id)
	switch {
	case err != nil:
		util.ProductCacheTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Product cache read failed, falling back to DB",
			zap.Int64("product_id", id),
			zap.Error(err))
	case ok:
		util.ProductCacheTotal.WithLabelValues("hit").Inc()
		return product, nil
	default:
		util.ProductCacheTotal.WithLabelValues("miss").Inc()
	}

	product, err = s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetProduct(ctx, product); err != nil {
		s.logger.Warn("Failed to cache product", zap.Int64("product_id", id), zap.Error(err))
	}
	return product, nil
}

// CreateProduct adds a product to the catalog. Names are unique.
func (s *ProductService) CreateProduct(ctx context.Context, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	product, err := req.toProduct()
	if err != nil {
		return nil, err
	}

	exists, err := s.store.ProductExistsByName(ctx, product.Name, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.ErrDuplicateName
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct overwrites the catalog fields of a product. StockQuantity in
// the request is ignored; stock changes go through SetStock and AdjustStock.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct", attribute.Int64("product_id", id))
	defer span.End()

	product, err := req.toProduct()
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetProductByID(ctx, id); err != nil {
		return nil, err
	}

	exists, err := s.store.ProductExistsByName(ctx, product.Name, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.ErrDuplicateName
	}

	product.ID = id
	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return product, nil
}

// DeleteProduct removes a product that no order references
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "ProductService.DeleteProduct", attribute.Int64("product_id", id))
	defer span.End()

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)

	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

// SetStock overwrites the stock level of a product
func (s *ProductService) SetStock(ctx context.Context, id int64, quantity int) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.SetStock",
		attribute.Int64("product_id", id),
		attribute.Int("stock_quantity", quantity))
	defer span.End()

	if quantity < 0 {
		return nil, models.Validationf("stock quantity cannot be negative")
	}

	if err := s.store.UpdateStock(ctx, id, quantity); err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	s.invalidate(ctx, id)

	s.logger.Info("Stock level set",
		zap.Int64("product_id", id),
		zap.Int("stock_quantity", quantity))
	return s.store.GetProductByID(ctx, id)
}

// AdjustStock changes the stock level by delta. The result may not go below zero.
func (s *ProductService) AdjustStock(ctx context.Context, id int64, delta int) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.AdjustStock",
		attribute.Int64("product_id", id),
		attribute.Int("delta", delta))
	defer span.End()

	if delta == 0 {
		return nil, models.Validationf("stock adjustment must not be zero")
	}

	product, err := s.store.AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	s.logger.Info("Stock adjusted",
		zap.Int64("product_id", id),
		zap.Int("delta", delta),
		zap.Int("stock_quantity", product.StockQuantity))
	return product, nil
}

func (s *ProductService) invalidate(ctx context.Context, ids ...int64) {
	if err := s.cache.InvalidateProducts(ctx, ids...); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}
}
