package api

import (
	"context"
	"net/http"
	"time"

	"backoffice-api/internal/auth"
	"backoffice-api/internal/models"
	"backoffice-api/internal/service"
	"backoffice-api/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, newStatus string) (*models.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error)
}

type ReportService interface {
	GetRecentOrders(ctx context.Context, count int) ([]models.Order, error)
	GetDailySales(ctx context.Context, date time.Time) (decimal.Decimal, error)
	GetLowStock(ctx context.Context) ([]models.Product, error)
}

type ProductService interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, req *service.ProductRequest) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, req *service.ProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	SetStock(ctx context.Context, id int64, quantity int) (*models.Product, error)
	AdjustStock(ctx context.Context, id int64, delta int) (*models.Product, error)
}

type CustomerService interface {
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	CreateCustomer(ctx context.Context, req *service.CustomerRequest) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, req *service.CustomerRequest) (*models.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
}

type AuthService interface {
	Register(ctx context.Context, req *service.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *service.LoginRequest) (*service.LoginResponse, error)
}

type RestockService interface {
	ListAlerts(ctx context.Context, limit int) ([]models.RestockAlert, error)
}

// TokenParser validates bearer tokens
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the collaborators of the HTTP handlers
type Services struct {
	Orders    OrderService
	Reports   ReportService
	Products  ProductService
	Customers CustomerService
	Auth      AuthService
	Restock   RestockService
}

// Handler contains HTTP handlers
type Handler struct {
	services Services
	tokens   TokenParser
	checks   map[string]Pinger
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler. checks are pinged by the readiness probe.
func NewHandler(services Services, tokens TokenParser, checks map[string]Pinger) *Handler {
	return &Handler{
		services: services,
		tokens:   tokens,
		checks:   checks,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(h.recovery())
	router.Use(prometheusMiddleware())
	router.Use(h.requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	managers := h.requireRoles(models.RoleAdmin, models.RoleManager)

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
	}

	products := api.Group("/products")
	{
		products.GET("", h.listProducts)
		products.GET("/:id", h.getProduct)
		products.GET("/lowstock", h.requireAuth, managers, h.lowStockProducts)
		products.GET("/restock-alerts", h.requireAuth, managers, h.restockAlerts)
		products.POST("", h.requireAuth, managers, h.createProduct)
		products.PUT("/:id", h.requireAuth, managers, h.updateProduct)
		products.DELETE("/:id", h.requireAuth, managers, h.deleteProduct)
		products.PUT("/:id/stock", h.requireAuth, managers, h.setStock)
		products.POST("/:id/stock", h.requireAuth, managers, h.adjustStock)
	}

	customers := api.Group("/customers", h.requireAuth)
	{
		customers.GET("", managers, h.listCustomers)
		customers.GET("/:id", h.requireRoles(models.RoleAdmin, models.RoleManager, models.RoleUser), h.getCustomer)
		customers.POST("", managers, h.createCustomer)
		customers.PUT("/:id", managers, h.updateCustomer)
		customers.DELETE("/:id", managers, h.deleteCustomer)
	}

	orders := api.Group("/orders", h.requireAuth)
	{
		orders.POST("", h.createOrder)
		orders.GET("", managers, h.listOrders)
		orders.GET("/recent", managers, h.recentOrders)
		orders.GET("/dailysales", managers, h.dailySales)
		orders.GET("/customer/:customerId", h.customerOrders)
		orders.GET("/:id", h.getOrder)
		orders.PUT("/:id/status", managers, h.updateOrderStatus)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	ready := true
	for name, pinger := range h.checks {
		if err := pinger.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}
