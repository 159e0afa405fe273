package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"product-service/internal/models"
	"product-service/internal/service"
	"product-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultSkip  = 0
	defaultLimit = 100
)

// ProductService is the set of product operations exposed over HTTP
type ProductService interface {
	CreateProduct(ctx context.Context, req *models.CreateProductRequest, idempotencyKey string) (*models.Product, bool, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, skip, limit int) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id int64, req *models.UpdateProductRequest) (*models.Product, error)
	PatchProduct(ctx context.Context, id int64, req *models.PatchProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	productService ProductService
	db             Pinger
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(productService ProductService, db Pinger) *Handler {
	return &Handler{
		productService: productService,
		db:             db,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	products := router.Group("/product")
	{
		products.POST("", h.createProduct)
		products.GET("", h.listProducts)
		products.GET("/:id", h.getProduct)
		products.PUT("/:id", h.updateProduct)
		products.PATCH("/:id", h.patchProduct)
		products.DELETE("/:id", h.deleteProduct)
	}
}

// healthCheck is a static liveness probe
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "Product API running",
	})
}

// readinessCheck reports whether the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *Handler) createProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	product, replayed, err := h.productService.CreateProduct(c.Request.Context(), &req, c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if replayed {
		c.Header("Idempotent-Replayed", "true")
	}

	c.JSON(http.StatusCreated, product)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	product, err := h.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) listProducts(c *gin.Context) {
	skip, ok := queryInt(c, "skip", defaultSkip)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", defaultLimit)
	if !ok {
		return
	}

	products, err := h.productService.ListProducts(c.Request.Context(), skip, limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, products)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) patchProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	var req models.PatchProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	product, err := h.productService.PatchProduct(c.Request.Context(), id, &req)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	if err := h.productService.DeleteProduct(c.Request.Context(), id); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// abortWithError translates service errors into status codes. Unclassified
// errors are logged and answered with a generic 500.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "Product not found"})
	case errors.Is(err, service.ErrDuplicateSKU):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "SKU already exists"})
	case errors.Is(err, service.ErrPriceOutOfRange):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "Price out of range"})
	case errors.Is(err, service.ErrEmptyPatch):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "At least one field must be provided"})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	}
}

func validationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
}

func productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid product ID"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw, present := c.GetQuery(key)
	if !present || raw == "" {
		return def, true
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid " + key + " parameter"})
		return 0, false
	}
	return val, true
}

// requestLogger writes one line when a request arrives and one with its outcome
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.RequestURI()))

		c.Next()

		logger.Info("Response",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
