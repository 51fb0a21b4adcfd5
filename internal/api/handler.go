package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	storefront *service.Storefront
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(storefront *service.Storefront) *Handler {
	return &Handler{
		storefront: storefront,
		logger:     util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/store", h.getStore)

		v1.GET("/catalog", h.getCatalog)
		v1.GET("/catalog/featured", h.getFeatured)
		v1.GET("/catalog/available", h.getAvailable)
		v1.GET("/catalog/:id", h.getProduct)
		v1.POST("/catalog/refresh", h.refreshCatalog)

		v1.GET("/cart", h.getCart)
		v1.DELETE("/cart", h.clearCart)
		v1.POST("/cart/lines", h.addLine)
		v1.PUT("/cart/lines/:id", h.updateLine)
		v1.DELETE("/cart/lines/:id", h.removeLine)
		v1.PUT("/cart/delivery", h.setDelivery)
		v1.POST("/cart/checkout", h.checkout)
		v1.GET("/cart/events", h.cartEvents)

		v1.GET("/messaging/test", h.testMessage)
	}
}

// AddLineRequest adds a catalog product to the cart
type AddLineRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1,max=10000"`
}

// UpdateLineRequest sets a line quantity. Zero removes the line.
type UpdateLineRequest struct {
	Quantity *int `json:"quantity" binding:"required,max=10000"`
}

// DeliveryRequest changes the delivery method, the address, or both
type DeliveryRequest struct {
	Method  models.DeliveryMethod `json:"method,omitempty"`
	Address *string               `json:"address,omitempty"`
}

// RefreshRequest controls a catalog refresh
type RefreshRequest struct {
	Broadcast bool   `json:"broadcast"`
	Reason    string `json:"reason"`
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once a catalog can be served
func (h *Handler) readinessCheck(c *gin.Context) {
	catalog := h.storefront.Catalog(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"time":     time.Now().Unix(),
		"origin":   catalog.Origin,
		"products": len(catalog.Products),
	})
}

func (h *Handler) getStore(c *gin.Context) {
	c.JSON(http.StatusOK, h.storefront.StoreInfo())
}

func (h *Handler) getCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.storefront.Catalog(c.Request.Context()))
}

func (h *Handler) getFeatured(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.storefront.Featured(c.Request.Context())})
}

func (h *Handler) getAvailable(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.storefront.Available(c.Request.Context())})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.storefront.Product(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// refreshCatalog reloads the local catalog, or asks every instance to when broadcast is set
func (h *Handler) refreshCatalog(c *gin.Context) {
	var req RefreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	if req.Broadcast {
		if err := h.storefront.RequestCatalogRefresh(c.Request.Context(), req.Reason); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "refresh requested"})
		return
	}

	c.JSON(http.StatusOK, h.storefront.RefreshCatalog(c.Request.Context()))
}

func (h *Handler) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.storefront.Cart())
}

func (h *Handler) clearCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.storefront.ClearCart())
}

func (h *Handler) addLine(c *gin.Context) {
	var req AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	view, err := h.storefront.AddToCart(c.Request.Context(), req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) updateLine(c *gin.Context) {
	var req UpdateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.storefront.UpdateQuantity(c.Param("id"), *req.Quantity))
}

func (h *Handler) removeLine(c *gin.Context) {
	c.JSON(http.StatusOK, h.storefront.RemoveItem(c.Param("id")))
}

func (h *Handler) setDelivery(c *gin.Context) {
	var req DeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Method == "" && req.Address == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": "method or address is required"})
		return
	}

	view, err := h.storefront.SetDelivery(req.Method, req.Address)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) checkout(c *gin.Context) {
	result, err := h.storefront.ProceedToCheckout(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// cartEvents streams cart change notifications as server-sent events
func (h *Handler) cartEvents(c *gin.Context) {
	events := make(chan models.CartChangedEvent, 16)
	unsubscribe := h.storefront.Subscribe(func(e models.CartChangedEvent) {
		select {
		case events <- e:
		default:
			h.logger.Warn("Dropping cart event for slow subscriber")
		}
	})
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("cart", h.storefront.Cart())
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e := <-events:
			c.SSEvent("cart", e)
			return true
		}
	})
}

func (h *Handler) testMessage(c *gin.Context) {
	message, link := h.storefront.TestMessage()
	c.JSON(http.StatusOK, gin.H{"message": message, "link": link})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal error"

	switch {
	case errors.Is(err, cart.ErrInvalidOrder):
		status, message = http.StatusUnprocessableEntity, "Order is not valid"
	case errors.Is(err, service.ErrProductNotFound):
		status, message = http.StatusNotFound, "Product not found"
	case errors.Is(err, service.ErrOutOfStock):
		status, message = http.StatusConflict, "Product out of stock"
	case errors.Is(err, service.ErrInvalidDelivery):
		status, message = http.StatusBadRequest, "Invalid delivery method"
	case errors.Is(err, service.ErrEventsDisabled):
		status, message = http.StatusServiceUnavailable, "Event publishing is disabled"
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
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
