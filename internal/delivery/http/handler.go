package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	ingest   *usecase.IngestService
	identity *usecase.IdentityService
	alerts   *usecase.AlertService
}

// NewHandler creates a new HTTP handler
func NewHandler(ingest *usecase.IngestService, identity *usecase.IdentityService, alerts *usecase.AlertService) *Handler {
	return &Handler{
		ingest:   ingest,
		identity: identity,
		alerts:   alerts,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricelens-backend",
		"version": "1.0.0",
	})
}

// Ingest accepts one run's scrape documents and runs the resolution
// pipeline synchronously, responding with the run report and the unified
// catalog. A run that fails the output validation gate returns 422 with
// whatever was resolved before the gate fired.
func (h *Handler) Ingest(c *gin.Context) {
	var documents []domain.ScrapeDocument
	if err := c.ShouldBindJSON(&documents); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "request body must be an array of scrape documents",
		})
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), documents, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrRunValidation) {
			usecase.SortCatalog(result.Catalog)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   err.Error(),
				"report":  result.Report,
				"catalog": result.Catalog,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
		return
	}

	usecase.SortCatalog(result.Catalog)
	c.JSON(http.StatusOK, result)
}

// FindProduct resolves a persistent product from display attributes
func (h *Handler) FindProduct(c *gin.Context) {
	name := c.Query("name")
	brand := c.Query("brand")
	category := c.Query("category")

	product, err := h.identity.FindByAttributes(c.Request.Context(), name, brand, category)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
		case errors.Is(err, domain.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "product lookup failed"})
		}
		return
	}

	c.JSON(http.StatusOK, product)
}

// createAlertRequest is the subscription creation payload
type createAlertRequest struct {
	ProductID   int64   `json:"product_id" binding:"required"`
	Subscriber  string  `json:"subscriber" binding:"required"`
	TargetPrice float64 `json:"target_price" binding:"required"`
}

// CreateAlert registers a price-alert subscription on a persistent product
func (h *Handler) CreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id, subscriber and target_price are required"})
		return
	}

	subscription, err := h.alerts.CreateSubscription(c.Request.Context(), req.ProductID, req.Subscriber, req.TargetPrice, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription request"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscription creation failed"})
		return
	}

	c.JSON(http.StatusCreated, subscription)
}

// GetAlert fetches one subscription by ID
func (h *Handler) GetAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}

	subscription, err := h.alerts.GetSubscription(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscription lookup failed"})
		return
	}

	c.JSON(http.StatusOK, subscription)
}

// SweepAlerts deactivates subscriptions past their monitoring horizon and
// issues their terminal notifications.
func (h *Handler) SweepAlerts(c *gin.Context) {
	expired, notified, err := h.alerts.SweepExpired(c.Request.Context(), time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "expiry sweep failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"expired":  expired,
		"notified": notified,
	})
}
