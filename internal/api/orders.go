package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"backoffice-api/internal/models"
	"backoffice-api/internal/service"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.services.Orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		// a missing product or customer is a problem with the request body
		if errors.Is(err, models.ErrNotFound) {
			h.respondErrorStatus(c, http.StatusBadRequest, err)
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	order, err := h.services.Orders.UpdateOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	order, err := h.services.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.services.Orders.ListOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) customerOrders(c *gin.Context) {
	customerID, ok := idParam(c, "customerId")
	if !ok {
		return
	}

	orders, err := h.services.Orders.ListOrdersByCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) recentOrders(c *gin.Context) {
	count := 0
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be an integer"})
			return
		}
		count = n
	}

	orders, err := h.services.Reports.GetRecentOrders(c.Request.Context(), count)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// dailySales defaults to the current UTC day
func (h *Handler) dailySales(c *gin.Context) {
	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be formatted as YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	total, err := h.services.Reports.GetDailySales(c.Request.Context(), date)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":       date.Format(dateLayout),
		"totalSales": json.Number(total.String()),
	})
}
