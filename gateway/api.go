package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type orderResponse struct {
	ID         int64              `json:"id"`
	Email      string             `json:"email"`
	TotalCents int64              `json:"total_cents"`
	CreatedAt  time.Time          `json:"created_at"`
	Items      []models.OrderLine `json:"items"`
}

func (g *Gateway) apiListProducts(c *gin.Context) {
	products, err := g.orders.ListProducts(c.Request.Context())
	if err != nil {
		g.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (g *Gateway) apiCreateOrder(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		g.apiError(c, err)
		return
	}

	req, err := service.ParseOrderRequest(body)
	if err != nil {
		g.apiError(c, err)
		return
	}
	if req.Dropped > 0 {
		g.logger.Warn("Ignoring extra order items", zap.Int("dropped", req.Dropped))
	}

	id, err := g.orders.CreateOrder(c.Request.Context(), req.Email, req.SKU, req.Quantity)
	if err != nil {
		g.apiError(c, err)
		return
	}
	g.metrics.OrderCreated()
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (g *Gateway) apiGetOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	order, lines, err := g.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		g.apiError(c, err)
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	c.JSON(http.StatusOK, orderResponse{
		ID:         order.ID,
		Email:      order.Email,
		TotalCents: order.TotalCents,
		CreatedAt:  order.CreatedAt,
		Items:      lines,
	})
}

func (g *Gateway) apiError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "SKU not found"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
	default:
		g.logger.Error("API request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
