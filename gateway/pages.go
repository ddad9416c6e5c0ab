package gateway

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/storefront/pkg/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var templateFuncs = template.FuncMap{
	"price": func(cents int64) string {
		return fmt.Sprintf("%d.%02d", cents/100, cents%100)
	},
}

func (g *Gateway) index(c *gin.Context) {
	products, err := g.orders.ListProducts(c.Request.Context())
	if err != nil {
		g.pageError(c, err)
		return
	}
	c.HTML(http.StatusOK, "index.tmpl", gin.H{"Products": products})
}

func (g *Gateway) productPage(c *gin.Context) {
	product, err := g.orders.FindProductBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		g.pageError(c, err)
		return
	}
	c.HTML(http.StatusOK, "product.tmpl", gin.H{"Product": product})
}

func (g *Gateway) checkoutForm(c *gin.Context) {
	sku := c.Query("sku")
	if sku == "" {
		g.pageStatus(c, http.StatusBadRequest, "A product SKU is required to check out.")
		return
	}
	product, err := g.orders.FindProductBySKU(c.Request.Context(), sku)
	if err != nil {
		g.pageError(c, err)
		return
	}
	c.HTML(http.StatusOK, "checkout.tmpl", gin.H{"Product": product})
}

func (g *Gateway) checkout(c *gin.Context) {
	sku := strings.TrimSpace(c.PostForm("sku"))
	email := strings.TrimSpace(c.PostForm("email"))
	if sku == "" || email == "" {
		g.pageStatus(c, http.StatusBadRequest, "Both a product and an email address are required.")
		return
	}
	quantity, err := service.QuantityFromString(c.PostForm("quantity"))
	if err != nil {
		g.pageError(c, err)
		return
	}

	id, err := g.orders.CreateOrder(c.Request.Context(), email, sku, quantity)
	if err != nil {
		g.pageError(c, err)
		return
	}
	g.metrics.OrderCreated()
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/order/%d", id))
}

func (g *Gateway) orderPage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		g.pageStatus(c, http.StatusNotFound, "Order not found.")
		return
	}

	order, lines, err := g.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		g.pageError(c, err)
		return
	}
	if order == nil {
		g.pageStatus(c, http.StatusNotFound, "Order not found.")
		return
	}
	c.HTML(http.StatusOK, "order.tmpl", gin.H{"Order": order, "Items": lines})
}

func (g *Gateway) pageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		g.pageStatus(c, http.StatusNotFound, "Product not found.")
	case errors.Is(err, service.ErrValidation):
		g.pageStatus(c, http.StatusBadRequest, validationMessage(err))
	default:
		g.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		g.pageStatus(c, http.StatusInternalServerError, "Something went wrong.")
	}
}

func (g *Gateway) pageStatus(c *gin.Context, status int, message string) {
	c.HTML(status, "error.tmpl", gin.H{
		"Status":  status,
		"Title":   http.StatusText(status),
		"Message": message,
	})
}

// validationMessage strips the shared validation prefix from err.
func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
}
