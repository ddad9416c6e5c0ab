// Package service holds the storefront's order rules: an order is only
// created for an existing product and its total is always derived from
// the product's current price.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

var (
	// ErrValidation is the parent of every input validation error.
	ErrValidation = errors.New("validation failed")

	ErrEmailRequired       = fmt.Errorf("%w: email is required", ErrValidation)
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be a positive integer", ErrValidation)
	ErrOrderFieldsRequired = fmt.Errorf("%w: email and items are required", ErrValidation)
	ErrQuantityTooLarge    = fmt.Errorf("%w: quantity is too large", ErrValidation)

	ErrProductNotFound = errors.New("SKU not found")
)

// ProductCache is an optional read-through cache for catalog lookups.
type ProductCache interface {
	GetProduct(ctx context.Context, sku string) (*models.Product, error)
	CacheProduct(ctx context.Context, product *models.Product) error
}

// AuditSink receives an entry for every order created.
type AuditSink interface {
	RecordAudit(ctx context.Context, entry *repository.AuditEntry) error
}

type OrderService struct {
	store  *repository.Store
	cache  ProductCache
	audit  AuditSink
	logger *zap.Logger
}

type Option func(*OrderService)

func WithProductCache(cache ProductCache) Option {
	return func(s *OrderService) { s.cache = cache }
}

func WithAuditSink(sink AuditSink) Option {
	return func(s *OrderService) { s.audit = sink }
}

func NewOrderService(store *repository.Store, logger *zap.Logger, opts ...Option) *OrderService {
	s := &OrderService{store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OrderService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.store.ListProducts(ctx)
}

// FindProductBySKU returns ErrProductNotFound when no product carries sku.
func (s *OrderService) FindProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	if s.cache != nil {
		if product, err := s.cache.GetProduct(ctx, sku); err == nil {
			return product, nil
		} else if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("Product cache read failed", zap.String("sku", sku), zap.Error(err))
		}
	}

	product, err := s.store.FindProductBySKU(ctx, sku)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product %q: %w", sku, err)
	}

	if s.cache != nil {
		if err := s.cache.CacheProduct(ctx, product); err != nil {
			s.logger.Warn("Product cache write failed", zap.String("sku", sku), zap.Error(err))
		}
	}
	return product, nil
}

// CreateOrder places an order for quantity units of sku and returns the
// new order id. The order and its single item are written in one
// transaction; nothing is written when the SKU is unknown.
func (s *OrderService) CreateOrder(ctx context.Context, email, sku string, quantity int) (int64, error) {
	if strings.TrimSpace(email) == "" {
		return 0, ErrEmailRequired
	}
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	var order models.Order
	var product *models.Product
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		product, err = tx.FindProductBySKU(ctx, sku)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}
		if product.PriceCents > 0 && int64(quantity) > math.MaxInt64/product.PriceCents {
			return ErrQuantityTooLarge
		}

		order = models.Order{
			Email:      email,
			TotalCents: product.PriceCents * int64(quantity),
		}
		if err := tx.InsertOrder(ctx, &order); err != nil {
			return err
		}

		return tx.InsertOrderItem(ctx, &models.OrderItem{
			OrderID:   order.ID,
			ProductID: product.ID,
			Quantity:  quantity,
		})
	})
	if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrValidation) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("sku", sku),
		zap.Int("quantity", quantity),
		zap.Int64("total_cents", order.TotalCents))

	s.recordAudit(ctx, &order, product, quantity)
	return order.ID, nil
}

func (s *OrderService) recordAudit(ctx context.Context, order *models.Order, product *models.Product, quantity int) {
	if s.audit == nil {
		return
	}
	err := s.audit.RecordAudit(ctx, &repository.AuditEntry{
		Service: "storefront",
		Action:  "create_order",
		OrderID: order.ID,
		Data: bson.M{
			"email":       order.Email,
			"sku":         product.SKU,
			"quantity":    quantity,
			"total_cents": order.TotalCents,
		},
	})
	if err != nil {
		s.logger.Warn("Failed to record audit entry", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// GetOrder returns the order with its lines. A missing order is reported
// as a nil order and no lines, not as an error.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderLine, error) {
	order, err := s.store.FindOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, []models.OrderLine{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}

	lines, err := s.store.OrderLines(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, lines, nil
}
