package repository

import (
	"context"
	"fmt"

	"github.com/example/storefront/pkg/models"
)

func (s *Store) InsertOrder(ctx context.Context, order *models.Order) error {
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *Store) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}

func (s *Store) FindOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// OrderLines returns the items of an order joined with their products,
// in insertion order.
func (s *Store) OrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	lines := []models.OrderLine{}
	err := s.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("oi.id, oi.order_id, oi.product_id, oi.quantity, p.sku, p.title, p.price_cents").
		Joins("JOIN products p ON p.id = oi.product_id").
		Where("oi.order_id = ?", orderID).
		Order("oi.id").
		Scan(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	return lines, nil
}

func (s *Store) CountOrders(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func (s *Store) CountOrderItems(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.OrderItem{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count order items: %w", err)
	}
	return count, nil
}
