package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DemoProducts is the catalog inserted into an empty database.
var DemoProducts = []models.Product{
	{SKU: "SKU-1", Title: "T-Shirt", PriceCents: 1990},
	{SKU: "SKU-2", Title: "Cap", PriceCents: 1490},
	{SKU: "SKU-3", Title: "Mug", PriceCents: 990},
}

func (s *Store) FindProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Where("sku = ?", sku).First(&product).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	if err := s.db.WithContext(ctx).Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// SeedCatalog inserts DemoProducts when the catalog is empty and reports
// how many rows were written. A populated catalog is left untouched, and
// losing a race against a concurrent seeder counts as already seeded.
func (s *Store) SeedCatalog(ctx context.Context) (int, error) {
	inserted := 0
	err := s.Transaction(ctx, func(tx *Store) error {
		count, err := tx.CountProducts(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		products := make([]models.Product, len(DemoProducts))
		copy(products, DemoProducts)
		if err := tx.db.WithContext(ctx).Create(&products).Error; err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		inserted = len(products)
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		s.logger.Info("Catalog was seeded concurrently")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if inserted > 0 {
		s.logger.Info("Seeded demo catalog", zap.Int("products", inserted))
	}
	return inserted, nil
}
