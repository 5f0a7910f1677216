// Package seed loads the demo admin account and catalog into an empty store.
package seed

import (
	"context"
	"errors"
	"fmt"

	"api_pos/internal/auth"
	"api_pos/internal/config"
	"api_pos/internal/database"
	"api_pos/internal/inventory"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type demoProduct struct {
	name, description, price string
	stock                    int
	category, sku            string
}

var demoCategories = []inventory.Category{
	{Name: "Electronics", Description: "Electronic devices and accessories"},
	{Name: "Clothing", Description: "Apparel and fashion items"},
	{Name: "Food & Beverages", Description: "Food items and drinks"},
	{Name: "Books", Description: "Books and educational materials"},
	{Name: "Home & Garden", Description: "Home improvement and garden supplies"},
}

var demoProducts = []demoProduct{
	{"Smartphone", "Latest Android smartphone", "299.99", 50, "Electronics", "PHONE001"},
	{"Laptop", "High-performance laptop", "899.99", 25, "Electronics", "LAPTOP001"},
	{"T-Shirt", "Cotton t-shirt", "19.99", 100, "Clothing", "SHIRT001"},
	{"Jeans", "Denim jeans", "49.99", 75, "Clothing", "JEANS001"},
	{"Coffee", "Premium coffee beans", "12.99", 200, "Food & Beverages", "COFFEE001"},
	{"Energy Drink", "Energy boost drink", "2.99", 150, "Food & Beverages", "ENERGY001"},
	{"Programming Book", "Learn JavaScript", "39.99", 30, "Books", "BOOK001"},
	{"Garden Tools", "Basic garden tool set", "79.99", 20, "Home & Garden", "TOOLS001"},
}

// Run creates the admin account when it is missing and, if cfg.Demo is set,
// fills empty category and product tables with the demo catalog. It is safe
// to call on every start.
func Run(ctx context.Context, store *database.Store, users *auth.Service, cfg config.SeedConfig, logger *zap.Logger) error {
	if err := ensureAdmin(ctx, store, users, cfg, logger); err != nil {
		return err
	}
	if !cfg.Demo {
		return nil
	}
	return store.WithTx(ctx, func(tx *gorm.DB) error {
		return seedCatalog(ctx, inventory.NewRepository(tx), logger)
	})
}

func ensureAdmin(ctx context.Context, store *database.Store, users *auth.Service, cfg config.SeedConfig, logger *zap.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	_, err := auth.NewRepository(store.DB(ctx)).FindByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, auth.ErrUserNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	admin, err := users.CreateUser(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName, auth.RoleAdmin)
	if err != nil && !errors.Is(err, auth.ErrUserExists) {
		return fmt.Errorf("create admin: %w", err)
	}
	if admin != nil {
		logger.Info("admin account created", zap.String("email", admin.Email))
	}
	return nil
}

func seedCatalog(ctx context.Context, repo *inventory.Repository, logger *zap.Logger) error {
	existing, err := repo.ListCategories(ctx)
	if err != nil {
		return err
	}
	categoryIDs := make(map[string]uint, len(existing))
	for _, c := range existing {
		categoryIDs[c.Name] = c.ID
	}

	if len(existing) == 0 {
		for _, c := range demoCategories {
			if err := repo.CreateCategory(ctx, &c); err != nil {
				return fmt.Errorf("seed category %q: %w", c.Name, err)
			}
			categoryIDs[c.Name] = c.ID
		}
		logger.Info("demo categories seeded", zap.Int("count", len(demoCategories)))
	}

	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, d := range demoProducts {
		sku := d.sku
		p := &inventory.Product{
			Name:        d.name,
			Description: d.description,
			Price:       decimal.RequireFromString(d.price),
			Stock:       d.stock,
			SKU:         &sku,
		}
		if id, ok := categoryIDs[d.category]; ok {
			p.CategoryID = &id
		}
		if err := repo.Create(ctx, p); err != nil {
			return fmt.Errorf("seed product %q: %w", d.name, err)
		}
	}
	logger.Info("demo products seeded", zap.Int("count", len(demoProducts)))
	return nil
}
