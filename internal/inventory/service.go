package inventory

import (
	"context"
	"fmt"
	"strings"

	"api_pos/internal/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service provides catalog management on top of the datastore. Every write
// goes through the store's writer transaction so it never interleaves with a
// sale posting.
type Service struct {
	store  *database.Store
	logger *zap.Logger
}

// NewService creates a new Service.
func NewService(store *database.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Service{store: store, logger: logger}
}

func (s *Service) reader(ctx context.Context) *Repository {
	return NewRepository(s.store.DB(ctx))
}

func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	return s.reader(ctx).List(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id uint) (*Product, error) {
	return s.reader(ctx).Get(ctx, id)
}

// CreateProduct validates in and inserts a new product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	in, err := normalizeProduct(in)
	if err != nil {
		return nil, err
	}

	var created *Product
	err = s.store.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		if err := checkCategory(ctx, repo, in.CategoryID); err != nil {
			return err
		}
		p := &Product{
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Stock:       in.Stock,
			CategoryID:  in.CategoryID,
			SKU:         in.SKU,
		}
		if err := repo.Create(ctx, p); err != nil {
			return err
		}
		var getErr error
		created, getErr = repo.Get(ctx, p.ID)
		return getErr
	})
	if err != nil {
		s.logger.Warn("failed to create product", zap.String("name", in.Name), zap.Error(err))
		return nil, err
	}

	s.logger.Info("product created", zap.Uint("product_id", created.ID), zap.String("name", created.Name))
	return created, nil
}

// UpdateProduct replaces the editable fields of product id.
func (s *Service) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*Product, error) {
	in, err := normalizeProduct(in)
	if err != nil {
		return nil, err
	}

	var updated *Product
	err = s.store.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		if err := checkCategory(ctx, repo, in.CategoryID); err != nil {
			return err
		}
		p := &Product{
			ID:          id,
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Stock:       in.Stock,
			CategoryID:  in.CategoryID,
			SKU:         in.SKU,
		}
		if err := repo.Update(ctx, p); err != nil {
			return err
		}
		var getErr error
		updated, getErr = repo.Get(ctx, id)
		return getErr
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product updated", zap.Uint("product_id", id), zap.Int("stock", updated.Stock))
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	err := s.store.WithTx(ctx, func(tx *gorm.DB) error {
		return NewRepository(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.Uint("product_id", id))
	return nil
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.reader(ctx).ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, name, description string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}

	c := &Category{Name: name, Description: strings.TrimSpace(description)}
	err := s.store.WithTx(ctx, func(tx *gorm.DB) error {
		return NewRepository(tx).CreateCategory(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id uint, name, description string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}

	var updated *Category
	err := s.store.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		if err := repo.UpdateCategory(ctx, &Category{ID: id, Name: name, Description: strings.TrimSpace(description)}); err != nil {
			return err
		}
		var getErr error
		updated, getErr = repo.GetCategory(ctx, id)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteCategory removes the category; its products become uncategorized.
func (s *Service) DeleteCategory(ctx context.Context, id uint) error {
	return s.store.WithTx(ctx, func(tx *gorm.DB) error {
		return NewRepository(tx).DeleteCategory(ctx, id)
	})
}

func checkCategory(ctx context.Context, repo *Repository, id *uint) error {
	if id == nil {
		return nil
	}
	_, err := repo.GetCategory(ctx, *id)
	return err
}

func normalizeProduct(in ProductInput) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return in, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if in.Price.IsNegative() {
		return in, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if in.Stock < 0 {
		return in, fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	in.Price = in.Price.Round(2)
	if in.SKU != nil {
		sku := strings.TrimSpace(*in.SKU)
		if sku == "" {
			in.SKU = nil
		} else {
			in.SKU = &sku
		}
	}
	return in, nil
}
