package repository

import (
	"context"

	"blog-service/internal/domain"
)

// BlogRepository defines persistence operations for Blog entities.
type BlogRepository interface {
	Create(ctx context.Context, blog *domain.Blog) error
	GetByID(ctx context.Context, id string) (*domain.Blog, error)
	List(ctx context.Context) ([]domain.Blog, error)
	// ListByIDs returns the blogs in the order of ids, skipping unknown ids.
	ListByIDs(ctx context.Context, ids []string) ([]domain.Blog, error)
	UpdateContent(ctx context.Context, id string, title, desc *string) (*domain.Blog, error)
	Delete(ctx context.Context, id string) error
}
