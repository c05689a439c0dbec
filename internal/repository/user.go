package repository

import (
	"context"

	"blog-service/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	// AppendBlog adds blogID to the end of the user's blog list.
	AppendBlog(ctx context.Context, userID, blogID string) error
	// RemoveBlog drops blogID from the user's blog list. Removing an id that
	// is not linked is not an error.
	RemoveBlog(ctx context.Context, userID, blogID string) error
}
