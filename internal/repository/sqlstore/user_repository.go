package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"blog-service/internal/domain"
	"blog-service/internal/repository"
)

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) toDomain(blogs []string) domain.User {
	if blogs == nil {
		blogs = []string{}
	}
	return domain.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Blogs:        blogs,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type UserRepository struct {
	db sqlx.ExtContext
}

func NewUserRepository(db sqlx.ExtContext) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user row. user.Blogs is not persisted here; links are
// only written through AppendBlog.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`),
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	if user.Blogs == nil {
		user.Blogs = []string{}
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `
SELECT id, name, email, password_hash, created_at, updated_at
FROM users
WHERE email = ?`, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `
SELECT id, name, email, password_hash, created_at, updated_at
FROM users
WHERE id = ?`, id)
}

func (r *UserRepository) getOne(ctx context.Context, query, arg string) (*domain.User, error) {
	var row userRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	var blogs []string
	if err := sqlx.SelectContext(ctx, r.db, &blogs, r.db.Rebind(`
SELECT blog_id FROM user_blogs WHERE user_id = ? ORDER BY position ASC`), row.ID); err != nil {
		return nil, fmt.Errorf("query user blogs: %w", err)
	}

	user := row.toDomain(blogs)
	return &user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `
SELECT id, name, email, password_hash, created_at, updated_at
FROM users
ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	var links []struct {
		UserID string `db:"user_id"`
		BlogID string `db:"blog_id"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &links, `
SELECT user_id, blog_id FROM user_blogs ORDER BY user_id ASC, position ASC`); err != nil {
		return nil, fmt.Errorf("query user blogs: %w", err)
	}
	byUser := make(map[string][]string, len(rows))
	for _, link := range links {
		byUser[link.UserID] = append(byUser[link.UserID], link.BlogID)
	}

	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain(byUser[row.ID]))
	}
	return users, nil
}

func (r *UserRepository) AppendBlog(ctx context.Context, userID, blogID string) error {
	var exists int
	if err := sqlx.GetContext(ctx, r.db, &exists, r.db.Rebind(`SELECT COUNT(1) FROM users WHERE id = ?`), userID); err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if exists == 0 {
		return repository.ErrNotFound
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
INSERT INTO user_blogs (user_id, blog_id, position)
SELECT CAST(? AS TEXT), CAST(? AS TEXT), COALESCE(MAX(position), 0) + 1
FROM user_blogs
WHERE user_id = ?`),
		userID,
		blogID,
		userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("link blog: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("link blog: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET updated_at = ? WHERE id = ?`), time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}

func (r *UserRepository) RemoveBlog(ctx context.Context, userID, blogID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM user_blogs WHERE user_id = ? AND blog_id = ?`), userID, blogID)
	if err != nil {
		return fmt.Errorf("unlink blog: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		if _, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET updated_at = ? WHERE id = ?`), time.Now().UTC(), userID); err != nil {
			return fmt.Errorf("touch user: %w", err)
		}
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
