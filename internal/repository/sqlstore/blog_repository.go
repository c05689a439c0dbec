package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"blog-service/internal/domain"
	"blog-service/internal/repository"
)

const selectBlogs = `
SELECT id, title, description, img, user_id, created_at
FROM blogs`

type blogRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Desc      string    `db:"description"`
	Img       string    `db:"img"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r blogRow) toDomain() domain.Blog {
	return domain.Blog{
		ID:     r.ID,
		Title:  r.Title,
		Desc:   r.Desc,
		Img:    r.Img,
		UserID: r.UserID,
		Date:   r.CreatedAt,
	}
}

type BlogRepository struct {
	db sqlx.ExtContext
}

func NewBlogRepository(db sqlx.ExtContext) *BlogRepository {
	return &BlogRepository{db: db}
}

func (r *BlogRepository) Create(ctx context.Context, blog *domain.Blog) error {
	if blog.Date.IsZero() {
		blog.Date = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
INSERT INTO blogs (id, title, description, img, user_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)`),
		blog.ID,
		blog.Title,
		blog.Desc,
		blog.Img,
		blog.UserID,
		blog.Date,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert blog: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("insert blog: %w", err)
	}
	return nil
}

func (r *BlogRepository) GetByID(ctx context.Context, id string) (*domain.Blog, error) {
	var row blogRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(selectBlogs+` WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan blog: %w", err)
	}
	blog := row.toDomain()
	return &blog, nil
}

func (r *BlogRepository) List(ctx context.Context) ([]domain.Blog, error) {
	var rows []blogRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, selectBlogs+` ORDER BY created_at DESC, id ASC`); err != nil {
		return nil, fmt.Errorf("query blogs: %w", err)
	}
	return toBlogs(rows), nil
}

func (r *BlogRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Blog, error) {
	if len(ids) == 0 {
		return []domain.Blog{}, nil
	}
	query, args, err := sqlx.In(selectBlogs+` WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build blogs query: %w", err)
	}
	var rows []blogRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query blogs: %w", err)
	}

	byID := make(map[string]blogRow, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	blogs := make([]domain.Blog, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			blogs = append(blogs, row.toDomain())
		}
	}
	return blogs, nil
}

func (r *BlogRepository) UpdateContent(ctx context.Context, id string, title, desc *string) (*domain.Blog, error) {
	var (
		sets []string
		args []any
	)
	if title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *title)
	}
	if desc != nil {
		sets = append(sets, "description = ?")
		args = append(args, *desc)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE blogs SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return nil, fmt.Errorf("update blog: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update blog rows affected: %w", err)
	}
	if n == 0 {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *BlogRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM blogs WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete blog rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func toBlogs(rows []blogRow) []domain.Blog {
	blogs := make([]domain.Blog, 0, len(rows))
	for _, row := range rows {
		blogs = append(blogs, row.toDomain())
	}
	return blogs
}

var _ repository.BlogRepository = (*BlogRepository)(nil)
