// Package sqlstore implements the repositories on database/sql through sqlx.
// The same queries serve sqlite (modernc) and postgres (pgx); placeholders
// are written as ? and rebound for the driver.
package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"blog-service/internal/repository"
)

// Store is a repository.Store backed by a SQL database.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database of the dialect and applies migrations.
// For sqlite the source is a file path, for postgres a DSN.
func Open(ctx context.Context, dialect Dialect, source string) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch dialect {
	case DialectSQLite:
		db, err = OpenSQLite(source)
	case DialectPostgres:
		db, err = OpenPostgres(ctx, source)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db.DB, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewStore(db), nil
}

func (s *Store) Users() repository.UserRepository {
	return NewUserRepository(s.db)
}

func (s *Store) Blogs() repository.BlogRepository {
	return NewBlogRepository(s.db)
}

// WithTx begins a transaction, runs fn with repositories bound to it, and
// commits on success or rolls back on error/panic. Panics are rethrown.
func (s *Store) WithTx(ctx context.Context, fn repository.TxFunc) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()

	return fn(ctx, txRepositories{tx: tx})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type txRepositories struct {
	tx *sqlx.Tx
}

func (r txRepositories) Users() repository.UserRepository {
	return NewUserRepository(r.tx)
}

func (r txRepositories) Blogs() repository.BlogRepository {
	return NewBlogRepository(r.tx)
}

var _ repository.Store = (*Store)(nil)
