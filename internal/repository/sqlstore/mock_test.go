package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog-service/internal/domain"
	"blog-service/internal/repository"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestUserRepository_CreateDBError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	err := store.Users().Create(context.Background(), &domain.User{ID: "u1", Email: "a@b.c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert user: db down")
	assert.NotErrorIs(t, err, repository.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListDBError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM users`).WillReturnError(errors.New("db down"))

	_, err := store.Users().List(context.Background())
	assert.ErrorContains(t, err, "query users")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlogRepository_DeleteNoRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM blogs WHERE id = \?`).
		WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Blogs().Delete(context.Background(), "b1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTxCommitError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("commit failed"))

	err := store.WithTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		return nil
	})
	assert.ErrorContains(t, err, "commit tx: commit failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTxBeginError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("no conn"))

	called := false
	err := store.WithTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "begin tx")
	assert.False(t, called)
}
