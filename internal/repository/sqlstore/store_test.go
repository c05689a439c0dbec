package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog-service/internal/domain"
	"blog-service/internal/repository"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), DialectSQLite, filepath.Join(t.TempDir(), "data", "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedUser(t *testing.T, store *Store, id, email string) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Name: "user " + id, Email: email, PasswordHash: "hash"}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u
}

func seedBlog(t *testing.T, store *Store, id, userID string) *domain.Blog {
	t.Helper()
	b := &domain.Blog{ID: id, Title: "title " + id, Desc: "desc " + id, Img: "img", UserID: userID}
	err := store.WithTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Blogs().Create(ctx, b); err != nil {
			return err
		}
		return repos.Users().AppendBlog(ctx, userID, id)
	})
	require.NoError(t, err)
	return b
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u := seedUser(t, store, "u1", "ann@example.com")
	assert.Equal(t, []string{}, u.Blogs)
	assert.False(t, u.CreatedAt.IsZero())

	byEmail, err := store.Users().GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)
	assert.Empty(t, byEmail.Blogs)

	byID, err := store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", byID.Email)

	_, err = store.Users().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.Users().GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	store := openTestStore(t)
	seedUser(t, store, "u1", "ann@example.com")

	err := store.Users().Create(context.Background(), &domain.User{ID: "u2", Name: "Ann", Email: "ann@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUserRepository_BlogLinksKeepOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedUser(t, store, "u1", "ann@example.com")
	seedUser(t, store, "u2", "bob@example.com")
	seedBlog(t, store, "b1", "u1")
	seedBlog(t, store, "b2", "u1")
	seedBlog(t, store, "b3", "u1")
	seedBlog(t, store, "b4", "u2")

	u, err := store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2", "b3"}, u.Blogs)

	require.NoError(t, store.Users().RemoveBlog(ctx, "u1", "b2"))
	require.NoError(t, store.Users().RemoveBlog(ctx, "u1", "not-linked"))

	users, err := store.Users().List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, []string{"b1", "b3"}, users[0].Blogs)
	assert.Equal(t, []string{"b4"}, users[1].Blogs)
}

func TestUserRepository_AppendBlogUnknownUser(t *testing.T) {
	store := openTestStore(t)

	err := store.Users().AppendBlog(context.Background(), "ghost", "b1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBlogRepository_CRUD(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedUser(t, store, "u1", "ann@example.com")
	created := seedBlog(t, store, "b1", "u1")

	got, err := store.Blogs().GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "title b1", got.Title)
	assert.Equal(t, "desc b1", got.Desc)
	assert.Equal(t, "u1", got.UserID)
	assert.WithinDuration(t, created.Date, got.Date, time.Millisecond)

	title := "new title"
	updated, err := store.Blogs().UpdateContent(ctx, "b1", &title, nil)
	require.NoError(t, err)
	assert.Equal(t, "new title", updated.Title)
	assert.Equal(t, "desc b1", updated.Desc)
	assert.Equal(t, "img", updated.Img)

	desc := "new desc"
	updated, err = store.Blogs().UpdateContent(ctx, "b1", nil, &desc)
	require.NoError(t, err)
	assert.Equal(t, "new title", updated.Title)
	assert.Equal(t, "new desc", updated.Desc)

	_, err = store.Blogs().UpdateContent(ctx, "missing", &title, &desc)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Blogs().Delete(ctx, "b1"); err != nil {
			return err
		}
		return repos.Users().RemoveBlog(ctx, "u1", "b1")
	})
	require.NoError(t, err)

	_, err = store.Blogs().GetByID(ctx, "b1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, store.Blogs().Delete(ctx, "b1"), repository.ErrNotFound)

	u, err := store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u.Blogs)
}

func TestBlogRepository_ListByIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedUser(t, store, "u1", "ann@example.com")
	seedBlog(t, store, "b1", "u1")
	seedBlog(t, store, "b2", "u1")

	blogs, err := store.Blogs().ListByIDs(ctx, []string{"b2", "missing", "b1"})
	require.NoError(t, err)
	require.Len(t, blogs, 2)
	assert.Equal(t, "b2", blogs[0].ID)
	assert.Equal(t, "b1", blogs[1].ID)

	blogs, err = store.Blogs().ListByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, blogs)

	all, err := store.Blogs().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", "ann@example.com")

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Blogs().Create(ctx, &domain.Blog{ID: "b1", Title: "t", Desc: "d", Img: "i", UserID: "u1"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Blogs().GetByID(ctx, "b1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_WithTxRollsBackOnPanic(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", "ann@example.com")

	assert.Panics(t, func() {
		_ = store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			_ = repos.Blogs().Create(ctx, &domain.Blog{ID: "b1", Title: "t", Desc: "d", Img: "i", UserID: "u1"})
			panic("boom")
		})
	})

	_, err := store.Blogs().GetByID(ctx, "b1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_Ping(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
