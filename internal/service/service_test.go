package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"blog-service/internal/auth"
	"blog-service/internal/domain"
	"blog-service/internal/repository"
	"blog-service/internal/repository/sqlstore"
)

const placeholder = "https://example.com/placeholder.png"

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open(context.Background(), sqlstore.DialectSQLite, filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newUserServiceFor(store repository.Store) UserService {
	log, _ := test.NewNullLogger()
	return NewUserService(store.Users(), auth.NewBcryptHasher(bcrypt.MinCost), auth.NewJWTIssuer("secret", time.Hour), log)
}

func newBlogServiceFor(store repository.Store, enforce bool) BlogService {
	log, _ := test.NewNullLogger()
	return NewBlogService(store, BlogOptions{PlaceholderImage: placeholder, EnforceOwnership: enforce}, log)
}

func signup(t *testing.T, users UserService, email string) *domain.User {
	t.Helper()
	u, err := users.Signup(context.Background(), "Ann", email, "pw123456")
	require.NoError(t, err)
	return u
}

func TestUserService_Signup(t *testing.T) {
	store := newTestStore(t)
	users := newUserServiceFor(store)
	ctx := context.Background()

	u, err := users.Signup(ctx, " Ann ", "ann@example.com", "pw123456")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "Ann", u.Name)
	assert.Empty(t, u.PasswordHash)
	assert.Equal(t, []string{}, u.Blogs)

	stored, err := store.Users().GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123456", stored.PasswordHash)

	_, err = users.Signup(ctx, "Ann", "ann@example.com", "other")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = users.Signup(ctx, "", "x@example.com", "pw")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = users.Signup(ctx, "X", "  ", "pw")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = users.Signup(ctx, "X", "x@example.com", " ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = users.Signup(ctx, "X", "long@example.com", strings.Repeat("p", auth.MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = users.Signup(ctx, "X", "edge@example.com", strings.Repeat("p", auth.MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestUserService_ConcurrentSignupCreatesOneUser(t *testing.T) {
	store := newTestStore(t)
	users := newUserServiceFor(store)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := users.Signup(context.Background(), "Ann", "race@example.com", "pw123456")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)

	all, err := users.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUserService_Login(t *testing.T) {
	store := newTestStore(t)
	users := newUserServiceFor(store)
	ctx := context.Background()
	created := signup(t, users, "ann@example.com")

	u, token, err := users.Login(ctx, "ann@example.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)
	assert.Empty(t, u.PasswordHash)

	userID, err := auth.NewJWTIssuer("secret", time.Hour).Parse(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, userID)

	_, _, err = users.Login(ctx, "ann@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = users.Login(ctx, "nobody@example.com", "pw123456")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = users.Login(ctx, "ANN@example.com", "pw123456")
	assert.ErrorIs(t, err, ErrNotFound, "email match is case-sensitive")

	_, _, err = users.Login(ctx, "", "pw")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUserService_ListAndGet(t *testing.T) {
	store := newTestStore(t)
	users := newUserServiceFor(store)
	ctx := context.Background()

	list, err := users.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	created := signup(t, users, "ann@example.com")
	list, err = users.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].PasswordHash)

	got, err := users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got.Email)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBlogService_AddAndListByUser(t *testing.T) {
	store := newTestStore(t)
	users := newUserServiceFor(store)
	blogs := newBlogServiceFor(store, false)
	ctx := context.Background()
	owner := signup(t, users, "ann@example.com")

	first, err := blogs.Add(ctx, "", AddBlogInput{Title: "T1", Desc: "D1", UserID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, placeholder, first.Img)
	assert.Equal(t, owner.ID, first.UserID)
	assert.False(t, first.Date.IsZero())

	second, err := blogs.Add(ctx, "", AddBlogInput{Title: "T2", Desc: "D2", Img: "https://img/2.png", UserID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, "https://img/2.png", second.Img)

	got, err := blogs.ListByUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, got.Blogs)
	require.Len(t, got.BlogRecords, 2)
	assert.Equal(t, "T1", got.BlogRecords[0].Title)
	assert.Equal(t, "T2", got.BlogRecords[1].Title)
	assert.Empty(t, got.PasswordHash)

	all, err := blogs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = blogs.ListByUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBlogService_AddValidation(t *testing.T) {
	store := newTestStore(t)
	blogs := newBlogServiceFor(store, false)
	ctx := context.Background()

	_, err := blogs.Add(ctx, "", AddBlogInput{Desc: "D", UserID: "u"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = blogs.Add(ctx, "", AddBlogInput{Title: "T", Desc: " ", UserID: "u"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = blogs.Add(ctx, "", AddBlogInput{Title: "T", Desc: "D"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = blogs.Add(ctx, "", AddBlogInput{Title: "T", Desc: "D", UserID: "ghost"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	all, err := blogs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBlogService_UpdateAndGet(t *testing.T) {
	store := newTestStore(t)
	users := newUserServiceFor(store)
	blogs := newBlogServiceFor(store, false)
	ctx := context.Background()
	owner := signup(t, users, "ann@example.com")
	blog, err := blogs.Add(ctx, "", AddBlogInput{Title: "T", Desc: "D", Img: "i", UserID: owner.ID})
	require.NoError(t, err)

	title := "New"
	updated, err := blogs.Update(ctx, "", blog.ID, &title, nil)
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "D", updated.Desc)
	assert.Equal(t, "i", updated.Img)
	assert.Equal(t, owner.ID, updated.UserID)
	assert.True(t, blog.Date.Equal(updated.Date))

	blank := "  "
	_, err = blogs.Update(ctx, "", blog.ID, nil, &blank)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = blogs.Update(ctx, "", "missing", &title, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := blogs.Get(ctx, blog.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)

	_, err = blogs.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBlogService_DeleteUnlinks(t *testing.T) {
	store := newTestStore(t)
	users := newUserServiceFor(store)
	blogs := newBlogServiceFor(store, false)
	ctx := context.Background()
	owner := signup(t, users, "ann@example.com")
	keep, err := blogs.Add(ctx, "", AddBlogInput{Title: "K", Desc: "D", UserID: owner.ID})
	require.NoError(t, err)
	gone, err := blogs.Add(ctx, "", AddBlogInput{Title: "G", Desc: "D", UserID: owner.ID})
	require.NoError(t, err)

	deleted, err := blogs.Delete(ctx, "", gone.ID)
	require.NoError(t, err)
	assert.Equal(t, gone.ID, deleted.ID)

	got, err := blogs.ListByUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, got.Blogs)
	assert.NotContains(t, got.Blogs, gone.ID)

	_, err = blogs.Delete(ctx, "", gone.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = blogs.Delete(ctx, "", "never-existed")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBlogService_DeleteUnlinkedBlog(t *testing.T) {
	store := newTestStore(t)
	users := newUserServiceFor(store)
	ctx := context.Background()
	owner := signup(t, users, "ann@example.com")

	orphan := &domain.Blog{ID: "orphan", Title: "T", Desc: "D", Img: placeholder, UserID: owner.ID, Date: time.Now().UTC()}
	require.NoError(t, store.Blogs().Create(ctx, orphan))

	log, hook := test.NewNullLogger()
	blogs := NewBlogService(store, BlogOptions{PlaceholderImage: placeholder}, log)

	deleted, err := blogs.Delete(ctx, "", orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, orphan.ID, deleted.ID)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "deleted blog was not linked to its owner" {
			warned = true
		}
	}
	assert.True(t, warned)

	_, err = store.Blogs().GetByID(ctx, orphan.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBlogService_OwnershipEnforced(t *testing.T) {
	store := newTestStore(t)
	users := newUserServiceFor(store)
	blogs := newBlogServiceFor(store, true)
	ctx := context.Background()
	owner := signup(t, users, "ann@example.com")
	other := signup(t, users, "bob@example.com")

	_, err := blogs.Add(ctx, other.ID, AddBlogInput{Title: "T", Desc: "D", UserID: owner.ID})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = blogs.Add(ctx, "", AddBlogInput{Title: "T", Desc: "D", UserID: owner.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	blog, err := blogs.Add(ctx, owner.ID, AddBlogInput{Title: "T", Desc: "D", UserID: owner.ID})
	require.NoError(t, err)

	title := "Hijack"
	_, err = blogs.Update(ctx, other.ID, blog.ID, &title, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = blogs.Delete(ctx, other.ID, blog.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = blogs.Update(ctx, owner.ID, blog.ID, &title, nil)
	require.NoError(t, err)
	_, err = blogs.Delete(ctx, owner.ID, blog.ID)
	require.NoError(t, err)
}

// faultyStore fails AppendBlog inside transactions.
type faultyStore struct {
	repository.Store
	err error
}

func (s *faultyStore) WithTx(ctx context.Context, fn repository.TxFunc) error {
	return s.Store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return fn(ctx, faultyRepos{Repositories: repos, err: s.err})
	})
}

type faultyRepos struct {
	repository.Repositories
	err error
}

func (r faultyRepos) Users() repository.UserRepository {
	return faultyUsers{UserRepository: r.Repositories.Users(), err: r.err}
}

type faultyUsers struct {
	repository.UserRepository
	err error
}

func (u faultyUsers) AppendBlog(context.Context, string, string) error {
	return u.err
}

func (u faultyUsers) RemoveBlog(context.Context, string, string) error {
	return u.err
}

func TestBlogService_AddFaultRollsBack(t *testing.T) {
	store := newTestStore(t)
	users := newUserServiceFor(store)
	owner := signup(t, users, "ann@example.com")
	ctx := context.Background()

	boom := errors.New("link failed")
	blogs := newBlogServiceFor(&faultyStore{Store: store, err: boom}, false)

	_, err := blogs.Add(ctx, "", AddBlogInput{Title: "T", Desc: "D", UserID: owner.ID})
	assert.ErrorIs(t, err, boom)

	all, err := store.Blogs().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	u, err := store.Users().GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, u.Blogs)
}

func TestBlogService_DeleteFaultRollsBack(t *testing.T) {
	store := newTestStore(t)
	users := newUserServiceFor(store)
	owner := signup(t, users, "ann@example.com")
	ctx := context.Background()

	blog, err := newBlogServiceFor(store, false).Add(ctx, "", AddBlogInput{Title: "T", Desc: "D", UserID: owner.ID})
	require.NoError(t, err)

	boom := errors.New("unlink failed")
	_, err = newBlogServiceFor(&faultyStore{Store: store, err: boom}, false).Delete(ctx, "", blog.ID)
	assert.ErrorIs(t, err, boom)

	_, err = store.Blogs().GetByID(ctx, blog.ID)
	assert.NoError(t, err)
	u, err := store.Users().GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{blog.ID}, u.Blogs)
}
