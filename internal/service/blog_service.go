package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"blog-service/internal/domain"
	"blog-service/internal/repository"
)

// AddBlogInput carries the fields of a new blog. Img may be empty.
type AddBlogInput struct {
	Title  string
	Desc   string
	Img    string
	UserID string
}

// BlogService coordinates blog operations and keeps each user's blog list in
// step with the blogs collection.
//
// actorID is the authenticated caller, empty when the request carried no
// token. It is only checked when ownership enforcement is on.
type BlogService interface {
	Add(ctx context.Context, actorID string, in AddBlogInput) (*domain.Blog, error)
	Update(ctx context.Context, actorID, id string, title, desc *string) (*domain.Blog, error)
	Get(ctx context.Context, id string) (*domain.Blog, error)
	Delete(ctx context.Context, actorID, id string) (*domain.Blog, error)
	List(ctx context.Context) ([]domain.Blog, error)
	ListByUser(ctx context.Context, userID string) (*domain.UserWithBlogs, error)
}

// BlogOptions configures a BlogService.
type BlogOptions struct {
	PlaceholderImage string
	EnforceOwnership bool
}

type blogService struct {
	store repository.Store
	opts  BlogOptions
	log   logrus.FieldLogger
}

func NewBlogService(store repository.Store, opts BlogOptions, log logrus.FieldLogger) BlogService {
	return &blogService{store: store, opts: opts, log: log}
}

func (s *blogService) Add(ctx context.Context, actorID string, in AddBlogInput) (*domain.Blog, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Desc = strings.TrimSpace(in.Desc)
	in.Img = strings.TrimSpace(in.Img)
	in.UserID = strings.TrimSpace(in.UserID)

	if in.Title == "" || in.Desc == "" {
		return nil, fmt.Errorf("%w: title and desc are required", ErrValidation)
	}
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}
	if err := s.checkActor(actorID, in.UserID); err != nil {
		return nil, err
	}
	if in.Img == "" {
		in.Img = s.opts.PlaceholderImage
	}

	blog := &domain.Blog{
		ID:     uuid.NewString(),
		Title:  in.Title,
		Desc:   in.Desc,
		Img:    in.Img,
		UserID: in.UserID,
		Date:   time.Now().UTC().Truncate(time.Millisecond),
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Users().GetByID(ctx, in.UserID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: unknown user %s", ErrUnauthorized, in.UserID)
			}
			return fmt.Errorf("lookup owner: %w", err)
		}
		if err := repos.Blogs().Create(ctx, blog); err != nil {
			return err
		}
		return repos.Users().AppendBlog(ctx, in.UserID, blog.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"blog_id": blog.ID, "user_id": blog.UserID}).Info("blog added")
	return blog, nil
}

func (s *blogService) Update(ctx context.Context, actorID, id string, title, desc *string) (*domain.Blog, error) {
	if title != nil {
		t := strings.TrimSpace(*title)
		if t == "" {
			return nil, fmt.Errorf("%w: title must not be blank", ErrValidation)
		}
		title = &t
	}
	if desc != nil {
		d := strings.TrimSpace(*desc)
		if d == "" {
			return nil, fmt.Errorf("%w: desc must not be blank", ErrValidation)
		}
		desc = &d
	}

	if s.opts.EnforceOwnership {
		blog, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.checkActor(actorID, blog.UserID); err != nil {
			return nil, err
		}
	}

	blog, err := s.store.Blogs().UpdateContent(ctx, id, title, desc)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: blog %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("update blog: %w", err)
	}
	return blog, nil
}

func (s *blogService) Get(ctx context.Context, id string) (*domain.Blog, error) {
	blog, err := s.store.Blogs().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: blog %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get blog: %w", err)
	}
	return blog, nil
}

func (s *blogService) Delete(ctx context.Context, actorID, id string) (*domain.Blog, error) {
	var deleted *domain.Blog
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		blog, err := repos.Blogs().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: blog %s", ErrNotFound, id)
			}
			return fmt.Errorf("get blog: %w", err)
		}
		if err := s.checkActor(actorID, blog.UserID); err != nil {
			return err
		}
		if err := repos.Blogs().Delete(ctx, id); err != nil {
			return fmt.Errorf("delete blog: %w", err)
		}
		deleted = blog

		owner, err := repos.Users().GetByID(ctx, blog.UserID)
		if err != nil {
			return fmt.Errorf("get owner: %w", err)
		}
		if !owner.HasBlog(id) {
			s.log.WithFields(logrus.Fields{"blog_id": id, "user_id": owner.ID}).Warn("deleted blog was not linked to its owner")
			return nil
		}
		return repos.Users().RemoveBlog(ctx, owner.ID, id)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"blog_id": id, "user_id": deleted.UserID}).Info("blog deleted")
	return deleted, nil
}

func (s *blogService) List(ctx context.Context) ([]domain.Blog, error) {
	blogs, err := s.store.Blogs().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	return blogs, nil
}

func (s *blogService) ListByUser(ctx context.Context, userID string) (*domain.UserWithBlogs, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	blogs, err := s.store.Blogs().ListByIDs(ctx, user.Blogs)
	if err != nil {
		return nil, fmt.Errorf("populate blogs: %w", err)
	}
	if len(blogs) != len(user.Blogs) {
		s.log.WithField("user_id", userID).Warn("user references missing blogs")
	}

	return &domain.UserWithBlogs{User: *sanitizeUser(user), BlogRecords: blogs}, nil
}

// checkActor allows everything when enforcement is off.
func (s *blogService) checkActor(actorID, ownerID string) error {
	if !s.opts.EnforceOwnership {
		return nil
	}
	if actorID == "" || actorID != ownerID {
		return fmt.Errorf("%w: not the owner", ErrForbidden)
	}
	return nil
}
