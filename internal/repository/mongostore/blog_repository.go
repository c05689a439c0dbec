package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"blog-service/internal/domain"
	"blog-service/internal/repository"
)

type blogDoc struct {
	ID     string    `bson:"_id"`
	Title  string    `bson:"title"`
	Desc   string    `bson:"desc"`
	Img    string    `bson:"img"`
	UserID string    `bson:"user"`
	Date   time.Time `bson:"date"`
}

func newBlogDoc(b *domain.Blog) blogDoc {
	return blogDoc{
		ID:     b.ID,
		Title:  b.Title,
		Desc:   b.Desc,
		Img:    b.Img,
		UserID: b.UserID,
		Date:   b.Date,
	}
}

func (d blogDoc) toDomain() domain.Blog {
	return domain.Blog{
		ID:     d.ID,
		Title:  d.Title,
		Desc:   d.Desc,
		Img:    d.Img,
		UserID: d.UserID,
		Date:   d.Date,
	}
}

type BlogRepository struct {
	coll *mongo.Collection
}

func (r *BlogRepository) Create(ctx context.Context, blog *domain.Blog) error {
	if blog.Date.IsZero() {
		blog.Date = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, newBlogDoc(blog)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert blog: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("insert blog: %w", err)
	}
	return nil
}

func (r *BlogRepository) GetByID(ctx context.Context, id string) (*domain.Blog, error) {
	var doc blogDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find blog: %w", err)
	}
	blog := doc.toDomain()
	return &blog, nil
}

func (r *BlogRepository) List(ctx context.Context) ([]domain.Blog, error) {
	return r.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: 1}}))
}

func (r *BlogRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Blog, error) {
	if len(ids) == 0 {
		return []domain.Blog{}, nil
	}
	found, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return orderByIDs(found, ids), nil
}

func (r *BlogRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]domain.Blog, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find blogs: %w", err)
	}
	var docs []blogDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode blogs: %w", err)
	}
	blogs := make([]domain.Blog, 0, len(docs))
	for _, d := range docs {
		blogs = append(blogs, d.toDomain())
	}
	return blogs, nil
}

func (r *BlogRepository) UpdateContent(ctx context.Context, id string, title, desc *string) (*domain.Blog, error) {
	set := bson.M{}
	if title != nil {
		set["title"] = *title
	}
	if desc != nil {
		set["desc"] = *desc
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}

	var doc blogDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("update blog: %w", err)
	}
	blog := doc.toDomain()
	return &blog, nil
}

func (r *BlogRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// orderByIDs returns the blogs in the order of ids, dropping ids with no blog.
func orderByIDs(blogs []domain.Blog, ids []string) []domain.Blog {
	byID := make(map[string]domain.Blog, len(blogs))
	for _, b := range blogs {
		byID[b.ID] = b
	}
	out := make([]domain.Blog, 0, len(ids))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

var _ repository.BlogRepository = (*BlogRepository)(nil)
