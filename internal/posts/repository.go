package posts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/ewaste-funnel/internal/database"
	"github.com/joao-fontenele/ewaste-funnel/internal/domain"
)

const uniqueViolation = "23505"

const postColumns = `id, title, body, slug, author, tags, published, created_at`

type PostRepository struct {
	db  database.Provider
	now func() time.Time
}

func NewPostRepository(db database.Provider) *PostRepository {
	return &PostRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts post and fills in its id and creation time. A slug that is
// already taken yields domain.ErrConflict.
func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	db, err := r.db.Connect(ctx)
	if err != nil {
		return err
	}

	if post.Tags == nil {
		post.Tags = []string{}
	}
	post.ID = uuid.New().String()
	post.CreatedAt = r.now()

	_, err = db.ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, post.ID, post.Title, post.Body, post.Slug, post.Author,
		pq.Array(post.Tags), post.Published, post.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("slug %q: %w", post.Slug, domain.ErrConflict)
		}
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

// ListPublished returns published posts, newest first.
func (r *PostRepository) ListPublished(ctx context.Context) ([]domain.Post, error) {
	db, err := r.db.Connect(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE published
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, domain.MaxContentListSize)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	posts := []domain.Post{}
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Body, &p.Slug, &p.Author,
			pq.Array(&p.Tags), &p.Published, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.Tags == nil {
			p.Tags = []string{}
		}
		p.CreatedAt = p.CreatedAt.UTC()
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}
