package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/msomdec/quill/internal/domain"
)

// PostRepository implements domain.PostRepository using SQLite.
type PostRepository struct {
	db *sql.DB
}

// NewPostRepository creates a new SQLite-backed PostRepository.
func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db.SqlDB}
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	if post.DatePosted.IsZero() {
		post.DatePosted = time.Now()
	}
	post.DatePosted = post.DatePosted.UTC()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (title, content, date_posted, user_id) VALUES (?, ?, ?, ?)`,
		post.Title, post.Content, post.DatePosted, post.UserID,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get post id: %w", err)
	}
	post.ID = id
	return nil
}

func (r *PostRepository) List(ctx context.Context, limit, offset int) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.title, p.content, p.date_posted, p.user_id,
		        u.id, u.username, u.email, u.image_file
		 FROM posts p JOIN users u ON u.id = p.user_id
		 ORDER BY p.date_posted DESC, p.id DESC
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return scanPosts(rows)
}

func (r *PostRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

func (r *PostRepository) ListByAuthor(ctx context.Context, userID int64, limit, offset int) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.title, p.content, p.date_posted, p.user_id,
		        u.id, u.username, u.email, u.image_file
		 FROM posts p JOIN users u ON u.id = p.user_id
		 WHERE p.user_id = ?
		 ORDER BY p.date_posted DESC, p.id DESC
		 LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts by author: %w", err)
	}
	return scanPosts(rows)
}

func (r *PostRepository) CountByAuthor(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count posts by author: %w", err)
	}
	return n, nil
}

func scanPosts(rows *sql.Rows) ([]domain.Post, error) {
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var p domain.Post
		author := &domain.User{}
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.DatePosted, &p.UserID,
			&author.ID, &author.Username, &author.Email, &author.ImageFile); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.Author = author
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
