package domain

import (
	"context"
	"time"
)

// Post is a blog entry written by a single author.
type Post struct {
	ID         int64
	Title      string
	Content    string
	DatePosted time.Time
	UserID     int64
	// Author is populated by list queries.
	Author *User
}

// PostRepository defines persistence operations for posts.
// List methods return posts newest first.
type PostRepository interface {
	Create(ctx context.Context, post *Post) error
	List(ctx context.Context, limit, offset int) ([]Post, error)
	Count(ctx context.Context) (int, error)
	ListByAuthor(ctx context.Context, userID int64, limit, offset int) ([]Post, error)
	CountByAuthor(ctx context.Context, userID int64) (int, error)
}
