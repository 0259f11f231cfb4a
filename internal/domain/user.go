package domain

import (
	"context"
	"time"
)

// DefaultImageFile is the avatar reference assigned to new accounts.
const DefaultImageFile = "default.jpg"

// User represents a registered author of the blog.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	ImageFile    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// Update persists username, email and image_file.
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}
