package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/quill/internal/domain"
)

const userColumns = `id, username, email, password_hash, image_file, created_at, updated_at`

// UserRepository implements domain.UserRepository using SQLite.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db.SqlDB}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ImageFile == "" {
		user.ImageFile = domain.DefaultImageFile
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, image_file, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, user.ImageFile, now, now,
	)
	if err != nil {
		if dupErr := duplicateIdentity(err); dupErr != nil {
			return dupErr
		}
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email", email)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "username", username)
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, image_file = ?, updated_at = ? WHERE id = ?`,
		user.Username, user.Email, user.ImageFile, now, user.ID,
	)
	if err != nil {
		if dupErr := duplicateIdentity(err); dupErr != nil {
			return dupErr
		}
		return fmt.Errorf("update user: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectOneRow(result)
}

// getOne looks a user up by a trusted column name.
func (r *UserRepository) getOne(ctx context.Context, column string, value any) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.ImageFile, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user by %s: %w", column, err)
	}
	return user, nil
}

// duplicateIdentity translates a unique violation on users into
// domain.ErrDuplicateIdentity naming the clashing field. It returns nil for
// any other error.
func duplicateIdentity(err error) error {
	column, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	switch column {
	case "users.username":
		return fmt.Errorf("%w: that username is taken", domain.ErrDuplicateIdentity)
	case "users.email":
		return fmt.Errorf("%w: that email is taken", domain.ErrDuplicateIdentity)
	default:
		return domain.ErrDuplicateIdentity
	}
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
