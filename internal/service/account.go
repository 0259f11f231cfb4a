package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/msomdec/quill/internal/domain"
)

// AccountService applies profile edits made by a signed-in user.
type AccountService struct {
	users   domain.UserRepository
	avatars *AvatarService
}

// NewAccountService creates a new AccountService.
func NewAccountService(users domain.UserRepository, avatars *AvatarService) *AccountService {
	return &AccountService{users: users, avatars: avatars}
}

// UpdateProfile changes the user's username and email and, when avatar is
// non-empty, replaces their profile picture. On a uniqueness conflict the
// error wraps domain.ErrDuplicateIdentity and nothing is changed. The
// user value is only updated once the change is persisted.
func (s *AccountService) UpdateProfile(ctx context.Context, user *domain.User, username, email string, avatar []byte) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateInput(profileInput{Username: username, Email: email}); err != nil {
		return nil, err
	}

	updated := *user
	updated.Username = username
	updated.Email = email

	if len(avatar) > 0 {
		ref, err := s.avatars.Store(ctx, avatar)
		if err != nil {
			return nil, err
		}
		updated.ImageFile = ref
	}

	if err := s.users.Update(ctx, &updated); err != nil {
		if updated.ImageFile != user.ImageFile {
			if rmErr := s.avatars.Remove(ctx, updated.ImageFile); rmErr != nil {
				slog.Warn("remove orphaned avatar", "key", updated.ImageFile, "error", rmErr)
			}
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	if updated.ImageFile != user.ImageFile {
		if err := s.avatars.Remove(ctx, user.ImageFile); err != nil {
			slog.Warn("remove previous avatar", "key", user.ImageFile, "error", err)
		}
	}

	*user = updated
	return user, nil
}
