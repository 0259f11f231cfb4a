package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/msomdec/quill/internal/domain"
)

// PostsPerPage is the page size of every post listing.
const PostsPerPage = 5

// PostService lists and creates blog posts.
type PostService struct {
	posts domain.PostRepository
	users domain.UserRepository
}

// NewPostService creates a new PostService.
func NewPostService(posts domain.PostRepository, users domain.UserRepository) *PostService {
	return &PostService{posts: posts, users: users}
}

// List returns one page of all posts, newest first.
func (s *PostService) List(ctx context.Context, page int) (domain.Page[domain.Post], error) {
	return paginate(ctx, page, s.posts.Count, s.posts.List)
}

// ListByAuthor returns the author and one page of their posts, newest
// first. An unknown username is domain.ErrNotFound.
func (s *PostService) ListByAuthor(ctx context.Context, username string, page int) (*domain.User, domain.Page[domain.Post], error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, domain.Page[domain.Post]{}, err
	}

	result, err := paginate(ctx, page,
		func(ctx context.Context) (int, error) {
			return s.posts.CountByAuthor(ctx, user.ID)
		},
		func(ctx context.Context, limit, offset int) ([]domain.Post, error) {
			return s.posts.ListByAuthor(ctx, user.ID, limit, offset)
		},
	)
	if err != nil {
		return nil, domain.Page[domain.Post]{}, err
	}
	return user, result, nil
}

// Create publishes a post by the given author.
func (s *PostService) Create(ctx context.Context, author *domain.User, title, content string) (*domain.Post, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)

	if err := validateInput(postInput{Title: title, Content: content}); err != nil {
		return nil, err
	}

	post := &domain.Post{
		Title:   title,
		Content: content,
		UserID:  author.ID,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	post.Author = author
	return post, nil
}

// paginate fetches one page. Page numbers below 1 and pages past the end
// (other than an empty first page) are domain.ErrNotFound.
func paginate[T any](
	ctx context.Context,
	page int,
	count func(context.Context) (int, error),
	list func(ctx context.Context, limit, offset int) ([]T, error),
) (domain.Page[T], error) {
	if page < 1 {
		return domain.Page[T]{}, domain.ErrNotFound
	}

	total, err := count(ctx)
	if err != nil {
		return domain.Page[T]{}, fmt.Errorf("count: %w", err)
	}

	offset := (page - 1) * PostsPerPage
	if page > 1 && offset >= total {
		return domain.Page[T]{}, domain.ErrNotFound
	}

	items, err := list(ctx, PostsPerPage, offset)
	if err != nil {
		return domain.Page[T]{}, fmt.Errorf("list: %w", err)
	}
	if items == nil {
		items = []T{}
	}

	return domain.Page[T]{
		Items:   items,
		Number:  page,
		PerPage: PostsPerPage,
		Total:   total,
	}, nil
}
