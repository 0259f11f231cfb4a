package handler

import (
	"time"

	"github.com/msomdec/quill/internal/domain"
)

const avatarPathPrefix = "/avatars/"

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	ImageFile string `json:"imageFile"`
	AvatarURL string `json:"avatarUrl"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		ImageFile: u.ImageFile,
		AvatarURL: avatarPathPrefix + u.ImageFile,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}

// AuthorDTO is the public view of a post's author; it omits the email.
type AuthorDTO struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
}

// PostDTO is the JSON representation of a post.
type PostDTO struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	DatePosted string     `json:"datePosted"`
	Author     *AuthorDTO `json:"author,omitempty"`
}

func toPostDTO(p domain.Post) PostDTO {
	dto := PostDTO{
		ID:         p.ID,
		Title:      p.Title,
		Content:    p.Content,
		DatePosted: p.DatePosted.Format(time.RFC3339),
	}
	if p.Author != nil {
		dto.Author = &AuthorDTO{
			Username:  p.Author.Username,
			AvatarURL: avatarPathPrefix + p.Author.ImageFile,
		}
	}
	return dto
}

// PageDTO is the JSON representation of one page of a listing.
type PageDTO[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	PerPage int  `json:"perPage"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasPrev bool `json:"hasPrev"`
	HasNext bool `json:"hasNext"`
	PrevNum *int `json:"prevNum"`
	NextNum *int `json:"nextNum"`
}

func toPostPageDTO(p domain.Page[domain.Post]) PageDTO[PostDTO] {
	items := make([]PostDTO, len(p.Items))
	for i, post := range p.Items {
		items[i] = toPostDTO(post)
	}

	dto := PageDTO[PostDTO]{
		Items:   items,
		Page:    p.Number,
		PerPage: p.PerPage,
		Total:   p.Total,
		Pages:   p.Pages(),
		HasPrev: p.HasPrev(),
		HasNext: p.HasNext(),
	}
	if p.HasPrev() {
		n := p.PrevNum()
		dto.PrevNum = &n
	}
	if p.HasNext() {
		n := p.NextNum()
		dto.NextNum = &n
	}
	return dto
}
