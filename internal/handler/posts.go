package handler

import (
	"net/http"
	"strconv"

	"github.com/msomdec/quill/internal/service"
)

// PostHandler serves post listings and post creation.
type PostHandler struct {
	posts *service.PostService
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(posts *service.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// HandleHome lists all posts, newest first.
// GET /?page=N
func (h *PostHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	page, err := h.posts.List(r.Context(), pageParam(r))
	if err != nil {
		writeServiceError(w, err, "list posts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page": toPostPageDTO(page)})
}

// HandleUserPosts lists one author's posts.
// GET /api/users/{username}/posts?page=N
func (h *PostHandler) HandleUserPosts(w http.ResponseWriter, r *http.Request) {
	author, page, err := h.posts.ListByAuthor(r.Context(), r.PathValue("username"), pageParam(r))
	if err != nil {
		writeServiceError(w, err, "list user posts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": AuthorDTO{Username: author.Username, AvatarURL: avatarPathPrefix + author.ImageFile},
		"page": toPostPageDTO(page),
	})
}

// HandleCreate publishes a post by the signed-in user.
// POST /api/posts
// Request: {"title":"...","content":"..."}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	post, err := h.posts.Create(r.Context(), user, req.Title, req.Content)
	if err != nil {
		writeServiceError(w, err, "create post")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"post": toPostDTO(*post)})
}

// pageParam reads ?page=, defaulting to 1 when absent or not a number.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		return 1
	}
	return page
}
