package handler

import (
	"net/http"
	"strconv"

	"github.com/msomdec/quill/internal/service"
)

// AvatarHandler serves profile pictures.
type AvatarHandler struct {
	avatars *service.AvatarService
}

// NewAvatarHandler creates a new AvatarHandler.
func NewAvatarHandler(avatars *service.AvatarService) *AvatarHandler {
	return &AvatarHandler{avatars: avatars}
}

// HandleServe serves avatar bytes with their stored Content-Type.
// GET /avatars/{key...}
func (h *AvatarHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.avatars.Open(r.Context(), r.PathValue("key"))
	if err != nil {
		writeServiceError(w, err, "serve avatar")
		return
	}

	// Stored keys are random and never reused, so responses can be cached.
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
