package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/msomdec/quill/internal/service"
)

// multipartOverhead leaves room for the text fields next to the picture.
const multipartOverhead = 1 << 20

// AccountHandler serves the signed-in user's profile.
type AccountHandler struct {
	accounts *service.AccountService
	avatars  *service.AvatarService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService, avatars *service.AvatarService) *AccountHandler {
	return &AccountHandler{accounts: accounts, avatars: avatars}
}

// HandleGet returns the current user's profile.
// GET /api/account
func (h *AccountHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(user)})
}

// HandleUpdate applies a profile edit.
// POST /api/account (multipart/form-data: username, email, optional picture)
func (h *AccountHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	limit := int64(h.avatars.MaxBytes()) + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, "Picture is too large.")
				return
			}
			writeError(w, http.StatusBadRequest, "Invalid form data.")
			return
		}
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form data.")
			return
		}
	}

	var picture []byte
	file, _, err := r.FormFile("picture")
	switch {
	case err == nil:
		defer file.Close()
		picture, err = io.ReadAll(file)
		if err != nil {
			slog.Error("read upload", "error", err)
			writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
			return
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		writeError(w, http.StatusBadRequest, "Invalid picture upload.")
		return
	}

	updated, err := h.accounts.UpdateProfile(r.Context(), user, r.FormValue("username"), r.FormValue("email"), picture)
	if err != nil {
		writeServiceError(w, err, "update account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    toUserDTO(updated),
		"message": "Your account has been updated!",
	})
}
