package handler

import (
	"net/http"

	"github.com/msomdec/quill/internal/service"
)

const resetRequestedMessage = "If an account exists for that email, it has been sent instructions to reset the password."

// ResetHandler serves the password reset flow.
type ResetHandler struct {
	reset *service.ResetService
}

// NewResetHandler creates a new ResetHandler.
func NewResetHandler(reset *service.ResetService) *ResetHandler {
	return &ResetHandler{reset: reset}
}

// HandleRequest emails a reset link.
// POST /api/reset_password
// Request:  {"email":"..."}
// Response: 202 {"message":"..."} whether or not the account exists
func (h *ResetHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.reset.RequestReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, err, "request password reset")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"message": resetRequestedMessage})
}

// HandleVerify checks a reset token without using it.
// GET /api/reset_password/{token}
func (h *ResetHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	if _, err := h.reset.Verify(r.Context(), r.PathValue("token")); err != nil {
		writeServiceError(w, err, "verify reset token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "valid"})
}

// HandleReset sets a new password using a reset token.
// POST /api/reset_password/{token}
// Request:  {"password":"...","confirmPassword":"..."}
func (h *ResetHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	var req struct {
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if _, err := h.reset.Reset(r.Context(), r.PathValue("token"), req.Password, req.ConfirmPassword); err != nil {
		writeServiceError(w, err, "reset password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Your password has been updated! You are now able to log in.",
	})
}
