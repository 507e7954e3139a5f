package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/partnerdesk/partnerdesk/internal/apperr"
	"github.com/partnerdesk/partnerdesk/internal/ctxkeys"
	"github.com/partnerdesk/partnerdesk/internal/model"
	"github.com/partnerdesk/partnerdesk/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register creates an account from the JSON body and echoes the stored
// document back, minus the password.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var doc model.Document
	err := json.NewDecoder(r.Body).Decode(&doc)
	if err != nil {
		respondError(w, apperr.InvalidInput("invalid json body"))
		return
	}

	created, err := h.auth.Register(r.Context(), doc)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, created)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		respondError(w, apperr.InvalidInput("invalid json body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, apperr.InvalidInput("email and password required"))
		return
	}

	token, account, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  account,
	})
}

// Status reports the session the auth middleware already validated and
// extended. server_time lets clients compute remaining lifetime without
// trusting their own clock.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	account := ctxkeys.Account(r.Context())
	if account == nil {
		respondError(w, apperr.Unauthorized("missing token"))
		return
	}

	var expiry int64
	if account.SessionExpiry != nil {
		expiry = *account.SessionExpiry
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "active",
		"expiry":      expiry,
		"server_time": time.Now().Unix(),
	})
}
