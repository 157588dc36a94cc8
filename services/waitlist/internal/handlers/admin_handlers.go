package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/diagnosis/justbook-waitlist/internal/http/response"
	"github.com/diagnosis/justbook-waitlist/pkg/auth"
	"github.com/diagnosis/justbook-waitlist/pkg/logger"
)

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AdminLogin handles POST /v1/admin/login
func (h *Handlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeInput(w, r, &req, map[string]*string{"password": &req.Password}); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Password == "" {
		response.BadRequest(w, "Password is required")
		return
	}

	ok, err := auth.VerifyAdminPassword(req.Password, h.auth.AdminPasswordHash)
	if errors.Is(err, auth.ErrLoginDisabled) {
		response.Unauthorized(w, "Admin login is disabled")
		return
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "Admin password check failed", "error", err)
		response.InternalError(w, "Login failed")
		return
	}
	if !ok {
		logger.WarnContext(r.Context(), "Admin login rejected")
		response.Unauthorized(w, "Invalid credentials")
		return
	}

	token, err := auth.NewAdminToken(h.auth.JWTSecret, h.auth.AdminTokenTTL)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to sign admin token", "error", err)
		response.InternalError(w, "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.auth.AdminTokenTTL.Seconds()),
	})
}

// AdminData handles GET /v1/admin/data
func (h *Handlers) AdminData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.waitlist.AdminData(r.Context()))
}

// ExportRegistered handles GET /v1/admin/export/registered.csv
func (h *Handlers) ExportRegistered(w http.ResponseWriter, r *http.Request) {
	h.writeCSV(w, r, "waitlist.csv", h.waitlist.ExportRegisteredCSV)
}

// ExportOptOuts handles GET /v1/admin/export/opt-outs.csv
func (h *Handlers) ExportOptOuts(w http.ResponseWriter, r *http.Request) {
	h.writeCSV(w, r, "opt-outs.csv", h.waitlist.ExportOptOutsCSV)
}

// writeCSV renders into memory first so a failure still gets a JSON error.
func (h *Handlers) writeCSV(w http.ResponseWriter, r *http.Request, filename string, export func(context.Context, io.Writer) error) {
	var buf bytes.Buffer
	if err := export(r.Context(), &buf); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
