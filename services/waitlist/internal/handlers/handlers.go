package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/diagnosis/justbook-waitlist/internal/http/response"
	"github.com/diagnosis/justbook-waitlist/pkg/auth"
	"github.com/diagnosis/justbook-waitlist/pkg/config"
	"github.com/diagnosis/justbook-waitlist/pkg/logger"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/domain"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/service"
)

const maxBodyBytes = 64 << 10

type Handlers struct {
	waitlist service.WaitlistService
	auth     config.AuthConfig
}

func New(waitlist service.WaitlistService, authCfg config.AuthConfig) *Handlers {
	return &Handlers{
		waitlist: waitlist,
		auth:     authCfg,
	}
}

// RequireAdmin rejects requests without a valid admin bearer token. With no
// admin password configured every request is rejected.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.auth.AdminPasswordHash == "" {
			response.Unauthorized(w, "Admin login is disabled")
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(w, "Missing or invalid authorization header")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := auth.Parse(token, h.auth.JWTSecret)
		if err != nil || claims.Role != auth.RoleAdmin {
			response.Unauthorized(w, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), logger.AdminKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// decodeInput fills dst from a JSON body or from form fields named after
// dst's json tags.
func decodeInput(w http.ResponseWriter, r *http.Request, dst interface{}, fields map[string]*string) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return err
		}
		for name, ptr := range fields {
			*ptr = r.PostFormValue(name)
		}
		return nil
	default:
		if r.ContentLength == 0 {
			return nil
		}
		return json.NewDecoder(r.Body).Decode(dst)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	response.WriteJSON(w, statusCode, data)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	response.WriteError(w, statusCode, code, message)
}

// writeServiceError maps a waitlist error to its HTTP status and envelope.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case domain.CodeInvalidInput:
		status = http.StatusBadRequest
	case domain.CodeAlreadyRegistered:
		status = http.StatusConflict
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeConfig, domain.CodeInternal:
		logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, string(code), domain.MessageOf(err))
}
