package handlers

import (
	"net/http"

	"github.com/diagnosis/justbook-waitlist/internal/http/response"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/domain"
)

// Join handles POST /v1/waitlist
func (h *Handlers) Join(w http.ResponseWriter, r *http.Request) {
	var req domain.JoinRequest
	if err := decodeInput(w, r, &req, map[string]*string{"name": &req.Name, "email": &req.Email}); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	result, err := h.waitlist.Join(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Unsubscribe handles POST /v1/waitlist/unsubscribe
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req domain.UnsubscribeRequest
	if err := decodeInput(w, r, &req, map[string]*string{"email": &req.Email}); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.waitlist.Unsubscribe(r.Context(), &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SurveyTap handles POST /v1/survey/tap
func (h *Handlers) SurveyTap(w http.ResponseWriter, r *http.Request) {
	if err := h.waitlist.TrackSurveyTap(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Stats handles GET /v1/stats
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.waitlist.LiveStats(r.Context()))
}
