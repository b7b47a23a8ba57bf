// Package api exposes HTTP handlers for the roster service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"example.com/roster/internal/domain"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *zap.SugaredLogger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes wires endpoints to the mux. Path values are unescaped by the mux,
// so "Chess%20Club" arrives as "Chess Club".
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /activities", h.listActivities)
	mux.HandleFunc("POST /activities/{activityName}/signup", h.signup)
	mux.HandleFunc("DELETE /activities/{activityName}/unregister", h.unregister)
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	catalog := h.service.ListActivities(r.Context())

	resp := make(map[string]ActivityView, len(catalog))
	for name, activity := range catalog {
		resp[name] = toActivityView(activity)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	activity := r.PathValue("activityName")
	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	msg, err := h.service.Signup(r.Context(), activity, email)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

func (h *Handler) unregister(w http.ResponseWriter, r *http.Request) {
	activity := r.PathValue("activityName")
	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	msg, err := h.service.Unregister(r.Context(), activity, email)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// emailParam extracts the required email query parameter. Only a missing parameter is rejected;
// the value, empty or not, is passed through untouched.
func emailParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	query := r.URL.Query()
	if !query.Has("email") {
		writeError(w, http.StatusUnprocessableEntity, "email query parameter is required")
		return "", false
	}
	return query.Get("email"), true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "Activity not found")
	case errors.Is(err, domain.ErrAlreadyEnrolled):
		writeError(w, http.StatusBadRequest, "Student is already signed up for this activity")
	case errors.Is(err, domain.ErrNotEnrolled):
		writeError(w, http.StatusBadRequest, "Student is not signed up for this activity")
	case errors.Is(err, domain.ErrActivityFull):
		writeError(w, http.StatusBadRequest, "Activity is full")
	default:
		h.logger.Errorw("roster operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ActivityView is the wire representation of one catalog entry.
type ActivityView struct {
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// MessageResponse carries a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse carries a human readable failure detail.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(activity domain.Activity) ActivityView {
	participants := activity.Participants
	if participants == nil {
		participants = []string{}
	}
	return ActivityView{
		Description:     activity.Description,
		Schedule:        activity.Schedule,
		MaxParticipants: activity.MaxParticipants,
		Participants:    participants,
	}
}
