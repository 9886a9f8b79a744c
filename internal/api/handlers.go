// Package api exposes HTTP handlers for the activities service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"

	"example.com/mergington/internal/domain"
)

const indexPath = "/static/index.html"

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	static  fs.FS
}

// NewHandler builds a Handler. static may be nil, in which case /static/ is not served.
func NewHandler(service *domain.Service, static fs.FS) *Handler {
	return &Handler{service: service, static: static}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", redirectToIndex)
	mux.HandleFunc("GET /activities", h.listActivities)
	mux.HandleFunc("POST /activities/{name}/signup", h.signup)
	mux.HandleFunc("DELETE /activities/{name}/unregister", h.unregister)
	mux.HandleFunc("GET /healthz", healthz)

	mux.Handle("/activities", methodNotAllowed(http.MethodGet))
	mux.Handle("/activities/{name}/signup", methodNotAllowed(http.MethodPost))
	mux.Handle("/activities/{name}/unregister", methodNotAllowed(http.MethodDelete))

	if h.static != nil {
		mux.HandleFunc("GET /static/{path...}", h.serveStatic)
	}
}

func redirectToIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, indexPath, http.StatusTemporaryRedirect)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// serveStatic serves front-end assets. index.html is served in place rather
// than redirected to its directory.
func (h *Handler) serveStatic(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("path")
	if name == "" {
		name = "index.html"
	}
	if !fs.ValidPath(name) {
		http.NotFound(w, r)
		return
	}

	f, err := h.static.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	content, ok := f.(io.ReadSeeker)
	if !ok {
		writeError(w, http.StatusInternalServerError, "server_error", "asset is not seekable")
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), content)
}

func methodNotAllowed(allowed string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allowed)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.service.ListActivities(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		items = append(items, toActivityView(activity))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	name, email, ok := enrollmentParams(w, r)
	if !ok {
		return
	}

	message, err := h.service.Signup(r.Context(), name, email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

func (h *Handler) unregister(w http.ResponseWriter, r *http.Request) {
	name, email, ok := enrollmentParams(w, r)
	if !ok {
		return
	}

	message, err := h.service.Unregister(r.Context(), name, email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// enrollmentParams extracts the activity name from the path and the email
// from the query string, writing a 422 when email is absent.
func enrollmentParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	name := r.PathValue("name")
	query := r.URL.Query()
	if !query.Has("email") {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "email query parameter is required")
		return "", "", false
	}
	return name, query.Get("email"), true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Activity not found")
	case errors.Is(err, domain.ErrAlreadySignedUp):
		writeError(w, http.StatusBadRequest, "conflict", "Student is already signed up")
	case errors.Is(err, domain.ErrNotSignedUp):
		writeError(w, http.StatusBadRequest, "conflict", "Student is not signed up for this activity")
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

// ActivityView is the JSON shape of one activity. Participants are joined
// with commas in insertion order.
type ActivityView struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Schedule        string `json:"schedule"`
	MaxParticipants int    `json:"max_participants"`
	Participants    string `json:"participants"`
}

// MessageResponse is returned by signup and unregister.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(activity domain.Activity) ActivityView {
	return ActivityView{
		Name:            activity.Name,
		Description:     activity.Description,
		Schedule:        activity.Schedule,
		MaxParticipants: activity.MaxParticipants,
		Participants:    domain.JoinParticipants(activity.Participants),
	}
}
