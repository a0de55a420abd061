package controllers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"postvote/app/services"

	"github.com/gorilla/mux"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func sendError(w http.ResponseWriter, status int, code, message string) {
	sendJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// handleServiceError is the one place service errors become status codes.
func handleServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	var verr *services.ValidationError
	var ferr *services.ForbiddenError

	switch {
	case errors.As(err, &verr):
		sendJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "ValidationError",
			Message: "invalid input",
			Fields:  verr.Fields,
		})
	case errors.Is(err, services.ErrUnauthorized):
		sendError(w, http.StatusUnauthorized, "Unauthorized", "authentication credentials were not provided or are invalid")
	case errors.Is(err, services.ErrDuplicateVote) && errors.As(err, &ferr):
		sendError(w, http.StatusForbidden, "DuplicateVote", ferr.Reason)
	case errors.As(err, &ferr):
		sendError(w, http.StatusForbidden, "Forbidden", ferr.Reason)
	case errors.Is(err, services.ErrNotFound):
		sendError(w, http.StatusNotFound, "NotFound", "not found")
	case errors.Is(err, services.ErrStoreUnavailable):
		sendError(w, http.StatusServiceUnavailable, "StoreUnavailable", "service temporarily unavailable, try again later")
	default:
		log.Error("unhandled service error", "error", err)
		sendError(w, http.StatusInternalServerError, "InternalServerError", "an internal error occurred")
	}
}

// decodeJSON reads the request body into dst, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		sendError(w, http.StatusBadRequest, "InvalidRequest", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func postID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		sendError(w, http.StatusBadRequest, "InvalidRequest", "invalid post ID")
		return 0, false
	}
	return id, true
}

// queryInt returns the positive integer query parameter name, or def.
func queryInt(r *http.Request, name string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && v > 0 {
		return v
	}
	return def
}
