package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"murmur/app/repositories"
	"murmur/app/services"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

// ApiError is the body of every error response.
type ApiError struct {
	Timestamp        int64             `json:"timestamp"`
	Status           int               `json:"status"`
	Message          string            `json:"message"`
	URL              string            `json:"url"`
	ValidationErrors map[string]string `json:"validationErrors,omitempty"`
}

// GenericResponse carries a plain confirmation message.
type GenericResponse struct {
	Message string `json:"message"`
}

// Paging holds the page size policy shared by the feed endpoints.
type Paging struct {
	DefaultSize int
	MaxSize     int
}

// DefaultPaging matches the server defaults.
var DefaultPaging = Paging{DefaultSize: 10, MaxSize: 100}

// pageable reads page and size from the query string. Missing or invalid
// values fall back to defaults and size is clamped to MaxSize.
func (p Paging) pageable(r *http.Request) repositories.Pageable {
	page := 0
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if n, err := strconv.Atoi(pageStr); err == nil && n > 0 {
			page = n
		}
	}

	size := p.DefaultSize
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		if n, err := strconv.Atoi(sizeStr); err == nil && n >= 0 {
			size = n
		}
	}
	if size > p.MaxSize {
		size = p.MaxSize
	}
	return repositories.Pageable{Page: page, Size: size}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, r *http.Request, status int, message string, fields map[string]string) {
	sendJSON(w, status, ApiError{
		Timestamp:        time.Now().UnixMilli(),
		Status:           status,
		Message:          message,
		URL:              r.URL.Path,
		ValidationErrors: fields,
	})
}

// handleError maps service errors onto HTTP statuses. Anything unknown is
// logged and reported as 500 without details.
func handleError(w http.ResponseWriter, r *http.Request, logger *log.Logger, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		sendError(w, r, http.StatusBadRequest, "validation error", verr.Fields)
	case errors.Is(err, services.ErrAttachmentNotFound):
		sendError(w, r, http.StatusBadRequest, "validation error", map[string]string{"attachment": err.Error()})
	case errors.Is(err, services.ErrAttachmentInUse):
		sendError(w, r, http.StatusBadRequest, "validation error", map[string]string{"attachment": err.Error()})
	case errors.Is(err, services.ErrUserNotFound), errors.Is(err, services.ErrPostNotFound):
		sendError(w, r, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, services.ErrForbidden):
		sendError(w, r, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, services.ErrBadCredentials):
		sendError(w, r, http.StatusUnauthorized, err.Error(), nil)
	default:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		sendError(w, r, http.StatusInternalServerError, "internal error", nil)
	}
}
