package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"murmur/app/middleware"
	"murmur/app/models"
	"murmur/app/services"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

// UserController handles registration and profiles
type UserController struct {
	users       *services.UserService
	paging      Paging
	maxBodySize int64
	logger      *log.Logger
}

// NewUserController creates a UserController. maxBodySize bounds profile
// updates, which carry the image inline.
func NewUserController(users *services.UserService, paging Paging, maxBodySize int64, logger *log.Logger) *UserController {
	return &UserController{users: users, paging: paging, maxBodySize: maxBodySize, logger: logger}
}

// Create registers a new user
func (uc *UserController) Create(w http.ResponseWriter, r *http.Request) {
	var body models.NewUser
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error(), nil)
		return
	}
	if _, err := uc.users.Register(r.Context(), &body); err != nil {
		handleError(w, r, uc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, GenericResponse{Message: "User saved"})
}

// Index lists users, leaving out the caller when authenticated
func (uc *UserController) Index(w http.ResponseWriter, r *http.Request) {
	requester, _ := middleware.CurrentUser(r.Context())
	page, err := uc.users.List(r.Context(), requester, uc.paging.pageable(r))
	if err != nil {
		handleError(w, r, uc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, models.MapPage(page, models.NewUserView))
}

// Show returns one user by username
func (uc *UserController) Show(w http.ResponseWriter, r *http.Request) {
	user, err := uc.users.GetByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		handleError(w, r, uc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, models.NewUserView(user))
}

// Update changes the caller's own profile
func (uc *UserController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, "Invalid user ID", nil)
		return
	}
	requester, _ := middleware.CurrentUser(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, uc.maxBodySize)
	var body models.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, r, http.StatusRequestEntityTooLarge, "image too large", nil)
			return
		}
		sendError(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error(), nil)
		return
	}

	user, err := uc.users.Update(r.Context(), requester, id, &body)
	if err != nil {
		handleError(w, r, uc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, models.NewUserView(user))
}
