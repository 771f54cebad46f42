package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"murmur/app/middleware"
	"murmur/app/models"
	"murmur/app/services"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

// PostController handles HTTP requests for posts and their attachments
type PostController struct {
	feed          *services.FeedService
	posts         *services.PostService
	uploads       *services.AttachmentService
	paging        Paging
	maxUploadSize int64
	logger        *log.Logger
}

// NewPostController creates a new PostController
func NewPostController(feed *services.FeedService, posts *services.PostService, uploads *services.AttachmentService, paging Paging, maxUploadSize int64, logger *log.Logger) *PostController {
	return &PostController{
		feed:          feed,
		posts:         posts,
		uploads:       uploads,
		paging:        paging,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Create handles creating a new post for the authenticated user
func (pc *PostController) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	var body models.NewPost
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error(), nil)
		return
	}

	post, err := pc.posts.Create(r.Context(), user, &body)
	if err != nil {
		handleError(w, r, pc.logger, err)
		return
	}
	view, err := pc.posts.View(r.Context(), post)
	if err != nil {
		handleError(w, r, pc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, view)
}

// Upload stores the multipart "file" field as an unlinked attachment
func (pc *PostController) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, pc.maxUploadSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, r, http.StatusRequestEntityTooLarge, "file too large", nil)
			return
		}
		sendError(w, r, http.StatusBadRequest, "validation error", map[string]string{"file": "must not be empty"})
		return
	}
	defer file.Close()

	attachment, err := pc.uploads.Upload(r.Context(), file)
	if err != nil {
		handleError(w, r, pc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, models.NewAttachmentView(attachment))
}

// Index lists the latest posts of everyone
func (pc *PostController) Index(w http.ResponseWriter, r *http.Request) {
	pc.page(w, r, "")
}

// UserPosts lists the latest posts of one user
func (pc *PostController) UserPosts(w http.ResponseWriter, r *http.Request) {
	pc.page(w, r, mux.Vars(r)["username"])
}

func (pc *PostController) page(w http.ResponseWriter, r *http.Request, username string) {
	page, err := pc.feed.Page(r.Context(), username, pc.paging.pageable(r))
	if err != nil {
		handleError(w, r, pc.logger, err)
		return
	}
	views, err := pc.posts.PageViews(r.Context(), page)
	if err != nil {
		handleError(w, r, pc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, views)
}

// Relative answers feed queries anchored at a post id. direction=after
// (the default) lists newer posts, or counts them with count=true; any
// other direction pages through older posts.
func (pc *PostController) Relative(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, "Invalid post ID", nil)
		return
	}
	username := mux.Vars(r)["username"]
	query := r.URL.Query()

	direction := query.Get("direction")
	if direction == "" {
		direction = "after"
	}
	if !strings.EqualFold(direction, "after") {
		page, err := pc.feed.OlderThan(r.Context(), id, username, pc.paging.pageable(r))
		if err != nil {
			handleError(w, r, pc.logger, err)
			return
		}
		views, err := pc.posts.PageViews(r.Context(), page)
		if err != nil {
			handleError(w, r, pc.logger, err)
			return
		}
		sendJSON(w, http.StatusOK, views)
		return
	}

	if count, _ := strconv.ParseBool(query.Get("count")); count {
		n, err := pc.feed.CountNewerThan(r.Context(), id, username)
		if err != nil {
			handleError(w, r, pc.logger, err)
			return
		}
		sendJSON(w, http.StatusOK, map[string]int64{"count": n})
		return
	}

	posts, err := pc.feed.NewerThan(r.Context(), id, username)
	if err != nil {
		handleError(w, r, pc.logger, err)
		return
	}
	views, err := pc.posts.Views(r.Context(), posts)
	if err != nil {
		handleError(w, r, pc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, views)
}

// Delete removes a post owned by the authenticated user
func (pc *PostController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, "Invalid post ID", nil)
		return
	}
	user, _ := middleware.CurrentUser(r.Context())

	if err := pc.posts.Delete(r.Context(), user, id); err != nil {
		handleError(w, r, pc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, GenericResponse{Message: "Post is removed"})
}
