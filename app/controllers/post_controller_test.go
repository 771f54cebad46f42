package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"murmur/app/middleware"
	"murmur/app/models"
	"murmur/app/repositories/mock"
	"murmur/app/services"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	store  *mock.Store
	files  *services.FileService
	router *mux.Router
	alice  *models.User
	bob    *models.User
}

func setupTestEnv(t *testing.T) *testEnv {
	logger := log.New(io.Discard)
	store := mock.NewStore()
	files := services.NewFileService(t.TempDir(), "attachments", "profile")
	require.NoError(t, files.EnsureFolders())

	users := services.NewUserServiceWithCost(store.Users(), files, logger, bcrypt.MinCost)
	controller := NewPostController(
		services.NewFeedService(store, nil),
		services.NewPostService(store, files, nil, logger),
		services.NewAttachmentService(store.Attachments(), files, logger),
		Paging{DefaultSize: 10, MaxSize: 20},
		1<<20,
		logger,
	)
	userController := NewUserController(users, Paging{DefaultSize: 10, MaxSize: 20}, 1<<20, logger)

	router := mux.NewRouter()
	router.HandleFunc("/users", userController.Create).Methods("POST")
	router.HandleFunc("/users", userController.Index).Methods("GET")
	router.HandleFunc("/users/{username}", userController.Show).Methods("GET")
	router.HandleFunc("/users/{id:[0-9]+}", userController.Update).Methods("PUT")
	router.HandleFunc("/posts", controller.Create).Methods("POST")
	router.HandleFunc("/posts/upload", controller.Upload).Methods("POST")
	router.HandleFunc("/posts", controller.Index).Methods("GET")
	router.HandleFunc("/posts/{id:[0-9]+}", controller.Relative).Methods("GET")
	router.HandleFunc("/posts/{id:[0-9]+}", controller.Delete).Methods("DELETE")
	router.HandleFunc("/users/{username}/posts", controller.UserPosts).Methods("GET")
	router.HandleFunc("/users/{username}/posts/{id:[0-9]+}", controller.Relative).Methods("GET")

	ctx := context.Background()
	alice, err := users.Register(ctx, &models.NewUser{Username: "alice", DisplayName: "Alice A", Password: "P4ssword"})
	require.NoError(t, err)
	bob, err := users.Register(ctx, &models.NewUser{Username: "bobby", DisplayName: "Bobby B", Password: "P4ssword"})
	require.NoError(t, err)

	return &testEnv{store: store, files: files, router: router, alice: alice, bob: bob}
}

// do serves a request, authenticated as user when user is not nil.
func (e *testEnv) do(method, path string, body io.Reader, user *models.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), user))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createPost(t *testing.T, user *models.User, content string) models.PostView {
	w := e.do(http.MethodPost, "/posts", strings.NewReader(fmt.Sprintf(`{"content": %q}`, content)), user)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view models.PostView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) models.Page[models.PostView] {
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page models.Page[models.PostView]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	return page
}

func viewIDs(views []models.PostView) []int64 {
	ids := make([]int64, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	return ids
}

func TestPostController(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("create post", func(t *testing.T) {
		view := env.createPost(t, env.alice, "This is a test post content")
		assert.NotZero(t, view.ID)
		assert.Equal(t, "This is a test post content", view.Content)
		assert.Equal(t, "alice", view.User.Username)
		assert.NotZero(t, view.Date)
	})

	t.Run("create post validation", func(t *testing.T) {
		w := env.do(http.MethodPost, "/posts", strings.NewReader(`{"content": "short"}`), env.alice)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var apiErr ApiError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Equal(t, "/posts", apiErr.URL)
		assert.Contains(t, apiErr.ValidationErrors, "content")
	})

	t.Run("create post with invalid JSON", func(t *testing.T) {
		w := env.do(http.MethodPost, "/posts", strings.NewReader(`{`), env.alice)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("create post with unknown attachment", func(t *testing.T) {
		w := env.do(http.MethodPost, "/posts",
			strings.NewReader(`{"content": "points at nothing", "attachment": {"id": 77}}`), env.alice)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var apiErr ApiError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
		assert.Contains(t, apiErr.ValidationErrors, "attachment")
	})
}

func TestFeedEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	// alice 1..5, bobby 6
	for i := 1; i <= 5; i++ {
		env.createPost(t, env.alice, fmt.Sprintf("alice post number %d", i))
	}
	env.createPost(t, env.bob, "bobby post number 1")

	t.Run("index", func(t *testing.T) {
		page := decodePage(t, env.do(http.MethodGet, "/posts?page=0&size=4", nil, nil))
		assert.Equal(t, []int64{6, 5, 4, 3}, viewIDs(page.Content))
		assert.Equal(t, int64(6), page.TotalElements)
		assert.Equal(t, 2, page.TotalPages)
	})

	t.Run("size is clamped", func(t *testing.T) {
		page := decodePage(t, env.do(http.MethodGet, "/posts?size=1000", nil, nil))
		assert.Equal(t, 20, page.Size)
	})

	t.Run("default size", func(t *testing.T) {
		page := decodePage(t, env.do(http.MethodGet, "/posts?size=abc", nil, nil))
		assert.Equal(t, 10, page.Size)
	})

	t.Run("user posts", func(t *testing.T) {
		page := decodePage(t, env.do(http.MethodGet, "/users/bobby/posts", nil, nil))
		assert.Equal(t, []int64{6}, viewIDs(page.Content))
		assert.Equal(t, "bobby", page.Content[0].User.Username)
	})

	t.Run("unknown user", func(t *testing.T) {
		for _, path := range []string{
			"/users/nobody/posts",
			"/users/nobody/posts/4?direction=before",
			"/users/nobody/posts/4?direction=after",
			"/users/nobody/posts/4?direction=after&count=true",
		} {
			w := env.do(http.MethodGet, path, nil, nil)
			assert.Equal(t, http.StatusNotFound, w.Code, path)
		}
	})

	t.Run("older", func(t *testing.T) {
		page := decodePage(t, env.do(http.MethodGet, "/users/alice/posts/4?direction=before&page=0&size=5", nil, nil))
		assert.Equal(t, []int64{3, 2, 1}, viewIDs(page.Content))

		page = decodePage(t, env.do(http.MethodGet, "/posts/6?direction=BEFORE", nil, nil))
		assert.Equal(t, []int64{5, 4, 3, 2, 1}, viewIDs(page.Content))
	})

	t.Run("newer", func(t *testing.T) {
		w := env.do(http.MethodGet, "/users/alice/posts/4?direction=after", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var views []models.PostView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
		assert.Equal(t, []int64{5}, viewIDs(views))

		w = env.do(http.MethodGet, "/posts/4", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
		assert.Equal(t, []int64{6, 5}, viewIDs(views))
	})

	t.Run("newer count", func(t *testing.T) {
		w := env.do(http.MethodGet, "/users/alice/posts/4?direction=after&count=true", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]int64
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, int64(1), body["count"])
	})
}

func uploadRequest(t *testing.T, field string, content []byte) (*bytes.Buffer, string) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "picture.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestUploadAndDelete(t *testing.T) {
	env := setupTestEnv(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	body, contentType := uploadRequest(t, "file", png)
	req := httptest.NewRequest(http.MethodPost, "/posts/upload", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(middleware.WithUser(req.Context(), env.alice))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var attachment models.AttachmentView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &attachment))
	assert.Equal(t, "image/png", attachment.FileType)

	w = env.do(http.MethodPost, "/posts",
		strings.NewReader(fmt.Sprintf(`{"content": "post with an image", "attachment": {"id": %d}}`, attachment.ID)), env.alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var post models.PostView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	require.NotNil(t, post.Attachment)
	assert.Equal(t, attachment.Name, post.Attachment.Name)

	t.Run("attachment cannot be reused", func(t *testing.T) {
		w := env.do(http.MethodPost, "/posts",
			strings.NewReader(fmt.Sprintf(`{"content": "second post same image", "attachment": {"id": %d}}`, attachment.ID)), env.alice)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("only the owner deletes", func(t *testing.T) {
		w := env.do(http.MethodDelete, fmt.Sprintf("/posts/%d", post.ID), nil, env.bob)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("delete removes attachment", func(t *testing.T) {
		w := env.do(http.MethodDelete, fmt.Sprintf("/posts/%d", post.ID), nil, env.alice)
		require.Equal(t, http.StatusOK, w.Code)
		var resp GenericResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Post is removed", resp.Message)

		_, err := env.store.Attachments().GetByID(context.Background(), attachment.ID)
		assert.Error(t, err)

		w = env.do(http.MethodDelete, fmt.Sprintf("/posts/%d", post.ID), nil, env.alice)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("upload without file", func(t *testing.T) {
		body, contentType := uploadRequest(t, "other", png)
		req := httptest.NewRequest(http.MethodPost, "/posts/upload", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUserController(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(http.MethodPost, "/users", strings.NewReader(`{"username": "carol1", "displayName": "Carol C", "password": "P4ssword"}`), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodPost, "/users", strings.NewReader(`{"username": "carol1", "displayName": "Carol C", "password": "P4ssword"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var apiErr ApiError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, "this name is in use", apiErr.ValidationErrors["username"])
}
