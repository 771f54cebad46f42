package routes

import (
	"net/http"

	"murmur/app/controllers"
	"murmur/app/middleware"
	"murmur/app/services"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

// APIPrefix is the root of every JSON endpoint.
const APIPrefix = "/api/1.0"

// Dependencies are the services the HTTP layer is built from.
type Dependencies struct {
	Feed          *services.FeedService
	Posts         *services.PostService
	Uploads       *services.AttachmentService
	Users         *services.UserService
	Files         *services.FileService
	Paging        controllers.Paging
	MaxUploadSize int64
	Logger        *log.Logger
}

// SetupRoutes defines the application's routes and returns a router.
func SetupRoutes(d Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Apply global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(d.Logger))
	router.Use(middleware.Recoverer(d.Logger))

	postController := controllers.NewPostController(d.Feed, d.Posts, d.Uploads, d.Paging, d.MaxUploadSize, d.Logger)
	// Profile updates carry the image base64 encoded, a third larger than the file.
	userController := controllers.NewUserController(d.Users, d.Paging, d.MaxUploadSize*4/3+4096, d.Logger)

	// Uploaded files
	router.PathPrefix("/images/").Handler(http.StripPrefix("/images/", http.FileServer(http.Dir(d.Files.UploadPath()))))

	api := router.PathPrefix(APIPrefix).Subrouter()
	api.Use(middleware.ContentTypeJSON)
	api.Use(middleware.BasicAuth(d.Users))

	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireUser(h)
	}

	// Users
	api.HandleFunc("/users", userController.Create).Methods("POST")
	api.HandleFunc("/users", userController.Index).Methods("GET")
	api.HandleFunc("/users/{username}", userController.Show).Methods("GET")
	api.Handle("/users/{id:[0-9]+}", authed(userController.Update)).Methods("PUT")

	// Feed
	api.HandleFunc("/posts", postController.Index).Methods("GET")
	api.HandleFunc("/posts/{id:[0-9]+}", postController.Relative).Methods("GET")
	api.HandleFunc("/users/{username}/posts", postController.UserPosts).Methods("GET")
	api.HandleFunc("/users/{username}/posts/{id:[0-9]+}", postController.Relative).Methods("GET")

	// Writes
	api.Handle("/posts", authed(postController.Create)).Methods("POST")
	api.Handle("/posts/upload", authed(postController.Upload)).Methods("POST")
	api.Handle("/posts/{id:[0-9]+}", authed(postController.Delete)).Methods("DELETE")

	return router
}
