package routes

import (
	"log/slog"
	"net/http"

	"postvote/app/controllers"
	"postvote/app/middleware"

	"github.com/gorilla/mux"
)

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Posts  *controllers.PostController
	Users  *controllers.UserController
	Tokens middleware.TokenVerifier
	// AuthLimiter throttles the credential endpoints; nil disables it.
	AuthLimiter *middleware.IPRateLimiter
	Logger      *slog.Logger
}

// SetupRoutes defines the application's routes and returns a router.
func SetupRoutes(d Deps) *mux.Router {
	router := mux.NewRouter()

	// Apply global middleware
	router.Use(middleware.Logger(d.Logger))
	router.Use(middleware.Recoverer(d.Logger))
	router.Use(middleware.ContentTypeJSON)

	router.NotFoundHandler = middleware.ContentTypeJSON(http.HandlerFunc(notFound))
	router.MethodNotAllowedHandler = middleware.ContentTypeJSON(http.HandlerFunc(methodNotAllowed))

	// Account endpoints
	limit := func(h http.HandlerFunc) http.Handler {
		if d.AuthLimiter == nil {
			return h
		}
		return d.AuthLimiter.Middleware(h)
	}
	router.Handle("/signup", limit(d.Users.Signup)).Methods("POST")
	router.Handle("/login", limit(d.Users.Login)).Methods("POST")
	router.Handle("/token_refresh", limit(d.Users.Refresh)).Methods("POST")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Authenticate(d.Tokens, d.Logger))

	posts := api.PathPrefix("/posts").Subrouter()
	posts.HandleFunc("", d.Posts.Index).Methods("GET")
	posts.HandleFunc("", d.Posts.Create).Methods("POST")
	posts.HandleFunc("/{id:[0-9]+}", d.Posts.Show).Methods("GET")
	posts.HandleFunc("/{id:[0-9]+}", d.Posts.Edit).Methods("PUT")
	posts.HandleFunc("/{id:[0-9]+}", d.Posts.Patch).Methods("PATCH")
	posts.HandleFunc("/{id:[0-9]+}", d.Posts.Delete).Methods("DELETE")
	posts.HandleFunc("/{id:[0-9]+}/like", d.Posts.Like).Methods("POST")
	posts.HandleFunc("/{id:[0-9]+}/dislike", d.Posts.Dislike).Methods("POST")

	return router
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"NotFound","message":"not found"}` + "\n"))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusMethodNotAllowed)
	w.Write([]byte(`{"error":"MethodNotAllowed","message":"method not allowed"}` + "\n"))
}
