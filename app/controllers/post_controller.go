package controllers

import (
	"log/slog"
	"net/http"
	"time"

	"postvote/app/middleware"
	"postvote/app/models"
	"postvote/app/render"
	"postvote/app/services"
)

// PostController handles HTTP requests for posts and votes
type PostController struct {
	postService *services.PostService
	logger      *slog.Logger
}

// NewPostController creates a new PostController
func NewPostController(postService *services.PostService, logger *slog.Logger) *PostController {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostController{postService: postService, logger: logger}
}

// PostResponse is a post with its tally flattened in. Content is returned as
// stored; ContentHTML is its sanitized rendering.
type PostResponse struct {
	ID          int           `json:"id"`
	Title       string        `json:"title"`
	Content     string        `json:"content"`
	ContentHTML string        `json:"content_html"`
	CreatedBy   models.UserID `json:"created_by"`
	PubDate     time.Time     `json:"pub_date"`
	Likes       int           `json:"likes"`
	Dislikes    int           `json:"dislikes"`
}

func newPostResponse(p *models.Post) PostResponse {
	return PostResponse{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		ContentHTML: render.Markdown(p.Content),
		CreatedBy:   p.CreatedBy,
		PubDate:     p.PubDate,
		Likes:       p.Tally.Likes,
		Dislikes:    p.Tally.Dislikes,
	}
}

// PostRequest is the body of create and update.
type PostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// PostPatchRequest is the body of a partial update; absent fields are kept.
type PostPatchRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Index handles listing posts
func (pc *PostController) Index(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", services.DefaultPerPage)

	posts, err := pc.postService.ListPosts(r.Context(), middleware.IdentityFrom(r.Context()), page, perPage)
	if err != nil {
		handleServiceError(w, pc.logger, err)
		return
	}

	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, newPostResponse(p))
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"posts": out,
		"page":  page,
	})
}

// Show handles displaying a single post
func (pc *PostController) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	post, err := pc.postService.GetPost(r.Context(), middleware.IdentityFrom(r.Context()), id)
	if err != nil {
		handleServiceError(w, pc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, newPostResponse(post))
}

// Create handles creating a new post
func (pc *PostController) Create(w http.ResponseWriter, r *http.Request) {
	var req PostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := pc.postService.CreatePost(r.Context(), middleware.IdentityFrom(r.Context()), req.Title, req.Content)
	if err != nil {
		handleServiceError(w, pc.logger, err)
		return
	}
	sendJSON(w, http.StatusCreated, newPostResponse(post))
}

// Edit handles updating a post
func (pc *PostController) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	var req PostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := pc.postService.UpdatePost(r.Context(), middleware.IdentityFrom(r.Context()), id, req.Title, req.Content)
	if err != nil {
		handleServiceError(w, pc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, newPostResponse(post))
}

// Patch handles partially updating a post
func (pc *PostController) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	var req PostPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := pc.postService.PatchPost(r.Context(), middleware.IdentityFrom(r.Context()), id, req.Title, req.Content)
	if err != nil {
		handleServiceError(w, pc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, newPostResponse(post))
}

// Delete handles deleting a post
func (pc *PostController) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	if err := pc.postService.DeletePost(r.Context(), middleware.IdentityFrom(r.Context()), id); err != nil {
		handleServiceError(w, pc.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Like handles POST /posts/{id}/like
func (pc *PostController) Like(w http.ResponseWriter, r *http.Request) {
	pc.vote(w, r, models.Like)
}

// Dislike handles POST /posts/{id}/dislike
func (pc *PostController) Dislike(w http.ResponseWriter, r *http.Request) {
	pc.vote(w, r, models.Dislike)
}

func (pc *PostController) vote(w http.ResponseWriter, r *http.Request, choice models.Choice) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	post, err := pc.postService.Vote(r.Context(), middleware.IdentityFrom(r.Context()), id, choice)
	if err != nil {
		handleServiceError(w, pc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, newPostResponse(post))
}
