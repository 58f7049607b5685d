package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-blog/internal/czdate"
	"github.com/isdelr/ender-blog/internal/services"
	"github.com/rs/zerolog/log"
)

// PostAPIHandler serves posts as JSON.
type PostAPIHandler struct {
	service  services.PostServiceProvider
	composer *services.ContentComposer
}

// NewPostAPIHandler creates a new PostAPIHandler.
func NewPostAPIHandler(service services.PostServiceProvider, composer *services.ContentComposer) *PostAPIHandler {
	return &PostAPIHandler{service: service, composer: composer}
}

// GetAll returns one page of the listing, optionally filtered by q.
func (h *PostAPIHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	listing, err := h.composer.Listing(r.Context(), r.URL.Query().Get("q"), pageParam(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list posts")
		http.Error(w, "Server error.", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// Get returns a single post by slug. Views are not counted.
func (h *PostAPIHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	post, err := h.service.GetPostBySlug(r.Context(), slug)
	if errors.Is(err, services.ErrPostNotFound) {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Failed to get post")
		http.Error(w, "Server error.", http.StatusInternalServerError)
		return
	}
	post.DateHumanized = czdate.Format(h.composer.InLocation(post.CreatedAt), czdate.Long)
	writeJSON(w, http.StatusOK, post)
}
