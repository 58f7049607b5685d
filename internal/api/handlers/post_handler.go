package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-blog/internal/auth"
	"github.com/isdelr/ender-blog/internal/flash"
	"github.com/isdelr/ender-blog/internal/models"
	"github.com/isdelr/ender-blog/internal/services"
	"github.com/isdelr/ender-blog/internal/views"
)

// PostHandler handles the HTML pages of posts.
type PostHandler struct {
	*Pages
	service services.PostServiceProvider
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(pages *Pages, service services.PostServiceProvider) *PostHandler {
	return &PostHandler{Pages: pages, service: service}
}

// pageParam parses the page query parameter. Anything that is not a number
// means the first page.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// Index lists posts, filtered by the q search parameter when set.
func (h *PostHandler) Index(w http.ResponseWriter, r *http.Request) {
	listing, err := h.composer.Listing(r.Context(), r.URL.Query().Get("q"), pageParam(r))
	if err != nil {
		h.serverError(w, r, err, "Failed to list posts")
		return
	}
	h.render(w, r, http.StatusOK, views.PostsIndex, views.Page{
		Title:   "Články",
		Query:   listing.Query,
		Sidebar: listing.Sidebar,
		Data:    listing,
	})
}

// Show renders a post by its slug and counts the view.
func (h *PostHandler) Show(w http.ResponseWriter, r *http.Request) {
	h.show(w, r, "", chi.URLParam(r, "slug"))
}

// ShowLegacy serves the old /posts/{id}/{slug} links.
func (h *PostHandler) ShowLegacy(w http.ResponseWriter, r *http.Request) {
	h.show(w, r, chi.URLParam(r, "id"), chi.URLParam(r, "slug"))
}

func (h *PostHandler) show(w http.ResponseWriter, r *http.Request, id, slug string) {
	detail, err := h.composer.Detail(r.Context(), id, slug)
	if errors.Is(err, services.ErrPostNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err, "Failed to show post")
		return
	}
	h.render(w, r, http.StatusOK, views.PostsShow, views.Page{
		Title:   detail.Post.Title,
		Sidebar: detail.Sidebar,
		Data:    detail.Post,
	})
}

// New renders the empty creation form.
func (h *PostHandler) New(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.PostsNew, views.Page{
		Title: "Nový článek",
		Data:  views.PostForm{Action: "/posts", Method: http.MethodPost},
	})
}

// Edit renders the form pre-filled with the post's current values.
func (h *PostHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	post, err := h.service.GetPostByID(r.Context(), id)
	if errors.Is(err, services.ErrPostNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err, "Failed to load post for editing")
		return
	}
	h.render(w, r, http.StatusOK, views.PostsEdit, views.Page{
		Title: "Upravit článek",
		Data:  views.PostForm{Post: post, Action: "/posts/" + post.ID, Method: http.MethodPut},
	})
}

func postInput(r *http.Request) services.PostInput {
	return services.PostInput{
		Title:    r.PostFormValue("title"),
		Intro:    r.PostFormValue("intro"),
		Markdown: r.PostFormValue("markdown"),
		Tags:     models.ParseTags(r.PostFormValue("tags")),
	}
}

// invalid re-renders a form with the attempted values when err is a
// validation error and reports whether it did.
func (h *PostHandler) invalid(w http.ResponseWriter, r *http.Request, err error, page string, form views.PostForm, input services.PostInput) bool {
	var validationErr *services.ValidationError
	if !errors.As(err, &validationErr) {
		return false
	}
	form.Post.Title = input.Title
	form.Post.Intro = input.Intro
	form.Post.Markdown = input.Markdown
	form.Post.Tags = input.Tags
	form.Error = validationErr.Message
	h.render(w, r, http.StatusUnprocessableEntity, page, views.Page{Title: "Článek", Data: form})
	return true
}

// Create saves a new post written by the logged-in user.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}
	input := postInput(r)

	post, err := h.service.CreatePost(r.Context(), claims.UserID, input)
	if err != nil {
		form := views.PostForm{Action: "/posts", Method: http.MethodPost}
		if !h.invalid(w, r, err, views.PostsNew, form, input) {
			h.serverError(w, r, err, "Failed to create post")
		}
		return
	}

	flash.Add(w, r, flash.Success, "Článek byl uložen.")
	http.Redirect(w, r, "/posts/"+post.Slug, http.StatusSeeOther)
}

// Update saves changes to an existing post.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	input := postInput(r)

	post, err := h.service.UpdatePost(r.Context(), id, input)
	if errors.Is(err, services.ErrPostNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		form := views.PostForm{Post: models.Post{ID: id}, Action: "/posts/" + id, Method: http.MethodPut}
		if !h.invalid(w, r, err, views.PostsEdit, form, input) {
			h.serverError(w, r, err, "Failed to update post")
		}
		return
	}

	flash.Add(w, r, flash.Success, "Článek byl upraven.")
	http.Redirect(w, r, "/posts/"+post.Slug, http.StatusSeeOther)
}

// Delete removes a post.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.service.DeletePost(r.Context(), id)
	if errors.Is(err, services.ErrPostNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err, "Failed to delete post")
		return
	}

	flash.Add(w, r, flash.Success, "Článek byl smazán.")
	http.Redirect(w, r, "/posts", http.StatusSeeOther)
}
