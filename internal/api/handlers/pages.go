package handlers

import (
	"net/http"

	"github.com/isdelr/ender-blog/internal/auth"
	"github.com/isdelr/ender-blog/internal/flash"
	"github.com/isdelr/ender-blog/internal/services"
	"github.com/isdelr/ender-blog/internal/views"
	"github.com/rs/zerolog/log"
)

// Pages renders HTML pages with the data every page shares: the logged-in
// user, pending flash messages and the sidebar. Flashes set on the page are
// shown after the pending ones.
type Pages struct {
	renderer *views.Renderer
	composer *services.ContentComposer
}

// NewPages creates a new Pages.
func NewPages(renderer *views.Renderer, composer *services.ContentComposer) *Pages {
	return &Pages{renderer: renderer, composer: composer}
}

func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, page string, data views.Page) {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		data.Username = claims.Username
	}
	if data.Sidebar.RecentPosts == nil && data.Sidebar.PopularPosts == nil {
		sidebar, err := p.composer.Sidebar(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to compose sidebar")
		}
		data.Sidebar = sidebar
	}
	pending := flash.Pop(w, r)
	for kind, messages := range data.Flashes {
		pending[kind] = append(pending[kind], messages...)
	}
	data.Flashes = pending

	if err := p.renderer.Render(w, status, page, data); err != nil {
		log.Error().Err(err).Str("page", page).Msg("Failed to render page")
		http.Error(w, "Server error.", http.StatusInternalServerError)
	}
}

// NotFound renders the 404 page.
func (p *Pages) NotFound(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusNotFound, views.NotFound, views.Page{Title: "Stránka nenalezena"})
}

// serverError logs err and answers with a generic 500.
func (p *Pages) serverError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	if err := p.renderer.Render(w, http.StatusInternalServerError, views.ServerError, views.Page{Title: "Server error."}); err != nil {
		http.Error(w, "Server error.", http.StatusInternalServerError)
	}
}
