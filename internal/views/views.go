// Package views renders the HTML pages of the blog from embedded templates.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/isdelr/ender-blog/internal/flash"
	"github.com/isdelr/ender-blog/internal/models"
	"github.com/isdelr/ender-blog/internal/services"
)

//go:embed templates static
var files embed.FS

// Page names accepted by Render.
const (
	PostsIndex    = "posts/index.html"
	PostsShow     = "posts/show.html"
	PostsNew      = "posts/new.html"
	PostsEdit     = "posts/edit.html"
	UsersRegister = "users/register.html"
	UsersLogin    = "users/login.html"
	NotFound      = "errors/404.html"
	ServerError   = "errors/500.html"
)

var pages = []string{
	PostsIndex, PostsShow, PostsNew, PostsEdit,
	UsersRegister, UsersLogin, NotFound, ServerError,
}

// Page is the data every template is executed with. Data holds the
// page-specific view-model.
type Page struct {
	Title    string
	Username string
	Query    string
	Flashes  flash.Messages
	Sidebar  services.Sidebar
	Data     any
}

// PostForm is the view-model of the create and edit forms. Method is POST or
// PUT; PUT is sent through the _method field.
type PostForm struct {
	Post   models.Post
	Action string
	Method string
	Error  string
}

// Renderer executes the parsed page templates.
type Renderer struct {
	templates map[string]*template.Template
}

var funcs = template.FuncMap{
	// SanitizedHTML has already been through the sanitizer.
	"safeHTML": func(s string) template.HTML { return template.HTML(s) },
	"join":     strings.Join,
}

// New parses every page together with the layout and partials.
func New() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(files,
			"templates/layout.html",
			"templates/partials/*.html",
			"templates/"+page,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		r.templates[page] = tmpl
	}
	return r, nil
}

// Render writes page with the given status. The page is executed into a
// buffer first so that a template error does not leave a half-written
// response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Page) error {
	tmpl, ok := r.templates[page]
	if !ok {
		return fmt.Errorf("unknown template %s", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Static returns the embedded stylesheets.
func Static() http.FileSystem {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
