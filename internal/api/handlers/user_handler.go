package handlers

import (
	"errors"
	"net/http"

	"github.com/isdelr/ender-blog/internal/auth"
	"github.com/isdelr/ender-blog/internal/flash"
	"github.com/isdelr/ender-blog/internal/services"
	"github.com/isdelr/ender-blog/internal/views"
	"github.com/rs/zerolog/log"
)

// UserHandler handles registration, login and logout.
type UserHandler struct {
	*Pages
	service  services.UserServiceProvider
	sessions *auth.Sessions
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(pages *Pages, service services.UserServiceProvider, sessions *auth.Sessions) *UserHandler {
	return &UserHandler{Pages: pages, service: service, sessions: sessions}
}

// RegisterForm renders the registration form.
func (h *UserHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.UsersRegister, views.Page{Title: "Registrace", Data: ""})
}

// Register creates an account and logs the new user in.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	user, err := h.service.CreateUser(r.Context(), username, r.PostFormValue("password"))
	if err != nil {
		var validationErr *services.ValidationError
		if !errors.As(err, &validationErr) {
			h.serverError(w, r, err, "Failed to register user")
			return
		}
		h.render(w, r, http.StatusUnprocessableEntity, views.UsersRegister, views.Page{
			Title:   "Registrace",
			Flashes: flash.Messages{flash.Error: {validationErr.Message}},
			Data:    username,
		})
		return
	}

	if err := h.sessions.Login(w, user); err != nil {
		h.serverError(w, r, err, "Failed to start session")
		return
	}
	flash.Add(w, r, flash.Success, "Registrace proběhla úspěšně. Vítejte!")
	http.Redirect(w, r, "/posts", http.StatusSeeOther)
}

// LoginForm renders the login form.
func (h *UserHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.UsersLogin, views.Page{Title: "Přihlášení"})
}

// Login checks the credentials and starts a session.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	user, err := h.service.AuthenticateUser(r.Context(), username, r.PostFormValue("password"))
	if errors.Is(err, services.ErrInvalidCredentials) {
		log.Warn().Str("username", username).Msg("Failed authentication attempt")
		flash.Add(w, r, flash.Error, "Nesprávné uživatelské jméno nebo heslo.")
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.serverError(w, r, err, "Failed to authenticate user")
		return
	}

	if err := h.sessions.Login(w, user); err != nil {
		h.serverError(w, r, err, "Failed to start session")
		return
	}
	flash.Add(w, r, flash.Success, "Přihlášení proběhlo úspěšně.")
	http.Redirect(w, r, "/posts", http.StatusSeeOther)
}

// Logout ends the session.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w)
	flash.Add(w, r, flash.Info, "Byl/a jste odhlášen/a.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
