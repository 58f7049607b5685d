package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-blog/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest password bcrypt accepts.
const maxPasswordBytes = 72

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
	CreateUser(ctx context.Context, username, password string) (models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db           *sql.DB
	eventService EventServiceProvider
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, eventService EventServiceProvider) *UserService {
	return &UserService{db: db, eventService: eventService}
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, "SELECT id, username, created_at FROM users WHERE id = ?", id)
	err := row.Scan(&user.ID, &user.Username, timeScanner{&user.CreatedAt})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user with ID %s: %w", id, ErrUserNotFound)
		}
		return models.User{}, err
	}
	return user, nil
}

// getUserByUsername retrieves a single user by their username, including the
// password hash.
func (s *UserService) getUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, "SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username)
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, timeScanner{&user.CreatedAt})
	return user, err
}

// CreateUser creates a new user, hashing their password.
func (s *UserService) CreateUser(ctx context.Context, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, &ValidationError{Field: "username", Message: "Uživatelské jméno je povinné."}
	}
	if password == "" {
		return models.User{}, &ValidationError{Field: "password", Message: "Heslo je povinné."}
	}
	if len(password) > maxPasswordBytes {
		return models.User{}, &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Heslo může mít nejvýše %d bajtů.", maxPasswordBytes),
			Err:     bcrypt.ErrPasswordTooLong,
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users(id, username, password_hash, created_at) VALUES(?, ?, ?, ?)",
		user.ID, user.Username, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, &ValidationError{
				Field:   "username",
				Message: "Uživatel se zadaným jménem již existuje.",
				Err:     ErrUserExists,
			}
		}
		return models.User{}, err
	}

	if s.eventService != nil {
		message := fmt.Sprintf("User %s registered.", user.Username)
		if err := s.eventService.CreateEvent(ctx, "user.registered", "info", message, nil); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record event")
		}
	}

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// AuthenticateUser verifies a user's credentials.
func (s *UserService) AuthenticateUser(ctx context.Context, username, password string) (models.User, error) {
	user, err := s.getUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("authentication failed: user not found: %w", ErrInvalidCredentials)
		}
		return models.User{}, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return models.User{}, fmt.Errorf("authentication failed: invalid password: %w", ErrInvalidCredentials)
	}

	// Don't hand the password hash to callers
	user.PasswordHash = ""
	return user, nil
}
