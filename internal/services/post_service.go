package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-blog/internal/markdown"
	"github.com/isdelr/ender-blog/internal/models"
	"github.com/isdelr/ender-blog/internal/slug"
	"github.com/rs/zerolog/log"
)

// PostServiceProvider defines the interface for post services.
type PostServiceProvider interface {
	CountPosts(ctx context.Context, query string) (int, error)
	ListPosts(ctx context.Context, query string, offset, limit int) ([]models.Post, error)
	GetRecentPosts(ctx context.Context, limit int) ([]models.Post, error)
	GetPopularPosts(ctx context.Context, limit int) ([]models.Post, error)
	GetPostByID(ctx context.Context, id string) (models.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (models.Post, error)
	ViewPost(ctx context.Context, id, slug string) (models.Post, error)
	CreatePost(ctx context.Context, authorID string, input PostInput) (models.Post, error)
	UpdatePost(ctx context.Context, id string, input PostInput) (models.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// PostInput holds the user-editable fields of a post.
type PostInput struct {
	Title    string
	Intro    string
	Markdown string
	Tags     []string
}

// PostService provides business logic for posts.
type PostService struct {
	db           *sql.DB
	publisher    *markdown.Publisher
	eventService EventServiceProvider
	now          func() time.Time
}

// NewPostService creates a new PostService.
func NewPostService(db *sql.DB, publisher *markdown.Publisher, eventService EventServiceProvider) *PostService {
	return &PostService{
		db:           db,
		publisher:    publisher,
		eventService: eventService,
		now:          time.Now,
	}
}

const postColumns = "posts.id, posts.slug, posts.author_id, posts.title, posts.intro, posts.markdown, posts.sanitized_html, posts.tags_json, posts.views, posts.created_at"

// scanPost is a helper to scan a post from a row or rows object.
func scanPost(scanner interface{ Scan(...any) error }) (models.Post, error) {
	var post models.Post
	err := scanner.Scan(
		&post.ID, &post.Slug, &post.AuthorID, &post.Title, &post.Intro,
		&post.Markdown, &post.SanitizedHTML, &post.TagsJSON, &post.Views, timeScanner{&post.CreatedAt},
	)
	if err != nil {
		return post, err
	}
	post.PrepareForAPI()
	return post, nil
}

func (s *PostService) queryPosts(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ftsQuery turns free text into an FTS5 expression matching any of its
// terms. Each term is quoted so that operators and punctuation typed by the
// user are taken literally.
func ftsQuery(q string) string {
	var terms []string
	for _, term := range strings.Fields(q) {
		term = strings.ReplaceAll(term, `"`, "")
		if term == "" {
			continue
		}
		terms = append(terms, `"`+term+`"`)
	}
	return strings.Join(terms, " OR ")
}

// CountPosts returns the number of posts matching query, or of all posts when
// query is blank.
func (s *PostService) CountPosts(ctx context.Context, query string) (int, error) {
	var count int
	var err error
	if strings.TrimSpace(query) == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&count)
	} else {
		match := ftsQuery(query)
		if match == "" {
			return 0, nil
		}
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts_fts WHERE posts_fts MATCH ?", match).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

// ListPosts returns a page of posts matching query, newest first.
func (s *PostService) ListPosts(ctx context.Context, query string, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	var err error
	if strings.TrimSpace(query) == "" {
		posts, err = s.queryPosts(ctx,
			"SELECT "+postColumns+" FROM posts ORDER BY posts.created_at DESC, posts.rowid DESC LIMIT ? OFFSET ?",
			limit, offset)
	} else {
		match := ftsQuery(query)
		if match == "" {
			return []models.Post{}, nil
		}
		posts, err = s.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM posts
		JOIN posts_fts ON posts_fts.rowid = posts.rowid
		WHERE posts_fts MATCH ?
		ORDER BY posts.created_at DESC, posts.rowid DESC
		LIMIT ? OFFSET ?`, match, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// GetRecentPosts returns the most recently created posts.
func (s *PostService) GetRecentPosts(ctx context.Context, limit int) ([]models.Post, error) {
	posts, err := s.queryPosts(ctx,
		"SELECT "+postColumns+" FROM posts ORDER BY posts.created_at DESC, posts.rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent posts: %w", err)
	}
	return posts, nil
}

// GetPopularPosts returns the most viewed posts.
func (s *PostService) GetPopularPosts(ctx context.Context, limit int) ([]models.Post, error) {
	posts, err := s.queryPosts(ctx,
		"SELECT "+postColumns+" FROM posts ORDER BY posts.views DESC, posts.created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get popular posts: %w", err)
	}
	return posts, nil
}

// GetPostByID retrieves a single post by its ID.
func (s *PostService) GetPostByID(ctx context.Context, id string) (models.Post, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE posts.id = ?", id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Post{}, fmt.Errorf("post with id %s: %w", id, ErrPostNotFound)
		}
		return models.Post{}, err
	}
	return post, nil
}

// GetPostBySlug retrieves a single post by its slug without counting a view.
func (s *PostService) GetPostBySlug(ctx context.Context, slug string) (models.Post, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE posts.slug = ?", slug)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Post{}, fmt.Errorf("post with slug %s: %w", slug, ErrPostNotFound)
		}
		return models.Post{}, err
	}
	return post, nil
}

// ViewPost finds the post with the given slug and increments its view
// counter in a single statement, so concurrent views are never lost. When id
// is not empty it must match as well.
func (s *PostService) ViewPost(ctx context.Context, id, slug string) (models.Post, error) {
	query := "UPDATE posts SET views = views + 1 WHERE slug = ?"
	args := []any{slug}
	if id != "" {
		query += " AND id = ?"
		args = append(args, id)
	}
	query += " RETURNING id, slug, author_id, title, intro, markdown, sanitized_html, tags_json, views, created_at"

	post, err := scanPost(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Post{}, fmt.Errorf("post with slug %s: %w", slug, ErrPostNotFound)
		}
		return models.Post{}, fmt.Errorf("failed to view post: %w", err)
	}
	return post, nil
}

// reservedSlugs are taken by the /posts/new and /posts/edit/{id} routes.
var reservedSlugs = map[string]bool{"new": true, "edit": true}

// publish validates post and derives its slug and sanitized HTML. The slug
// is only recomputed when the title changed or no slug exists yet.
func (s *PostService) publish(post *models.Post, titleChanged bool) error {
	post.Title = strings.TrimSpace(post.Title)
	post.Intro = strings.TrimSpace(post.Intro)
	switch {
	case post.Title == "":
		return &ValidationError{Field: "title", Message: "Titulek je povinný."}
	case post.Intro == "":
		return &ValidationError{Field: "intro", Message: "Úvod je povinný."}
	case strings.TrimSpace(post.Markdown) == "":
		return &ValidationError{Field: "markdown", Message: "Obsah článku je povinný."}
	}

	if titleChanged || post.Slug == "" {
		post.Slug = slug.Make(post.Title)
		if post.Slug == "" {
			return &ValidationError{Field: "title", Message: "Titulek musí obsahovat alespoň jedno písmeno nebo číslici."}
		}
		if reservedSlugs[post.Slug] {
			return &ValidationError{Field: "title", Message: "Tento titulek nelze použít, koliduje s adresou jiné stránky."}
		}
	}

	html, err := s.publisher.Render(post.Markdown)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	post.SanitizedHTML = html
	post.PrepareForSave()
	return nil
}

func duplicateSlugError() error {
	return &ValidationError{Field: "title", Message: "Článek se stejným titulkem již existuje.", Err: ErrDuplicateSlug}
}

// CreatePost validates, renders and stores a new post.
func (s *PostService) CreatePost(ctx context.Context, authorID string, input PostInput) (models.Post, error) {
	post := models.Post{
		ID:        uuid.New().String(),
		AuthorID:  authorID,
		Title:     input.Title,
		Intro:     input.Intro,
		Markdown:  input.Markdown,
		Tags:      input.Tags,
		CreatedAt: s.now().UTC(),
	}
	if err := s.publish(&post, true); err != nil {
		return post, err
	}

	const query = `
		INSERT INTO posts(id, slug, author_id, title, intro, markdown, sanitized_html, tags_json, views, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`
	_, err := s.db.ExecContext(ctx, query,
		post.ID, post.Slug, post.AuthorID, post.Title, post.Intro,
		post.Markdown, post.SanitizedHTML, post.TagsJSON, post.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return post, duplicateSlugError()
		}
		return post, fmt.Errorf("failed to insert post: %w", err)
	}

	s.recordEvent(ctx, "post.created", fmt.Sprintf("Post %q was created.", post.Title), post.ID)
	return post, nil
}

// UpdatePost applies input to an existing post, re-rendering its markdown and
// recomputing the slug if the title changed.
func (s *PostService) UpdatePost(ctx context.Context, id string, input PostInput) (models.Post, error) {
	post, err := s.GetPostByID(ctx, id)
	if err != nil {
		return models.Post{}, err
	}

	titleChanged := strings.TrimSpace(input.Title) != post.Title
	post.Title = input.Title
	post.Intro = input.Intro
	post.Markdown = input.Markdown
	post.Tags = input.Tags
	if err := s.publish(&post, titleChanged); err != nil {
		return post, err
	}

	const query = `
		UPDATE posts SET slug = ?, title = ?, intro = ?, markdown = ?, sanitized_html = ?, tags_json = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		post.Slug, post.Title, post.Intro, post.Markdown, post.SanitizedHTML, post.TagsJSON, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return post, duplicateSlugError()
		}
		return post, fmt.Errorf("failed to update post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Post{}, fmt.Errorf("post with id %s: %w", id, ErrPostNotFound)
	}

	s.recordEvent(ctx, "post.updated", fmt.Sprintf("Post %q was updated.", post.Title), post.ID)
	return post, nil
}

// DeletePost removes a post from the database.
func (s *PostService) DeletePost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("post with id %s: %w", id, ErrPostNotFound)
	}

	s.recordEvent(ctx, "post.deleted", fmt.Sprintf("Post %s was deleted.", id), id)
	return nil
}

// recordEvent writes to the activity log. A failure there never fails the
// mutation that caused it.
func (s *PostService) recordEvent(ctx context.Context, eventType, message, postID string) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.CreateEvent(ctx, eventType, "info", message, &postID); err != nil {
		log.Warn().Err(err).Str("post_id", postID).Str("event", eventType).Msg("Failed to record event")
	}
}
