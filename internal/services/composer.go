package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/ender-blog/internal/czdate"
	"github.com/isdelr/ender-blog/internal/models"
)

const (
	// PageSize is the number of posts on one listing page.
	PageSize = 10
	// SidebarSize is the length of the recent and popular post lists.
	SidebarSize = 5
)

// Navigation holds the pagination cursors of a listing. A zero value means
// the cursor is absent.
type Navigation struct {
	Next     int `json:"next,omitempty"`
	Previous int `json:"previous,omitempty"`
}

// Sidebar holds the post lists shown next to every page.
type Sidebar struct {
	RecentPosts  []models.Post `json:"recentPosts"`
	PopularPosts []models.Post `json:"popularPosts"`
}

// Listing is the view-model of the post listing and search pages.
type Listing struct {
	Sidebar
	Query      string        `json:"query,omitempty"`
	Page       int           `json:"page"`
	Total      int           `json:"total"`
	Posts      []models.Post `json:"posts"`
	Navigation Navigation    `json:"navigation"`
	Message    string        `json:"message,omitempty"`
}

// Detail is the view-model of a post's page.
type Detail struct {
	Sidebar
	Post models.Post `json:"post"`
}

// ContentComposer assembles the view-models of the blog pages so that the
// handlers share one implementation of pagination, search and date
// humanizing.
type ContentComposer struct {
	posts    PostServiceProvider
	location *time.Location
}

// NewContentComposer creates a ContentComposer rendering dates in location.
func NewContentComposer(posts PostServiceProvider, location *time.Location) *ContentComposer {
	if location == nil {
		location = time.UTC
	}
	return &ContentComposer{posts: posts, location: location}
}

// Paginate computes the cursors of a 1-based page out of total posts. There is
// no upper clamp: a page past the end has a previous cursor and no next one.
//
// The cursors are compared in pages rather than post indexes so that huge page
// numbers cannot overflow.
func Paginate(page, total int) Navigation {
	var nav Navigation
	lastPage := (total + PageSize - 1) / PageSize
	if page < lastPage {
		nav.Next = page + 1
	}
	if page > 1 {
		nav.Previous = page - 1
	}
	return nav
}

// SearchMessage tells the reader how many posts a search found, using the
// Czech plural forms: 1 článek, 2-4 články, 0 and 5+ článků.
func SearchMessage(n int) string {
	switch {
	case n == 0:
		return "Nebyl nalezen žádný článek odpovídající vašemu zadání."
	case n == 1:
		return "Nalezli jsme 1 článek, který odpovídá vašemu zadání."
	case n > 1 && n < 5:
		return fmt.Sprintf("Nalezli jsme %d články, které odpovídají vašemu zadání.", n)
	default:
		return fmt.Sprintf("Nalezli jsme %d článků, které odpovídají vašemu zadání.", n)
	}
}

// InLocation converts t to the time zone dates are displayed in.
func (c *ContentComposer) InLocation(t time.Time) time.Time {
	return t.In(c.location)
}

func (c *ContentComposer) humanize(posts []models.Post, pattern string) {
	for i := range posts {
		posts[i].DateHumanized = czdate.Format(c.InLocation(posts[i].CreatedAt), pattern)
	}
}

// Sidebar fetches the recent and popular post lists.
func (c *ContentComposer) Sidebar(ctx context.Context) (Sidebar, error) {
	recent, err := c.posts.GetRecentPosts(ctx, SidebarSize)
	if err != nil {
		return Sidebar{}, err
	}
	popular, err := c.posts.GetPopularPosts(ctx, SidebarSize)
	if err != nil {
		return Sidebar{}, err
	}
	c.humanize(recent, czdate.Short)
	c.humanize(popular, czdate.Short)
	return Sidebar{RecentPosts: recent, PopularPosts: popular}, nil
}

// Listing composes one page of posts, optionally filtered by the full-text
// query q. Pages below 1 are treated as page 1.
func (c *ContentComposer) Listing(ctx context.Context, q string, page int) (Listing, error) {
	q = strings.TrimSpace(q)
	if page < 1 {
		page = 1
	}

	total, err := c.posts.CountPosts(ctx, q)
	if err != nil {
		return Listing{}, err
	}
	posts := []models.Post{}
	if page-1 <= total/PageSize {
		posts, err = c.posts.ListPosts(ctx, q, (page-1)*PageSize, PageSize)
		if err != nil {
			return Listing{}, err
		}
	}
	c.humanize(posts, czdate.Short)

	sidebar, err := c.Sidebar(ctx)
	if err != nil {
		return Listing{}, err
	}

	listing := Listing{
		Sidebar:    sidebar,
		Query:      q,
		Page:       page,
		Total:      total,
		Posts:      posts,
		Navigation: Paginate(page, total),
	}
	if q != "" {
		listing.Message = SearchMessage(total)
	}
	return listing, nil
}

// Detail counts a view of the post identified by slug (and id, when given)
// and composes its page.
func (c *ContentComposer) Detail(ctx context.Context, id, slug string) (Detail, error) {
	post, err := c.posts.ViewPost(ctx, id, slug)
	if err != nil {
		return Detail{}, err
	}
	post.DateHumanized = czdate.Format(c.InLocation(post.CreatedAt), czdate.Long)

	sidebar, err := c.Sidebar(ctx)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Sidebar: sidebar, Post: post}, nil
}
