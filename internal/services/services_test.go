package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/isdelr/ender-blog/internal/database"
	"github.com/isdelr/ender-blog/internal/markdown"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(database.DSN(filepath.Join(t.TempDir(), "blog.db"), database.DefaultPragmas...))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	return db
}

// newTestPostService returns a PostService whose clock advances by one minute
// on every post created, starting at 2021-05-13 10:00 UTC.
func newTestPostService(t *testing.T) (*PostService, *EventService) {
	t.Helper()
	db := newTestDB(t)
	events := NewEventService(db)
	service := NewPostService(db, markdown.NewPublisher(""), events)
	clock := time.Date(2021, time.May, 13, 10, 0, 0, 0, time.UTC)
	service.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return service, events
}

func seedPosts(t *testing.T, service *PostService, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := service.CreatePost(context.Background(), "author-1", PostInput{
			Title:    fmt.Sprintf("Článek číslo %d", i),
			Intro:    "Úvod",
			Markdown: "Obsah",
			Tags:     []string{"test"},
		})
		if err != nil {
			t.Fatalf("seed post %d: %v", i, err)
		}
	}
}

func TestSearchMessage(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "Nebyl nalezen žádný článek odpovídající vašemu zadání."},
		{1, "Nalezli jsme 1 článek, který odpovídá vašemu zadání."},
		{2, "Nalezli jsme 2 články, které odpovídají vašemu zadání."},
		{4, "Nalezli jsme 4 články, které odpovídají vašemu zadání."},
		{5, "Nalezli jsme 5 článků, které odpovídají vašemu zadání."},
		{27, "Nalezli jsme 27 článků, které odpovídají vašemu zadání."},
	}
	for _, tt := range tests {
		if got := SearchMessage(tt.n); got != tt.want {
			t.Errorf("SearchMessage(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		page, total int
		want        Navigation
	}{
		{1, 25, Navigation{Next: 2}},
		{2, 25, Navigation{Next: 3, Previous: 1}},
		{3, 25, Navigation{Previous: 2}},
		{4, 25, Navigation{Previous: 3}},
		{1, 10, Navigation{}},
		{1, 11, Navigation{Next: 2}},
		{1, 0, Navigation{}},
		{math.MaxInt/PageSize + 1, 25, Navigation{Previous: math.MaxInt / PageSize}},
		{math.MaxInt, 25, Navigation{Previous: math.MaxInt - 1}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Paginate(tt.page, tt.total)); diff != "" {
			t.Errorf("Paginate(%d, %d) mismatch (-want +got):\n%s", tt.page, tt.total, diff)
		}
	}
}

func TestListingPagination(t *testing.T) {
	service, _ := newTestPostService(t)
	seedPosts(t, service, 25)
	composer := NewContentComposer(service, time.UTC)
	ctx := context.Background()

	tests := []struct {
		page       int
		wantCount  int
		wantFirst  string
		navigation Navigation
	}{
		{1, 10, "Článek číslo 25", Navigation{Next: 2}},
		{2, 10, "Článek číslo 15", Navigation{Next: 3, Previous: 1}},
		{3, 5, "Článek číslo 5", Navigation{Previous: 2}},
		{4, 0, "", Navigation{Previous: 3}},
		{math.MaxInt/PageSize + 1, 0, "", Navigation{Previous: math.MaxInt / PageSize}},
	}
	for _, tt := range tests {
		listing, err := composer.Listing(ctx, "", tt.page)
		if err != nil {
			t.Fatalf("page %d: %v", tt.page, err)
		}
		if len(listing.Posts) != tt.wantCount {
			t.Errorf("page %d: got %d posts, want %d", tt.page, len(listing.Posts), tt.wantCount)
		}
		if tt.wantCount > 0 && listing.Posts[0].Title != tt.wantFirst {
			t.Errorf("page %d: first post %q, want %q", tt.page, listing.Posts[0].Title, tt.wantFirst)
		}
		if diff := cmp.Diff(tt.navigation, listing.Navigation); diff != "" {
			t.Errorf("page %d navigation mismatch (-want +got):\n%s", tt.page, diff)
		}
		if listing.Total != 25 {
			t.Errorf("page %d: total %d, want 25", tt.page, listing.Total)
		}
		if listing.Message != "" {
			t.Errorf("page %d: unexpected message %q", tt.page, listing.Message)
		}
		for _, post := range listing.Posts {
			if post.DateHumanized == "" {
				t.Errorf("page %d: post %q has no humanized date", tt.page, post.Title)
			}
		}
	}
}

func TestListingSidebar(t *testing.T) {
	service, _ := newTestPostService(t)
	seedPosts(t, service, 7)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := service.ViewPost(ctx, "", "clanek-cislo-2"); err != nil {
			t.Fatal(err)
		}
	}

	listing, err := NewContentComposer(service, time.UTC).Listing(ctx, "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(listing.RecentPosts) != SidebarSize || len(listing.PopularPosts) != SidebarSize {
		t.Fatalf("sidebar sizes %d/%d, want %d", len(listing.RecentPosts), len(listing.PopularPosts), SidebarSize)
	}
	if got := listing.RecentPosts[0].Title; got != "Článek číslo 7" {
		t.Errorf("most recent post %q", got)
	}
	if got := listing.PopularPosts[0].Slug; got != "clanek-cislo-2" {
		t.Errorf("most popular post %q", got)
	}
	// Seeded posts are created at 10:01, 10:02, ...
	if got, want := listing.RecentPosts[0].DateHumanized, "13. 5. 2021 10:07"; got != want {
		t.Errorf("DateHumanized = %q, want %q", got, want)
	}
}

func TestListingSearch(t *testing.T) {
	service, _ := newTestPostService(t)
	ctx := context.Background()
	inputs := []PostInput{
		{Title: "O kočkách", Intro: "Kočka je šelma.", Markdown: "Mňau."},
		{Title: "O psech", Intro: "Pes je přítel.", Markdown: "Haf."},
		{Title: "Zvířata doma", Intro: "Domácí mazlíčci.", Markdown: "Kočka i pes.", Tags: []string{"zvířata"}},
	}
	for _, input := range inputs {
		if _, err := service.CreatePost(ctx, "author-1", input); err != nil {
			t.Fatal(err)
		}
	}
	composer := NewContentComposer(service, time.UTC)

	tests := []struct {
		q          string
		wantTitles []string
		message    string
	}{
		{"kočka", []string{"Zvířata doma", "O kočkách"}, "Nalezli jsme 2 články, které odpovídají vašemu zadání."},
		{"kocka", []string{"Zvířata doma", "O kočkách"}, "Nalezli jsme 2 články, které odpovídají vašemu zadání."},
		{"haf", []string{"O psech"}, "Nalezli jsme 1 článek, který odpovídá vašemu zadání."},
		{"zvířata", []string{"Zvířata doma"}, "Nalezli jsme 1 článek, který odpovídá vašemu zadání."},
		{"žirafa", []string{}, "Nebyl nalezen žádný článek odpovídající vašemu zadání."},
		{`haf "mňau" OR`, []string{"O psech", "O kočkách"}, "Nalezli jsme 2 články, které odpovídají vašemu zadání."},
	}
	for _, tt := range tests {
		listing, err := composer.Listing(ctx, tt.q, 1)
		if err != nil {
			t.Fatalf("q=%q: %v", tt.q, err)
		}
		titles := []string{}
		for _, post := range listing.Posts {
			titles = append(titles, post.Title)
		}
		if diff := cmp.Diff(tt.wantTitles, titles); diff != "" {
			t.Errorf("q=%q titles mismatch (-want +got):\n%s", tt.q, diff)
		}
		if listing.Message != tt.message {
			t.Errorf("q=%q message %q, want %q", tt.q, listing.Message, tt.message)
		}
	}
}

func TestViewPostCountsEveryView(t *testing.T) {
	service, _ := newTestPostService(t)
	seedPosts(t, service, 1)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := service.ViewPost(ctx, "", "clanek-cislo-1"); err != nil {
			t.Fatal(err)
		}
	}
	post, err := service.GetPostBySlug(ctx, "clanek-cislo-1")
	if err != nil {
		t.Fatal(err)
	}
	if post.Views != 2 {
		t.Fatalf("views = %d after two views, want 2", post.Views)
	}

	const concurrent = 10
	var wg sync.WaitGroup
	errs := make(chan error, concurrent)
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.ViewPost(ctx, "", "clanek-cislo-1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	post, err = service.GetPostBySlug(ctx, "clanek-cislo-1")
	if err != nil {
		t.Fatal(err)
	}
	if post.Views != 2+concurrent {
		t.Fatalf("views = %d, want %d", post.Views, 2+concurrent)
	}
}

func TestViewPostNotFound(t *testing.T) {
	service, _ := newTestPostService(t)
	seedPosts(t, service, 1)
	ctx := context.Background()

	if _, err := service.ViewPost(ctx, "", "neexistuje"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("ViewPost(missing slug) error = %v, want ErrPostNotFound", err)
	}
	if _, err := service.ViewPost(ctx, "wrong-id", "clanek-cislo-1"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("ViewPost(wrong id) error = %v, want ErrPostNotFound", err)
	}

	post, err := service.GetPostBySlug(ctx, "clanek-cislo-1")
	if err != nil {
		t.Fatal(err)
	}
	if post.Views != 0 {
		t.Errorf("views = %d after failed lookups, want 0", post.Views)
	}
	viewed, err := service.ViewPost(ctx, post.ID, post.Slug)
	if err != nil {
		t.Fatal(err)
	}
	if viewed.Views != 1 {
		t.Errorf("views = %d, want 1", viewed.Views)
	}
}

func TestDetail(t *testing.T) {
	service, _ := newTestPostService(t)
	seedPosts(t, service, 1)

	detail, err := NewContentComposer(service, time.UTC).Detail(context.Background(), "", "clanek-cislo-1")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := detail.Post.DateHumanized, "čtvrtek 13. května 2021 10:01"; got != want {
		t.Errorf("DateHumanized = %q, want %q", got, want)
	}
	if detail.Post.Views != 1 {
		t.Errorf("views = %d, want 1", detail.Post.Views)
	}
	if len(detail.RecentPosts) != 1 {
		t.Errorf("got %d recent posts, want 1", len(detail.RecentPosts))
	}
}

func TestCreatePost(t *testing.T) {
	service, events := newTestPostService(t)
	ctx := context.Background()

	post, err := service.CreatePost(ctx, "author-1", PostInput{
		Title:    "  Příliš žluťoučký kůň  ",
		Intro:    "Úvod",
		Markdown: "# Ahoj\n\n<script>alert(1)</script>",
		Tags:     []string{"kůň", "barvy"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if post.Slug != "prilis-zlutoucky-kun" {
		t.Errorf("slug = %q", post.Slug)
	}
	if post.Title != "Příliš žluťoučký kůň" {
		t.Errorf("title = %q", post.Title)
	}
	if strings.Contains(post.SanitizedHTML, "<script") || !strings.Contains(post.SanitizedHTML, "Ahoj</h1>") {
		t.Errorf("sanitized html = %q", post.SanitizedHTML)
	}

	stored, err := service.GetPostByID(ctx, post.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(post, stored); diff != "" {
		t.Errorf("stored post mismatch (-want +got):\n%s", diff)
	}

	recent, err := events.GetRecentEvents(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].Type != "post.created" || recent[0].PostID == nil || *recent[0].PostID != post.ID {
		t.Errorf("events = %+v", recent)
	}
}

func TestCreatePostValidation(t *testing.T) {
	service, _ := newTestPostService(t)
	ctx := context.Background()

	tests := []struct {
		input PostInput
		field string
	}{
		{PostInput{Title: "", Intro: "i", Markdown: "m"}, "title"},
		{PostInput{Title: "   ", Intro: "i", Markdown: "m"}, "title"},
		{PostInput{Title: "!!!", Intro: "i", Markdown: "m"}, "title"},
		{PostInput{Title: "t", Intro: "", Markdown: "m"}, "intro"},
		{PostInput{Title: "t", Intro: "i", Markdown: " \n"}, "markdown"},
		{PostInput{Title: "New", Intro: "i", Markdown: "m"}, "title"},
		{PostInput{Title: " Edit! ", Intro: "i", Markdown: "m"}, "title"},
	}
	for _, tt := range tests {
		_, err := service.CreatePost(ctx, "author-1", tt.input)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("CreatePost(%+v) error = %v, want ValidationError", tt.input, err)
			continue
		}
		if validationErr.Field != tt.field {
			t.Errorf("CreatePost(%+v) field = %q, want %q", tt.input, validationErr.Field, tt.field)
		}
	}

	count, err := service.CountPosts(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("%d posts stored after failed creates, want 0", count)
	}
}

func TestCreatePostDuplicateSlug(t *testing.T) {
	service, _ := newTestPostService(t)
	ctx := context.Background()

	input := PostInput{Title: "Stejný titulek", Intro: "i", Markdown: "m"}
	if _, err := service.CreatePost(ctx, "author-1", input); err != nil {
		t.Fatal(err)
	}
	input.Title = "Stejny Titulek!"
	_, err := service.CreatePost(ctx, "author-2", input)
	if !errors.Is(err, ErrDuplicateSlug) {
		t.Fatalf("error = %v, want ErrDuplicateSlug", err)
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "title" {
		t.Fatalf("error = %v, want title ValidationError", err)
	}
}

func TestUpdatePost(t *testing.T) {
	service, _ := newTestPostService(t)
	ctx := context.Background()

	post, err := service.CreatePost(ctx, "author-1", PostInput{
		Title: "Původní titulek", Intro: "Úvod", Markdown: "Text **jedna**",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Changing only the intro keeps the slug.
	updated, err := service.UpdatePost(ctx, post.ID, PostInput{
		Title: "Původní titulek", Intro: "Nový úvod", Markdown: "Text **jedna**",
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Slug != post.Slug {
		t.Errorf("slug changed to %q after intro-only update", updated.Slug)
	}

	// Changing the title and markdown recomputes the slug and the HTML.
	updated, err = service.UpdatePost(ctx, post.ID, PostInput{
		Title: "Nový titulek", Intro: "Nový úvod", Markdown: "Text *dva*<img src=x onerror=alert(1)>",
		Tags: []string{"nové"},
	})
	if err != nil {
		t.Fatal(err)
	}
	stored, err := service.GetPostByID(ctx, post.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Slug != "novy-titulek" {
		t.Errorf("slug = %q, want novy-titulek", stored.Slug)
	}
	if !strings.Contains(stored.SanitizedHTML, "<em>dva</em>") || strings.Contains(stored.SanitizedHTML, "jedna") {
		t.Errorf("sanitized html is stale: %q", stored.SanitizedHTML)
	}
	if strings.Contains(stored.SanitizedHTML, "onerror") {
		t.Errorf("sanitized html kept an event handler: %q", stored.SanitizedHTML)
	}
	if diff := cmp.Diff([]string{"nové"}, stored.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if !stored.CreatedAt.Equal(post.CreatedAt) || stored.AuthorID != "author-1" {
		t.Errorf("immutable fields changed: %+v", stored)
	}
	if _, err := service.GetPostBySlug(ctx, post.Slug); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("old slug still resolves: %v", err)
	}
	if updated.Slug != stored.Slug {
		t.Errorf("returned slug %q, stored %q", updated.Slug, stored.Slug)
	}

	if _, err := service.UpdatePost(ctx, "missing", PostInput{Title: "t", Intro: "i", Markdown: "m"}); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("UpdatePost(missing) error = %v, want ErrPostNotFound", err)
	}
}

func TestUpdatePostDuplicateSlug(t *testing.T) {
	service, _ := newTestPostService(t)
	ctx := context.Background()

	if _, err := service.CreatePost(ctx, "a", PostInput{Title: "První", Intro: "i", Markdown: "m"}); err != nil {
		t.Fatal(err)
	}
	second, err := service.CreatePost(ctx, "a", PostInput{Title: "Druhý", Intro: "i", Markdown: "m"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = service.UpdatePost(ctx, second.ID, PostInput{Title: "první", Intro: "i", Markdown: "m"})
	if !errors.Is(err, ErrDuplicateSlug) {
		t.Fatalf("error = %v, want ErrDuplicateSlug", err)
	}
}

func TestDeletePost(t *testing.T) {
	service, events := newTestPostService(t)
	seedPosts(t, service, 2)
	ctx := context.Background()

	post, err := service.GetPostBySlug(ctx, "clanek-cislo-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := service.DeletePost(ctx, post.ID); err != nil {
		t.Fatal(err)
	}
	if err := service.DeletePost(ctx, post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("second DeletePost error = %v, want ErrPostNotFound", err)
	}
	// The search index follows deletions.
	if n, err := service.CountPosts(ctx, "číslo"); err != nil || n != 1 {
		t.Errorf("CountPosts(search) = %d, %v; want 1", n, err)
	}

	recent, err := events.GetRecentEvents(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].Type != "post.deleted" {
		t.Errorf("events = %+v", recent)
	}
}

func TestFTSQuery(t *testing.T) {
	tests := []struct {
		q    string
		want string
	}{
		{"kočka", `"kočka"`},
		{"  pes   kočka ", `"pes" OR "kočka"`},
		{`"a b" NOT`, `"a" OR "b" OR "NOT"`},
		{`"`, ""},
	}
	for _, tt := range tests {
		if got := ftsQuery(tt.q); got != tt.want {
			t.Errorf("ftsQuery(%q) = %q, want %q", tt.q, got, tt.want)
		}
	}
}
