package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Post represents a blog article.
type Post struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	AuthorID      string    `json:"authorId"`
	Title         string    `json:"title"`
	Intro         string    `json:"intro"`
	Markdown      string    `json:"markdown"`
	SanitizedHTML string    `json:"sanitizedHtml"`
	CreatedAt     time.Time `json:"createdAt"`
	Views         int       `json:"views"`

	// JSON string field for DB storage
	TagsJSON string `json:"-"`

	// Slice field for API and template interaction
	Tags []string `json:"tags"`

	// Display-only, filled in by the content composer.
	DateHumanized string `json:"dateHumanized,omitempty"`
}

// PrepareForSave marshals Tags into TagsJSON for DB storage.
func (p *Post) PrepareForSave() {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	tagsBytes, _ := json.Marshal(p.Tags)
	p.TagsJSON = string(tagsBytes)
}

// PrepareForAPI unmarshals TagsJSON into Tags.
func (p *Post) PrepareForAPI() {
	p.Tags = []string{}
	if p.TagsJSON != "" {
		json.Unmarshal([]byte(p.TagsJSON), &p.Tags)
	}
}

// TagsInput renders Tags back into the comma-separated form field.
func (p Post) TagsInput() string {
	return strings.Join(p.Tags, ", ")
}

// ParseTags splits a comma-separated form field into trimmed tags. Empty
// entries are dropped.
func ParseTags(input string) []string {
	tags := []string{}
	for _, tag := range strings.Split(input, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
