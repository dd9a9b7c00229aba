package models

import "time"

// Post is a community board entry.
type Post struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Likes      int64     `json:"likes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Paper is one work record returned by the library search.
type Paper struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Year         int      `json:"year"`
	Authors      []string `json:"authors"`
	CitedByCount int      `json:"citedByCount"`
	OpenAccess   bool     `json:"openAccess"`
	OpenURL      string   `json:"openUrl,omitempty"`
	Abstract     string   `json:"abstract"`
}
