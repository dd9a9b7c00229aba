package community

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"eduvia/internal/config"
	"eduvia/internal/storage"
)

func TestCreateAppliesDefaults(t *testing.T) {
	svc := NewService(openTestDB(t), nil, nil)
	p, err := svc.Create(context.Background(), NewPost{Title: " Hello ", Content: "World", AuthorID: "u1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID <= 0 || p.Title != "Hello" || p.Likes != 0 {
		t.Fatalf("unexpected post %+v", p)
	}
	if p.AuthorName != DefaultAuthorName || p.Category != DefaultCategory {
		t.Fatalf("defaults not applied: %+v", p)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(openTestDB(t), nil, nil)
	cases := []NewPost{
		{Content: "c", AuthorID: "u"},
		{Title: "t", AuthorID: "u"},
		{Title: "t", Content: "c"},
	}
	for i, in := range cases {
		if _, err := svc.Create(context.Background(), in); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestListNewestFirstAndClamped(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		if _, err := db.Exec(
			`INSERT INTO posts (title, content, category, author_id, author_name, likes, created_at) VALUES (?, 'c', 'General', 'u', 'n', 0, ?)`,
			fmt.Sprintf("post-%02d", i), base.Add(time.Duration(i)*time.Minute),
		); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	posts, err := svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != MaxFeed {
		t.Fatalf("expected %d posts, got %d", MaxFeed, len(posts))
	}
	if posts[0].Title != "post-24" || posts[19].Title != "post-05" {
		t.Fatalf("unexpected order: first %q last %q", posts[0].Title, posts[19].Title)
	}

	posts, err = svc.List(context.Background(), 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(posts))
	}
}

func TestLike(t *testing.T) {
	svc := NewService(openTestDB(t), nil, nil)
	ctx := context.Background()
	p, err := svc.Create(ctx, NewPost{Title: "t", Content: "c", AuthorID: "u"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for want := int64(1); want <= 3; want++ {
		got, err := svc.Like(ctx, p.ID)
		if err != nil {
			t.Fatalf("like: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d likes, got %d", want, got)
		}
	}
	if _, err := svc.Like(ctx, p.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
