// Package community backs the shared discussion board.
package community

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"eduvia/internal/models"
	"eduvia/internal/redis"
)

const (
	// MaxFeed is the largest page List returns.
	MaxFeed = 20

	DefaultAuthorName = "Anonymous Scholar"
	DefaultCategory   = "General"

	feedKeyPrefix = "community:feed:"
)

var ErrNotFound = errors.New("post not found")

// NewPost is a post submission.
type NewPost struct {
	Title      string
	Content    string
	Category   string
	AuthorID   string
	AuthorName string
}

// Service handles board persistence.
type Service struct {
	db     *sql.DB
	cache  *redis.Client
	logger *slog.Logger
}

// NewService builds a community service. cacheClient may be nil.
func NewService(db *sql.DB, cacheClient *redis.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, cache: cacheClient, logger: logger}
}

// List returns up to limit posts, newest first. limit is clamped to
// [1, MaxFeed].
func (s *Service) List(ctx context.Context, limit int) ([]models.Post, error) {
	if limit <= 0 || limit > MaxFeed {
		limit = MaxFeed
	}
	key := feedKeyPrefix + strconv.Itoa(limit)
	if s.cache != nil {
		var cached []models.Post
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "feed cache load failed", slog.Any("error", err))
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, category, author_id, author_name, likes, created_at
		 FROM posts ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0, limit)
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Category, &p.AuthorID, &p.AuthorName, &p.Likes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, posts); err != nil {
			s.logger.WarnContext(ctx, "feed cache store failed", slog.Any("error", err))
		}
	}
	return posts, nil
}

// Create stores a new post with zero likes.
func (s *Service) Create(ctx context.Context, in NewPost) (*models.Post, error) {
	p := models.Post{
		Title:      strings.TrimSpace(in.Title),
		Content:    strings.TrimSpace(in.Content),
		Category:   strings.TrimSpace(in.Category),
		AuthorID:   strings.TrimSpace(in.AuthorID),
		AuthorName: strings.TrimSpace(in.AuthorName),
		CreatedAt:  time.Now().UTC(),
	}
	if p.Title == "" || p.Content == "" {
		return nil, errors.New("title and content are required")
	}
	if p.AuthorID == "" {
		return nil, errors.New("authorId is required")
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if p.AuthorName == "" {
		p.AuthorName = DefaultAuthorName
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (title, content, category, author_id, author_name, likes, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		p.Title, p.Content, p.Category, p.AuthorID, p.AuthorName, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("post id: %w", err)
	}
	s.invalidateFeed(ctx)
	return &p, nil
}

// Like increments the like counter and returns the new count.
func (s *Service) Like(ctx context.Context, id int64) (int64, error) {
	if id <= 0 {
		return 0, ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET likes = likes + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("like post: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return 0, ErrNotFound
	}
	s.invalidateFeed(ctx)

	var likes int64
	if err := s.db.QueryRowContext(ctx, `SELECT likes FROM posts WHERE id = ?`, id).Scan(&likes); err != nil {
		return 0, fmt.Errorf("read likes: %w", err)
	}
	return likes, nil
}

func (s *Service) invalidateFeed(ctx context.Context) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, MaxFeed)
	for i := 1; i <= MaxFeed; i++ {
		keys = append(keys, feedKeyPrefix+strconv.Itoa(i))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.logger.WarnContext(ctx, "feed cache invalidate failed", slog.Any("error", err))
	}
}
