// Package profile stores user profiles and their coin balances.
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eduvia/internal/models"
	"eduvia/internal/redis"
)

// CoinsPerMessage is awarded for every chat message sent with a user id.
const CoinsPerMessage = 5

var (
	ErrNotFound      = errors.New("profile not found")
	ErrInvalidUID    = errors.New("uid is required")
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrInvalidSetup  = errors.New("university and field of study are required")
)

// Identity is what the identity provider knows about a user.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// Setup is the academic profile submitted by the setup wizard.
type Setup struct {
	DisplayName  string
	University   string
	FieldOfStudy string
	Degree       string
	// Interests is a comma separated list.
	Interests string
}

// Service handles profile persistence.
type Service struct {
	db     *sql.DB
	cache  *profileCache
	logger *slog.Logger
}

// NewService builds a profile service. cacheClient may be nil.
func NewService(db *sql.DB, cacheClient *redis.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		cache:  newProfileCache(cacheClient, logger),
		logger: logger,
	}
}

const profileColumns = `uid, email, display_name, photo_url, eduvia_coins, is_premium, setup_completed, academic_profile, created_at, updated_at`

// Get returns the profile for uid.
func (s *Service) Get(ctx context.Context, uid string) (*models.Profile, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, ErrInvalidUID
	}
	if p, ok := s.cache.load(ctx, uid); ok {
		return p, nil
	}
	p, err := s.query(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.cache.store(ctx, p)
	return p, nil
}

func (s *Service) query(ctx context.Context, uid string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE uid = ?`, uid)
	var (
		p        models.Profile
		academic sql.NullString
	)
	if err := row.Scan(&p.UID, &p.Email, &p.DisplayName, &p.PhotoURL, &p.EduviaCoins,
		&p.IsPremium, &p.SetupCompleted, &academic, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	if academic.Valid && academic.String != "" {
		var ap models.AcademicProfile
		if err := json.Unmarshal([]byte(academic.String), &ap); err != nil {
			return nil, fmt.Errorf("decode academic profile: %w", err)
		}
		p.AcademicProfile = &ap
	}
	return &p, nil
}

// Ensure returns the stored profile for id.UID, creating it with a zero
// balance when it does not exist yet. created reports whether it was new.
func (s *Service) Ensure(ctx context.Context, id Identity) (p *models.Profile, created bool, err error) {
	uid := strings.TrimSpace(id.UID)
	if uid == "" {
		return nil, false, ErrInvalidUID
	}
	existing, err := s.query(ctx, uid)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (uid, email, display_name, photo_url, eduvia_coins, is_premium, setup_completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, 0, 0, ?, ?)`,
		uid, strings.TrimSpace(id.Email), strings.TrimSpace(id.DisplayName), strings.TrimSpace(id.PhotoURL), now, now,
	)
	if err != nil {
		// Lost a race with a concurrent create.
		if again, qerr := s.query(ctx, uid); qerr == nil {
			return again, false, nil
		}
		return nil, false, fmt.Errorf("create profile: %w", err)
	}
	s.cache.invalidate(ctx, uid)
	p, err = s.query(ctx, uid)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// CompleteSetup stores the academic profile and marks setup as done.
func (s *Service) CompleteSetup(ctx context.Context, uid string, setup Setup) (*models.Profile, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, ErrInvalidUID
	}
	ap := models.AcademicProfile{
		University:   strings.TrimSpace(setup.University),
		FieldOfStudy: strings.TrimSpace(setup.FieldOfStudy),
		Degree:       strings.TrimSpace(setup.Degree),
		Interests:    splitInterests(setup.Interests),
	}
	if ap.University == "" || ap.FieldOfStudy == "" {
		return nil, ErrInvalidSetup
	}
	data, err := json.Marshal(ap)
	if err != nil {
		return nil, fmt.Errorf("encode academic profile: %w", err)
	}

	query := `UPDATE profiles SET academic_profile = ?, setup_completed = 1, updated_at = ? WHERE uid = ?`
	args := []interface{}{string(data), time.Now().UTC(), uid}
	if name := strings.TrimSpace(setup.DisplayName); name != "" {
		query = `UPDATE profiles SET display_name = ?, academic_profile = ?, setup_completed = 1, updated_at = ? WHERE uid = ?`
		args = append([]interface{}{name}, args...)
	}
	if err := s.execOne(ctx, "complete setup", query, args...); err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx, uid)
	return s.Get(ctx, uid)
}

// IncrementCoins adds amount to the balance as a single field update and
// returns the new balance.
func (s *Service) IncrementCoins(ctx context.Context, uid string, amount int64) (int64, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return 0, ErrInvalidUID
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if err := s.execOne(ctx, "increment coins",
		`UPDATE profiles SET eduvia_coins = eduvia_coins + ?, updated_at = ? WHERE uid = ?`,
		amount, time.Now().UTC(), uid,
	); err != nil {
		return 0, err
	}
	s.cache.invalidate(ctx, uid)

	var balance int64
	if err := s.db.QueryRowContext(ctx, `SELECT eduvia_coins FROM profiles WHERE uid = ?`, uid).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// AwardMessage grants CoinsPerMessage. Failures are logged, never returned.
func (s *Service) AwardMessage(ctx context.Context, uid string) {
	balance, err := s.IncrementCoins(ctx, uid, CoinsPerMessage)
	if err != nil {
		s.logger.WarnContext(ctx, "award coins failed", slog.String("uid", uid), slog.Any("error", err))
		return
	}
	s.logger.DebugContext(ctx, "coins awarded", slog.String("uid", uid), slog.Int64("balance", balance))
}

func (s *Service) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func splitInterests(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
