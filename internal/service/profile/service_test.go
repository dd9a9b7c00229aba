package profile

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"

	"eduvia/internal/config"
	"eduvia/internal/redis"
	"eduvia/internal/storage"
)

func TestEnsureCreatesOnce(t *testing.T) {
	svc := NewService(openTestDB(t), nil, nil)
	ctx := context.Background()

	p, created, err := svc.Ensure(ctx, Identity{UID: "u1", Email: "ada@example.com", DisplayName: "Ada"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !created || p.EduviaCoins != 0 || p.SetupCompleted || p.IsPremium {
		t.Fatalf("unexpected new profile %+v (created=%v)", p, created)
	}

	p, created, err = svc.Ensure(ctx, Identity{UID: "u1", DisplayName: "Other"})
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if created || p.DisplayName != "Ada" {
		t.Fatalf("existing profile should be returned unchanged: %+v", p)
	}
}

func TestGetMissingProfile(t *testing.T) {
	svc := NewService(openTestDB(t), nil, nil)
	if _, err := svc.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(context.Background(), " "); !errors.Is(err, ErrInvalidUID) {
		t.Fatalf("expected ErrInvalidUID, got %v", err)
	}
}

func TestCompleteSetup(t *testing.T) {
	svc := NewService(openTestDB(t), nil, nil)
	ctx := context.Background()
	mustEnsure(t, svc, "u1")

	p, err := svc.CompleteSetup(ctx, "u1", Setup{
		DisplayName:  "Dr. Ada",
		University:   "Sorbonne",
		FieldOfStudy: "Physics",
		Degree:       "PhD",
		Interests:    "optics, , quantum ",
	})
	if err != nil {
		t.Fatalf("complete setup: %v", err)
	}
	if !p.SetupCompleted || p.DisplayName != "Dr. Ada" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if p.AcademicProfile == nil || p.AcademicProfile.University != "Sorbonne" {
		t.Fatalf("academic profile not stored: %+v", p.AcademicProfile)
	}
	if got := p.AcademicProfile.Interests; len(got) != 2 || got[0] != "optics" || got[1] != "quantum" {
		t.Fatalf("unexpected interests %q", got)
	}

	if _, err := svc.CompleteSetup(ctx, "ghost", Setup{University: "x", FieldOfStudy: "y"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.CompleteSetup(ctx, "u1", Setup{}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestIncrementCoinsIsAtomic(t *testing.T) {
	svc := NewService(openTestDB(t), nil, nil)
	ctx := context.Background()
	mustEnsure(t, svc, "u1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.IncrementCoins(ctx, "u1", CoinsPerMessage); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	p, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.EduviaCoins != 100 {
		t.Fatalf("expected 100 coins, got %d", p.EduviaCoins)
	}
}

func TestIncrementCoinsValidation(t *testing.T) {
	svc := NewService(openTestDB(t), nil, nil)
	ctx := context.Background()
	if _, err := svc.IncrementCoins(ctx, "u1", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.IncrementCoins(ctx, "ghost", 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Best-effort award on a missing profile must not panic.
	svc.AwardMessage(ctx, "ghost")
}

func TestCachedProfileIsInvalidatedOnWrite(t *testing.T) {
	client := newTestRedis(t)
	svc := NewService(openTestDB(t), client, nil)
	ctx := context.Background()
	mustEnsure(t, svc, "cached")

	if _, err := svc.Get(ctx, "cached"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, err := svc.IncrementCoins(ctx, "cached", 7); err != nil {
		t.Fatalf("increment: %v", err)
	}
	p, err := svc.Get(ctx, "cached")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.EduviaCoins != 7 {
		t.Fatalf("stale cache: %d coins", p.EduviaCoins)
	}
}

func mustEnsure(t *testing.T, svc *Service, uid string) {
	t.Helper()
	if _, _, err := svc.Ensure(context.Background(), Identity{UID: uid}); err != nil {
		t.Fatalf("ensure %s: %v", uid, err)
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

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed profile tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	client, err := redis.NewRedisClient(&config.Config{Redis: config.RedisConfig{Host: host, Port: port, TTLSeconds: 60}})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Del(context.Background(), profileKey("cached"))
		client.Close()
	})
	return client
}
