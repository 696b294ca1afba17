// README: DB-backed store tests, gated on RALLY_TEST_DSN.
package match

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rally/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("RALLY_TEST_DSN")
	if dsn == "" {
		t.Skip("RALLY_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	if _, err := db.Exec(ctx, "TRUNCATE TABLE play_requests"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return NewStore(db)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

func TestStore_CreateResolveRoundtrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	r := &Request{
		ID:           "req-1",
		FromID:       "alice",
		ToID:         "bob",
		Game:         "tennis",
		ProposedTime: "6pm",
		Message:      "Up for a game of tennis at 6pm?",
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := s.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.Resolve(ctx, r.ID, StatusSent, nil, time.Now().UTC()); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusSent {
		t.Errorf("status = %s, want sent", got.Status)
	}
	if got.ResolvedAt == nil {
		t.Error("resolved_at not set")
	}
	if got.FromID != "alice" || got.ToID != "bob" || got.Game != "tennis" {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestStore_ResolveOnlyFromPending(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	r := &Request{
		ID: "req-2", FromID: "alice", ToID: "bob", Game: "tennis",
		Status: StatusPending, CreatedAt: time.Now().UTC(),
	}
	if err := s.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	reason := "fcm unreachable"
	if err := s.Resolve(ctx, r.ID, StatusFailed, &reason, time.Now().UTC()); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	// A second resolution must not overwrite the terminal status.
	if err := s.Resolve(ctx, r.ID, StatusSent, nil, time.Now().UTC()); err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("status = %s, want failed (terminal)", got.Status)
	}
	if got.FailReason == nil || *got.FailReason != reason {
		t.Errorf("fail reason = %v, want %q", got.FailReason, reason)
	}
}

func TestStore_GetUnknown(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.Get(context.Background(), types.ID("missing")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
