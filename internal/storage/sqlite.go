package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tubewatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the sqlite-backed store, creating the database file and
// schema if needed.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Playlists(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT playlist_id FROM subscriptions ORDER BY playlist_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CountPlaylists(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT playlist_id) FROM subscriptions`).Scan(&n)
	return n, err
}

func (s *sqliteStore) Subscriptions(ctx context.Context, playlistID string) ([]Subscription, error) {
	return s.querySubs(ctx,
		`SELECT playlist_id, chat_id, cursor_ms, live_allowed, vod_allowed, shorts_allowed
		 FROM subscriptions WHERE playlist_id = ? ORDER BY chat_id`,
		playlistID)
}

func (s *sqliteStore) SubscribersBehind(ctx context.Context, playlistID string, publishedAt time.Time) ([]Subscription, error) {
	return s.querySubs(ctx,
		`SELECT playlist_id, chat_id, cursor_ms, live_allowed, vod_allowed, shorts_allowed
		 FROM subscriptions WHERE playlist_id = ? AND cursor_ms < ? ORDER BY chat_id`,
		playlistID, publishedAt.UnixMilli())
}

func (s *sqliteStore) querySubs(ctx context.Context, query string, args ...any) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var (
			sub               Subscription
			cursorMS          int64
			live, vod, shorts int
		)
		if err := rows.Scan(&sub.PlaylistID, &sub.ChatID, &cursorMS, &live, &vod, &shorts); err != nil {
			return nil, err
		}
		sub.Cursor = time.UnixMilli(cursorMS).UTC()
		sub.Filters = Filters{
			LiveAllowed:   live != 0,
			VODAllowed:    vod != 0,
			ShortsAllowed: shorts != 0,
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Add(ctx context.Context, playlistID string, chatID int64) error {
	f := DefaultFilters()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (playlist_id, chat_id, cursor_ms, live_allowed, vod_allowed, shorts_allowed)
		 VALUES (?,?,?,?,?,?)`,
		playlistID, chatID, 0, boolInt(f.LiveAllowed), boolInt(f.VODAllowed), boolInt(f.ShortsAllowed),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return ErrDuplicate
	}
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, playlistID string, chatID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE playlist_id = ? AND chat_id = ?`,
		playlistID, chatID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) SetFilters(ctx context.Context, playlistID string, chatID int64, f Filters) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET live_allowed = ?, vod_allowed = ?, shorts_allowed = ?
		 WHERE playlist_id = ? AND chat_id = ?`,
		boolInt(f.LiveAllowed), boolInt(f.VODAllowed), boolInt(f.ShortsAllowed), playlistID, chatID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceCursor moves the cursor forward, never backward: the guard in the
// WHERE clause makes stale updates a no-op so the monotonicity invariant holds
// even if items are ever replayed out of order.
func (s *sqliteStore) AdvanceCursor(ctx context.Context, playlistID string, chatID int64, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET cursor_ms = ?
		 WHERE playlist_id = ? AND chat_id = ? AND cursor_ms < ?`,
		ts.UnixMilli(), playlistID, chatID, ts.UnixMilli(),
	)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
