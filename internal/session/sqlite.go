package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS legacy_sessions (
	token      TEXT PRIMARY KEY,
	cookie     TEXT NOT NULL,
	csrf       TEXT NOT NULL,
	created_at INTEGER NOT NULL
)`

// SQLiteStore persists sessions so they survive a gateway restart.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time

	stopCh chan struct{}
}

// NewSQLiteStore opens (or creates) the database at path.
// ttl <= 0 keeps entries until cleared.
func NewSQLiteStore(path string, ttl, cleanupInterval time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite session store: path is required")
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	// single writer; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		ttl:    ttl,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	if ttl > 0 {
		if cleanupInterval <= 0 {
			cleanupInterval = defaultCleanupInterval
		}
		go s.cleanupLoop(cleanupInterval)
	}
	return s, nil
}

// Set stores or replaces the entry for token.
func (s *SQLiteStore) Set(ctx context.Context, token, cookieHeader, csrfToken string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO legacy_sessions (token, cookie, csrf, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			cookie = excluded.cookie,
			csrf = excluded.csrf,
			created_at = excluded.created_at`,
		token, cookieHeader, csrfToken, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Get returns the entry for token if present and not expired.
func (s *SQLiteStore) Get(ctx context.Context, token string) (Entry, bool, error) {
	var (
		entry     = Entry{BearerToken: token}
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT cookie, csrf, created_at FROM legacy_sessions WHERE token = ?`, token,
	).Scan(&entry.CookieHeader, &entry.CSRFToken, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("load session: %w", err)
	}
	entry.CreatedAt = time.Unix(0, createdAt)
	if expired(entry.CreatedAt, s.ttl, s.now()) {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Clear removes the entry for token.
func (s *SQLiteStore) Clear(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM legacy_sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Len returns the number of stored rows. Errors are logged and reported as 0.
func (s *SQLiteStore) Len() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM legacy_sessions`).Scan(&n); err != nil {
		log.Warn().Err(err).Msg("session store: count failed")
		return 0
	}
	return n
}

// Purge deletes expired rows and returns how many were removed.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.ttl).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM legacy_sessions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the cleanup goroutine and closes the database.
func (s *SQLiteStore) Close() error {
	select {
	case <-s.stopCh:
		return nil
	default:
		close(s.stopCh)
	}
	return s.db.Close()
}

func (s *SQLiteStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if n, err := s.Purge(context.Background()); err != nil {
				log.Warn().Err(err).Msg("session store: purge failed")
			} else if n > 0 {
				log.Debug().Int64("removed", n).Msg("session store: purged expired sessions")
			}
		}
	}
}
