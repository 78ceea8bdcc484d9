// Package prefs stores per-user notification preferences and answers the
// single question the fanout path asks: should this user be notified
// right now for this category and priority?
package prefs

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// criticalPriority is the only priority admitted through quiet hours and
// critical-only escalation.
const criticalPriority = "critical"

// QuietWindow is a daily do-not-disturb window in minutes of day. Windows
// may wrap past midnight (Start > End).
type QuietWindow struct {
	StartMinute int `json:"startMinute"`
	EndMinute   int `json:"endMinute"`
}

// Contains reports whether the minute-of-day t falls inside the window.
func (q QuietWindow) Contains(t int) bool {
	if q.StartMinute > q.EndMinute {
		return t >= q.StartMinute || t <= q.EndMinute
	}
	return t >= q.StartMinute && t <= q.EndMinute
}

// Preference is one user's notification preference record. A user with
// no record is notified unconditionally.
type Preference struct {
	AllowedCategories []string     `json:"allowedCategories"` // empty = allow all
	QuietHours        *QuietWindow `json:"quietHours,omitempty"`
	CriticalOnly      bool         `json:"criticalOnly"`
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store persists preferences in SQLite.
type Store struct {
	db    *sql.DB
	clock Clock
}

// Open opens (or creates) the preference database in dataDir and runs
// pending migrations. Pass ":memory:" as dataDir for an in-memory
// database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "castellan.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db, clock: realClock{}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// SetClock replaces the store's clock (for testing quiet hours).
func (s *Store) SetClock(clock Clock) {
	s.clock = clock
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection, used by health checks.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
	}
	return nil
}

// Set saves a user's preference record, replacing any existing one.
func (s *Store) Set(userID string, p Preference) error {
	categories, err := json.Marshal(p.AllowedCategories)
	if err != nil {
		return fmt.Errorf("marshalling categories: %w", err)
	}

	var quietStart, quietEnd any
	if p.QuietHours != nil {
		quietStart = p.QuietHours.StartMinute
		quietEnd = p.QuietHours.EndMinute
	}

	_, err = s.db.Exec(`INSERT INTO user_preferences
		(user_id, allowed_categories, quiet_start, quiet_end, critical_only, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			allowed_categories = excluded.allowed_categories,
			quiet_start = excluded.quiet_start,
			quiet_end = excluded.quiet_end,
			critical_only = excluded.critical_only,
			updated_at = CURRENT_TIMESTAMP`,
		userID, string(categories), quietStart, quietEnd, boolToInt(p.CriticalOnly))
	if err != nil {
		return fmt.Errorf("saving preference for %s: %w", userID, err)
	}
	return nil
}

// Get returns a user's preference record, reporting absence via the
// second return value.
func (s *Store) Get(userID string) (Preference, bool, error) {
	var (
		categoriesJSON string
		quietStart     sql.NullInt64
		quietEnd       sql.NullInt64
		criticalOnly   int
	)
	err := s.db.QueryRow(`SELECT allowed_categories, quiet_start, quiet_end, critical_only
		FROM user_preferences WHERE user_id = ?`, userID).
		Scan(&categoriesJSON, &quietStart, &quietEnd, &criticalOnly)
	if err == sql.ErrNoRows {
		return Preference{}, false, nil
	}
	if err != nil {
		return Preference{}, false, fmt.Errorf("loading preference for %s: %w", userID, err)
	}

	var p Preference
	if err := json.Unmarshal([]byte(categoriesJSON), &p.AllowedCategories); err != nil {
		return Preference{}, false, fmt.Errorf("parsing categories for %s: %w", userID, err)
	}
	if quietStart.Valid && quietEnd.Valid {
		p.QuietHours = &QuietWindow{
			StartMinute: int(quietStart.Int64),
			EndMinute:   int(quietEnd.Int64),
		}
	}
	p.CriticalOnly = criticalOnly != 0
	return p, true, nil
}

// ShouldNotify decides whether a notification of the given category and
// priority may be delivered to the user right now. A user without a
// record is always notified. Checks are ANDed: quiet hours (critical
// passes), category filter, then critical-only escalation; the first
// rejection wins.
func (s *Store) ShouldNotify(userID, category, priority string) (bool, error) {
	p, found, err := s.Get(userID)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}

	if p.QuietHours != nil {
		now := s.clock.Now()
		minute := now.Hour()*60 + now.Minute()
		if p.QuietHours.Contains(minute) && priority != criticalPriority {
			return false, nil
		}
	}

	if len(p.AllowedCategories) > 0 && !contains(p.AllowedCategories, category) {
		return false, nil
	}

	if p.CriticalOnly && priority != criticalPriority {
		return false, nil
	}

	return true, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
