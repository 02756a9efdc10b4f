package snapshot

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkeye/Venue/internal/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// SQLiteStore keeps the latest record of each room in one row.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	state, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO room_snapshots (room, background, brightness, state, saved_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(room) DO UPDATE SET
		   background = excluded.background,
		   brightness = excluded.brightness,
		   state = excluded.state,
		   saved_at = excluded.saved_at`,
		string(rec.Room),
		rec.Settings.Background,
		rec.Settings.Brightness,
		string(state),
		rec.SavedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", rec.Room, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, room domain.RoomName) (Record, bool, error) {
	var (
		state   string
		savedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, saved_at FROM room_snapshots WHERE room = ?`, string(room),
	).Scan(&state, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load snapshot %s: %w", room, err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(state), &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode snapshot %s: %w", room, err)
	}
	rec.SavedAt = time.UnixMilli(savedAt).UTC()
	return rec, true, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
