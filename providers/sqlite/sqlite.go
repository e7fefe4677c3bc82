// Package sqlitestore keeps encoded binx frames in a SQLite table.
//
// Each row holds one frame, the wire name of its top-level type and a BLAKE2b-256
// checksum that is verified on every read.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"

	"github.com/hengadev/binx"
)

var (
	ErrFrameNotFound    = errors.New("frame not found")
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
)

const schema = `
	CREATE TABLE IF NOT EXISTS binx_frames (
		id TEXT PRIMARY KEY,
		type_name TEXT NOT NULL,
		payload BLOB NOT NULL,
		checksum BLOB NOT NULL,
		size INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_binx_frames_type ON binx_frames(type_name);
`

// Config holds configuration for the SQLite frame store.
type Config struct {
	// Path of the database file. Empty or ":memory:" opens a private in-memory database.
	Path string

	// CodecOptions are passed to binx when encoding and decoding frames.
	CodecOptions []binx.Option

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// FrameInfo describes a stored frame without decoding it.
type FrameInfo struct {
	ID        string
	TypeName  string
	Size      int
	CreatedAt time.Time
}

// FrameStore persists frames in SQLite.
type FrameStore struct {
	db     *sql.DB
	opts   []binx.Option
	logger *slog.Logger
	owned  bool
}

// Open opens (or creates) the database described by cfg and initialises the schema.
func Open(ctx context.Context, cfg Config) (*FrameStore, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at '%s': %w", path, err)
	}
	if path == ":memory:" {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database connection test failed for '%s': %w", path, err)
	}

	s, err := New(ctx, db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an existing database handle. The caller keeps ownership of db.
func New(ctx context.Context, db *sql.DB, cfg Config) (*FrameStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil database", binx.ErrInvalidConfiguration)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create frame schema: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameStore{
		db:     db,
		opts:   cfg.CodecOptions,
		logger: logger.With("provider", "sqlite"),
	}, nil
}

// Close releases the database if the store opened it.
func (s *FrameStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Put encodes v and stores it under a new ID.
func (s *FrameStore) Put(ctx context.Context, v any) (string, error) {
	id := uuid.NewString()
	if err := s.PutID(ctx, id, v); err != nil {
		return "", err
	}
	return id, nil
}

// PutID encodes v and stores it under id, replacing an existing frame.
func (s *FrameStore) PutID(ctx context.Context, id string, v any) error {
	if id == "" {
		return fmt.Errorf("%w: empty frame id", binx.ErrInvalidConfiguration)
	}
	data, err := binx.Marshal(v, s.opts...)
	if err != nil {
		return err
	}
	sum := blake2b.Sum256(data)

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO binx_frames (id, type_name, payload, checksum, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, topLevelName(v), data, sum[:], len(data), time.Now().UTC())
	if err != nil {
		return &binx.ResourceError{Op: "insert frame " + id, Err: err}
	}
	s.logger.Debug("frame stored", "id", id, "bytes", len(data))
	return nil
}

// Get loads the frame stored under id, verifies its checksum and decodes it.
func (s *FrameStore) Get(ctx context.Context, id string) (any, error) {
	data, err := s.GetRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	return binx.Unmarshal(data, s.opts...)
}

// GetRaw returns the verified frame bytes stored under id.
func (s *FrameStore) GetRaw(ctx context.Context, id string) ([]byte, error) {
	var data, checksum []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, checksum FROM binx_frames WHERE id = ?
	`, id).Scan(&data, &checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, id)
	}
	if err != nil {
		return nil, &binx.ResourceError{Op: "select frame " + id, Err: err}
	}

	sum := blake2b.Sum256(data)
	if string(sum[:]) != string(checksum) {
		s.logger.Warn("frame checksum mismatch", "id", id)
		return nil, &binx.ParseError{Detail: "frame " + id, Err: ErrChecksumMismatch}
	}
	return data, nil
}

// Delete removes the frame stored under id.
func (s *FrameStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM binx_frames WHERE id = ?`, id)
	if err != nil {
		return &binx.ResourceError{Op: "delete frame " + id, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &binx.ResourceError{Op: "delete frame " + id, Err: err}
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrFrameNotFound, id)
	}
	return nil
}

// List describes the stored frames in insertion order. A non-empty typeName restricts
// the result to frames whose top-level value has that wire name.
func (s *FrameStore) List(ctx context.Context, typeName string) ([]FrameInfo, error) {
	query := `SELECT id, type_name, size, created_at FROM binx_frames`
	var args []any
	if typeName != "" {
		query += ` WHERE type_name = ?`
		args = append(args, typeName)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &binx.ResourceError{Op: "list frames", Err: err}
	}
	defer rows.Close()

	var frames []FrameInfo
	for rows.Next() {
		var fi FrameInfo
		if err := rows.Scan(&fi.ID, &fi.TypeName, &fi.Size, &fi.CreatedAt); err != nil {
			return nil, &binx.ResourceError{Op: "list frames", Err: err}
		}
		frames = append(frames, fi)
	}
	if err := rows.Err(); err != nil {
		return nil, &binx.ResourceError{Op: "list frames", Err: err}
	}
	return frames, nil
}

// topLevelName is the wire name of v's type, or "" for null and unnamed values.
// A top-level pointer frame decodes to the registered form, so it is listed under
// the bare name.
func topLevelName(v any) string {
	if v == nil {
		return ""
	}
	name, _ := binx.TypeName(reflect.TypeOf(v))
	return strings.TrimPrefix(name, "*")
}
