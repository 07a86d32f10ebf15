package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"AndroidUISpy/pkg/types"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ========================================
// SnapshotStore - SQLite dump 快照存储
// ========================================

// Snapshot kinds.
const (
	KindWindow   = "window"
	KindActivity = "activity"
	KindUI       = "ui"
)

// Snapshot is one stored dump.
type Snapshot struct {
	types.SnapshotInfo
	Raw string
}

// ErrSnapshotNotFound is returned by Get and Latest.
var ErrSnapshotNotFound = errors.New("snapshot not found")

const snapshotSchemaSQL = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS snapshots (
    id TEXT PRIMARY KEY,
    device_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    codec TEXT NOT NULL,
    data BLOB NOT NULL,
    raw_size INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_device_kind ON snapshots(device_id, kind, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_time ON snapshots(created_at);
`

// SnapshotStore persists compressed dumps so they can be replayed later.
type SnapshotStore struct {
	db     *sql.DB
	dbPath string
	codec  string

	stmtInsert *sql.Stmt
}

// NewSnapshotStore opens (creating if needed) snapshots.db in dataDir.
func NewSnapshotStore(dataDir, codec string) (*SnapshotStore, error) {
	if _, err := encodeSnapshot(codec, nil); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "snapshots.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite 单写入
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(snapshotSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	stmt, err := db.Prepare(`INSERT INTO snapshots (id, device_id, kind, codec, data, raw_size, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare insert snapshot: %w", err)
	}
	return &SnapshotStore{db: db, dbPath: dbPath, codec: codec, stmtInsert: stmt}, nil
}

// Path returns the database file path.
func (s *SnapshotStore) Path() string { return s.dbPath }

// Save compresses and stores a dump, returning its description.
func (s *SnapshotStore) Save(deviceID, kind, raw string) (types.SnapshotInfo, error) {
	data, err := encodeSnapshot(s.codec, []byte(raw))
	if err != nil {
		return types.SnapshotInfo{}, err
	}
	info := types.SnapshotInfo{
		ID:        uuid.New().String(),
		DeviceID:  deviceID,
		Kind:      kind,
		Codec:     s.codec,
		RawSize:   len(raw),
		Size:      len(data),
		CreatedAt: time.Now().UnixMilli(),
	}
	if info.Codec == "" {
		info.Codec = CodecNone
	}
	if _, err := s.stmtInsert.Exec(info.ID, info.DeviceID, info.Kind, info.Codec, data, info.RawSize, info.CreatedAt); err != nil {
		return types.SnapshotInfo{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return info, nil
}

// Get loads and decompresses one snapshot.
func (s *SnapshotStore) Get(id string) (*Snapshot, error) {
	row := s.db.QueryRow(`SELECT id, device_id, kind, codec, data, raw_size, created_at FROM snapshots WHERE id = ?`, id)
	return scanSnapshot(row)
}

// Latest returns the newest snapshot of a kind for a device.
func (s *SnapshotStore) Latest(deviceID, kind string) (*Snapshot, error) {
	row := s.db.QueryRow(`SELECT id, device_id, kind, codec, data, raw_size, created_at FROM snapshots
		WHERE device_id = ? AND kind = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, deviceID, kind)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var (
		snap Snapshot
		data []byte
	)
	err := row.Scan(&snap.ID, &snap.DeviceID, &snap.Kind, &snap.Codec, &data, &snap.RawSize, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	raw, err := decodeSnapshot(snap.Codec, data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
	}
	snap.Size = len(data)
	snap.Raw = string(raw)
	return &snap, nil
}

// List returns snapshot descriptions, newest first. Empty deviceID or kind
// match everything; limit <= 0 means no limit.
func (s *SnapshotStore) List(deviceID, kind string, limit int) ([]types.SnapshotInfo, error) {
	query := `SELECT id, device_id, kind, codec, length(data), raw_size, created_at FROM snapshots
		WHERE (? = '' OR device_id = ?) AND (? = '' OR kind = ?)
		ORDER BY created_at DESC, rowid DESC`
	args := []interface{}{deviceID, deviceID, kind, kind}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []types.SnapshotInfo
	for rows.Next() {
		var info types.SnapshotInfo
		if err := rows.Scan(&info.ID, &info.DeviceID, &info.Kind, &info.Codec, &info.Size, &info.RawSize, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes one snapshot.
func (s *SnapshotStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

// Prune deletes snapshots older than maxAge and returns how many went.
func (s *SnapshotStore) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := s.db.Exec(`DELETE FROM snapshots WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database.
func (s *SnapshotStore) Close() error {
	if s.stmtInsert != nil {
		s.stmtInsert.Close()
	}
	return s.db.Close()
}
