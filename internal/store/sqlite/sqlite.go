// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Guffawaffle/majel/internal/store"
	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at dbPath and initialises the
// fleet, proposal, and settings tables.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, majelerr.Wrapf(err, majelerr.CodeStoreDatabaseFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, majelerr.Wrapf(err, majelerr.CodeStoreDatabaseFailure, "pinging sqlite db")
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, majelerr.Wrapf(err, majelerr.CodeStoreDatabaseFailure, "migrating sqlite db")
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS officers (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	rarity       TEXT NOT NULL DEFAULT '',
	level        INTEGER NOT NULL DEFAULT 0,
	target_level INTEGER NOT NULL DEFAULT 0,
	ship_id      TEXT NOT NULL DEFAULT '',
	updated_at   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS ships (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL,
	tier  INTEGER NOT NULL DEFAULT 0,
	power INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS docks (
	id      INTEGER PRIMARY KEY,
	ship_id TEXT NOT NULL DEFAULT '',
	note    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS proposals (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	args_hash  TEXT NOT NULL,
	items      TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_proposals_user ON proposals(user_id, expires_at);

CREATE TABLE IF NOT EXISTS trust_settings (
	tool_name TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	level     TEXT NOT NULL,
	PRIMARY KEY (tool_name, user_id)
);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutOfficer inserts or replaces a roster entry.
func (s *Store) PutOfficer(ctx context.Context, o *store.Officer) error {
	const q = `INSERT OR REPLACE INTO officers (id, name, rarity, level, target_level, ship_id, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q, o.ID, o.Name, o.Rarity, o.Level, o.TargetLevel, o.ShipID, o.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "upserting officer")
}

// PutShip inserts or replaces a ship.
func (s *Store) PutShip(ctx context.Context, ship *store.Ship) error {
	const q = `INSERT OR REPLACE INTO ships (id, name, tier, power) VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q, ship.ID, ship.Name, ship.Tier, ship.Power)
	return majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "upserting ship")
}

// PutDock inserts or replaces a dock slot.
func (s *Store) PutDock(ctx context.Context, d *store.Dock) error {
	const q = `INSERT OR REPLACE INTO docks (id, ship_id, note) VALUES (?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q, d.ID, d.ShipID, d.Note)
	return majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "upserting dock")
}

func (s *Store) GetOfficer(ctx context.Context, id string) (*store.Officer, error) {
	const q = `SELECT id, name, rarity, level, target_level, ship_id, updated_at FROM officers WHERE id = ?`

	return scanOfficer(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) SearchOfficers(ctx context.Context, query string) ([]*store.Officer, error) {
	const q = `SELECT id, name, rarity, level, target_level, ship_id, updated_at
FROM officers WHERE name LIKE '%' || ? || '%' COLLATE NOCASE ORDER BY name`

	rows, err := s.db.QueryContext(ctx, q, query)
	if err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "searching officers")
	}
	defer rows.Close()

	return collectOfficers(rows)
}

func (s *Store) ListOfficers(ctx context.Context) ([]*store.Officer, error) {
	const q = `SELECT id, name, rarity, level, target_level, ship_id, updated_at FROM officers ORDER BY name`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "listing officers")
	}
	defer rows.Close()

	return collectOfficers(rows)
}

func (s *Store) AssignOfficer(ctx context.Context, officerID, shipID string) error {
	if _, err := s.GetShip(ctx, shipID); err != nil {
		return err
	}

	const q = `UPDATE officers SET ship_id = ?, updated_at = ? WHERE id = ?`

	res, err := s.db.ExecContext(ctx, q, shipID, time.Now().UTC().Format(time.RFC3339Nano), officerID)
	if err != nil {
		return majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "assigning officer")
	}
	return requireRow(res, "officer not found")
}

func (s *Store) SetOfficerTarget(ctx context.Context, officerID string, targetLevel int) error {
	if targetLevel <= 0 {
		return majelerr.New(majelerr.CodeStoreInvalidInput, "target level must be positive")
	}

	const q = `UPDATE officers SET target_level = ?, updated_at = ? WHERE id = ?`

	res, err := s.db.ExecContext(ctx, q, targetLevel, time.Now().UTC().Format(time.RFC3339Nano), officerID)
	if err != nil {
		return majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "setting officer target")
	}
	return requireRow(res, "officer not found")
}

func (s *Store) GetShip(ctx context.Context, id string) (*store.Ship, error) {
	const q = `SELECT id, name, tier, power FROM ships WHERE id = ?`

	var ship store.Ship
	err := s.db.QueryRowContext(ctx, q, id).Scan(&ship.ID, &ship.Name, &ship.Tier, &ship.Power)
	if err == sql.ErrNoRows {
		return nil, majelerr.New(majelerr.CodeStoreNotFound, "ship not found", majelerr.Field("ship_id", id))
	}
	if err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "getting ship")
	}
	return &ship, nil
}

func (s *Store) ListShips(ctx context.Context) ([]*store.Ship, error) {
	const q = `SELECT id, name, tier, power FROM ships ORDER BY name`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "listing ships")
	}
	defer rows.Close()

	var out []*store.Ship
	for rows.Next() {
		var ship store.Ship
		if err := rows.Scan(&ship.ID, &ship.Name, &ship.Tier, &ship.Power); err != nil {
			return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "scanning ship")
		}
		out = append(out, &ship)
	}
	return out, rows.Err()
}

func (s *Store) GetDock(ctx context.Context, id int) (*store.Dock, error) {
	const q = `SELECT id, ship_id, note FROM docks WHERE id = ?`

	var d store.Dock
	err := s.db.QueryRowContext(ctx, q, id).Scan(&d.ID, &d.ShipID, &d.Note)
	if err == sql.ErrNoRows {
		return nil, majelerr.New(majelerr.CodeStoreNotFound, "dock not found", majelerr.Field("dock_id", id))
	}
	if err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "getting dock")
	}
	return &d, nil
}

func (s *Store) ListDocks(ctx context.Context) ([]*store.Dock, error) {
	const q = `SELECT id, ship_id, note FROM docks ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "listing docks")
	}
	defer rows.Close()

	var out []*store.Dock
	for rows.Next() {
		var d store.Dock
		if err := rows.Scan(&d.ID, &d.ShipID, &d.Note); err != nil {
			return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "scanning dock")
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (s *Store) SetDockShip(ctx context.Context, dockID int, shipID string) error {
	if _, err := s.GetShip(ctx, shipID); err != nil {
		return err
	}

	const q = `UPDATE docks SET ship_id = ? WHERE id = ?`

	res, err := s.db.ExecContext(ctx, q, shipID, dockID)
	if err != nil {
		return majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "setting dock ship")
	}
	return requireRow(res, "dock not found")
}

func (s *Store) CreateProposal(ctx context.Context, p *store.Proposal) (*store.Proposal, error) {
	if p.ID == "" || p.UserID == "" {
		return nil, majelerr.New(majelerr.CodeStoreInvalidInput, "proposal id and user id are required")
	}

	items, err := json.Marshal(p.Items)
	if err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreInvalidInput, "marshalling proposal items")
	}

	const q = `INSERT INTO proposals (id, user_id, args_hash, items, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, q,
		p.ID,
		p.UserID,
		p.ArgsHash,
		string(items),
		p.CreatedAt.UTC().Format(time.RFC3339Nano),
		p.ExpiresAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "inserting proposal")
	}

	out := *p
	return &out, nil
}

// GetProposal retrieves a stored proposal by id.
func (s *Store) GetProposal(ctx context.Context, id string) (*store.Proposal, error) {
	const q = `SELECT id, user_id, args_hash, items, created_at, expires_at FROM proposals WHERE id = ?`

	var p store.Proposal
	var items, createdAt, expiresAt string
	err := s.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.UserID, &p.ArgsHash, &items, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, majelerr.New(majelerr.CodeStoreNotFound, "proposal not found", majelerr.Field("proposal_id", id))
	}
	if err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "getting proposal")
	}

	if err := json.Unmarshal([]byte(items), &p.Items); err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "unmarshalling proposal items")
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "parsing proposal created_at")
	}
	if p.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "parsing proposal expires_at")
	}

	return &p, nil
}

func (s *Store) TrustLevel(ctx context.Context, toolName, userID string) (string, error) {
	const q = `SELECT level FROM trust_settings WHERE tool_name = ? AND user_id = ?`

	var level string
	err := s.db.QueryRowContext(ctx, q, toolName, userID).Scan(&level)
	if err == sql.ErrNoRows {
		return "", majelerr.New(majelerr.CodeStoreNotFound, "no trust level configured",
			majelerr.FieldTool(toolName), majelerr.FieldUserID(userID))
	}
	if err != nil {
		return "", majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "getting trust level")
	}
	return level, nil
}

func (s *Store) SetTrustLevel(ctx context.Context, toolName, userID, level string) error {
	switch level {
	case store.TrustAuto, store.TrustApprove, store.TrustBlock:
	default:
		return majelerr.New(majelerr.CodeStoreInvalidInput, "unknown trust level", majelerr.Field("level", level))
	}

	const q = `INSERT OR REPLACE INTO trust_settings (tool_name, user_id, level) VALUES (?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q, toolName, userID, level)
	return majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "setting trust level")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOfficer(row rowScanner) (*store.Officer, error) {
	var o store.Officer
	var updatedAt string
	err := row.Scan(&o.ID, &o.Name, &o.Rarity, &o.Level, &o.TargetLevel, &o.ShipID, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, majelerr.New(majelerr.CodeStoreNotFound, "officer not found")
	}
	if err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "scanning officer")
	}

	if updatedAt != "" {
		if t, perr := time.Parse(time.RFC3339Nano, updatedAt); perr == nil {
			o.UpdatedAt = t
		}
	}
	return &o, nil
}

func collectOfficers(rows *sql.Rows) ([]*store.Officer, error) {
	var out []*store.Officer
	for rows.Next() {
		o, err := scanOfficer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return majelerr.Wrap(err, majelerr.CodeStoreDatabaseFailure, "checking rows affected")
	}
	if n == 0 {
		return majelerr.New(majelerr.CodeStoreNotFound, msg)
	}
	return nil
}
