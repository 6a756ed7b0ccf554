// Package sqlstore backs store.PreKeyStore and store.SignedPreKeyStore
// with SQLite, one row per key id in a prekeys/signed_prekeys table
// pair.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ratchetproto/signalcore/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS prekeys (
	key_id INTEGER PRIMARY KEY,
	public BLOB NOT NULL,
	private BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS signed_prekeys (
	key_id INTEGER PRIMARY KEY,
	public BLOB NOT NULL,
	private BLOB NOT NULL,
	signature BLOB NOT NULL
);
`

// Store is a store.PreKeyStore and store.SignedPreKeyStore backed by
// a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite3 serializes writers; avoid lock contention
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutPreKey inserts or replaces a one-time prekey row. Provisioning is
// out of SessionBuilder's scope; callers populate the table ahead of
// publishing the corresponding bundle.
func (s *Store) PutPreKey(ctx context.Context, pk *store.PreKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO prekeys (key_id, public, private) VALUES (?, ?, ?)`,
		pk.ID, pk.KeyPair.Public[:], pk.KeyPair.Private[:])
	if err != nil {
		return fmt.Errorf("sqlstore: put prekey %d: %w", pk.ID, err)
	}
	return nil
}

// LoadPreKey returns nil, nil if id has never been stored or has
// already been consumed.
func (s *Store) LoadPreKey(ctx context.Context, id uint32) (*store.PreKey, error) {
	var pub, priv []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT public, private FROM prekeys WHERE key_id = ?`, id).Scan(&pub, &priv)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: load prekey %d: %w", id, err)
	}
	pk := &store.PreKey{ID: id}
	copy(pk.KeyPair.Public[:], pub)
	copy(pk.KeyPair.Private[:], priv)
	return pk, nil
}

// RemovePreKey deletes the one-time prekey row; a missing row is not
// an error, matching the "consume once" semantics the caller expects.
func (s *Store) RemovePreKey(ctx context.Context, id uint32) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM prekeys WHERE key_id = ?`, id); err != nil {
		return fmt.Errorf("sqlstore: remove prekey %d: %w", id, err)
	}
	return nil
}

// PutSignedPreKey inserts or replaces the signed prekey row.
func (s *Store) PutSignedPreKey(ctx context.Context, spk *store.SignedPreKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO signed_prekeys (key_id, public, private, signature) VALUES (?, ?, ?, ?)`,
		spk.ID, spk.KeyPair.Public[:], spk.KeyPair.Private[:], spk.Signature[:])
	if err != nil {
		return fmt.Errorf("sqlstore: put signed prekey %d: %w", spk.ID, err)
	}
	return nil
}

// LoadSignedPreKey returns nil, nil if id has never been stored.
func (s *Store) LoadSignedPreKey(ctx context.Context, id uint32) (*store.SignedPreKey, error) {
	var pub, priv, sig []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT public, private, signature FROM signed_prekeys WHERE key_id = ?`, id).Scan(&pub, &priv, &sig)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: load signed prekey %d: %w", id, err)
	}
	spk := &store.SignedPreKey{ID: id}
	copy(spk.KeyPair.Public[:], pub)
	copy(spk.KeyPair.Private[:], priv)
	copy(spk.Signature[:], sig)
	return spk, nil
}
