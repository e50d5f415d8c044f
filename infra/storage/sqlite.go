package storage

import (
	"database/sql"
	"fmt"

	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps slots in a single table. Apply is one transaction.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS slots (
			key   BLOB PRIMARY KEY,
			value BLOB NOT NULL
		) WITHOUT ROWID;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create slots table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(k state.Key) (state.Slot, error) {
	var out state.Slot
	var val []byte
	err := s.db.QueryRow("SELECT value FROM slots WHERE key = ?", k[:]).Scan(&val)
	if err == sql.ErrNoRows {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	copy(out[:], val)
	return out, nil
}

func (s *SQLiteStore) Apply(w map[state.Key]state.Slot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	put, err := tx.Prepare("INSERT OR REPLACE INTO slots (key, value) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer put.Close()
	del, err := tx.Prepare("DELETE FROM slots WHERE key = ?")
	if err != nil {
		return err
	}
	defer del.Close()

	for k, v := range w {
		if v.IsZero() {
			_, err = del.Exec(k[:])
		} else {
			_, err = put.Exec(k[:], v[:])
		}
		if err != nil {
			return fmt.Errorf("storage: write slot %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Iterate(fn func(state.Key, state.Slot) error) error {
	rows, err := s.db.Query("SELECT key, value FROM slots ORDER BY key")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var kb, vb []byte
		if err := rows.Scan(&kb, &vb); err != nil {
			return err
		}
		var k state.Key
		var v state.Slot
		copy(k[:], kb)
		copy(v[:], vb)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
