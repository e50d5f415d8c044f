// Package storage holds the durable backends behind state.Buffer.
//
// Every backend stores the same thing: 32-byte slots under 32-byte keys.
// Zero slots are never stored; writing one deletes the key, so a backend
// only holds live state and a missing key reads as zero.
package storage

import (
	"fmt"

	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
)

// Iterable is a backend that can list its slots in key order. Snapshots and
// diagnostics need it; the engine does not.
type Iterable interface {
	state.Backend
	Iterate(fn func(state.Key, state.Slot) error) error
}

// Backend is what the service runs on.
type Backend interface {
	Iterable
	Close() error
}

type Kind string

const (
	KindMemory Kind = "memory"
	KindPebble Kind = "pebble"
	KindSQLite Kind = "sqlite"
)

type Config struct {
	Kind Kind   `yaml:"kind"`
	Path string `yaml:"path"`
}

// Open builds the backend named by cfg.Kind.
func Open(cfg Config) (Backend, error) {
	switch cfg.Kind {
	case KindMemory, "":
		return NewMemStore(), nil
	case KindPebble:
		return OpenPebble(cfg.Path)
	case KindSQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Kind)
	}
}

// Durable reports whether the backend survives a restart without replay.
func Durable(k Kind) bool {
	return k == KindPebble || k == KindSQLite
}
