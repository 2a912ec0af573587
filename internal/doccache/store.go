package doccache

import (
	"context"

	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/source"
)

// Entry is one persisted cache entry.
type Entry struct {
	Path        string
	Fingerprint source.Fingerprint
	Doc         *parser.Document
}

// Store persists cache entries between runs.
type Store interface {
	// Load returns the persisted entries, most recently used first.
	Load(ctx context.Context) ([]Entry, error)

	// Save replaces the persisted entries. entries are ordered most
	// recently used first.
	Save(ctx context.Context, entries []Entry) error

	// Clear removes every persisted entry.
	Clear(ctx context.Context) error

	// Close releases the store.
	Close() error
}
