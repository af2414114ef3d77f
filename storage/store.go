// Package storage holds the now-playing state shared between the tracker,
// which writes it, and the HTTP bridge, which serves it. State is a single
// JSON document addressed with gjson paths.
package storage

import "context"

// Update is sent to listeners whenever a path is written.
type Update struct {
	Path  string
	Value []byte
}

type Store interface {
	Set(ctx context.Context, path string, value interface{}) error
	SetMany(ctx context.Context, values map[string]interface{}) error
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error

	Restore(values []byte) error
	Backup() ([]byte, error)

	ListenToUpdates() <-chan *Update

	Close() error
}
