package storage

import (
	"errors"

	"github.com/cuemby/felt/pkg/types"
)

// ErrNotFound is returned when a checkpoint does not exist
var ErrNotFound = errors.New("session checkpoint not found")

// Store defines the interface for session checkpoint storage.
// It satisfies session.Store.
type Store interface {
	SaveSession(rec types.SessionRecord) error
	GetSession(code string) (types.SessionRecord, error)
	ListSessions() ([]types.SessionRecord, error)
	DeleteSession(code string) error

	// Utility
	Close() error
}
