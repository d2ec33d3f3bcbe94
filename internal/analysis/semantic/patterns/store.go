package patterns

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Store holds the active registry and swaps it atomically on reload.
// Analyses that already fetched a registry keep using it; a failed reload
// leaves the previous rules in place.
type Store struct {
	current atomic.Pointer[Registry]
	logger  *zap.Logger
}

// NewStore wraps an initial registry.
func NewStore(reg *Registry, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger.Named("patterns")}
	s.current.Store(reg)
	return s
}

// Load returns the active registry.
func (s *Store) Load() *Registry {
	return s.current.Load()
}

// Reload composes a new registry and installs it if every file is valid.
func (s *Store) Reload(includeBuiltin bool, files ...string) error {
	next, err := Compose(includeBuiltin, files...)
	if err != nil {
		s.logger.Error("Rule reload failed, keeping previous rules.", zap.Strings("files", files), zap.Error(err))
		return err
	}
	prev := s.current.Swap(next)
	prevLen := 0
	if prev != nil {
		prevLen = prev.Len()
	}
	s.logger.Info("Rules reloaded.", zap.Int("previous", prevLen), zap.Int("current", next.Len()))
	return nil
}
