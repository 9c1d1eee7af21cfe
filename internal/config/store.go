package config

import "sync/atomic"

// Store holds the active settings. Readers always see a complete snapshot;
// Reload builds a fresh Settings and swaps it in.
type Store struct {
	path    string
	current atomic.Pointer[Settings]
}

// NewStore loads settings from path and returns a store holding them
func NewStore(path string) (*Store, error) {
	settings, err := Load(path)
	if err != nil {
		return nil, err
	}

	s := &Store{path: path}
	s.current.Store(settings)
	return s, nil
}

// NewStaticStore wraps already loaded settings. Reload re-reads path.
func NewStaticStore(settings *Settings, path string) *Store {
	s := &Store{path: path}
	s.current.Store(settings)
	return s
}

// Get returns the active settings. Callers must not mutate them.
func (s *Store) Get() *Settings {
	return s.current.Load()
}

// Reload re-reads the configuration. On error the active settings stay in
// place.
func (s *Store) Reload() (*Settings, error) {
	settings, err := Load(s.path)
	if err != nil {
		return nil, err
	}

	s.current.Store(settings)
	return settings, nil
}
