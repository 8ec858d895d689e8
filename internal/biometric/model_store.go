package biometric

import "sync/atomic"

// ModelStore holds the active subspace model. Readers get an immutable
// snapshot; a published model stays valid for readers that still hold it.
type ModelStore struct {
	current atomic.Pointer[SubspaceModel]
	version atomic.Uint64
}

// Load returns the active model, or nil when uninitialized.
func (s *ModelStore) Load() *SubspaceModel {
	return s.current.Load()
}

// Publish assigns the next version to m and makes it active.
func (s *ModelStore) Publish(m *SubspaceModel) uint64 {
	m.Version = s.version.Add(1)
	s.current.Store(m)
	return m.Version
}

// Reset marks the model as uninitialized.
func (s *ModelStore) Reset() {
	s.current.Store(nil)
}
