package store

import (
	"sync"

	"github.com/jardins/ghlsync/internal/errors"
	"github.com/jardins/ghlsync/internal/models"
)

// MemoryStore is an in-memory TokenStore for tests and dry runs.
// It mimics the file store's behavior, including the not-found error
// before anything has been saved.
type MemoryStore struct {
	mu        sync.RWMutex
	token     *models.AgencyToken
	locations []models.Location
	hasLocs   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LoadAgencyToken returns the stored agency token.
func (s *MemoryStore) LoadAgencyToken() (*models.AgencyToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil, &errors.ErrStateNotFound{Path: "memory:agency_token"}
	}
	copied := *s.token
	return &copied, nil
}

// SaveAgencyToken replaces the stored agency token.
func (s *MemoryStore) SaveAgencyToken(token *models.AgencyToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *token
	s.token = &copied
	return nil
}

// LoadLocations returns the stored locations sequence.
func (s *MemoryStore) LoadLocations() ([]models.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasLocs {
		return nil, &errors.ErrStateNotFound{Path: "memory:locations"}
	}
	out := make([]models.Location, len(s.locations))
	copy(out, s.locations)
	return out, nil
}

// SaveLocations replaces the stored locations sequence.
func (s *MemoryStore) SaveLocations(locations []models.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations = make([]models.Location, len(locations))
	copy(s.locations, locations)
	s.hasLocs = true
	return nil
}

var _ TokenStore = (*MemoryStore)(nil)
