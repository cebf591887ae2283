package collection

import (
	"context"
	"sync"

	"spacehub/internal/domain"
	"spacehub/internal/models"

	"github.com/rs/zerolog"
)

// SpaceSnapshot is the render state for the shared spaces collection.
type SpaceSnapshot struct {
	Spaces  []models.Space
	Loading bool
	Error   string
}

// SpaceStore binds the remote spaces collection to local render state. The
// collection is shared across users (spaces are not user-scoped); admin
// mutations are fire-and-refetch, never optimistic.
type SpaceStore struct {
	svc    domain.SpaceService
	logger *zerolog.Logger

	mu      sync.Mutex
	spaces  []models.Space
	loading bool
	errMsg  string
}

func NewSpaceStore(svc domain.SpaceService, logger *zerolog.Logger) *SpaceStore {
	return &SpaceStore{svc: svc, logger: logger}
}

func (s *SpaceStore) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	s.errMsg = ""
}

func (s *SpaceStore) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.errMsg = errorMessage(err)
	}
}

// FetchAll replaces the whole local collection on success.
func (s *SpaceStore) FetchAll(ctx context.Context, userID int64) ([]models.Space, error) {
	s.begin()
	spaces, err := s.svc.List(ctx, userID)
	if err == nil {
		s.mu.Lock()
		s.spaces = spaces
		s.mu.Unlock()
	}
	s.finish(err)
	return spaces, err
}

// Find returns a space from the local collection, or nil when absent.
func (s *SpaceStore) Find(spaceID int64) *models.Space {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.spaces {
		if s.spaces[i].ID == spaceID {
			space := s.spaces[i]
			return &space
		}
	}
	return nil
}

func (s *SpaceStore) Create(ctx context.Context, userID int64, space *models.Space) (*models.Space, error) {
	s.begin()
	created, err := s.svc.Create(ctx, userID, space)
	s.finish(err)
	if err != nil {
		return nil, err
	}
	s.refetch(ctx, userID)
	return created, nil
}

func (s *SpaceStore) Update(ctx context.Context, userID, spaceID int64, patch map[string]interface{}) (*models.Space, error) {
	s.begin()
	updated, err := s.svc.Update(ctx, userID, spaceID, patch)
	s.finish(err)
	if err != nil {
		return nil, err
	}
	s.refetch(ctx, userID)
	return updated, nil
}

func (s *SpaceStore) Delete(ctx context.Context, userID, spaceID int64) error {
	s.begin()
	err := s.svc.Delete(ctx, userID, spaceID)
	s.finish(err)
	if err != nil {
		return err
	}
	s.refetch(ctx, userID)
	return nil
}

func (s *SpaceStore) refetch(ctx context.Context, userID int64) {
	if _, err := s.FetchAll(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Msg("re-fetch spaces after mutation failed")
	}
}

// Snapshot returns a copy of the render state.
func (s *SpaceStore) Snapshot() SpaceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SpaceSnapshot{
		Spaces:  append([]models.Space(nil), s.spaces...),
		Loading: s.loading,
		Error:   s.errMsg,
	}
}
