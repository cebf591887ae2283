package service

import (
	"context"
	"fmt"

	"spacehub/internal/client"
	"spacehub/internal/models"

	"github.com/rs/zerolog"
)

// spacesCacheKey is the Redis key for the cached spaces list.
const spacesCacheKey = "spaces:list"

type SpaceService struct {
	client *client.Client
	logger *zerolog.Logger
}

func NewSpaceService(c *client.Client, logger *zerolog.Logger) *SpaceService {
	return &SpaceService{client: c, logger: logger}
}

// List is read-mostly; responses are served from the Redis cache when it is
// configured on the client.
func (s *SpaceService) List(ctx context.Context, userID int64) ([]models.Space, error) {
	var spaces []models.Space
	if err := s.client.GetCached(ctx, userID, "/spaces/", spacesCacheKey, &spaces); err != nil {
		return nil, err
	}
	return spaces, nil
}

func (s *SpaceService) Get(ctx context.Context, userID, spaceID int64) (*models.Space, error) {
	var space models.Space
	if err := s.client.Get(ctx, userID, fmt.Sprintf("/spaces/%d/", spaceID), &space); err != nil {
		return nil, err
	}
	return &space, nil
}

func (s *SpaceService) Create(ctx context.Context, userID int64, space *models.Space) (*models.Space, error) {
	var created models.Space
	if err := s.client.Post(ctx, userID, "/spaces/", space, &created); err != nil {
		return nil, err
	}
	s.client.InvalidateCache(ctx, spacesCacheKey)
	return &created, nil
}

func (s *SpaceService) Update(ctx context.Context, userID, spaceID int64, patch map[string]interface{}) (*models.Space, error) {
	var updated models.Space
	if err := s.client.Patch(ctx, userID, fmt.Sprintf("/spaces/%d/", spaceID), patch, &updated); err != nil {
		return nil, err
	}
	s.client.InvalidateCache(ctx, spacesCacheKey)
	return &updated, nil
}

func (s *SpaceService) Delete(ctx context.Context, userID, spaceID int64) error {
	if err := s.client.Delete(ctx, userID, fmt.Sprintf("/spaces/%d/", spaceID)); err != nil {
		return err
	}
	s.client.InvalidateCache(ctx, spacesCacheKey)
	return nil
}
