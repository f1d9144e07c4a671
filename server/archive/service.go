package archive

import (
	"context"
	"errors"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

var ErrNotFound = errors.New("archive entry not found")

type Service struct {
	repository *Repository
}

func NewService(r *Repository) *Service {
	return &Service{repository: r}
}

func (s *Service) Archive(ctx context.Context, e *Entity) error {
	return s.repository.Archive(ctx, e)
}

// List clamps limit to (0, MaxPageSize], defaulting to DefaultPageSize.
func (s *Service) List(ctx context.Context, cursor int64, limit int) (*PaginatedResponse, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	data, next, err := s.repository.List(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}
	return &PaginatedResponse{Data: data, Cursor: next}, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repository.Delete(ctx, id)
}
