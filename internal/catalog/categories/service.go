package categories

import (
	"context"
	"database/sql"
	"strings"

	"LIBRIS-backend/internal/platform/apperr"
)

type Service struct {
	store *Store
}

func NewService(d *sql.DB) *Service {
	return &Service{store: NewStore(d)}
}

func (s *Service) Create(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.ErrInvalid("name is required")
	}
	c := &Category{Name: name}
	if err := s.store.Insert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.store.List(ctx)
}

func (s *Service) Delete(ctx context.Context, name string) error {
	return s.store.DeleteByName(ctx, strings.TrimSpace(name))
}
