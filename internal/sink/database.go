package sink

import (
	"context"

	"lpr-pipeline/internal/domain/plate"
	"lpr-pipeline/internal/repository"
)

// Database stores finalized read events in Postgres.
type Database struct {
	repo *repository.ReadEventRepository
}

func NewDatabase(repo *repository.ReadEventRepository) *Database {
	return &Database{repo: repo}
}

func (s *Database) Persist(ctx context.Context, ev *plate.ReadEvent) error {
	return s.repo.CreateReadEvent(ctx, ev)
}
