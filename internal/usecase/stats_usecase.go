package usecase

import (
	"context"
	"fmt"

	"reply-orchestrator/internal/domain"
)

// EngineStats is the operational snapshot the stats operation returns.
type EngineStats struct {
	Documents      map[domain.SourceType]int
	Chunks         map[domain.SourceType]int
	EmbeddedChunks int
	Pools          int
	PoolEntries    int
	PendingJobs    int
}

type StatsUsecase interface {
	Collect(ctx context.Context) (*EngineStats, error)
}

type statsUsecase struct {
	docRepo  domain.DocumentRepository
	poolRepo domain.PoolRepository
	jobRepo  domain.IngestJobRepository
}

func NewStatsUsecase(docRepo domain.DocumentRepository, poolRepo domain.PoolRepository, jobRepo domain.IngestJobRepository) StatsUsecase {
	return &statsUsecase{docRepo: docRepo, poolRepo: poolRepo, jobRepo: jobRepo}
}

func (u *statsUsecase) Collect(ctx context.Context) (*EngineStats, error) {
	corpus, err := u.docRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect corpus stats: %w", err)
	}
	pools, entries, err := u.poolRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect pool stats: %w", err)
	}
	pending, err := u.jobRepo.PendingCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending jobs: %w", err)
	}

	return &EngineStats{
		Documents:      corpus.Documents,
		Chunks:         corpus.Chunks,
		EmbeddedChunks: corpus.Embedded,
		Pools:          pools,
		PoolEntries:    entries,
		PendingJobs:    pending,
	}, nil
}
