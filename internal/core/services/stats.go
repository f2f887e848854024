package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driving"
)

// Ensure StatsService implements the interface.
var _ driving.StatsService = (*StatsService)(nil)

// StatsService reports index contents.
type StatsService struct {
	index driven.VectorIndex
}

// NewStatsService creates a stats service over index.
func NewStatsService(index driven.VectorIndex) *StatsService {
	return &StatsService{index: index}
}

// Stats returns index statistics.
func (s *StatsService) Stats(ctx context.Context) (domain.IndexStats, error) {
	if s.index == nil {
		return domain.IndexStats{}, domain.ErrVectorIndexUnavailable
	}
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("index stats: %w", err)
	}
	return stats, nil
}
