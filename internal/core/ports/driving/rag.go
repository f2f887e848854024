package driving

import (
	"context"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// RAGService answers questions from indexed documentation.
type RAGService interface {
	// Ask runs retrieval, context assembly and generation.
	//
	// The returned Answer is never nil. When err is non-nil it is a
	// *domain.StageError and the Answer carries the failed stage together
	// with whatever results, bundle and citations were produced.
	// conv may be nil. A successful turn is appended to it.
	Ask(ctx context.Context, req domain.QueryRequest, conv *domain.Conversation) (*domain.Answer, error)
}
