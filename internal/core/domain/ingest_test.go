package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestReport_Counts(t *testing.T) {
	var report IngestReport
	report.Add(DocumentOutcome{Document: "r:a", Status: OutcomeIndexed, Chunks: 3, Oversize: 1})
	report.Add(DocumentOutcome{Document: "r:b", Status: OutcomeIndexed, Chunks: 2})
	report.Add(DocumentOutcome{Document: "r:c", Status: OutcomeSkipped, Reason: "empty document"})
	report.Add(DocumentOutcome{Document: "r:d", Status: OutcomeFailed, Reason: "embedding"})

	assert.Equal(t, 2, report.Count(OutcomeIndexed))
	assert.Equal(t, 1, report.Count(OutcomeSkipped))
	assert.Equal(t, 1, report.Count(OutcomeFailed))
	assert.Equal(t, 0, report.Count(OutcomeRemoved))
	assert.Equal(t, 5, report.Chunks())
	assert.Equal(t, 1, report.OversizeChunks())
}
