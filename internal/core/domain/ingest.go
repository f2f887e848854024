package domain

// OutcomeStatus is the result of ingesting one document.
type OutcomeStatus string

// Ingestion outcomes.
const (
	OutcomeIndexed OutcomeStatus = "indexed"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeRemoved OutcomeStatus = "removed"
)

// DocumentOutcome reports what happened to one document.
type DocumentOutcome struct {
	Document string
	Status   OutcomeStatus
	Chunks   int
	Oversize int

	// Reason explains a skip or failure.
	Reason string
}

// IngestReport summarises one ingestion run.
type IngestReport struct {
	Outcomes []DocumentOutcome
}

// Add records an outcome.
func (r *IngestReport) Add(o DocumentOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Count returns the number of outcomes with status s.
func (r *IngestReport) Count(s OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Chunks returns the total number of chunks indexed.
func (r *IngestReport) Chunks() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Chunks
	}
	return n
}

// OversizeChunks returns the number of chunks flagged oversize.
func (r *IngestReport) OversizeChunks() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Oversize
	}
	return n
}
