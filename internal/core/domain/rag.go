package domain

import "time"

// RAGState is a state of the query orchestrator.
type RAGState string

// Orchestrator states. Answered and Failed are terminal.
const (
	StateRetrieving RAGState = "RETRIEVING"
	StateAssembling RAGState = "ASSEMBLING"
	StateGenerating RAGState = "GENERATING"
	StateAnswered   RAGState = "ANSWERED"
	StateFailed     RAGState = "FAILED"
)

// IsTerminal returns true for Answered and Failed.
func (s RAGState) IsTerminal() bool {
	return s == StateAnswered || s == StateFailed
}

// Stage names the part of the query pipeline that failed.
type Stage string

// Query pipeline stages.
const (
	StageRetrieval  Stage = "retrieval"
	StageAssembly   Stage = "assembly"
	StageGeneration Stage = "generation"
)

// NoContextAnswer is returned without calling the generator when retrieval
// finds nothing.
const NoContextAnswer = "I couldn't find any relevant information in the knowledge base to answer your question."

// QueryRequest is one question put to the orchestrator.
type QueryRequest struct {
	Question string
	TopK     int
	Filter   MetadataFilter

	// TokenBudget is the total prompt budget. Zero uses the configured one.
	TokenBudget int

	// MaxTokens bounds the generated answer. Zero uses the configured one.
	MaxTokens int

	// Temperature is passed to the generator. Nil uses the configured one.
	Temperature *float64
}

// Answer is the outcome of a query. It is returned for failed queries too,
// carrying whatever partial results exist.
type Answer struct {
	Question string

	// Text is the generated answer, NoContextAnswer, or empty on failure.
	Text string

	State RAGState

	// FailedStage is set when State is StateFailed.
	FailedStage Stage

	// NoContext is set when retrieval returned nothing.
	NoContext bool

	Citations []Citation
	Bundle    *ContextBundle
	Results   []SearchResult
}

// Turn is one question and answer in a conversation.
type Turn struct {
	Question  string
	Answer    string
	Citations []Citation
	At        time.Time
}

// Conversation holds the prior turns of a chat session. It is owned by the
// caller and passed into each query.
type Conversation struct {
	ID    string
	Turns []Turn

	// MaxTurns bounds the history sent to the generator. Zero means 5.
	MaxTurns int
}

// DefaultConversationTurns is the history window when MaxTurns is zero.
const DefaultConversationTurns = 5

// NewConversation creates an empty conversation.
func NewConversation(id string) *Conversation {
	return &Conversation{ID: id, MaxTurns: DefaultConversationTurns}
}

// Append records a completed turn.
func (c *Conversation) Append(t Turn) {
	c.Turns = append(c.Turns, t)
}

// Recent returns at most MaxTurns of the latest turns, oldest first.
func (c *Conversation) Recent() []Turn {
	if c == nil {
		return nil
	}
	limit := c.MaxTurns
	if limit <= 0 {
		limit = DefaultConversationTurns
	}
	if len(c.Turns) <= limit {
		return c.Turns
	}
	return c.Turns[len(c.Turns)-limit:]
}

// Reset clears the history.
func (c *Conversation) Reset() {
	c.Turns = nil
}

// LastCitations returns the citations of the latest turn.
func (c *Conversation) LastCitations() []Citation {
	if c == nil || len(c.Turns) == 0 {
		return nil
	}
	return c.Turns[len(c.Turns)-1].Citations
}
