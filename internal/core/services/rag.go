package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driving"
	"github.com/custodia-labs/devrag-cli/internal/logger"
	"github.com/custodia-labs/devrag-cli/internal/metrics"
)

// Ensure RAGService implements the interface.
var _ driving.RAGService = (*RAGService)(nil)

// fallbackUserPrompt is used without a prompt store.
const fallbackUserPrompt = "Context:\n\n%s\n\nQuestion: %s"

// RAGService answers questions by retrieval, context assembly and
// generation. It holds no per-query state; chat history is passed in.
type RAGService struct {
	search    driving.SearchService
	assembler *ContextAssembler
	llm       driven.LLMService
	prompts   driven.PromptStore

	topK         int
	tokenBudget  int
	answerTokens int
	temperature  float64

	retry   RetryPolicy
	metrics *metrics.Metrics
}

// RAGOption configures a RAGService.
type RAGOption func(*RAGService)

// WithRAGDefaults applies configured retrieval, budget and generation
// defaults used when a request leaves them unset.
func WithRAGDefaults(s domain.AppSettings) RAGOption {
	return func(r *RAGService) {
		r.topK = s.Retrieval.TopK
		r.tokenBudget = s.Context.TokenBudget
		r.answerTokens = s.Context.AnswerTokens
		if s.LLM.MaxTokens > 0 {
			r.answerTokens = s.LLM.MaxTokens
		}
		r.temperature = s.LLM.Temperature
	}
}

// WithGenerationRetry sets the retry policy for generation calls.
func WithGenerationRetry(p RetryPolicy) RAGOption {
	return func(r *RAGService) {
		r.retry = p
	}
}

// WithRAGMetrics records stage durations and query outcomes.
func WithRAGMetrics(m *metrics.Metrics) RAGOption {
	return func(r *RAGService) {
		r.metrics = m
	}
}

// NewRAGService creates an orchestrator. llm and prompts may be nil:
// without llm every query that finds context fails at generation, and
// without prompts a minimal built-in template is used.
func NewRAGService(
	search driving.SearchService,
	llm driven.LLMService,
	prompts driven.PromptStore,
	opts ...RAGOption,
) *RAGService {
	r := &RAGService{
		search:    search,
		assembler: NewContextAssembler(),
		llm:       llm,
		prompts:   prompts,
		retry:     NewRetryPolicy("generation", domain.DefaultAppSettings().Retry),
	}
	WithRAGDefaults(domain.DefaultAppSettings())(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ask runs one question through the pipeline.
func (r *RAGService) Ask(ctx context.Context, req domain.QueryRequest, conv *domain.Conversation) (*domain.Answer, error) {
	logger.Section("RAG Query")
	defer logger.Timed("query")()

	question := strings.TrimSpace(req.Question)
	ans := &domain.Answer{Question: question, State: domain.StateRetrieving}

	topK := req.TopK
	if topK <= 0 {
		topK = r.topK
	}

	results, err := r.retrieve(ctx, retrievalQuery(question, conv), domain.SearchOptions{TopK: topK, Filter: req.Filter})
	if err != nil {
		return r.fail(ans, domain.StageRetrieval, err)
	}
	ans.Results = results

	if len(results) == 0 {
		logger.Info("No relevant context found, skipping generation")
		ans.Text = domain.NoContextAnswer
		ans.NoContext = true
		return r.answered(ans, conv), nil
	}

	ans.State = domain.StateAssembling
	if err := ctx.Err(); err != nil {
		return r.fail(ans, domain.StageAssembly, err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = r.answerTokens
	}
	budget := req.TokenBudget
	if budget <= 0 {
		budget = r.tokenBudget
	}

	system, template := r.loadPrompts()
	plan, err := planBudget(budget,
		domain.EstimateTokens(system)+domain.EstimateTokens(template)+domain.EstimateTokens(question),
		maxTokens, historyMessages(conv))
	if err != nil {
		return r.fail(ans, domain.StageAssembly, err)
	}
	history, maxTokens := plan.history, plan.answerTokens
	logger.Debug("Token budget %d: context %d, answer %d, %d history messages", budget, plan.context, maxTokens, len(history))

	stageStart := time.Now()
	bundle, err := r.assembler.Assemble(results, plan.context)
	r.metrics.ObserveStage(string(domain.StageAssembly), time.Since(stageStart))
	if err != nil {
		return r.fail(ans, domain.StageAssembly, err)
	}
	ans.Bundle = bundle
	ans.Citations = bundle.Citations()
	r.metrics.ContextTokens(bundle.Tokens)

	ans.State = domain.StateGenerating
	if r.llm == nil {
		return r.fail(ans, domain.StageGeneration, domain.ErrLLMUnavailable)
	}

	messages := make([]driven.ChatMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, driven.ChatMessage{Role: driven.RoleSystem, Content: system})
	}
	messages = append(messages, history...)
	messages = append(messages, driven.ChatMessage{
		Role:    driven.RoleUser,
		Content: r.assembler.BuildPrompt(template, bundle, question),
	})

	temperature := r.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	opts := driven.ChatOptions{MaxTokens: maxTokens, Temperature: temperature}

	stageStart = time.Now()
	text, err := DoValue(ctx, r.retry, func(ctx context.Context) (string, error) {
		return r.llm.Chat(ctx, messages, opts)
	})
	r.metrics.ObserveStage(string(domain.StageGeneration), time.Since(stageStart))
	if err != nil {
		return r.fail(ans, domain.StageGeneration, err)
	}

	ans.Text = strings.TrimSpace(text)
	return r.answered(ans, conv), nil
}

func (r *RAGService) retrieve(ctx context.Context, question string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.search == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	return r.search.Search(ctx, question, opts)
}

func (r *RAGService) answered(ans *domain.Answer, conv *domain.Conversation) *domain.Answer {
	ans.State = domain.StateAnswered
	r.metrics.Query(string(ans.State))
	if conv != nil {
		conv.Append(domain.Turn{
			Question:  ans.Question,
			Answer:    ans.Text,
			Citations: ans.Citations,
			At:        time.Now(),
		})
	}
	logger.Info("Answered with %d citations", len(ans.Citations))
	return ans
}

// fail moves ans to the failed state, keeping any partial results.
func (r *RAGService) fail(ans *domain.Answer, stage domain.Stage, err error) (*domain.Answer, error) {
	ans.State = domain.StateFailed
	ans.FailedStage = stage
	ans.Text = ""
	r.metrics.Query(string(ans.State))
	logger.Warn("Query failed during %s: %v", stage, err)
	return ans, &domain.StageError{Stage: stage, Err: err}
}

func (r *RAGService) loadPrompts() (system, user string) {
	user = fallbackUserPrompt
	if r.prompts == nil {
		return "", user
	}
	if p, err := r.prompts.Load(driven.PromptAnswerSystem); err == nil {
		system = p
	} else {
		logger.Warn("Load %s prompt: %v", driven.PromptAnswerSystem, err)
	}
	if p, err := r.prompts.Load(driven.PromptAnswerUser); err == nil && strings.Count(p, "%s") == 2 {
		user = p
	} else if err != nil {
		logger.Warn("Load %s prompt: %v", driven.PromptAnswerUser, err)
	}
	return system, user
}

// Context is never squeezed below minContextTokens, and the answer
// reserve never below minAnswerTokens.
const (
	minContextTokens = 256
	minAnswerTokens  = 64
)

// budgetPlan splits a query's token budget between history, answer and
// context.
type budgetPlan struct {
	history      []driven.ChatMessage
	answerTokens int
	context      int
}

// planBudget fits a query into budget. fixed is the cost of the prompts
// and the question. The oldest history turns are dropped first, then the
// answer reserve is shortened, so the context keeps at least
// minContextTokens.
func planBudget(budget, fixed, answerTokens int, history []driven.ChatMessage) (budgetPlan, error) {
	avail := budget - fixed
	if avail < minContextTokens+minAnswerTokens {
		return budgetPlan{}, fmt.Errorf("%w: budget %d leaves %d tokens after the prompt, need %d",
			domain.ErrInvalidBudget, budget, avail, minContextTokens+minAnswerTokens)
	}

	historyTokens := 0
	for _, m := range history {
		historyTokens += domain.EstimateTokens(m.Content)
	}
	for len(history) > 0 && avail-answerTokens-historyTokens < minContextTokens {
		drop := min(2, len(history))
		for _, m := range history[:drop] {
			historyTokens -= domain.EstimateTokens(m.Content)
		}
		history = history[drop:]
	}

	if avail-answerTokens-historyTokens < minContextTokens {
		answerTokens = max(avail-historyTokens-minContextTokens, minAnswerTokens)
	}

	return budgetPlan{
		history:      history,
		answerTokens: answerTokens,
		context:      avail - answerTokens - historyTokens,
	}, nil
}

// Retrieval sees at most retrievalTurns earlier questions, and the
// combined query is capped at maxRetrievalQuery runes.
const (
	retrievalTurns    = 2
	maxRetrievalQuery = 1000
)

// retrievalQuery prefixes question with the latest earlier questions of
// conv so follow-ups retrieve with their subject. The oldest questions go
// first when the cap is hit. The current question is never cut.
func retrievalQuery(question string, conv *domain.Conversation) string {
	turns := conv.Recent()
	if len(turns) > retrievalTurns {
		turns = turns[len(turns)-retrievalTurns:]
	}

	parts := []string{question}
	size := utf8.RuneCountInString(question)
	for i := len(turns) - 1; i >= 0; i-- {
		q := strings.TrimSpace(turns[i].Question)
		if q == "" {
			continue
		}
		n := utf8.RuneCountInString(q) + 1
		if size+n > maxRetrievalQuery {
			break
		}
		parts = append([]string{q}, parts...)
		size += n
	}
	return strings.Join(parts, "\n")
}

// historyMessages converts prior turns into alternating chat messages.
func historyMessages(conv *domain.Conversation) []driven.ChatMessage {
	turns := conv.Recent()
	out := make([]driven.ChatMessage, 0, 2*len(turns))
	for _, t := range turns {
		out = append(out,
			driven.ChatMessage{Role: driven.RoleUser, Content: t.Question},
			driven.ChatMessage{Role: driven.RoleAssistant, Content: t.Answer},
		)
	}
	return out
}
