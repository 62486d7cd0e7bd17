package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
	"github.com/kirillkom/lovdata-assistant/internal/core/ports"
)

const (
	fallbackReasonMaxIterations   = "max_iterations"
	fallbackReasonTimeout         = "timeout"
	fallbackReasonBudgetExhausted = "budget_exhausted"
	fallbackReasonReasonerError   = "reasoner_error"
	fallbackReasonEmptyAnswer     = "empty_answer"

	toolStatusOK           = "ok"
	toolStatusError        = "error"
	toolStatusInvalidInput = "invalid_input"
)

type AgentUseCase struct {
	search   ports.SearchService
	reasoner ports.Reasoner
	web      ports.WebSearcher
	answers  *QueryUseCase
	observer ports.AgentObserver
	limits   domain.AgentLimits
	validate *validator.Validate
	now      func() time.Time
}

func NewAgentUseCase(
	search ports.SearchService,
	reasoner ports.Reasoner,
	web ports.WebSearcher,
	answers *QueryUseCase,
	observer ports.AgentObserver,
	limits domain.AgentLimits,
) *AgentUseCase {
	return &AgentUseCase{
		search:   search,
		reasoner: reasoner,
		web:      web,
		answers:  answers,
		observer: observer,
		limits:   normalizeAgentLimits(limits),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

func normalizeAgentLimits(limits domain.AgentLimits) domain.AgentLimits {
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = 6
	}
	if limits.BaseTimeout <= 0 {
		limits.BaseTimeout = 30 * time.Second
	}
	if limits.MaxTimeout <= 0 {
		limits.MaxTimeout = 55 * time.Second
	}
	if limits.MaxTimeout < limits.BaseTimeout {
		limits.MaxTimeout = limits.BaseTimeout
	}
	if limits.ReasonerTimeout <= 0 {
		limits.ReasonerTimeout = 20 * time.Second
	}
	if limits.ToolTimeout <= 0 {
		limits.ToolTimeout = 15 * time.Second
	}
	if limits.MinIterationBudget <= 0 {
		limits.MinIterationBudget = 5 * time.Second
	}
	if limits.MaxParallelTools <= 0 {
		limits.MaxParallelTools = 4
	}
	if limits.PrefetchTopK <= 0 {
		limits.PrefetchTopK = 5
	}
	if limits.MaxEvidenceInPrompt <= 0 {
		limits.MaxEvidenceInPrompt = 12
	}
	if limits.MinEvidenceForAnswer <= 0 {
		limits.MinEvidenceForAnswer = 1
	}
	if limits.FallbackMinHits <= 0 {
		limits.FallbackMinHits = 5
	}
	if strings.TrimSpace(limits.FallbackSite) == "" {
		limits.FallbackSite = "lovdata.no"
	}
	return limits
}

// agentRun is the state owned by one Run call.
type agentRun struct {
	req      domain.AgentRunRequest
	result   *domain.AgentRunResult
	evidence *evidenceAccumulator
	turns    []domain.AgentTurn
	tools    []domain.ToolDeclaration
}

func (r *agentRun) transition(state domain.AgentState) {
	r.result.States = append(r.result.States, state)
	r.result.FinalState = state
}

// Run answers a question with the bounded tool-calling loop. Without a reasoner it
// answers directly from hybrid search.
func (uc *AgentUseCase) Run(ctx context.Context, req domain.AgentRunRequest) (*domain.AgentRunResult, error) {
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "agent run", fmt.Errorf("question is required"))
	}

	started := uc.now()
	var (
		result *domain.AgentRunResult
		err    error
	)
	if uc.reasoner == nil {
		result, err = uc.runDirect(ctx, req)
	} else {
		result, err = uc.runAgent(ctx, req, started)
	}
	if err != nil {
		return nil, err
	}

	if uc.observer != nil {
		uc.observer.ObserveAgentRun(result.FinalState, result.Mode, result.Iterations, uc.now().Sub(started))
	}
	return result, nil
}

func (uc *AgentUseCase) runDirect(ctx context.Context, req domain.AgentRunRequest) (*domain.AgentRunResult, error) {
	directCtx, cancel := context.WithTimeout(ctx, uc.limits.MaxTimeout)
	defer cancel()

	answer, err := uc.answers.Answer(directCtx, req.Question, uc.limits.PrefetchTopK, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("direct answer: %w", err)
	}
	return &domain.AgentRunResult{
		Answer:     answer.Text,
		Mode:       domain.AgentModeDirect,
		FinalState: domain.AgentStateDone,
		States:     []domain.AgentState{domain.AgentStateDone},
		NoAnswer:   len(answer.Sources) == 0,
		Evidence:   answer.Sources,
	}, nil
}

func (uc *AgentUseCase) runAgent(ctx context.Context, req domain.AgentRunRequest, started time.Time) (*domain.AgentRunResult, error) {
	hardCtx, cancel := context.WithDeadline(ctx, started.Add(uc.limits.MaxTimeout))
	defer cancel()
	softDeadline := started.Add(uc.limits.BaseTimeout)

	run := &agentRun{
		req: req,
		result: &domain.AgentRunResult{
			Mode:     domain.AgentModeAgent,
			States:   make([]domain.AgentState, 0, 2*uc.limits.MaxIterations+2),
			Evidence: []domain.Evidence{},
		},
		evidence: newEvidenceAccumulator(),
		tools:    toolDeclarations(uc.web != nil),
	}
	run.transition(domain.AgentStateAwaitingModel)

	uc.prefetch(hardCtx, run)

	var (
		fallbackReason string
		longestRound   time.Duration
	)
	for iteration := 1; ; iteration++ {
		if iteration > uc.limits.MaxIterations {
			fallbackReason = fallbackReasonMaxIterations
			break
		}
		if hardCtx.Err() != nil || !uc.now().Before(softDeadline) {
			fallbackReason = fallbackReasonTimeout
			break
		}
		estimate := max(longestRound, uc.limits.MinIterationBudget)
		if uc.remaining(hardCtx) < estimate {
			fallbackReason = fallbackReasonBudgetExhausted
			break
		}

		roundStarted := uc.now()
		run.result.Iterations = iteration

		resp, err := uc.reason(hardCtx, run)
		if err != nil {
			if domain.IsKind(err, domain.ErrUnauthorized) || domain.IsKind(err, domain.ErrConfiguration) {
				run.transition(domain.AgentStateFailed)
				return nil, fmt.Errorf("reasoning model rejected request: %w", err)
			}
			slog.Warn("agent_reasoner_failed", "iteration", iteration, "error", err)
			if isAgentTimeoutError(err) {
				fallbackReason = fallbackReasonTimeout
			} else {
				fallbackReason = fallbackReasonReasonerError
			}
			break
		}

		if len(resp.ToolCalls) == 0 {
			answer := strings.TrimSpace(resp.Answer)
			if answer == "" {
				fallbackReason = fallbackReasonEmptyAnswer
				break
			}
			run.result.Answer = answer
			run.result.Evidence = run.evidence.Items()
			run.transition(domain.AgentStateDone)
			return run.result, nil
		}

		run.transition(domain.AgentStateExecutingTools)
		uc.executeRound(hardCtx, run, iteration, resp.ToolCalls)
		run.result.ToolRounds++
		run.transition(domain.AgentStateAwaitingModel)

		longestRound = max(longestRound, uc.now().Sub(roundStarted))
	}

	run.result.FallbackReason = fallbackReason
	run.transition(domain.AgentStateFailed)
	uc.bestEffort(hardCtx, run)
	return run.result, nil
}

func (uc *AgentUseCase) remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return uc.limits.MaxTimeout
	}
	return deadline.Sub(uc.now())
}

func (uc *AgentUseCase) prefetch(ctx context.Context, run *agentRun) {
	prefetchCtx, cancel := context.WithTimeout(ctx, uc.limits.ToolTimeout)
	defer cancel()

	result, err := uc.search.Search(prefetchCtx, domain.SearchRequest{
		Query:    run.req.Question,
		Page:     1,
		PageSize: uc.limits.PrefetchTopK,
		Filter:   run.req.Filter,
	})
	if err != nil {
		slog.Warn("agent_prefetch_failed", "error", err)
		return
	}
	run.evidence.Add(hitsToEvidence(result.Hits)...)
}

func (uc *AgentUseCase) reason(ctx context.Context, run *agentRun) (domain.ReasonerResponse, error) {
	reasonCtx, cancel := context.WithTimeout(ctx, uc.limits.ReasonerTimeout)
	defer cancel()

	evidence := run.evidence.Items()
	if len(evidence) > uc.limits.MaxEvidenceInPrompt {
		evidence = evidence[:uc.limits.MaxEvidenceInPrompt]
	}
	return uc.reasoner.Reason(reasonCtx, domain.ReasonerRequest{
		Question: run.req.Question,
		Evidence: evidence,
		Tools:    run.tools,
		Turns:    run.turns,
	})
}

type toolOutcome struct {
	result   domain.ToolResult
	evidence []domain.Evidence
	status   string
	fallback bool
}

// executeRound runs the calls of one iteration concurrently and merges their results in
// declaration order.
func (uc *AgentUseCase) executeRound(ctx context.Context, run *agentRun, iteration int, requested []domain.ToolCall) {
	calls := normalizeToolCalls(requested, iteration)
	outcomes := make([]toolOutcome, len(calls))

	var g errgroup.Group
	g.SetLimit(uc.limits.MaxParallelTools)
	for i, call := range calls {
		g.Go(func() error {
			outcomes[i] = uc.executeTool(ctx, run.req.Filter, call)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]domain.ToolResult, 0, len(calls))
	for i, outcome := range outcomes {
		added := run.evidence.Add(outcome.evidence...)
		results = append(results, outcome.result)
		run.result.ToolEvents = append(run.result.ToolEvents, domain.AgentToolEvent{
			Iteration: iteration,
			CallID:    calls[i].ID,
			Tool:      calls[i].Name,
			Status:    outcome.status,
			NewItems:  added,
			Fallback:  outcome.fallback,
		})
		if uc.observer != nil {
			uc.observer.ObserveToolCall(calls[i].Name, outcome.status)
		}
	}
	run.turns = append(run.turns, domain.AgentTurn{Calls: calls, Results: results})
}

func (uc *AgentUseCase) executeTool(ctx context.Context, base domain.SearchFilter, call domain.ToolCall) toolOutcome {
	input, err := parseToolInput(uc.validate, call, uc.web != nil)
	if err != nil {
		return toolOutcome{
			result: domain.ToolResult{CallID: call.ID, Name: call.Name, Content: toolErrorContent(call.Name, err), IsError: true},
			status: toolStatusInvalidInput,
		}
	}

	toolCtx, cancel := context.WithTimeout(ctx, uc.limits.ToolTimeout)
	defer cancel()

	var outcome toolOutcome
	switch args := input.(type) {
	case LegalSearchArgs:
		outcome, err = uc.runLegalSearch(toolCtx, base, args)
	case WebSearchArgs:
		outcome, err = uc.runWebSearch(toolCtx, args)
	}
	if err != nil {
		slog.Warn("agent_tool_failed", "tool", call.Name, "call_id", call.ID, "error", err)
		return toolOutcome{
			result: domain.ToolResult{CallID: call.ID, Name: call.Name, Content: toolErrorContent(call.Name, err), IsError: true},
			status: toolStatusError,
		}
	}
	outcome.result.CallID = call.ID
	outcome.result.Name = call.Name
	outcome.status = toolStatusOK
	return outcome
}

func (uc *AgentUseCase) runLegalSearch(ctx context.Context, base domain.SearchFilter, args LegalSearchArgs) (toolOutcome, error) {
	filter := base
	if args.LawType != "" {
		filter.LawType = domain.LawType(args.LawType)
	}
	if args.Year != 0 {
		filter.Year = args.Year
	}
	if args.Ministry != "" {
		filter.Ministry = args.Ministry
	}

	result, err := uc.search.Search(ctx, domain.SearchRequest{
		Query:    args.Query,
		Page:     args.Page,
		PageSize: args.PageSize,
		Filter:   filter,
	})
	if err != nil {
		return toolOutcome{}, fmt.Errorf("legal search: %w", err)
	}

	legal := hitsToEvidence(result.Hits)
	payload := legalToolPayload{
		Query:      args.Query,
		Page:       result.Page,
		TotalHits:  result.TotalHits,
		TotalPages: result.TotalPages,
		Results:    toolItems(legal),
	}
	outcome := toolOutcome{evidence: legal}

	if uc.web != nil && result.TotalHits < min(args.PageSize, uc.limits.FallbackMinHits) {
		outcome.fallback = true
		web, webErr := uc.web.Search(ctx, domain.WebSearchQuery{
			Query: args.Query,
			Num:   args.PageSize,
			Site:  uc.limits.FallbackSite,
		})
		if webErr != nil {
			slog.Warn("agent_web_fallback_failed", "query", args.Query, "error", webErr)
			payload.FallbackError = webErr.Error()
		} else {
			webEvidence := webResultsToEvidence(web)
			outcome.evidence = append(outcome.evidence, webEvidence...)
			payload.Fallback = toolItems(webEvidence)
		}
	}

	content, err := json.Marshal(payload)
	if err != nil {
		return toolOutcome{}, fmt.Errorf("encode legal search result: %w", err)
	}
	outcome.result.Content = string(content)
	return outcome, nil
}

func (uc *AgentUseCase) runWebSearch(ctx context.Context, args WebSearchArgs) (toolOutcome, error) {
	num := args.Num
	if num == 0 {
		num = 5
	}
	results, err := uc.web.Search(ctx, domain.WebSearchQuery{Query: args.Query, Num: num})
	if err != nil {
		return toolOutcome{}, fmt.Errorf("web search: %w", err)
	}
	evidence := webResultsToEvidence(results)
	content, err := json.Marshal(webToolPayload{Query: args.Query, Results: toolItems(evidence)})
	if err != nil {
		return toolOutcome{}, fmt.Errorf("encode web search result: %w", err)
	}
	return toolOutcome{
		result:   domain.ToolResult{Content: string(content)},
		evidence: evidence,
	}, nil
}

// bestEffort fills the answer after the loop stopped without one.
func (uc *AgentUseCase) bestEffort(ctx context.Context, run *agentRun) {
	evidence := run.evidence.Items()
	run.result.Evidence = evidence
	if len(evidence) < uc.limits.MinEvidenceForAnswer {
		run.result.NoAnswer = true
		run.result.Answer = NoAnswerText
		return
	}

	if uc.answers != nil && uc.remaining(ctx) >= uc.limits.MinIterationBudget {
		synthCtx, cancel := context.WithTimeout(ctx, uc.limits.ReasonerTimeout)
		defer cancel()
		text, err := uc.answers.Synthesize(synthCtx, run.req.Question, evidence)
		if err == nil {
			run.result.Answer = text
			return
		}
		slog.Warn("agent_best_effort_failed", "fallback_reason", run.result.FallbackReason, "error", err)
	}
	run.result.Answer = citationListAnswer(evidence)
}

// normalizeToolCalls guarantees each call of a round a unique id of at most MaxToolCallIDLength characters.
func normalizeToolCalls(calls []domain.ToolCall, iteration int) []domain.ToolCall {
	out := make([]domain.ToolCall, len(calls))
	seen := make(map[string]struct{}, len(calls))
	for i, call := range calls {
		id := strings.TrimSpace(call.ID)
		if len(id) > domain.MaxToolCallIDLength {
			id = id[:domain.MaxToolCallIDLength]
		}
		if _, dup := seen[id]; id == "" || dup {
			id = fmt.Sprintf("call_%d_%d", iteration, i+1)
		}
		seen[id] = struct{}{}
		call.ID = id
		call.Name = strings.TrimSpace(call.Name)
		out[i] = call
	}
	return out
}

func isAgentTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
