package domain

import (
	"encoding/json"
	"time"
)

// MaxToolCallIDLength bounds correlation ids exchanged with the reasoning model.
const MaxToolCallIDLength = 40

type AgentState string

const (
	AgentStateAwaitingModel  AgentState = "awaiting_model_response"
	AgentStateExecutingTools AgentState = "executing_tools"
	AgentStateDone           AgentState = "done"
	AgentStateFailed         AgentState = "failed"
)

type AgentLimits struct {
	MaxIterations        int           `json:"max_iterations"`
	BaseTimeout          time.Duration `json:"base_timeout"`
	MaxTimeout           time.Duration `json:"max_timeout"`
	ReasonerTimeout      time.Duration `json:"reasoner_timeout"`
	ToolTimeout          time.Duration `json:"tool_timeout"`
	MinIterationBudget   time.Duration `json:"min_iteration_budget"`
	MaxParallelTools     int           `json:"max_parallel_tools"`
	PrefetchTopK         int           `json:"prefetch_top_k"`
	MaxEvidenceInPrompt  int           `json:"max_evidence_in_prompt"`
	MinEvidenceForAnswer int           `json:"min_evidence_for_answer"`
	FallbackMinHits      int           `json:"fallback_min_hits"`
	FallbackSite         string        `json:"fallback_site"`
}

// ToolDeclaration describes a callable tool with a JSON schema for its arguments.
type ToolDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Required    []string       `json:"required,omitempty"`
}

type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// AgentTurn is one completed tool round: the calls the model asked for and their results.
type AgentTurn struct {
	Calls   []ToolCall   `json:"calls"`
	Results []ToolResult `json:"results"`
}

type ReasonerRequest struct {
	Question string            `json:"question"`
	Evidence []Evidence        `json:"evidence"`
	Tools    []ToolDeclaration `json:"tools"`
	Turns    []AgentTurn       `json:"turns"`
}

// ReasonerResponse holds either a final answer or tool calls.
type ReasonerResponse struct {
	Answer    string     `json:"answer,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type AgentRunRequest struct {
	Question string       `json:"question"`
	Filter   SearchFilter `json:"filter"`
}

type AgentToolEvent struct {
	Iteration int    `json:"iteration"`
	CallID    string `json:"call_id"`
	Tool      string `json:"tool"`
	Status    string `json:"status"`
	NewItems  int    `json:"new_items"`
	Fallback  bool   `json:"fallback,omitempty"`
}

const (
	AgentModeAgent  = "agent"
	AgentModeDirect = "direct"
)

type AgentRunResult struct {
	Answer         string           `json:"answer"`
	Mode           string           `json:"mode"`
	FinalState     AgentState       `json:"final_state"`
	States         []AgentState     `json:"states"`
	Iterations     int              `json:"iterations"`
	ToolRounds     int              `json:"tool_rounds"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
	NoAnswer       bool             `json:"no_answer,omitempty"`
	Evidence       []Evidence       `json:"evidence"`
	ToolEvents     []AgentToolEvent `json:"tool_events,omitempty"`
}
