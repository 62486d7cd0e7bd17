package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

// RetrievalMetrics implements the search and agent observers.
type RetrievalMetrics struct {
	service string

	branchTotal     *prometheus.CounterVec
	branchHits      *prometheus.HistogramVec
	branchDuration  *prometheus.HistogramVec
	rerankTotal     *prometheus.CounterVec
	agentRunsTotal  *prometheus.CounterVec
	agentIterations *prometheus.HistogramVec
	agentDuration   *prometheus.HistogramVec
	toolCallsTotal  *prometheus.CounterVec
}

func NewRetrievalMetrics(service string, registerer prometheus.Registerer) *RetrievalMetrics {
	m := &RetrievalMetrics{
		service: service,
		branchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "branch_total",
				Help:      "Search branch executions by outcome.",
			},
			[]string{"service", "branch", "degraded"},
		),
		branchHits: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "branch_hits",
				Help:      "Candidates returned per search branch.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"service", "branch"},
		),
		branchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "branch_duration_seconds",
				Help:      "Search branch duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "branch"},
		),
		rerankTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "rerank_total",
				Help:      "Rerank attempts by whether the new order was applied.",
			},
			[]string{"service", "applied"},
		),
		agentRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "agent",
				Name:      "runs_total",
				Help:      "Completed agent runs by final state and mode.",
			},
			[]string{"service", "state", "mode"},
		),
		agentIterations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "agent",
				Name:      "iterations",
				Help:      "Distribution of agent loop iterations per run.",
				Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8, 10},
			},
			[]string{"service", "mode"},
		),
		agentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "agent",
				Name:      "run_duration_seconds",
				Help:      "Agent run duration in seconds.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
			},
			[]string{"service", "mode"},
		),
		toolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "agent",
				Name:      "tool_calls_total",
				Help:      "Total tool calls performed by the agent.",
			},
			[]string{"service", "tool", "status"},
		),
	}
	if registerer != nil {
		registerer.MustRegister(
			m.branchTotal,
			m.branchHits,
			m.branchDuration,
			m.rerankTotal,
			m.agentRunsTotal,
			m.agentIterations,
			m.agentDuration,
			m.toolCallsTotal,
		)
	}
	return m
}

func (m *RetrievalMetrics) ObserveSearchBranch(branch string, hits int, degraded bool, duration time.Duration) {
	m.branchTotal.WithLabelValues(m.service, branch, strconv.FormatBool(degraded)).Inc()
	m.branchDuration.WithLabelValues(m.service, branch).Observe(duration.Seconds())
	if !degraded {
		m.branchHits.WithLabelValues(m.service, branch).Observe(float64(hits))
	}
}

func (m *RetrievalMetrics) ObserveRerank(applied bool) {
	m.rerankTotal.WithLabelValues(m.service, strconv.FormatBool(applied)).Inc()
}

func (m *RetrievalMetrics) ObserveAgentRun(finalState domain.AgentState, mode string, iterations int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.agentRunsTotal.WithLabelValues(m.service, string(finalState), mode).Inc()
	m.agentIterations.WithLabelValues(m.service, mode).Observe(float64(iterations))
	m.agentDuration.WithLabelValues(m.service, mode).Observe(duration.Seconds())
}

func (m *RetrievalMetrics) ObserveToolCall(tool, status string) {
	if tool == "" {
		tool = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.toolCallsTotal.WithLabelValues(m.service, tool, status).Inc()
}
