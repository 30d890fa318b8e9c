// Package agents implements the role runtime: each role wraps the inference
// client with a fixed specialization and tracks its own utilization counters.
package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tbayops/stormdesk/internal/inference"
	"github.com/tbayops/stormdesk/internal/metrics"
	"github.com/tbayops/stormdesk/internal/store"
	"go.uber.org/zap"
)

// Message type values.
const (
	MessageAnalysis = "analysis"
	MessageRequest  = "request"
	MessageResponse = "response"
	MessageAlert    = "alert"
	MessageDecision = "decision"
)

// Role status values.
const (
	StatusIdle     = "idle"
	StatusThinking = "thinking"
)

// defaultPromptWindow is how many recent messages a role's prompt quotes
// when no window is configured.
const defaultPromptWindow = 5

// Message is one role's published finding. Immutable once created.
type Message struct {
	ID            string         `json:"id"`
	FromRole      string         `json:"from_agent"`
	To            string         `json:"to_agent"`
	Type          string         `json:"message_type"`
	Content       string         `json:"content"`
	Data          map[string]any `json:"data,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	ComputationMS int64          `json:"computation_ms"`
	TokensUsed    int            `json:"tokens_used"`
}

// State is the live status snapshot of one role.
type State struct {
	RoleID             string    `json:"role"`
	Name               string    `json:"name"`
	Status             string    `json:"status"`
	CurrentTask        string    `json:"current_task"`
	LastActive         time.Time `json:"last_active"`
	MessagesProcessed  int       `json:"messages_processed"`
	TotalComputationMS int64     `json:"total_computation_ms"`
}

// Situation is the shared context every role reads during a round.
type Situation struct {
	Incidents []store.Incident
	Assets    []store.Asset
	Weather   *store.Weather
}

// Render summarizes the situation for a prompt.
func (s Situation) Render() string {
	var lines []string
	if len(s.Incidents) > 0 {
		lines = append(lines, fmt.Sprintf("Active incidents: %d", len(s.Incidents)))
		critical := 0
		for _, inc := range s.Incidents {
			if inc.Priority == store.PriorityCritical {
				critical++
			}
		}
		if critical > 0 {
			lines = append(lines, fmt.Sprintf("Critical situations: %d", critical))
		}
	}
	if len(s.Assets) > 0 {
		available := 0
		for _, a := range s.Assets {
			if a.Status == store.AssetAvailable {
				available++
			}
		}
		lines = append(lines, fmt.Sprintf("Available assets: %d/%d", available, len(s.Assets)))
	}
	if s.Weather != nil {
		lines = append(lines, fmt.Sprintf("Hurricane Cat %d, %.0fmph winds",
			s.Weather.HurricaneCategory, s.Weather.WindSpeedMPH))
	}
	if len(lines) == 0 {
		return "No context available"
	}
	return strings.Join(lines, "\n")
}

// Agent is one participating role.
type Agent struct {
	def          Definition
	client       inference.Client
	promptWindow int
	log          *zap.Logger

	// thinkMu enforces single-shot Think: a role never re-enters its own
	// invocation while one is outstanding.
	thinkMu sync.Mutex

	mu    sync.Mutex
	state State
}

// New constructs an idle Agent for the given definition. promptWindow is
// how many recent messages the role's prompt quotes; zero or negative
// selects the default.
func New(def Definition, client inference.Client, promptWindow int, logger *zap.Logger) *Agent {
	if promptWindow <= 0 {
		promptWindow = defaultPromptWindow
	}
	return &Agent{
		def:          def,
		client:       client,
		promptWindow: promptWindow,
		log:          logger.Named("agents." + def.RoleID),
		state: State{
			RoleID:     def.RoleID,
			Name:       def.Name,
			Status:     StatusIdle,
			LastActive: time.Now().UTC(),
		},
	}
}

// RoleID returns the role's stable identifier.
func (a *Agent) RoleID() string { return a.def.RoleID }

// Task returns the role's round task description.
func (a *Agent) Task() string { return a.def.Task }

// Snapshot returns a copy of the role's current state.
func (a *Agent) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ResetCounters zeroes the role's counters and returns it to idle.
func (a *Agent) ResetCounters() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Status = StatusIdle
	a.state.CurrentTask = ""
	a.state.MessagesProcessed = 0
	a.state.TotalComputationMS = 0
}

// Think runs one inference pass over the situation and the recent message
// window, returning a broadcast analysis message. Inference failures are
// returned as-is; the caller decides how to handle them.
func (a *Agent) Think(ctx context.Context, situation Situation, recent []Message) (*Message, error) {
	if !a.thinkMu.TryLock() {
		return nil, fmt.Errorf("role %s is already thinking", a.def.RoleID)
	}
	defer a.thinkMu.Unlock()

	a.mu.Lock()
	a.state.Status = StatusThinking
	a.state.CurrentTask = a.def.Task
	a.mu.Unlock()

	start := time.Now()
	result, err := a.client.Infer(ctx, inference.Request{
		Instructions: a.def.Instructions,
		Context:      a.buildPrompt(situation, recent),
	})
	elapsed := time.Since(start).Milliseconds()

	a.mu.Lock()
	a.state.Status = StatusIdle
	a.state.CurrentTask = ""
	a.state.LastActive = time.Now().UTC()
	if err == nil {
		a.state.MessagesProcessed++
		a.state.TotalComputationMS += elapsed
	}
	a.mu.Unlock()

	if err != nil {
		metrics.InferenceRequests.WithLabelValues(a.def.RoleID, "error").Inc()
		a.log.Warn("Think failed", zap.Error(err), zap.Int64("elapsed_ms", elapsed))
		return nil, err
	}
	metrics.InferenceRequests.WithLabelValues(a.def.RoleID, "ok").Inc()
	metrics.InferenceTokens.WithLabelValues(a.def.RoleID).Add(float64(result.TokensUsed))

	return &Message{
		ID:            uuid.NewString()[:8],
		FromRole:      a.def.RoleID,
		To:            "broadcast",
		Type:          MessageAnalysis,
		Content:       result.Content,
		Timestamp:     time.Now().UTC(),
		ComputationMS: elapsed,
		TokensUsed:    result.TokensUsed,
	}, nil
}

func (a *Agent) buildPrompt(situation Situation, recent []Message) string {
	var b strings.Builder
	b.WriteString("Current Situation:\n")
	b.WriteString(situation.Render())

	if len(recent) > 0 {
		window := recent
		if len(window) > a.promptWindow {
			window = window[len(window)-a.promptWindow:]
		}
		b.WriteString("\n\nRecent Agent Communications:")
		for _, m := range window {
			b.WriteString(fmt.Sprintf("\n[%s]: %s", m.FromRole, m.Content))
		}
	}

	fmt.Fprintf(&b, "\n\nAs the %s, provide your analysis or recommendation. Be concise (2-3 sentences max).", a.def.Name)
	return b.String()
}
