// Package collab runs the multi-role advisory round: a fixed-order pass over
// every registered role, accumulating findings into the current session and
// streaming events as they are produced.
package collab

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tbayops/stormdesk/internal/agents"
	"github.com/tbayops/stormdesk/internal/config"
	"github.com/tbayops/stormdesk/internal/events"
	"github.com/tbayops/stormdesk/internal/metrics"
	"github.com/tbayops/stormdesk/internal/ops"
	"github.com/tbayops/stormdesk/internal/store"
	"go.uber.org/zap"
)

// Session is one collaboration run. Its message history survives StopSession
// for read-only access until a new session replaces it.
type Session struct {
	ID                 string    `json:"session_id"`
	StartedAt          time.Time `json:"started_at"`
	IsActive           bool      `json:"active"`
	TotalMessages      int       `json:"total_messages"`
	TotalComputationMS int64     `json:"total_computation_ms"`

	messages []agents.Message
}

// Stats is a point-in-time snapshot of session metadata and role states.
type Stats struct {
	Active             bool                    `json:"active"`
	SessionID          string                  `json:"session_id,omitempty"`
	StartedAt          time.Time               `json:"started_at"`
	TotalMessages      int                     `json:"total_messages"`
	TotalComputationMS int64                   `json:"total_computation_ms"`
	AvgComputationMS   int64                   `json:"avg_computation_ms"`
	Agents             map[string]agents.State `json:"agents,omitempty"`
}

// Orchestrator owns the current session and all role states. Rounds are
// strictly sequential; a round never mutates the store.
type Orchestrator struct {
	roster []*agents.Agent
	store  store.Store
	pub    ops.Publisher
	cfg    config.CollabConfig
	log    *zap.Logger

	// roundMu serializes rounds so role invocations never overlap.
	roundMu sync.Mutex

	mu      sync.Mutex
	session *Session
}

// NewOrchestrator builds the fixed roster over the given inference-backed
// agents, in round order.
func NewOrchestrator(roster []*agents.Agent, st store.Store, pub ops.Publisher, cfg config.CollabConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		roster: roster,
		store:  st,
		pub:    pub,
		cfg:    cfg,
		log:    logger.Named("collab"),
	}
}

// StartSession replaces the current session with a fresh one and resets
// every role's counters.
func (o *Orchestrator) StartSession() Session {
	s := &Session{
		ID:        uuid.NewString()[:8],
		StartedAt: time.Now().UTC(),
		IsActive:  true,
	}
	o.mu.Lock()
	o.session = s
	o.mu.Unlock()

	for _, a := range o.roster {
		a.ResetCounters()
	}
	o.log.Info("Collaboration session started", zap.String("session_id", s.ID))
	return *s
}

// StopSession flags the current session inactive. A round already in flight
// finishes normally; its messages still land in the stopped session.
func (o *Orchestrator) StopSession() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != nil {
		o.session.IsActive = false
		o.log.Info("Collaboration session stopped", zap.String("session_id", o.session.ID))
	}
}

// RunRound executes one full pass over the roster and returns the ordered
// event stream for it. Each call is a fresh round. Events are also published
// to the broadcast hub as they are produced. The channel is closed after the
// round_complete event.
func (o *Orchestrator) RunRound(ctx context.Context) <-chan events.Event {
	out := make(chan events.Event, o.eventBuffer())
	go func() {
		defer close(out)
		o.roundMu.Lock()
		defer o.roundMu.Unlock()
		o.runRound(ctx, out)
	}()
	return out
}

func (o *Orchestrator) runRound(ctx context.Context, out chan<- events.Event) {
	o.mu.Lock()
	if o.session == nil {
		o.mu.Unlock()
		o.StartSession()
		o.mu.Lock()
	}
	session := o.session
	// Copy the window so later appends never alias the session's backing array.
	window := lastN(session.messages, o.cfg.HistoryWindow)
	history := make([]agents.Message, len(window))
	copy(history, window)
	o.mu.Unlock()

	situation := o.situation(ctx)
	roundStart := time.Now()
	var roundMessages []agents.Message

	for _, agent := range o.roster {
		o.emit(ctx, out, events.Event{
			Type: events.TypeAgentStatus,
			Payload: events.AgentStatus{
				Role:   agent.RoleID(),
				Status: agents.StatusThinking,
				Task:   agent.Task(),
			},
		})

		msg, err := agent.Think(ctx, situation, append(history, roundMessages...))
		if err != nil {
			// A single role's failure never aborts the round.
			o.emit(ctx, out, events.Event{
				Type:    events.TypeError,
				Payload: events.RoleError{Role: agent.RoleID(), Reason: err.Error()},
			})
			continue
		}

		roundMessages = append(roundMessages, *msg)
		o.mu.Lock()
		session.messages = append(session.messages, *msg)
		session.TotalMessages++
		session.TotalComputationMS += msg.ComputationMS
		o.mu.Unlock()

		o.emit(ctx, out, events.Event{
			Type: events.TypeAgentMessage,
			Payload: events.AgentMessage{
				ID:            msg.ID,
				FromRole:      msg.FromRole,
				To:            msg.To,
				Content:       msg.Content,
				ComputationMS: msg.ComputationMS,
				Timestamp:     msg.Timestamp,
			},
		})
		o.emit(ctx, out, events.Event{
			Type:    events.TypeAgentStatus,
			Payload: events.AgentStatus{Role: agent.RoleID(), Status: agents.StatusIdle},
		})
	}

	roundTime := time.Since(roundStart)
	roundMS := roundTime.Milliseconds()
	count := len(roundMessages)
	divisor := count
	if divisor == 0 {
		divisor = 1
	}

	metrics.RoundsTotal.Inc()
	metrics.RoundDuration.Observe(roundTime.Seconds())
	o.log.Info("Collaboration round complete",
		zap.Int64("round_time_ms", roundMS),
		zap.Int("messages", count))

	// Average is wall time per produced message, not summed computation.
	o.emit(ctx, out, events.Event{
		Type: events.TypeRoundComplete,
		Payload: events.RoundComplete{
			RoundTimeMS:      roundMS,
			MessagesCount:    count,
			AvgComputationMS: roundMS / int64(divisor),
		},
	})
}

// SessionStats snapshots the current session and every role's state.
func (o *Orchestrator) SessionStats() Stats {
	o.mu.Lock()
	session := o.session
	var snapshot Session
	if session != nil {
		snapshot = *session
	}
	o.mu.Unlock()

	if session == nil {
		return Stats{Active: false}
	}

	var avg int64
	if snapshot.TotalMessages > 0 {
		avg = snapshot.TotalComputationMS / int64(snapshot.TotalMessages)
	}
	states := make(map[string]agents.State, len(o.roster))
	for _, a := range o.roster {
		states[a.RoleID()] = a.Snapshot()
	}
	return Stats{
		Active:             snapshot.IsActive,
		SessionID:          snapshot.ID,
		StartedAt:          snapshot.StartedAt,
		TotalMessages:      snapshot.TotalMessages,
		TotalComputationMS: snapshot.TotalComputationMS,
		AvgComputationMS:   avg,
		Agents:             states,
	}
}

// RecentMessages returns the most recent limit session messages, oldest
// first. Nil when no session exists.
func (o *Orchestrator) RecentMessages(limit int) []agents.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	window := lastN(o.session.messages, limit)
	out := make([]agents.Message, len(window))
	copy(out, window)
	return out
}

func (o *Orchestrator) situation(ctx context.Context) agents.Situation {
	var sit agents.Situation
	if incidents, err := o.store.Incidents(ctx); err == nil {
		sit.Incidents = incidents
	} else {
		o.log.Warn("Failed to load incidents for round context", zap.Error(err))
	}
	if assets, err := o.store.Assets(ctx); err == nil {
		sit.Assets = assets
	} else {
		o.log.Warn("Failed to load assets for round context", zap.Error(err))
	}
	if weather, err := o.store.Weather(ctx); err == nil {
		sit.Weather = weather
	} else if !errors.Is(err, store.ErrNotFound) {
		o.log.Warn("Failed to load weather for round context", zap.Error(err))
	}
	return sit
}

// emit publishes to the broadcast hub and delivers to the direct caller. A
// caller that stops reading does not stall the round.
func (o *Orchestrator) emit(ctx context.Context, out chan<- events.Event, ev events.Event) {
	o.pub.Publish(ev)
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) eventBuffer() int {
	if o.cfg.EventBuffer > 0 {
		return o.cfg.EventBuffer
	}
	return 16
}

func lastN(msgs []agents.Message, n int) []agents.Message {
	if n <= 0 || n >= len(msgs) {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
