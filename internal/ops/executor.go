package ops

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tbayops/stormdesk/internal/events"
	"github.com/tbayops/stormdesk/internal/metrics"
	"github.com/tbayops/stormdesk/internal/store"
	"go.uber.org/zap"
)

// Publisher delivers semantic events to live observers. Publish never fails
// and never blocks the caller.
type Publisher interface {
	Publish(events.Event)
}

// handlerFunc applies one command kind against the store. It returns a
// structured result on success; any error it returns downgrades the Action
// to failed rather than propagating.
type handlerFunc func(ctx context.Context, params map[string]any, st store.Store) (map[string]any, error)

// Executor validates and dispatches commands. It exclusively owns the
// pending set and the append-only audit log.
type Executor struct {
	store    store.Store
	pub      Publisher
	log      *zap.Logger
	handlers map[Kind]handlerFunc

	mu       sync.Mutex
	pending  []*Action
	auditLog []*Action
}

// NewExecutor wires an Executor over the given store and event publisher.
func NewExecutor(st store.Store, pub Publisher, logger *zap.Logger) *Executor {
	e := &Executor{
		store: st,
		pub:   pub,
		log:   logger.Named("ops"),
	}
	e.handlers = map[Kind]handlerFunc{
		KindDeployAsset:     deployAsset,
		KindRecallAsset:     recallAsset,
		KindAssignAsset:     assignAsset,
		KindUnassignAsset:   unassignAsset,
		KindCreateIncident:  createIncident,
		KindResolveIncident: resolveIncident,
		KindUpdatePriority:  updatePriority,
	}
	return e
}

// Submit constructs an Action. With autoExecute it dispatches synchronously
// and returns the terminal Action; otherwise the Action is enqueued pending
// explicit approval.
func (e *Executor) Submit(ctx context.Context, kind Kind, params map[string]any, source Source, autoExecute bool) *Action {
	a := NewAction(kind, source, params)
	if autoExecute {
		return e.Dispatch(ctx, a)
	}
	e.mu.Lock()
	e.pending = append(e.pending, a)
	n := len(e.pending)
	e.mu.Unlock()
	metrics.PendingActions.Set(float64(n))
	e.log.Info("Action held for approval",
		zap.String("action_id", a.ID),
		zap.String("kind", string(kind)),
		zap.String("source", string(source)))
	return a
}

// Dispatch applies the Action's handler and records the outcome. Handler
// failures are captured on the Action, never returned; every dispatch
// appends exactly one audit-log entry and emits one recorded notification.
func (e *Executor) Dispatch(ctx context.Context, a *Action) *Action {
	e.mu.Lock()
	a.Status = StatusApproved
	e.mu.Unlock()

	var result map[string]any
	var err error
	if h, ok := e.handlers[a.Kind]; ok {
		result, err = h(ctx, a.Params, e.store)
	} else {
		err = validationf("unknown command kind: %s", a.Kind)
	}

	// Outcome write, pending removal and log append happen in one critical
	// section so an id is never observable in both collections, or in
	// neither, and readers holding the Action never race its fields.
	e.mu.Lock()
	if err != nil {
		a.Status = StatusFailed
		a.Error = err.Error()
	} else {
		now := time.Now().UTC()
		a.Status = StatusExecuted
		a.ExecutedAt = &now
		a.Result = result
	}
	status := a.Status
	e.removePendingLocked(a.ID)
	e.auditLog = append(e.auditLog, a)
	n := len(e.pending)
	e.mu.Unlock()

	if err != nil {
		e.log.Warn("Command failed",
			zap.String("action_id", a.ID),
			zap.String("kind", string(a.Kind)),
			zap.String("error", err.Error()))
	} else {
		e.log.Info("Command executed",
			zap.String("action_id", a.ID),
			zap.String("kind", string(a.Kind)))
	}

	metrics.PendingActions.Set(float64(n))
	metrics.ActionsTotal.WithLabelValues(string(a.Kind), string(status)).Inc()

	msg := "Action executed"
	if err != nil {
		msg = err.Error()
	} else if s, ok := result["message"].(string); ok {
		msg = s
	}
	e.pub.Publish(events.Event{
		Type:    events.TypeActionRecorded,
		Payload: events.ActionRecorded{Kind: string(a.Kind), Message: msg},
	})
	e.pub.Publish(events.Event{Type: events.TypeStoreChanged})

	return a
}

// Approve moves a pending Action into dispatch. Unknown ids are a caller
// error and are returned as NotFoundError.
func (e *Executor) Approve(ctx context.Context, id string) (*Action, error) {
	// Claiming flips the status inside the critical section, so of two
	// concurrent Approve (or Approve and Reject) calls for the same id,
	// exactly one wins; the loser reports NotFound.
	e.mu.Lock()
	var claimed *Action
	for _, a := range e.pending {
		if a.ID == id && a.Status == StatusPending {
			a.Status = StatusApproved
			claimed = a
			break
		}
	}
	e.mu.Unlock()
	if claimed == nil {
		return nil, &NotFoundError{What: "action", ID: id}
	}
	return e.Dispatch(ctx, claimed), nil
}

// Reject moves a pending Action directly to rejected, bypassing dispatch.
// No store mutation or notification occurs.
func (e *Executor) Reject(ctx context.Context, id string) (*Action, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.pending {
		if a.ID == id && a.Status == StatusPending {
			a.Status = StatusRejected
			e.removePendingLocked(id)
			e.auditLog = append(e.auditLog, a)
			metrics.PendingActions.Set(float64(len(e.pending)))
			metrics.ActionsTotal.WithLabelValues(string(a.Kind), string(a.Status)).Inc()
			e.log.Info("Command rejected", zap.String("action_id", id))
			return a, nil
		}
	}
	return nil, &NotFoundError{What: "action", ID: id}
}

// Log returns the most recent limit audit-log entries, oldest first. The
// entries are snapshot copies.
func (e *Executor) Log(limit int) []*Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 || limit > len(e.auditLog) {
		limit = len(e.auditLog)
	}
	out := make([]*Action, 0, limit)
	for _, a := range e.auditLog[len(e.auditLog)-limit:] {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// Pending returns the full set of actions awaiting approval, as snapshot
// copies. An action claimed by an in-flight Approve is already excluded.
func (e *Executor) Pending() []*Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Action, 0, len(e.pending))
	for _, a := range e.pending {
		if a.Status == StatusPending {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

func (e *Executor) removePendingLocked(id string) {
	for i, a := range e.pending {
		if a.ID == id {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

// -- handlers --

func deployAsset(ctx context.Context, params map[string]any, st store.Store) (map[string]any, error) {
	assetID, err := stringParam(params, "asset_id")
	if err != nil {
		return nil, err
	}
	incidentID, err := stringParam(params, "incident_id")
	if err != nil {
		return nil, err
	}

	asset, err := st.Asset(ctx, assetID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{What: "asset", ID: assetID}
	} else if err != nil {
		return nil, err
	}
	if _, err := st.Incident(ctx, incidentID); errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{What: "incident", ID: incidentID}
	} else if err != nil {
		return nil, err
	}

	if _, err := st.AssignAsset(ctx, assetID, incidentID, intParam(params, "eta_minutes", 15)); err != nil {
		return nil, err
	}

	return map[string]any{
		"asset_id":    assetID,
		"incident_id": incidentID,
		"new_status":  store.AssetEnRoute,
		"message":     asset.Name + " deployed to " + incidentID,
	}, nil
}

func recallAsset(ctx context.Context, params map[string]any, st store.Store) (map[string]any, error) {
	assetID, err := stringParam(params, "asset_id")
	if err != nil {
		return nil, err
	}

	asset, err := st.Asset(ctx, assetID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{What: "asset", ID: assetID}
	} else if err != nil {
		return nil, err
	}

	status := store.AssetReturning
	if _, err := st.UpdateAsset(ctx, assetID, store.AssetUpdate{
		Status:          &status,
		ClearAssignment: true,
		ClearETA:        true,
	}); err != nil {
		return nil, err
	}
	if asset.AssignedIncident != "" {
		if _, err := st.UpdateIncident(ctx, asset.AssignedIncident, store.IncidentUpdate{RemoveAsset: &assetID}); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return map[string]any{
		"asset_id":   assetID,
		"new_status": store.AssetReturning,
		"message":    asset.Name + " recalled to base",
	}, nil
}

func assignAsset(ctx context.Context, params map[string]any, st store.Store) (map[string]any, error) {
	assetID, err := stringParam(params, "asset_id")
	if err != nil {
		return nil, err
	}
	incidentID, err := stringParam(params, "incident_id")
	if err != nil {
		return nil, err
	}

	if _, err := st.AssignAsset(ctx, assetID, incidentID, intParam(params, "eta_minutes", 15)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{What: "asset", ID: assetID}
		}
		return nil, err
	}

	return map[string]any{
		"asset_id":    assetID,
		"incident_id": incidentID,
		"message":     "Asset " + assetID + " assigned to " + incidentID,
	}, nil
}

func unassignAsset(ctx context.Context, params map[string]any, st store.Store) (map[string]any, error) {
	assetID, err := stringParam(params, "asset_id")
	if err != nil {
		return nil, err
	}

	if _, err := st.ReleaseAsset(ctx, assetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{What: "asset", ID: assetID}
		}
		return nil, err
	}

	return map[string]any{
		"asset_id": assetID,
		"message":  "Asset " + assetID + " released",
	}, nil
}

func createIncident(ctx context.Context, params map[string]any, st store.Store) (map[string]any, error) {
	inc := &store.Incident{
		ID:            "INC-" + strings.ToUpper(uuid.NewString()[:4]),
		Type:          optString(params, "type", "evacuation"),
		Description:   optString(params, "description", "New incident"),
		Priority:      optString(params, "priority", store.PriorityMedium),
		AffectedCount: intParam(params, "affected_count", 1),
		Status:        store.IncidentActive,
		Location: store.Location{
			Latitude:  floatParam(params, "latitude", 0),
			Longitude: floatParam(params, "longitude", 0),
			Address:   optString(params, "address", "Unknown location"),
		},
	}
	if err := st.CreateIncident(ctx, inc); err != nil {
		return nil, err
	}

	return map[string]any{
		"incident_id": inc.ID,
		"message":     "Created incident " + inc.ID,
	}, nil
}

func resolveIncident(ctx context.Context, params map[string]any, st store.Store) (map[string]any, error) {
	incidentID, err := stringParam(params, "incident_id")
	if err != nil {
		return nil, err
	}

	status := store.IncidentResolved
	if _, err := st.UpdateIncident(ctx, incidentID, store.IncidentUpdate{Status: &status}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{What: "incident", ID: incidentID}
		}
		return nil, err
	}

	assets, err := st.Assets(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		if a.AssignedIncident == incidentID {
			if _, err := st.ReleaseAsset(ctx, a.ID); err != nil {
				return nil, err
			}
		}
	}

	return map[string]any{
		"incident_id": incidentID,
		"message":     "Incident " + incidentID + " resolved",
	}, nil
}

func updatePriority(ctx context.Context, params map[string]any, st store.Store) (map[string]any, error) {
	incidentID, err := stringParam(params, "incident_id")
	if err != nil {
		return nil, err
	}
	priority, err := stringParam(params, "priority")
	if err != nil {
		return nil, err
	}

	if _, err := st.UpdateIncident(ctx, incidentID, store.IncidentUpdate{Priority: &priority}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{What: "incident", ID: incidentID}
		}
		return nil, err
	}

	return map[string]any{
		"incident_id":  incidentID,
		"new_priority": priority,
		"message":      "Priority updated to " + priority,
	}, nil
}

// -- param access --

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", validationf("missing or invalid param: %s", key)
	}
	return v, nil
}

func optString(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
}

// intParam tolerates float64 because JSON decoding produces it for numbers.
func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func floatParam(params map[string]any, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}
