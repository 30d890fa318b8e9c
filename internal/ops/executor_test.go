package ops

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbayops/stormdesk/internal/events"
	"github.com/tbayops/stormdesk/internal/store"
	"go.uber.org/zap/zaptest"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturePublisher) byType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestExecutor(t *testing.T) (*Executor, *store.Memory, *capturePublisher) {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, store.Seed(context.Background(), st))
	pub := &capturePublisher{}
	return NewExecutor(st, pub, zaptest.NewLogger(t)), st, pub
}

func TestDeployAssetExecutes(t *testing.T) {
	exec, st, pub := newTestExecutor(t)
	ctx := context.Background()

	a := exec.Submit(ctx, KindDeployAsset, map[string]any{
		"asset_id":    "BOAT-001",
		"incident_id": "INC-001",
	}, SourceOperator, true)

	require.Equal(t, StatusExecuted, a.Status)
	require.NotNil(t, a.ExecutedAt)
	assert.Equal(t, "INC-001", a.Result["incident_id"])
	assert.Contains(t, a.Result["message"], "deployed to INC-001")

	asset, err := st.Asset(ctx, "BOAT-001")
	require.NoError(t, err)
	assert.Equal(t, store.AssetEnRoute, asset.Status)
	assert.Equal(t, "INC-001", asset.AssignedIncident)
	require.NotNil(t, asset.ETAMinutes)
	assert.Equal(t, 15, *asset.ETAMinutes)

	inc, err := st.Incident(ctx, "INC-001")
	require.NoError(t, err)
	assert.Contains(t, inc.AssignedAssets, "BOAT-001")

	require.Len(t, pub.byType(events.TypeActionRecorded), 1)
	require.Len(t, pub.byType(events.TypeStoreChanged), 1)
}

func TestDeployAssetHonorsGivenETA(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()

	a := exec.Submit(ctx, KindDeployAsset, map[string]any{
		"asset_id":    "VEH-001",
		"incident_id": "INC-003",
		"eta_minutes": float64(7), // JSON numbers decode as float64
	}, SourceAIAgent, true)
	require.Equal(t, StatusExecuted, a.Status)

	asset, err := st.Asset(ctx, "VEH-001")
	require.NoError(t, err)
	require.NotNil(t, asset.ETAMinutes)
	assert.Equal(t, 7, *asset.ETAMinutes)
}

func TestDeployMissingAssetFailsWithoutMutation(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()

	before, err := st.Assets(ctx)
	require.NoError(t, err)

	a := exec.Submit(ctx, KindDeployAsset, map[string]any{
		"asset_id":    "BOAT-999",
		"incident_id": "INC-001",
	}, SourceOperator, true)

	assert.Equal(t, StatusFailed, a.Status)
	assert.Contains(t, a.Error, "BOAT-999")
	assert.Nil(t, a.Result)

	after, err := st.Assets(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))

	// Failed dispatches still land in the audit log.
	log := exec.Log(0)
	require.Len(t, log, 1)
	assert.Equal(t, a.ID, log[0].ID)
}

func TestDeployMissingIncidentFails(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()

	a := exec.Submit(ctx, KindDeployAsset, map[string]any{
		"asset_id":    "BOAT-001",
		"incident_id": "INC-999",
	}, SourceOperator, true)

	assert.Equal(t, StatusFailed, a.Status)
	assert.Contains(t, a.Error, "INC-999")

	asset, err := st.Asset(ctx, "BOAT-001")
	require.NoError(t, err)
	assert.Equal(t, store.AssetAvailable, asset.Status)
}

func TestUnknownKindFails(t *testing.T) {
	exec, _, _ := newTestExecutor(t)

	a := exec.Submit(context.Background(), Kind("teleport_asset"), nil, SourceSystem, true)
	assert.Equal(t, StatusFailed, a.Status)
	assert.Contains(t, a.Error, "unknown command")
}

func TestApproveDispatchesPendingAction(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()

	a := exec.Submit(ctx, KindRecallAsset, map[string]any{"asset_id": "BOAT-002"}, SourceOperator, false)
	require.Equal(t, StatusPending, a.Status)
	require.Len(t, exec.Pending(), 1)
	require.Empty(t, exec.Log(0))

	done, err := exec.Approve(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, done.Status)
	assert.Empty(t, exec.Pending())
	require.Len(t, exec.Log(0), 1)

	asset, err := st.Asset(ctx, "BOAT-002")
	require.NoError(t, err)
	assert.Equal(t, store.AssetReturning, asset.Status)
	assert.Empty(t, asset.AssignedIncident)
	assert.Nil(t, asset.ETAMinutes)

	// The recalled boat drops off its incident's assigned list.
	inc, err := st.Incident(ctx, "INC-001")
	require.NoError(t, err)
	assert.NotContains(t, inc.AssignedAssets, "BOAT-002")
}

func TestApproveUnknownIDReturnsNotFound(t *testing.T) {
	exec, _, _ := newTestExecutor(t)

	_, err := exec.Approve(context.Background(), "deadbeef")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "deadbeef", nf.ID)
}

func TestConcurrentApproveDispatchesOnce(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		exec, _, _ := newTestExecutor(t)
		a := exec.Submit(ctx, KindUpdatePriority, map[string]any{
			"incident_id": "INC-001",
			"priority":    "high",
		}, SourceOperator, false)

		start := make(chan struct{})
		errs := make(chan error, 2)
		for j := 0; j < 2; j++ {
			go func() {
				<-start
				_, err := exec.Approve(ctx, a.ID)
				errs <- err
			}()
		}
		close(start)

		var won, lost int
		for j := 0; j < 2; j++ {
			if err := <-errs; err == nil {
				won++
			} else {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
				lost++
			}
		}
		require.Equal(t, 1, won)
		require.Equal(t, 1, lost)

		entries := 0
		for _, logged := range exec.Log(0) {
			if logged.ID == a.ID {
				entries++
			}
		}
		require.Equal(t, 1, entries)
		require.Empty(t, exec.Pending())
	}
}

func TestRejectSkipsDispatch(t *testing.T) {
	exec, st, pub := newTestExecutor(t)
	ctx := context.Background()

	a := exec.Submit(ctx, KindRecallAsset, map[string]any{"asset_id": "BOAT-002"}, SourceAIAgent, false)

	rejected, err := exec.Reject(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Empty(t, exec.Pending())
	require.Len(t, exec.Log(0), 1)

	// No store mutation and no broadcast for a rejected command.
	asset, err := st.Asset(ctx, "BOAT-002")
	require.NoError(t, err)
	assert.Equal(t, store.AssetDeployed, asset.Status)
	assert.Empty(t, pub.byType(events.TypeActionRecorded))

	_, err = exec.Reject(ctx, a.ID)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestCreateThenResolveIncidentReleasesAssets(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()

	created := exec.Submit(ctx, KindCreateIncident, map[string]any{
		"type":        "flood_rescue",
		"priority":    "critical",
		"latitude":    27.95,
		"longitude":   -82.46,
		"description": "Rising water at intersection",
	}, SourceOperator, true)
	require.Equal(t, StatusExecuted, created.Status)

	incidentID, ok := created.Result["incident_id"].(string)
	require.True(t, ok)
	assert.Contains(t, created.Result["message"], incidentID)

	inc, err := st.Incident(ctx, incidentID)
	require.NoError(t, err)
	assert.Equal(t, store.PriorityCritical, inc.Priority)
	assert.Equal(t, store.IncidentActive, inc.Status)

	deploy := exec.Submit(ctx, KindDeployAsset, map[string]any{
		"asset_id":    "BOAT-001",
		"incident_id": incidentID,
	}, SourceOperator, true)
	require.Equal(t, StatusExecuted, deploy.Status)

	inc, err = st.Incident(ctx, incidentID)
	require.NoError(t, err)
	assert.Contains(t, inc.AssignedAssets, "BOAT-001")

	resolved := exec.Submit(ctx, KindResolveIncident, map[string]any{
		"incident_id": incidentID,
	}, SourceOperator, true)
	require.Equal(t, StatusExecuted, resolved.Status)

	inc, err = st.Incident(ctx, incidentID)
	require.NoError(t, err)
	assert.Equal(t, store.IncidentResolved, inc.Status)
	assert.Empty(t, inc.AssignedAssets)

	asset, err := st.Asset(ctx, "BOAT-001")
	require.NoError(t, err)
	assert.Equal(t, store.AssetAvailable, asset.Status)
	assert.Empty(t, asset.AssignedIncident)
}

func TestUpdatePriority(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()

	a := exec.Submit(ctx, KindUpdatePriority, map[string]any{
		"incident_id": "INC-005",
		"priority":    "high",
	}, SourceOperator, true)
	require.Equal(t, StatusExecuted, a.Status)
	assert.Equal(t, "high", a.Result["new_priority"])

	inc, err := st.Incident(ctx, "INC-005")
	require.NoError(t, err)
	assert.Equal(t, store.PriorityHigh, inc.Priority)
}

func TestLogLimitReturnsMostRecent(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		a := exec.Submit(ctx, KindUnassignAsset, map[string]any{"asset_id": "DRONE-002"}, SourceSystem, true)
		ids = append(ids, a.ID)
	}

	got := exec.Log(2)
	require.Len(t, got, 2)
	assert.Equal(t, ids[3], got[0].ID)
	assert.Equal(t, ids[4], got[1].ID)
	assert.Len(t, exec.Log(0), 5)
	assert.Len(t, exec.Log(50), 5)
}
