package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbayops/stormdesk/internal/agents"
	"github.com/tbayops/stormdesk/internal/broadcast"
	"github.com/tbayops/stormdesk/internal/collab"
	"github.com/tbayops/stormdesk/internal/config"
	"github.com/tbayops/stormdesk/internal/inference"
	"github.com/tbayops/stormdesk/internal/ops"
	"github.com/tbayops/stormdesk/internal/store"
	"go.uber.org/zap/zaptest"
)

type stubInference struct{}

func (stubInference) Infer(ctx context.Context, req inference.Request) (*inference.Result, error) {
	return &inference.Result{Content: "[STABLE] All quiet.", TokensUsed: 5}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	st := store.NewMemory()
	require.NoError(t, store.Seed(context.Background(), st))

	hub := broadcast.NewHub(64, logger)
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	executor := ops.NewExecutor(st, hub, logger)

	var roster []*agents.Agent
	for _, def := range agents.Roster() {
		roster = append(roster, agents.New(def, stubInference{}, 5, logger))
	}
	orch := collab.NewOrchestrator(roster, st, hub,
		config.CollabConfig{HistoryWindow: 10, PromptWindow: 5, EventBuffer: 16}, logger)

	srv := New(config.ServerConfig{
		Listen:          ":0",
		ShutdownTimeout: time.Second,
		AllowedOrigins:  []string{"*"},
	}, Deps{
		Store:        st,
		Executor:     executor,
		Orchestrator: orch,
		Hub:          hub,
		Logger:       logger,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-hubDone
	})
	return ts, st
}

func getJSON(t *testing.T, url string, into any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp
}

func postJSON(t *testing.T, url, body string, into any) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, ts.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestListIncidentsAndSummary(t *testing.T) {
	ts, _ := newTestServer(t)

	var incidents []store.Incident
	resp := getJSON(t, ts.URL+"/api/incidents", &incidents)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, incidents, 6)

	var summary store.Summary
	getJSON(t, ts.URL+"/api/summary", &summary)
	assert.Equal(t, 6, summary.TotalIncidents)
	assert.Equal(t, 12, summary.TotalAssets)
	assert.Equal(t, 3, summary.HurricaneCategory)
}

func TestGetAssetNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := getJSON(t, ts.URL+"/api/assets/NOPE-001", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var asset store.Asset
	resp = getJSON(t, ts.URL+"/api/assets/BOAT-001", &asset)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Rescue Boat Alpha", asset.Name)
}

func TestSubmitActionAutoExecute(t *testing.T) {
	ts, st := newTestServer(t)

	var action ops.Action
	resp := postJSON(t, ts.URL+"/api/actions", `{
		"kind": "deploy_asset",
		"params": {"asset_id": "BOAT-001", "incident_id": "INC-001"}
	}`, &action)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ops.StatusExecuted, action.Status)

	asset, err := st.Asset(context.Background(), "BOAT-001")
	require.NoError(t, err)
	assert.Equal(t, store.AssetEnRoute, asset.Status)
}

func TestPendingApproveFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	var action ops.Action
	postJSON(t, ts.URL+"/api/actions", `{
		"kind": "recall_asset",
		"params": {"asset_id": "BOAT-002"},
		"auto_execute": false
	}`, &action)
	require.Equal(t, ops.StatusPending, action.Status)

	var pending []ops.Action
	getJSON(t, ts.URL+"/api/actions/pending", &pending)
	require.Len(t, pending, 1)

	var approved ops.Action
	resp := postJSON(t, ts.URL+"/api/actions/"+action.ID+"/approve", "", &approved)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ops.StatusExecuted, approved.Status)

	resp = postJSON(t, ts.URL+"/api/actions/"+action.ID+"/approve", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var log []ops.Action
	getJSON(t, ts.URL+"/api/actions/log", &log)
	assert.Len(t, log, 1)
}

func TestCreateIncidentEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	var inc store.Incident
	resp := postJSON(t, ts.URL+"/api/incidents", `{
		"type": "flood_rescue",
		"priority": "critical",
		"description": "Vehicle swept into canal",
		"latitude": 27.95,
		"longitude": -82.46
	}`, &inc)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, strings.HasPrefix(inc.ID, "INC-"))
	assert.Equal(t, store.PriorityCritical, inc.Priority)

	resp = getJSON(t, ts.URL+"/api/incidents/"+inc.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	var stats collab.Stats
	getJSON(t, ts.URL+"/api/agents/status", &stats)
	assert.False(t, stats.Active)

	var session collab.Session
	postJSON(t, ts.URL+"/api/agents/session/start", "", &session)
	assert.Len(t, session.ID, 8)
	assert.True(t, session.IsActive)

	getJSON(t, ts.URL+"/api/agents/status", &stats)
	assert.True(t, stats.Active)
	assert.Len(t, stats.Agents, 5)

	postJSON(t, ts.URL+"/api/agents/session/stop", "", nil)
	getJSON(t, ts.URL+"/api/agents/status", &stats)
	assert.False(t, stats.Active)
}

func TestCollaborateStreamsRound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/agents/collaborate")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	body := string(raw)
	assert.Equal(t, 5, strings.Count(body, `"type":"agent_message"`))
	assert.Contains(t, body, `"type":"round_complete"`)
	assert.Contains(t, body, `"messages_count":5`)

	var msgs []agents.Message
	getJSON(t, ts.URL+"/api/agents/messages?limit=3", &msgs)
	assert.Len(t, msgs, 3)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
