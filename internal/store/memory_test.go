package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	require.NoError(t, Seed(context.Background(), m))
	return m
}

func TestSeedIsIdempotent(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, m))

	incidents, err := m.Incidents(ctx)
	require.NoError(t, err)
	assert.Len(t, incidents, 6)

	assets, err := m.Assets(ctx)
	require.NoError(t, err)
	assert.Len(t, assets, 12)

	w, err := m.Weather(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, w.HurricaneCategory)
}

func TestIncidentNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.Incident(context.Background(), "INC-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateIncidentPartial(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	priority := PriorityLow
	note := "reassessed after drone pass"
	updated, err := m.UpdateIncident(ctx, "INC-005", IncidentUpdate{
		Priority: &priority,
		AddNote:  &note,
	})
	require.NoError(t, err)
	assert.Equal(t, PriorityLow, updated.Priority)
	assert.Equal(t, []string{note}, updated.Notes)
	// Untouched fields survive.
	assert.Equal(t, "evacuation", updated.Type)
	assert.Equal(t, 20, updated.AffectedCount)
}

func TestUpdateIncidentAssetList(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	add := "BOAT-001"
	inc, err := m.UpdateIncident(ctx, "INC-001", IncidentUpdate{AddAsset: &add})
	require.NoError(t, err)
	assert.Contains(t, inc.AssignedAssets, "BOAT-001")

	// Adding again does not duplicate.
	inc, err = m.UpdateIncident(ctx, "INC-001", IncidentUpdate{AddAsset: &add})
	require.NoError(t, err)
	assert.Equal(t, 1, countOf(inc.AssignedAssets, "BOAT-001"))

	remove := "BOAT-001"
	inc, err = m.UpdateIncident(ctx, "INC-001", IncidentUpdate{RemoveAsset: &remove})
	require.NoError(t, err)
	assert.NotContains(t, inc.AssignedAssets, "BOAT-001")
}

func TestAssignAndReleaseAsset(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	a, err := m.AssignAsset(ctx, "BOAT-001", "INC-003", 12)
	require.NoError(t, err)
	assert.Equal(t, AssetEnRoute, a.Status)
	assert.Equal(t, "INC-003", a.AssignedIncident)
	require.NotNil(t, a.ETAMinutes)
	assert.Equal(t, 12, *a.ETAMinutes)

	// The incident's assigned list mirrors the assignment.
	inc, err := m.Incident(ctx, "INC-003")
	require.NoError(t, err)
	assert.Contains(t, inc.AssignedAssets, "BOAT-001")

	a, err = m.ReleaseAsset(ctx, "BOAT-001")
	require.NoError(t, err)
	assert.Equal(t, AssetAvailable, a.Status)
	assert.Empty(t, a.AssignedIncident)
	assert.Nil(t, a.ETAMinutes)

	inc, err = m.Incident(ctx, "INC-003")
	require.NoError(t, err)
	assert.NotContains(t, inc.AssignedAssets, "BOAT-001")
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	inc, err := m.Incident(ctx, "INC-001")
	require.NoError(t, err)
	inc.Priority = PriorityLow
	inc.AssignedAssets = append(inc.AssignedAssets, "HELI-999")

	again, err := m.Incident(ctx, "INC-001")
	require.NoError(t, err)
	assert.Equal(t, PriorityCritical, again.Priority)
	assert.NotContains(t, again.AssignedAssets, "HELI-999")
}

func TestDeleteIncident(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	ok, err := m.DeleteIncident(ctx, "INC-006")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.DeleteIncident(ctx, "INC-006")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateWeather(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	wind := 132.0
	w, err := m.UpdateWeather(ctx, WeatherUpdate{WindSpeedMPH: &wind})
	require.NoError(t, err)
	assert.Equal(t, 132.0, w.WindSpeedMPH)
	assert.Equal(t, 6.2, w.StormSurgeFeet)
	assert.False(t, w.Timestamp.IsZero())
}

func TestSummary(t *testing.T) {
	m := seededMemory(t)

	s, err := m.Summary(context.Background())
	require.NoError(t, err)

	want := &Summary{
		TotalIncidents:    6,
		CriticalIncidents: 2,
		HighPriority:      2,
		TotalAssets:       12,
		AvailableAssets:   8,
		DeployedAssets:    4,
		TotalAffected:     46,
		HurricaneCategory: 3,
		WindSpeedMPH:      120,
		StormSurgeFeet:    6.2,
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func countOf(xs []string, x string) int {
	n := 0
	for _, v := range xs {
		if v == x {
			n++
		}
	}
	return n
}
