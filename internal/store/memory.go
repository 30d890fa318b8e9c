package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory Store. It is the default backend and the one
// tests construct; a mutex serializes every record update.
type Memory struct {
	mu        sync.RWMutex
	incidents map[string]*Incident
	assets    map[string]*Asset
	weather   *Weather
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		incidents: make(map[string]*Incident),
		assets:    make(map[string]*Asset),
	}
}

func (m *Memory) Incident(ctx context.Context, id string) (*Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneIncident(inc)
	return &cp, nil
}

func (m *Memory) Incidents(ctx context.Context) ([]Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Incident, 0, len(m.incidents))
	for _, inc := range m.incidents {
		out = append(out, cloneIncident(inc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateIncident(ctx context.Context, inc *Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inc.ReportedAt.IsZero() {
		inc.ReportedAt = time.Now().UTC()
	}
	cp := cloneIncident(inc)
	m.incidents[inc.ID] = &cp
	return nil
}

func (m *Memory) UpdateIncident(ctx context.Context, id string, upd IncidentUpdate) (*Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyIncidentUpdate(inc, upd)
	cp := cloneIncident(inc)
	return &cp, nil
}

func (m *Memory) DeleteIncident(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.incidents[id]; !ok {
		return false, nil
	}
	delete(m.incidents, id)
	return true, nil
}

func (m *Memory) Asset(ctx context.Context, id string) (*Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneAsset(a)
	return &cp, nil
}

func (m *Memory) Assets(ctx context.Context) ([]Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Asset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, cloneAsset(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateAsset(ctx context.Context, a *Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.LastUpdated.IsZero() {
		a.LastUpdated = time.Now().UTC()
	}
	cp := cloneAsset(a)
	m.assets[a.ID] = &cp
	return nil
}

func (m *Memory) UpdateAsset(ctx context.Context, id string, upd AssetUpdate) (*Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyAssetUpdate(a, upd, time.Now().UTC())
	cp := cloneAsset(a)
	return &cp, nil
}

func (m *Memory) DeleteAsset(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[id]; !ok {
		return false, nil
	}
	delete(m.assets, id)
	return true, nil
}

func (m *Memory) AssignAsset(ctx context.Context, assetID, incidentID string, etaMinutes int) (*Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[assetID]
	if !ok {
		return nil, ErrNotFound
	}
	status := AssetEnRoute
	applyAssetUpdate(a, AssetUpdate{
		Status:           &status,
		AssignedIncident: &incidentID,
		ETAMinutes:       &etaMinutes,
	}, time.Now().UTC())
	if inc, ok := m.incidents[incidentID]; ok {
		applyIncidentUpdate(inc, IncidentUpdate{AddAsset: &assetID})
	}
	cp := cloneAsset(a)
	return &cp, nil
}

func (m *Memory) ReleaseAsset(ctx context.Context, assetID string) (*Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[assetID]
	if !ok {
		return nil, ErrNotFound
	}
	if inc, ok := m.incidents[a.AssignedIncident]; ok {
		applyIncidentUpdate(inc, IncidentUpdate{RemoveAsset: &assetID})
	}
	status := AssetAvailable
	applyAssetUpdate(a, AssetUpdate{
		Status:          &status,
		ClearAssignment: true,
		ClearETA:        true,
	}, time.Now().UTC())
	cp := cloneAsset(a)
	return &cp, nil
}

func (m *Memory) Weather(ctx context.Context) (*Weather, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.weather == nil {
		return nil, ErrNotFound
	}
	cp := *m.weather
	cp.FloodZonesAffected = append([]string(nil), m.weather.FloodZonesAffected...)
	return &cp, nil
}

// SetWeather replaces the weather snapshot; used by seeding.
func (m *Memory) SetWeather(ctx context.Context, w *Weather) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	cp.FloodZonesAffected = append([]string(nil), w.FloodZonesAffected...)
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now().UTC()
	}
	m.weather = &cp
	return nil
}

func (m *Memory) UpdateWeather(ctx context.Context, upd WeatherUpdate) (*Weather, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.weather == nil {
		return nil, ErrNotFound
	}
	if upd.WindSpeedMPH != nil {
		m.weather.WindSpeedMPH = *upd.WindSpeedMPH
	}
	if upd.StormSurgeFeet != nil {
		m.weather.StormSurgeFeet = *upd.StormSurgeFeet
	}
	if upd.Timestamp != nil {
		m.weather.Timestamp = *upd.Timestamp
	} else {
		m.weather.Timestamp = time.Now().UTC()
	}
	cp := *m.weather
	cp.FloodZonesAffected = append([]string(nil), m.weather.FloodZonesAffected...)
	return &cp, nil
}

func (m *Memory) Summary(ctx context.Context) (*Summary, error) {
	incidents, err := m.Incidents(ctx)
	if err != nil {
		return nil, err
	}
	assets, err := m.Assets(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	w := m.weather
	m.mu.RUnlock()
	return summarize(incidents, assets, w), nil
}

func cloneIncident(inc *Incident) Incident {
	cp := *inc
	cp.AssignedAssets = append([]string(nil), inc.AssignedAssets...)
	cp.Notes = append([]string(nil), inc.Notes...)
	return cp
}

func cloneAsset(a *Asset) Asset {
	cp := *a
	if a.ETAMinutes != nil {
		eta := *a.ETAMinutes
		cp.ETAMinutes = &eta
	}
	return cp
}
