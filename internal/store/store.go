// Package store defines the persistent-store boundary for incident and
// asset records, plus the live weather snapshot. The core only relies on
// synchronous CRUD semantics; durability is the backend's problem.
package store

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Priority levels for incidents.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Asset status values.
const (
	AssetAvailable   = "available"
	AssetDeployed    = "deployed"
	AssetEnRoute     = "en_route"
	AssetOnScene     = "on_scene"
	AssetReturning   = "returning"
	AssetMaintenance = "maintenance"
)

// Incident status values.
const (
	IncidentActive   = "active"
	IncidentResolved = "resolved"
)

// Location is a point with an optional human-readable address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Incident is one reported emergency.
type Incident struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Priority       string    `json:"priority"`
	Description    string    `json:"description"`
	Location       Location  `json:"location"`
	AffectedCount  int       `json:"affected_count"`
	Status         string    `json:"status"`
	ReportedAt     time.Time `json:"reported_at"`
	AssignedAssets []string  `json:"assigned_assets"`
	Notes          []string  `json:"notes"`
}

// Asset is one deployable rescue resource.
type Asset struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	Status           string    `json:"status"`
	Location         Location  `json:"location"`
	Capacity         int       `json:"capacity"`
	CrewSize         int       `json:"crew_size"`
	AssignedIncident string    `json:"assigned_incident,omitempty"`
	ETAMinutes       *int      `json:"eta_minutes,omitempty"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Weather is the current environmental snapshot.
type Weather struct {
	Timestamp          time.Time `json:"timestamp"`
	HurricaneCategory  int       `json:"hurricane_category"`
	WindSpeedMPH       float64   `json:"wind_speed_mph"`
	RainfallInches     float64   `json:"rainfall_inches"`
	StormSurgeFeet     float64   `json:"storm_surge_feet"`
	FloodZonesAffected []string  `json:"flood_zones_affected"`
	ForecastSummary    string    `json:"forecast_summary"`
}

// IncidentUpdate is a partial update; nil fields are left untouched.
type IncidentUpdate struct {
	Priority      *string
	Description   *string
	Status        *string
	AffectedCount *int
	Location      *Location
	AddNote       *string
	AddAsset      *string
	RemoveAsset   *string
}

// AssetUpdate is a partial update; nil fields are left untouched. The
// Clear flags distinguish "set to empty" from "leave alone".
type AssetUpdate struct {
	Status           *string
	AssignedIncident *string
	ClearAssignment  bool
	ETAMinutes       *int
	ClearETA         bool
	Location         *Location
}

// WeatherUpdate adjusts the live weather snapshot.
type WeatherUpdate struct {
	WindSpeedMPH   *float64
	StormSurgeFeet *float64
	Timestamp      *time.Time
}

// Summary is the aggregate dashboard view.
type Summary struct {
	TotalIncidents    int     `json:"total_incidents"`
	CriticalIncidents int     `json:"critical_incidents"`
	HighPriority      int     `json:"high_priority_incidents"`
	TotalAssets       int     `json:"total_assets"`
	AvailableAssets   int     `json:"available_assets"`
	DeployedAssets    int     `json:"deployed_assets"`
	TotalAffected     int     `json:"total_affected"`
	HurricaneCategory int     `json:"hurricane_category"`
	WindSpeedMPH      float64 `json:"wind_speed_mph"`
	StormSurgeFeet    float64 `json:"storm_surge_feet"`
}

// Store is the synchronous CRUD contract the core consumes. Implementations
// serialize per-record updates; callers never see partial writes.
type Store interface {
	Incident(ctx context.Context, id string) (*Incident, error)
	Incidents(ctx context.Context) ([]Incident, error)
	CreateIncident(ctx context.Context, inc *Incident) error
	UpdateIncident(ctx context.Context, id string, upd IncidentUpdate) (*Incident, error)
	DeleteIncident(ctx context.Context, id string) (bool, error)

	Asset(ctx context.Context, id string) (*Asset, error)
	Assets(ctx context.Context) ([]Asset, error)
	CreateAsset(ctx context.Context, a *Asset) error
	UpdateAsset(ctx context.Context, id string, upd AssetUpdate) (*Asset, error)
	DeleteAsset(ctx context.Context, id string) (bool, error)

	// AssignAsset marks an asset en route to an incident and mirrors the
	// assignment on the incident's assigned list; ReleaseAsset returns it
	// to the available pool and clears both sides.
	AssignAsset(ctx context.Context, assetID, incidentID string, etaMinutes int) (*Asset, error)
	ReleaseAsset(ctx context.Context, assetID string) (*Asset, error)

	Weather(ctx context.Context) (*Weather, error)
	SetWeather(ctx context.Context, w *Weather) error
	UpdateWeather(ctx context.Context, upd WeatherUpdate) (*Weather, error)

	Summary(ctx context.Context) (*Summary, error)
}

func applyIncidentUpdate(inc *Incident, upd IncidentUpdate) {
	if upd.Priority != nil {
		inc.Priority = *upd.Priority
	}
	if upd.Description != nil {
		inc.Description = *upd.Description
	}
	if upd.Status != nil {
		inc.Status = *upd.Status
	}
	if upd.AffectedCount != nil {
		inc.AffectedCount = *upd.AffectedCount
	}
	if upd.Location != nil {
		inc.Location = *upd.Location
	}
	if upd.AddNote != nil {
		inc.Notes = append(inc.Notes, *upd.AddNote)
	}
	if upd.AddAsset != nil {
		inc.AssignedAssets = appendUnique(inc.AssignedAssets, *upd.AddAsset)
	}
	if upd.RemoveAsset != nil {
		inc.AssignedAssets = remove(inc.AssignedAssets, *upd.RemoveAsset)
	}
}

func applyAssetUpdate(a *Asset, upd AssetUpdate, now time.Time) {
	if upd.Status != nil {
		a.Status = *upd.Status
	}
	if upd.AssignedIncident != nil {
		a.AssignedIncident = *upd.AssignedIncident
	}
	if upd.ClearAssignment {
		a.AssignedIncident = ""
	}
	if upd.ETAMinutes != nil {
		eta := *upd.ETAMinutes
		a.ETAMinutes = &eta
	}
	if upd.ClearETA {
		a.ETAMinutes = nil
	}
	if upd.Location != nil {
		a.Location = *upd.Location
	}
	a.LastUpdated = now
}

func appendUnique(xs []string, x string) []string {
	for _, v := range xs {
		if v == x {
			return xs
		}
	}
	return append(xs, x)
}

func remove(xs []string, x string) []string {
	out := xs[:0]
	for _, v := range xs {
		if v != x {
			out = append(out, v)
		}
	}
	return out
}

func summarize(incidents []Incident, assets []Asset, w *Weather) *Summary {
	s := &Summary{TotalIncidents: len(incidents), TotalAssets: len(assets)}
	for _, inc := range incidents {
		switch inc.Priority {
		case PriorityCritical:
			s.CriticalIncidents++
		case PriorityHigh:
			s.HighPriority++
		}
		s.TotalAffected += inc.AffectedCount
	}
	for _, a := range assets {
		switch a.Status {
		case AssetAvailable:
			s.AvailableAssets++
		case AssetDeployed, AssetEnRoute, AssetOnScene:
			s.DeployedAssets++
		}
	}
	if w != nil {
		s.HurricaneCategory = w.HurricaneCategory
		s.WindSpeedMPH = math.Round(w.WindSpeedMPH)
		s.StormSurgeFeet = math.Round(w.StormSurgeFeet*10) / 10
	}
	return s
}
