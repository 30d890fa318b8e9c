package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS incidents (
	id              TEXT PRIMARY KEY,
	type            TEXT NOT NULL,
	priority        TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	latitude        REAL NOT NULL DEFAULT 0,
	longitude       REAL NOT NULL DEFAULT 0,
	address         TEXT NOT NULL DEFAULT '',
	affected_count  INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'active',
	reported_at     INTEGER NOT NULL,
	assigned_assets TEXT NOT NULL DEFAULT '[]',
	notes           TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS assets (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	type              TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'available',
	latitude          REAL NOT NULL DEFAULT 0,
	longitude         REAL NOT NULL DEFAULT 0,
	address           TEXT NOT NULL DEFAULT '',
	capacity          INTEGER NOT NULL DEFAULT 0,
	crew_size         INTEGER NOT NULL DEFAULT 1,
	assigned_incident TEXT,
	eta_minutes       INTEGER,
	last_updated      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS weather (
	id                   INTEGER PRIMARY KEY CHECK (id = 1),
	timestamp            INTEGER NOT NULL,
	hurricane_category   INTEGER NOT NULL DEFAULT 0,
	wind_speed_mph       REAL NOT NULL DEFAULT 0,
	rainfall_inches      REAL NOT NULL DEFAULT 0,
	storm_surge_feet     REAL NOT NULL DEFAULT 0,
	flood_zones_affected TEXT NOT NULL DEFAULT '[]',
	forecast_summary     TEXT NOT NULL DEFAULT ''
);
`

// SQLite is a Store backed by a local sqlite database file.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenSQLite opens (and if needed creates) the database at dsn and ensures
// the schema exists.
func OpenSQLite(ctx context.Context, dsn string, logger *zap.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// The sqlite driver is single-writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	s := &SQLite{db: db, log: logger.Named("store.sqlite")}
	s.log.Info("SQLite store ready", zap.String("dsn", dsn))
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func marshalList(xs []string) string { b, _ := json.Marshal(xs); return string(b) }

func unmarshalList(s string) []string {
	var xs []string
	_ = json.Unmarshal([]byte(s), &xs)
	return xs
}

func (s *SQLite) Incident(ctx context.Context, id string) (*Incident, error) {
	return scanIncident(s.db.QueryRowContext(ctx, `
		SELECT id, type, priority, description, latitude, longitude, address,
		       affected_count, status, reported_at, assigned_assets, notes
		FROM incidents WHERE id = ?`, id))
}

func (s *SQLite) Incidents(ctx context.Context) ([]Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, priority, description, latitude, longitude, address,
		       affected_count, status, reported_at, assigned_assets, notes
		FROM incidents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanIncident(row rowScanner) (*Incident, error) {
	var inc Incident
	var reportedAt int64
	var assigned, notes string
	err := row.Scan(&inc.ID, &inc.Type, &inc.Priority, &inc.Description,
		&inc.Location.Latitude, &inc.Location.Longitude, &inc.Location.Address,
		&inc.AffectedCount, &inc.Status, &reportedAt, &assigned, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan incident: %w", err)
	}
	inc.ReportedAt = fromMillis(reportedAt)
	inc.AssignedAssets = unmarshalList(assigned)
	inc.Notes = unmarshalList(notes)
	return &inc, nil
}

func (s *SQLite) CreateIncident(ctx context.Context, inc *Incident) error {
	if inc.ReportedAt.IsZero() {
		inc.ReportedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents (id, type, priority, description, latitude, longitude,
		                       address, affected_count, status, reported_at,
		                       assigned_assets, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.Type, inc.Priority, inc.Description,
		inc.Location.Latitude, inc.Location.Longitude, inc.Location.Address,
		inc.AffectedCount, inc.Status, toMillis(inc.ReportedAt),
		marshalList(inc.AssignedAssets), marshalList(inc.Notes))
	if err != nil {
		return fmt.Errorf("insert incident %s: %w", inc.ID, err)
	}
	return nil
}

func (s *SQLite) UpdateIncident(ctx context.Context, id string, upd IncidentUpdate) (*Incident, error) {
	inc, err := s.Incident(ctx, id)
	if err != nil {
		return nil, err
	}
	applyIncidentUpdate(inc, upd)
	_, err = s.db.ExecContext(ctx, `
		UPDATE incidents SET priority = ?, description = ?, latitude = ?, longitude = ?,
		       address = ?, affected_count = ?, status = ?, assigned_assets = ?, notes = ?
		WHERE id = ?`,
		inc.Priority, inc.Description,
		inc.Location.Latitude, inc.Location.Longitude, inc.Location.Address,
		inc.AffectedCount, inc.Status,
		marshalList(inc.AssignedAssets), marshalList(inc.Notes), id)
	if err != nil {
		return nil, fmt.Errorf("update incident %s: %w", id, err)
	}
	return inc, nil
}

func (s *SQLite) DeleteIncident(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM incidents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete incident %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLite) Asset(ctx context.Context, id string) (*Asset, error) {
	return scanAsset(s.db.QueryRowContext(ctx, `
		SELECT id, name, type, status, latitude, longitude, address,
		       capacity, crew_size, assigned_incident, eta_minutes, last_updated
		FROM assets WHERE id = ?`, id))
}

func (s *SQLite) Assets(ctx context.Context) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, status, latitude, longitude, address,
		       capacity, crew_size, assigned_incident, eta_minutes, last_updated
		FROM assets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAsset(row rowScanner) (*Asset, error) {
	var a Asset
	var assigned sql.NullString
	var eta sql.NullInt64
	var updated int64
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Status,
		&a.Location.Latitude, &a.Location.Longitude, &a.Location.Address,
		&a.Capacity, &a.CrewSize, &assigned, &eta, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	if assigned.Valid {
		a.AssignedIncident = assigned.String
	}
	if eta.Valid {
		v := int(eta.Int64)
		a.ETAMinutes = &v
	}
	a.LastUpdated = fromMillis(updated)
	return &a, nil
}

func (s *SQLite) CreateAsset(ctx context.Context, a *Asset) error {
	if a.LastUpdated.IsZero() {
		a.LastUpdated = time.Now().UTC()
	}
	var assigned sql.NullString
	if a.AssignedIncident != "" {
		assigned = sql.NullString{String: a.AssignedIncident, Valid: true}
	}
	var eta sql.NullInt64
	if a.ETAMinutes != nil {
		eta = sql.NullInt64{Int64: int64(*a.ETAMinutes), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, name, type, status, latitude, longitude, address,
		                    capacity, crew_size, assigned_incident, eta_minutes, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Type, a.Status,
		a.Location.Latitude, a.Location.Longitude, a.Location.Address,
		a.Capacity, a.CrewSize, assigned, eta, toMillis(a.LastUpdated))
	if err != nil {
		return fmt.Errorf("insert asset %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLite) UpdateAsset(ctx context.Context, id string, upd AssetUpdate) (*Asset, error) {
	a, err := s.Asset(ctx, id)
	if err != nil {
		return nil, err
	}
	applyAssetUpdate(a, upd, time.Now().UTC())

	var assigned sql.NullString
	if a.AssignedIncident != "" {
		assigned = sql.NullString{String: a.AssignedIncident, Valid: true}
	}
	var eta sql.NullInt64
	if a.ETAMinutes != nil {
		eta = sql.NullInt64{Int64: int64(*a.ETAMinutes), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE assets SET status = ?, latitude = ?, longitude = ?, address = ?,
		       assigned_incident = ?, eta_minutes = ?, last_updated = ?
		WHERE id = ?`,
		a.Status, a.Location.Latitude, a.Location.Longitude, a.Location.Address,
		assigned, eta, toMillis(a.LastUpdated), id)
	if err != nil {
		return nil, fmt.Errorf("update asset %s: %w", id, err)
	}
	return a, nil
}

func (s *SQLite) DeleteAsset(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete asset %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLite) AssignAsset(ctx context.Context, assetID, incidentID string, etaMinutes int) (*Asset, error) {
	status := AssetEnRoute
	a, err := s.UpdateAsset(ctx, assetID, AssetUpdate{
		Status:           &status,
		AssignedIncident: &incidentID,
		ETAMinutes:       &etaMinutes,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.UpdateIncident(ctx, incidentID, IncidentUpdate{AddAsset: &assetID}); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return a, nil
}

func (s *SQLite) ReleaseAsset(ctx context.Context, assetID string) (*Asset, error) {
	prev, err := s.Asset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if prev.AssignedIncident != "" {
		if _, err := s.UpdateIncident(ctx, prev.AssignedIncident, IncidentUpdate{RemoveAsset: &assetID}); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	status := AssetAvailable
	return s.UpdateAsset(ctx, assetID, AssetUpdate{
		Status:          &status,
		ClearAssignment: true,
		ClearETA:        true,
	})
}

func (s *SQLite) Weather(ctx context.Context) (*Weather, error) {
	var w Weather
	var ts int64
	var zones string
	err := s.db.QueryRowContext(ctx, `
		SELECT timestamp, hurricane_category, wind_speed_mph, rainfall_inches,
		       storm_surge_feet, flood_zones_affected, forecast_summary
		FROM weather WHERE id = 1`).Scan(
		&ts, &w.HurricaneCategory, &w.WindSpeedMPH, &w.RainfallInches,
		&w.StormSurgeFeet, &zones, &w.ForecastSummary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query weather: %w", err)
	}
	w.Timestamp = fromMillis(ts)
	w.FloodZonesAffected = unmarshalList(zones)
	return &w, nil
}

func (s *SQLite) SetWeather(ctx context.Context, w *Weather) error {
	if w.Timestamp.IsZero() {
		w.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weather (id, timestamp, hurricane_category, wind_speed_mph,
		                     rainfall_inches, storm_surge_feet, flood_zones_affected,
		                     forecast_summary)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		    timestamp = excluded.timestamp,
		    hurricane_category = excluded.hurricane_category,
		    wind_speed_mph = excluded.wind_speed_mph,
		    rainfall_inches = excluded.rainfall_inches,
		    storm_surge_feet = excluded.storm_surge_feet,
		    flood_zones_affected = excluded.flood_zones_affected,
		    forecast_summary = excluded.forecast_summary`,
		toMillis(w.Timestamp), w.HurricaneCategory, w.WindSpeedMPH,
		w.RainfallInches, w.StormSurgeFeet, marshalList(w.FloodZonesAffected),
		w.ForecastSummary)
	if err != nil {
		return fmt.Errorf("upsert weather: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateWeather(ctx context.Context, upd WeatherUpdate) (*Weather, error) {
	w, err := s.Weather(ctx)
	if err != nil {
		return nil, err
	}
	if upd.WindSpeedMPH != nil {
		w.WindSpeedMPH = *upd.WindSpeedMPH
	}
	if upd.StormSurgeFeet != nil {
		w.StormSurgeFeet = *upd.StormSurgeFeet
	}
	if upd.Timestamp != nil {
		w.Timestamp = *upd.Timestamp
	} else {
		w.Timestamp = time.Now().UTC()
	}
	if err := s.SetWeather(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *SQLite) Summary(ctx context.Context) (*Summary, error) {
	incidents, err := s.Incidents(ctx)
	if err != nil {
		return nil, err
	}
	assets, err := s.Assets(ctx)
	if err != nil {
		return nil, err
	}
	w, err := s.Weather(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return summarize(incidents, assets, w), nil
}
