package store

import "context"

// Seed loads the demo dataset used for local operation and drills. It is a
// no-op if incidents already exist.
func Seed(ctx context.Context, st Store) error {
	existing, err := st.Incidents(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	incidents := []Incident{
		{
			ID: "INC-001", Type: "flood_rescue", Priority: PriorityCritical,
			Description:    "Multiple families trapped on rooftops, water level rising rapidly",
			AffectedCount:  12, Status: IncidentActive,
			AssignedAssets: []string{"BOAT-002", "DRONE-001"},
			Location:       Location{Latitude: 27.9506, Longitude: -82.4572, Address: "Downtown Tampa - Bayshore Blvd"},
		},
		{
			ID: "INC-002", Type: "medical_emergency", Priority: PriorityCritical,
			Description:    "Dialysis patient requires evacuation, power failure imminent",
			AffectedCount:  1, Status: IncidentActive,
			AssignedAssets: []string{"VEH-003"},
			Location:       Location{Latitude: 27.9659, Longitude: -82.4305, Address: "Tampa General Hospital Area"},
		},
		{
			ID: "INC-003", Type: "flood_rescue", Priority: PriorityHigh,
			Description:   "Elderly residents trapped in assisted living facility",
			AffectedCount: 8, Status: IncidentActive,
			Location: Location{Latitude: 27.9402, Longitude: -82.4566, Address: "South Tampa - Swann Ave"},
		},
		{
			ID: "INC-004", Type: "structural_collapse", Priority: PriorityHigh,
			Description:    "Partial roof collapse at apartment complex, injuries reported",
			AffectedCount:  5, Status: IncidentActive,
			AssignedAssets: []string{"HELI-002"},
			Location:       Location{Latitude: 27.9825, Longitude: -82.4614, Address: "Carrollwood - Dale Mabry"},
		},
		{
			ID: "INC-005", Type: "evacuation", Priority: PriorityMedium,
			Description:   "Residents in mandatory evacuation zone refusing to leave",
			AffectedCount: 20, Status: IncidentActive,
			Location: Location{Latitude: 27.8985, Longitude: -82.5145, Address: "MacDill AFB Area"},
		},
		{
			ID: "INC-006", Type: "road_blockage", Priority: PriorityMedium,
			Description:   "Major debris blocking evacuation route, tree and power lines down",
			AffectedCount: 0, Status: IncidentActive,
			Location: Location{Latitude: 27.9547, Longitude: -82.4324, Address: "I-275 at Howard Ave Exit"},
		},
	}
	for i := range incidents {
		if err := st.CreateIncident(ctx, &incidents[i]); err != nil {
			return err
		}
	}

	five := 5
	eight := 8
	assets := []Asset{
		{
			ID: "BOAT-001", Name: "Rescue Boat Alpha", Type: "boat", Status: AssetAvailable,
			Capacity: 8, CrewSize: 3,
			Location: Location{Latitude: 27.9420, Longitude: -82.4587, Address: "Davis Islands Marina"},
		},
		{
			ID: "BOAT-002", Name: "Rescue Boat Bravo", Type: "boat", Status: AssetDeployed,
			Capacity: 6, CrewSize: 2, AssignedIncident: "INC-001", ETAMinutes: &five,
			Location: Location{Latitude: 27.9506, Longitude: -82.4572, Address: "En route to INC-001"},
		},
		{
			ID: "BOAT-003", Name: "Rescue Boat Charlie", Type: "boat", Status: AssetAvailable,
			Capacity: 10, CrewSize: 4,
			Location: Location{Latitude: 27.9340, Longitude: -82.4520, Address: "Ballast Point"},
		},
		{
			ID: "HELI-001", Name: "MedEvac Helicopter 1", Type: "helicopter", Status: AssetAvailable,
			Capacity: 4, CrewSize: 3,
			Location: Location{Latitude: 27.9659, Longitude: -82.4305, Address: "Tampa General Helipad"},
		},
		{
			ID: "HELI-002", Name: "Rescue Helicopter 2", Type: "helicopter", Status: AssetEnRoute,
			Capacity: 6, CrewSize: 4, AssignedIncident: "INC-004", ETAMinutes: &eight,
			Location: Location{Latitude: 27.9600, Longitude: -82.4400, Address: "Airborne"},
		},
		{
			ID: "VEH-001", Name: "Rescue Unit 1", Type: "ground_vehicle", Status: AssetAvailable,
			Capacity: 6, CrewSize: 4,
			Location: Location{Latitude: 27.9700, Longitude: -82.4500, Address: "Fire Station 1"},
		},
		{
			ID: "VEH-002", Name: "Rescue Unit 2", Type: "ground_vehicle", Status: AssetAvailable,
			Capacity: 6, CrewSize: 4,
			Location: Location{Latitude: 27.9800, Longitude: -82.4600, Address: "Fire Station 7"},
		},
		{
			ID: "VEH-003", Name: "Medical Response Unit", Type: "ground_vehicle", Status: AssetDeployed,
			Capacity: 2, CrewSize: 3, AssignedIncident: "INC-002",
			Location: Location{Latitude: 27.9659, Longitude: -82.4305, Address: "Tampa General"},
		},
		{
			ID: "DRONE-001", Name: "Surveillance Drone Alpha", Type: "drone", Status: AssetDeployed,
			Capacity: 0, CrewSize: 1, AssignedIncident: "INC-001",
			Location: Location{Latitude: 27.9500, Longitude: -82.4550, Address: "Airborne - Downtown"},
		},
		{
			ID: "DRONE-002", Name: "Surveillance Drone Bravo", Type: "drone", Status: AssetAvailable,
			Capacity: 0, CrewSize: 1,
			Location: Location{Latitude: 27.9700, Longitude: -82.4500, Address: "Fire Station 1"},
		},
		{
			ID: "MED-001", Name: "Medical Team Alpha", Type: "medical_team", Status: AssetAvailable,
			Capacity: 10, CrewSize: 5,
			Location: Location{Latitude: 27.9659, Longitude: -82.4305, Address: "Tampa General"},
		},
		{
			ID: "RES-001", Name: "Swift Water Rescue Team", Type: "rescue_team", Status: AssetAvailable,
			Capacity: 0, CrewSize: 6,
			Location: Location{Latitude: 27.9420, Longitude: -82.4587, Address: "Davis Islands"},
		},
	}
	for i := range assets {
		if err := st.CreateAsset(ctx, &assets[i]); err != nil {
			return err
		}
	}

	return st.SetWeather(ctx, &Weather{
		HurricaneCategory:  3,
		WindSpeedMPH:       120,
		RainfallInches:     8.5,
		StormSurgeFeet:     6.2,
		FloodZonesAffected: []string{"Zone A", "Zone B", "Zone C", "Zone AE"},
		ForecastSummary:    "Category 3 Hurricane making landfall. Peak storm surge expected within 2 hours. Conditions deteriorating.",
	})
}
