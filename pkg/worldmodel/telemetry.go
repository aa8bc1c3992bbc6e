// Package worldmodel holds the tagged data types shared by every component:
// the telemetry snapshot the simulator produces each tick, the static world
// map, and action proposals. Types are strict, closed unions validated at the
// HTTP/adapter boundary — unknown variants are rejected as ProtocolMismatch
// rather than silently accepted.
package worldmodel

import "fmt"

// Zone is the closed set of zone kinds a robot may occupy.
type Zone string

const (
	ZoneAisle      Zone = "aisle"
	ZoneLoadingBay Zone = "loading_bay"
	ZoneOther      Zone = "other"
)

// Point is a 2D coordinate in meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Telemetry is the per-tick snapshot produced by the simulator.
type Telemetry struct {
	X                float64  `json:"x"`
	Y                float64  `json:"y"`
	Theta            float64  `json:"theta"`
	Speed            float64  `json:"speed"`
	Zone             Zone     `json:"zone"`
	NearestObstacleM float64  `json:"nearest_obstacle_m"`
	HumanDetected    bool     `json:"human_detected"`
	HumanConf        float64  `json:"human_conf"`
	HumanDistanceM   float64  `json:"human_distance_m"`
	BatteryPct       float64  `json:"battery_pct"`
	Target           *Point   `json:"target"`
	Events           []string `json:"events"`
}

// Validate enforces the bounded-field invariants from §3. A violation is a
// ProtocolMismatch per §7 — the caller must treat it as a denied/STOP tick.
func (t Telemetry) Validate() error {
	switch t.Zone {
	case ZoneAisle, ZoneLoadingBay, ZoneOther:
	default:
		return fmt.Errorf("telemetry: invalid zone %q", t.Zone)
	}
	if t.HumanConf < 0 || t.HumanConf > 1 {
		return fmt.Errorf("telemetry: human_conf %v out of [0,1]", t.HumanConf)
	}
	if t.Speed < 0 {
		return fmt.Errorf("telemetry: negative speed %v", t.Speed)
	}
	if t.NearestObstacleM < 0 {
		return fmt.Errorf("telemetry: negative nearest_obstacle_m %v", t.NearestObstacleM)
	}
	if t.HumanDistanceM < 0 {
		return fmt.Errorf("telemetry: negative human_distance_m %v", t.HumanDistanceM)
	}
	return nil
}

// Rect is an axis-aligned rectangle used for geofences and named zones.
type Rect struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Contains reports whether p lies within r (inclusive bounds).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// NamedZone associates a zone rectangle with its kind.
type NamedZone struct {
	Name Zone `json:"name"`
	Rect Rect `json:"rect"`
}

// Obstacle is a circular obstacle in the world map.
type Obstacle struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	R float64 `json:"r"`
}

// BayType is the closed set of loading-bay kinds.
type BayType string

const (
	BayTypeLoading   BayType = "loading"
	BayTypeStaging   BayType = "staging"
	BayTypeCharging  BayType = "charging"
)

// Bay is a named docking location.
type Bay struct {
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Type BayType `json:"type"`
}

// Human describes the currently tracked human, if any.
type Human struct {
	Detected bool    `json:"detected"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// World is the static-ish map returned by the simulator's world snapshot.
type World struct {
	Geofence  Rect        `json:"geofence"`
	Zones     []NamedZone `json:"zones"`
	Obstacles []Obstacle  `json:"obstacles"`
	Human     Human       `json:"human"`
	Bays      []Bay       `json:"bays"`
}

// ZoneAt returns the named zone containing p, or ZoneOther if none matches.
func (w World) ZoneAt(p Point) Zone {
	for _, z := range w.Zones {
		if z.Rect.Contains(p) {
			return z.Name
		}
	}
	return ZoneOther
}
