// Package config centralizes runtime configuration for the motion core.
// Values are resolved once from the environment; a .env file in the working
// directory is honored when present.
package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the motion core. Defaults match the
// reference deployment: a 45-455mm mat, 10mm grid cells and 50mm square
// unit footprints.
type Config struct {
	// Mat bounds in world coordinates (FLEET_MAT_MIN_X etc.)
	MatMinX, MatMaxX int
	MatMinY, MatMaxY int

	// CellSize is the grid resolution in mm (FLEET_CELL_SIZE)
	CellSize int

	// FootprintSide is the reservation square edge in mm (FLEET_FOOTPRINT_SIDE)
	FootprintSide int

	// SafetyRadius is the occupancy footprint half-edge in mm (FLEET_SAFETY_RADIUS)
	SafetyRadius int

	// SafetyDistance is the Euclidean threshold for the hybrid target-safety
	// check in mm (FLEET_SAFETY_DISTANCE)
	SafetyDistance int

	// TrackerInterval is the telemetry sampling period (FLEET_TRACKER_INTERVAL)
	TrackerInterval time.Duration

	// HistoryMaxSamples caps per-unit position history (FLEET_HISTORY_MAX_SAMPLES)
	HistoryMaxSamples int

	// HistoryMaxAge evicts samples older than this (FLEET_HISTORY_MAX_AGE)
	HistoryMaxAge time.Duration

	// PlannerInterval is the planning loop period (FLEET_PLANNER_INTERVAL)
	PlannerInterval time.Duration

	// RequestTimeout expires queued path requests (FLEET_REQUEST_TIMEOUT)
	RequestTimeout time.Duration

	// WaypointInterval is the assumed traversal time per waypoint used by the
	// spatio-temporal conflict test (FLEET_WAYPOINT_INTERVAL)
	WaypointInterval time.Duration

	// ConflictDistance is the spatial conflict threshold in mm (FLEET_CONFLICT_DISTANCE)
	ConflictDistance int

	// ConflictWindow is the temporal conflict threshold (FLEET_CONFLICT_WINDOW)
	ConflictWindow time.Duration

	// MaxResolveAttempts bounds conflict-resolution retries (FLEET_MAX_RESOLVE_ATTEMPTS)
	MaxResolveAttempts int

	// DelayStep is the delay injected per resolution attempt (FLEET_DELAY_STEP)
	DelayStep time.Duration

	// DeviationThreshold triggers a replan when a unit strays this far from
	// its path, in mm (FLEET_DEVIATION_THRESHOLD)
	DeviationThreshold int

	// ArrivalThreshold retires a plan when the unit is this close to the
	// final waypoint, in mm (FLEET_ARRIVAL_THRESHOLD)
	ArrivalThreshold int

	// AssumedSpeed estimates execution time, in mm/s (FLEET_ASSUMED_SPEED)
	AssumedSpeed float64

	// PlanGrace extends a plan's lifetime past its estimate (FLEET_PLAN_GRACE)
	PlanGrace time.Duration

	// CommandTimeout bounds every device command (FLEET_COMMAND_TIMEOUT)
	CommandTimeout time.Duration

	// ConflictPolicy selects behavior when resolution retries are exhausted:
	// "warn" keeps the plan with its conflict set, "escalate" re-queues the
	// request once at Emergency priority, "block" drops the plan
	// (FLEET_CONFLICT_POLICY)
	ConflictPolicy string
}

var (
	once sync.Once
	cfg  *Config
)

// Load returns the process-wide configuration, resolving it on first call.
func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		cfg = &Config{
			MatMinX:            envInt("FLEET_MAT_MIN_X", 45),
			MatMaxX:            envInt("FLEET_MAT_MAX_X", 455),
			MatMinY:            envInt("FLEET_MAT_MIN_Y", 45),
			MatMaxY:            envInt("FLEET_MAT_MAX_Y", 455),
			CellSize:           envInt("FLEET_CELL_SIZE", 10),
			FootprintSide:      envInt("FLEET_FOOTPRINT_SIDE", 50),
			SafetyRadius:       envInt("FLEET_SAFETY_RADIUS", 25),
			SafetyDistance:     envInt("FLEET_SAFETY_DISTANCE", 50),
			TrackerInterval:    envDuration("FLEET_TRACKER_INTERVAL", 100*time.Millisecond),
			HistoryMaxSamples:  envInt("FLEET_HISTORY_MAX_SAMPLES", 50),
			HistoryMaxAge:      envDuration("FLEET_HISTORY_MAX_AGE", 10*time.Second),
			PlannerInterval:    envDuration("FLEET_PLANNER_INTERVAL", 100*time.Millisecond),
			RequestTimeout:     envDuration("FLEET_REQUEST_TIMEOUT", 5*time.Second),
			WaypointInterval:   envDuration("FLEET_WAYPOINT_INTERVAL", 500*time.Millisecond),
			ConflictDistance:   envInt("FLEET_CONFLICT_DISTANCE", 50),
			ConflictWindow:     envDuration("FLEET_CONFLICT_WINDOW", 2*time.Second),
			MaxResolveAttempts: envInt("FLEET_MAX_RESOLVE_ATTEMPTS", 3),
			DelayStep:          envDuration("FLEET_DELAY_STEP", time.Second),
			DeviationThreshold: envInt("FLEET_DEVIATION_THRESHOLD", 20),
			ArrivalThreshold:   envInt("FLEET_ARRIVAL_THRESHOLD", 15),
			AssumedSpeed:       envFloat("FLEET_ASSUMED_SPEED", 50),
			PlanGrace:          envDuration("FLEET_PLAN_GRACE", 30*time.Second),
			CommandTimeout:     envDuration("FLEET_COMMAND_TIMEOUT", 10*time.Second),
			ConflictPolicy:     envString("FLEET_CONFLICT_POLICY", PolicyWarn),
		}
	})
	return cfg
}

// Reset clears the cached configuration so the next Load re-reads the
// environment. Intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}

// Conflict-exhaustion policies.
const (
	PolicyWarn     = "warn"
	PolicyEscalate = "escalate"
	PolicyBlock    = "block"
)

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
