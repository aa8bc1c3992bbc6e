package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/antigravity-dev/robogovern/pkg/policy"
	"github.com/antigravity-dev/robogovern/pkg/runservice"
	"github.com/antigravity-dev/robogovern/pkg/simclient"
	"github.com/antigravity-dev/robogovern/pkg/store"
)

// CatalogYAML is the optional policy-catalog override file: operators tune
// thresholds without a rebuild. Fields left unset keep their §6-documented
// default, merged in via mergo exactly as the teacher merges builtin and
// user-defined agent/chain configs in pkg/config/loader.go's Initialize.
type CatalogYAML struct {
	StopRadiusM      *float64 `yaml:"stop_radius_m,omitempty"`
	SlowRadiusM      *float64 `yaml:"slow_radius_m,omitempty"`
	SlowSpeed        *float64 `yaml:"slow_speed,omitempty"`
	CollisionRadiusM *float64 `yaml:"collision_radius_m,omitempty"`
	MinClearanceM    *float64 `yaml:"min_clearance_m,omitempty"`
	AisleSpeedLimit  *float64 `yaml:"aisle_speed_limit,omitempty"`
	BaySpeedLimit    *float64 `yaml:"bay_speed_limit,omitempty"`
	BatteryLowPct    *float64 `yaml:"battery_low_pct,omitempty"`
	RiskApproveMax   *float64 `yaml:"risk_approve_max,omitempty"`
	RiskDenyMin      *float64 `yaml:"risk_deny_min,omitempty"`
}

// Load builds the full Config from environment variables (via .env if
// present, following the teacher's godotenv.Load-then-os.Getenv bootstrap)
// plus an optional policy-catalog YAML file named by POLICY_CATALOG_PATH.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Store: store.Config{
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenvInt("DB_PORT", 5432),
			User:     getenv("DB_USER", "robogovern"),
			Password: getenv("DB_PASSWORD", ""),
			Database: getenv("DB_NAME", "robogovern"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
			MaxConns: int32(getenvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getenvInt("DB_MIN_CONNS", 2)),
		},
		Policy: policy.DefaultConfig(),
		Run:    runservice.DefaultConfig(),
		Sim: simclient.Config{
			BaseURL: getenv("SIM_BASE_URL", "http://localhost:9000"),
			Token:   getenv("SIM_TOKEN", ""),
			Timeout: getenvDuration("SIM_TIMEOUT_MS", 5000) * time.Millisecond,
		},
		Hub: HubConfig{
			SubscriberBuffer: getenvInt("SUBSCRIBER_BUFFER", 64),
			EvictAfter:       getenvInt("SLOW_SUB_EVICT", 8),
		},
		Agentic: AgenticConfig{
			MaxSteps:  getenvInt("AGENT_MAX_STEPS", 6),
			WallClock: getenvDuration("AGENT_WALL_MS", 5000) * time.Millisecond,
		},
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),
	}

	cfg.Run.TickPeriod = getenvDuration("TICK_PERIOD_MS", int64(cfg.Run.TickPeriod/time.Millisecond)) * time.Millisecond
	cfg.Run.StagnationCycles = int64(getenvInt("STAGNATION_CYCLES", int(cfg.Run.StagnationCycles)))
	cfg.Run.StagnationEpsM = getenvFloat("STAGNATION_EPS", cfg.Run.StagnationEpsM)
	cfg.Run.StagnationMinDist = getenvFloat("STAGNATION_MIN_DIST", cfg.Run.StagnationMinDist)
	cfg.Run.Planner.ArriveEpsM = getenvFloat("ARRIVE_EPS", cfg.Run.Planner.ArriveEpsM)
	cfg.Run.Planner.DefaultSpeed = getenvFloat("DEFAULT_SPEED", cfg.Run.Planner.DefaultSpeed)

	cfg.Policy.StopRadiusM = getenvFloat("STOP_RADIUS_M", cfg.Policy.StopRadiusM)
	cfg.Policy.SlowRadiusM = getenvFloat("SLOW_RADIUS_M", cfg.Policy.SlowRadiusM)
	cfg.Policy.SlowSpeed = getenvFloat("SLOW_SPEED", cfg.Policy.SlowSpeed)
	cfg.Policy.CollisionRadiusM = getenvFloat("COLLISION_RADIUS_M", cfg.Policy.CollisionRadiusM)
	cfg.Policy.Weights.High = getenvFloat("RISK_WEIGHTS_HIGH", cfg.Policy.Weights.High)
	cfg.Policy.Weights.Medium = getenvFloat("RISK_WEIGHTS_MEDIUM", cfg.Policy.Weights.Medium)
	cfg.Policy.Weights.Low = getenvFloat("RISK_WEIGHTS_LOW", cfg.Policy.Weights.Low)
	cfg.Policy.RiskApproveMax = getenvFloat("RISK_APPROVE_MAX", cfg.Policy.RiskApproveMax)
	cfg.Policy.RiskDenyMin = getenvFloat("RISK_DENY_MIN", cfg.Policy.RiskDenyMin)
	cfg.Run.Policy = cfg.Policy

	if path := os.Getenv("POLICY_CATALOG_PATH"); path != "" {
		if err := applyCatalogFile(&cfg.Policy, path); err != nil {
			return nil, err
		}
		cfg.Run.Policy = cfg.Policy
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyCatalogFile merges a CatalogYAML override onto cfg via mergo, mapping
// non-nil pointer fields onto the matching Config field.
func applyCatalogFile(cfg *policy.Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return NewLoadError(path, err)
	}
	raw = ExpandEnv(raw)

	var catalog CatalogYAML
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	// Build a sparse Config holding only the fields the YAML actually set,
	// then let mergo fill every field the catalog left zero from the
	// existing defaults — the same "user config wins, builtin fills the
	// rest" merge direction as the teacher's mergeAgents/mergeMCPServers in
	// pkg/config/merge.go, expressed through mergo instead of a hand-written
	// map walk since Config here is a flat struct, not a registry.
	var fromCatalog policy.Config
	assignIfSet(&fromCatalog.StopRadiusM, catalog.StopRadiusM)
	assignIfSet(&fromCatalog.SlowRadiusM, catalog.SlowRadiusM)
	assignIfSet(&fromCatalog.SlowSpeed, catalog.SlowSpeed)
	assignIfSet(&fromCatalog.CollisionRadiusM, catalog.CollisionRadiusM)
	assignIfSet(&fromCatalog.MinClearanceM, catalog.MinClearanceM)
	assignIfSet(&fromCatalog.AisleSpeedLimit, catalog.AisleSpeedLimit)
	assignIfSet(&fromCatalog.BaySpeedLimit, catalog.BaySpeedLimit)
	assignIfSet(&fromCatalog.BatteryLowPct, catalog.BatteryLowPct)
	assignIfSet(&fromCatalog.RiskApproveMax, catalog.RiskApproveMax)
	assignIfSet(&fromCatalog.RiskDenyMin, catalog.RiskDenyMin)

	if err := mergo.Merge(&fromCatalog, *cfg); err != nil {
		return NewLoadError(path, err)
	}
	*cfg = fromCatalog
	return nil
}

func assignIfSet(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvDuration(key string, fallbackMs int64) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(fallbackMs)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Duration(fallbackMs)
	}
	return time.Duration(n)
}
