package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearRoboGovernEnv(t *testing.T) {
	for _, key := range []string{
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"SIM_BASE_URL", "SIM_TOKEN", "TICK_PERIOD_MS", "STOP_RADIUS_M",
		"SLOW_RADIUS_M", "RISK_APPROVE_MAX", "RISK_DENY_MIN", "POLICY_CATALOG_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultsAreValid(t *testing.T) {
	clearRoboGovernEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "localhost", cfg.Store.Host)
	require.Equal(t, 1.0, cfg.Policy.StopRadiusM)
	require.NoError(t, Validate(cfg))
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	clearRoboGovernEnv(t)
	t.Setenv("STOP_RADIUS_M", "2.5")
	t.Setenv("SIM_BASE_URL", "http://sim.internal:9000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2.5, cfg.Policy.StopRadiusM)
	require.Equal(t, "http://sim.internal:9000", cfg.Sim.BaseURL)
}

func TestLoad_CatalogFileOverridesOnlyFieldsItSets(t *testing.T) {
	clearRoboGovernEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stop_radius_m: 1.5\n"), 0o644))
	t.Setenv("POLICY_CATALOG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 1.5, cfg.Policy.StopRadiusM)
	require.Equal(t, 3.0, cfg.Policy.SlowRadiusM) // untouched by catalog, kept at default
}

func TestValidate_RejectsInvertedRiskThresholds(t *testing.T) {
	clearRoboGovernEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Policy.RiskDenyMin = 0.5
	cfg.Policy.RiskApproveMax = 0.7

	err = Validate(cfg)
	require.Error(t, err)
}
