package config

import (
	"errors"
	"fmt"
)

// Validate checks the loaded Config for the invariants every downstream
// component assumes, collecting every violation rather than stopping at the
// first (the same accumulate-then-join shape as the teacher's validator.go,
// scaled down from its agent/chain/MCP cross-reference checks to this
// domain's handful of numeric bounds).
func Validate(cfg *Config) error {
	var errs []error

	check := func(cond bool, field, msg string) {
		if !cond {
			errs = append(errs, NewValidationError(field, fmt.Errorf("%s", msg)))
		}
	}

	check(cfg.Policy.StopRadiusM > 0, "policy.stop_radius_m", "must be positive")
	check(cfg.Policy.SlowRadiusM >= cfg.Policy.StopRadiusM, "policy.slow_radius_m", "must be >= stop_radius_m")
	check(cfg.Policy.SlowSpeed > 0, "policy.slow_speed", "must be positive")
	check(cfg.Policy.CollisionRadiusM > 0, "policy.collision_radius_m", "must be positive")
	check(cfg.Policy.RiskApproveMax > 0 && cfg.Policy.RiskApproveMax < 1, "policy.risk_approve_max", "must be in (0,1)")
	check(cfg.Policy.RiskDenyMin > cfg.Policy.RiskApproveMax && cfg.Policy.RiskDenyMin <= 1, "policy.risk_deny_min", "must be in (risk_approve_max, 1]")
	check(cfg.Policy.Weights.High > 0, "policy.weights.high", "must be positive")

	check(cfg.Run.TickPeriod > 0, "run.tick_period", "must be positive")
	check(cfg.Run.StagnationCycles > 0, "run.stagnation_cycles", "must be positive")
	check(cfg.Run.Planner.ArriveEpsM > 0, "run.planner.arrive_eps_m", "must be positive")
	check(cfg.Run.Planner.DefaultSpeed > 0, "run.planner.default_speed", "must be positive")

	check(cfg.Sim.BaseURL != "", "sim.base_url", "must be set")
	check(cfg.Hub.SubscriberBuffer > 0, "hub.subscriber_buffer", "must be positive")
	check(cfg.Hub.EvictAfter > 0, "hub.evict_after", "must be positive")
	check(cfg.Agentic.MaxSteps > 0, "agentic.max_steps", "must be positive")

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidationFailed, errors.Join(errs...))
}
