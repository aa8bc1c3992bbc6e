package policy

import (
	"fmt"

	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

// EvaluateFailClosed wraps Evaluate with the fail-closed posture required of
// every governance call site (§7 PolicyFailureClosed): any panic inside the
// rule catalog is recovered and turned into a DENIED/STOP decision rather
// than propagating, mirroring the fail-closed branch of other_examples'
// Kocoro-lab-Shannon policy engine (OPAEngine with FailClosed set) rather
// than that engine's fail-open alternative. Evaluate itself is a total
// function and should never panic; this wrapper exists because every caller
// crossing into the run loop (C7) must never let a defect in the rule
// catalog fall through as an implicit approval.
func EvaluateFailClosed(t worldmodel.Telemetry, p worldmodel.ActionProposal, w worldmodel.World, cfg Config) (decision GovernanceDecision, err error) {
	defer func() {
		if r := recover(); r != nil {
			action := "halt"
			err = fmt.Errorf("policy: engine failure, fail-closed: %v", r)
			decision = GovernanceDecision{
				Decision:       DecisionDenied,
				PolicyState:    StateStop,
				PolicyHits:     []string{"ENGINE_FAILURE"},
				Reasons:        []string{"engine_error"},
				RequiredAction: &action,
				RiskScore:      1.0,
			}
		}
	}()

	if verr := t.Validate(); verr != nil {
		return failClosedOn(fmt.Errorf("policy: invalid telemetry: %w", verr)), verr
	}
	if verr := p.Validate(); verr != nil {
		return failClosedOn(fmt.Errorf("policy: invalid proposal: %w", verr)), verr
	}

	return Evaluate(t, p, w, cfg), nil
}

func failClosedOn(err error) GovernanceDecision {
	action := "halt"
	return GovernanceDecision{
		Decision:       DecisionDenied,
		PolicyState:    StateStop,
		PolicyHits:     []string{"ENGINE_FAILURE"},
		Reasons:        []string{"engine_error"},
		RequiredAction: &action,
		RiskScore:      1.0,
	}
}
