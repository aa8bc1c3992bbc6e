package agent

import (
	"context"
	"fmt"

	"github.com/antigravity-dev/robogovern/pkg/policy"
	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

// DefaultMaxSteps is the agentic loop's step bound (§4.4.b).
const DefaultMaxSteps = 6

// DefaultDenialLimit forces a graceful_stop once this many consecutive
// denials accumulate in memory (§4.4.b).
const DefaultDenialLimit = 3

// LoopResult is what /agentic/propose returns to its caller (§6).
type LoopResult struct {
	Proposal       worldmodel.ActionProposal
	Governance     policy.GovernanceDecision
	ThoughtChain   []string
	MemorySummary  MemorySummary
	ReplanningUsed bool
	ModelUsed      string
}

// Loop runs the agentic tool-calling loop: up to maxSteps invocations of
// assess_environment / check_policy / submit_action / replan /
// graceful_stop, terminating on submit_action, graceful_stop, or a forced
// graceful_stop once denial_count reaches DefaultDenialLimit. Mirrors the
// teacher's ReActController.Run iterate-call-dispatch shape but with a
// closed 5-tool set instead of free-form text tool calling, and an
// in-memory ring buffer instead of DB-backed timeline/message storage.
func Loop(
	ctx context.Context,
	llm LLMClient,
	tel worldmodel.Telemetry,
	world worldmodel.World,
	cfg policy.Config,
	maxSteps int,
	modelUsed string,
) (LoopResult, error) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	mem := NewRingMemory(DefaultMemoryCapacity)
	var transcript []TranscriptEntry
	var thoughts []string
	replanningUsed := false

	for step := 0; step < maxSteps; step++ {
		if mem.Summary().DenialCount >= DefaultDenialLimit {
			return gracefulStopResult(mem, thoughts, modelUsed, replanningUsed, "denial_count reached limit"), nil
		}

		next, err := llm.NextStep(ctx, transcript)
		if err != nil {
			return LoopResult{}, fmt.Errorf("agent: model step failed: %w", err)
		}
		if next.Thought != "" {
			thoughts = append(thoughts, next.Thought)
		}
		transcript = append(transcript, TranscriptEntry{Role: "assistant", Content: next.Tool})

		switch next.Tool {
		case "assess_environment":
			summary := assessEnvironment(tel, world)
			transcript = append(transcript, TranscriptEntry{Role: "observation", Content: summary})

		case "check_policy":
			candidate := candidateToProposal(next.Candidate)
			decision, _ := policy.EvaluateFailClosed(tel, candidate, world, cfg)
			mem.Record(MemoryEntry{Proposal: candidate, Decision: decision})
			transcript = append(transcript, TranscriptEntry{Role: "observation", Content: string(decision.Decision)})

		case "submit_action":
			candidate := candidateToProposal(next.Candidate)
			decision, _ := policy.EvaluateFailClosed(tel, candidate, world, cfg)
			return LoopResult{
				Proposal:       candidate,
				Governance:     decision,
				ThoughtChain:   thoughts,
				MemorySummary:  mem.Summary(),
				ReplanningUsed: replanningUsed,
				ModelUsed:      modelUsed,
			}, nil

		case "replan":
			replanningUsed = true
			transcript = append(transcript, TranscriptEntry{Role: "observation", Content: "recorded replan hint: " + next.Hint})

		case "graceful_stop":
			return gracefulStopResult(mem, thoughts, modelUsed, replanningUsed, next.Reason), nil

		default:
			transcript = append(transcript, TranscriptEntry{Role: "observation", Content: "unknown tool: " + next.Tool})
		}
	}

	return gracefulStopResult(mem, thoughts, modelUsed, replanningUsed, "max_steps reached"), nil
}

func gracefulStopResult(mem *RingMemory, thoughts []string, modelUsed string, replanningUsed bool, reason string) LoopResult {
	proposal := worldmodel.ActionProposal{Intent: worldmodel.IntentStop, Rationale: reason}
	return LoopResult{
		Proposal: proposal,
		Governance: policy.GovernanceDecision{
			Decision:    policy.DecisionApproved,
			PolicyState: policy.StateStop,
			PolicyHits:  []string{},
			Reasons:     []string{reason},
			RiskScore:   0,
		},
		ThoughtChain:   thoughts,
		MemorySummary:  mem.Summary(),
		ReplanningUsed: replanningUsed,
		ModelUsed:      modelUsed,
	}
}

func candidateToProposal(c CandidateArgs) worldmodel.ActionProposal {
	return worldmodel.ActionProposal{
		Intent: worldmodel.Intent(c.Intent),
		Params: worldmodel.MoveToParams{X: c.X, Y: c.Y, MaxSpeed: c.MaxSpeed},
	}
}

// assessEnvironment is the pure assess_environment() tool: a textual
// summary of telemetry+world hazards, with no side effects.
func assessEnvironment(t worldmodel.Telemetry, w worldmodel.World) string {
	return fmt.Sprintf(
		"zone=%s human_detected=%t human_distance_m=%.2f nearest_obstacle_m=%.2f battery_pct=%.1f obstacles=%d",
		t.Zone, t.HumanDetected, t.HumanDistanceM, t.NearestObstacleM, t.BatteryPct, len(w.Obstacles),
	)
}
