package agent

import "context"

// Step is one model turn in the agentic loop: the tool it chose to invoke
// and that tool's argument payload.
type Step struct {
	Thought   string
	Tool      string
	Candidate CandidateArgs
	Hint      string
	Reason    string
}

// CandidateArgs is the argument shape for check_policy/submit_action.
type CandidateArgs struct {
	Intent   string
	X        float64
	Y        float64
	MaxSpeed float64
}

// LLMClient proposes the next Step given the running transcript. The
// teacher's pkg/llm.Client wraps a generated gRPC stub (pb.LLMServiceClient)
// that this pack has no .proto/codegen for; this interface replaces it with
// a plain Go contract so a real HTTP-backed implementation can be swapped in
// without pulling in protobuf/grpc codegen this module can't regenerate.
type LLMClient interface {
	NextStep(ctx context.Context, transcript []TranscriptEntry) (Step, error)
}

// TranscriptEntry is one exchange already recorded in the loop.
type TranscriptEntry struct {
	Role    string // "system", "assistant", "observation"
	Content string
}

// MockLLMClient is a deterministic stand-in used whenever no real model
// endpoint is configured — it always follows the same assess → check →
// submit script toward the goal at the planner's default speed, so agentic
// mode stays deterministic under test and in environments without LLM
// access. It never calls replan or graceful_stop.
type MockLLMClient struct {
	Goal   Goal
	Config PlannerConfig
}

// NextStep implements LLMClient using the fixed script: assess once, then
// propose a MOVE_TO toward the goal via check_policy, then submit that same
// candidate. The check_policy outcome does not change the script: a denied
// candidate is still submitted.
func (m MockLLMClient) NextStep(ctx context.Context, transcript []TranscriptEntry) (Step, error) {
	assessed := false
	checked := false
	for _, entry := range transcript {
		switch {
		case entry.Role == "assistant" && entry.Content == "assess_environment":
			assessed = true
		case entry.Role == "assistant" && entry.Content == "check_policy":
			checked = true
		}
	}

	if !assessed {
		return Step{Thought: "checking environment before proposing", Tool: "assess_environment"}, nil
	}
	if !checked {
		return Step{
			Thought: "proposing move toward goal",
			Tool:    "check_policy",
			Candidate: CandidateArgs{
				Intent:   "MOVE_TO",
				X:        m.Goal.X,
				Y:        m.Goal.Y,
				MaxSpeed: m.Config.DefaultSpeed,
			},
		}, nil
	}
	return Step{
		Thought: "submitting checked candidate",
		Tool:    "submit_action",
		Candidate: CandidateArgs{
			Intent:   "MOVE_TO",
			X:        m.Goal.X,
			Y:        m.Goal.Y,
			MaxSpeed: m.Config.DefaultSpeed,
		},
	}, nil
}
