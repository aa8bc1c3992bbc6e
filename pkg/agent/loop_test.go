package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/robogovern/pkg/policy"
	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

func TestLoop_MockClient_SubmitsApprovedMove(t *testing.T) {
	goal := Goal{X: 15, Y: 7}
	mock := MockLLMClient{Goal: goal, Config: DefaultPlannerConfig()}
	world := worldmodel.World{Geofence: worldmodel.Rect{MinX: -50, MaxX: 50, MinY: -50, MaxY: 50}}
	tel := worldmodel.Telemetry{X: 0, Y: 0, Zone: worldmodel.ZoneAisle, NearestObstacleM: 5, BatteryPct: 80}

	res, err := Loop(context.Background(), mock, tel, world, policy.DefaultConfig(), DefaultMaxSteps, "mock")
	require.NoError(t, err)
	require.Equal(t, worldmodel.IntentMoveTo, res.Proposal.Intent)
	require.Equal(t, policy.DecisionApproved, res.Governance.Decision)
	require.NotEmpty(t, res.ThoughtChain)
}

// denyThenSubmit always denies via check_policy forever, to exercise the
// denial-count forced graceful_stop.
type denyThenSubmit struct{ calls int }

func (d *denyThenSubmit) NextStep(ctx context.Context, transcript []TranscriptEntry) (Step, error) {
	d.calls++
	return Step{Tool: "check_policy", Candidate: CandidateArgs{Intent: "MOVE_TO", X: 100, Y: 100, MaxSpeed: 0.5}}, nil
}

func TestLoop_ForcedGracefulStop_AfterThreeConsecutiveDenials(t *testing.T) {
	world := worldmodel.World{Geofence: worldmodel.Rect{MinX: -1, MaxX: 1, MinY: -1, MaxY: 1}}
	tel := worldmodel.Telemetry{X: 0, Y: 0, Zone: worldmodel.ZoneAisle}

	res, err := Loop(context.Background(), &denyThenSubmit{}, tel, world, policy.DefaultConfig(), 10, "mock")
	require.NoError(t, err)
	require.Equal(t, worldmodel.IntentStop, res.Proposal.Intent)
	require.GreaterOrEqual(t, res.MemorySummary.DenialCount, DefaultDenialLimit)
}

type gracefulStopClient struct{}

func (gracefulStopClient) NextStep(ctx context.Context, transcript []TranscriptEntry) (Step, error) {
	return Step{Tool: "graceful_stop", Reason: "operator requested stop"}, nil
}

func TestLoop_GracefulStopTool_TerminatesImmediately(t *testing.T) {
	world := worldmodel.World{}
	tel := worldmodel.Telemetry{}

	res, err := Loop(context.Background(), gracefulStopClient{}, tel, world, policy.DefaultConfig(), DefaultMaxSteps, "mock")
	require.NoError(t, err)
	require.Equal(t, worldmodel.IntentStop, res.Proposal.Intent)
	require.Contains(t, res.Governance.Reasons, "operator requested stop")
}

type maxStepsClient struct{}

func (maxStepsClient) NextStep(ctx context.Context, transcript []TranscriptEntry) (Step, error) {
	return Step{Tool: "assess_environment"}, nil
}

func TestLoop_MaxStepsReached_ForcesGracefulStop(t *testing.T) {
	res, err := Loop(context.Background(), maxStepsClient{}, worldmodel.Telemetry{}, worldmodel.World{}, policy.DefaultConfig(), 3, "mock")
	require.NoError(t, err)
	require.Equal(t, worldmodel.IntentStop, res.Proposal.Intent)
}
