package config

import (
	"time"

	"github.com/antigravity-dev/robogovern/pkg/policy"
	"github.com/antigravity-dev/robogovern/pkg/runservice"
	"github.com/antigravity-dev/robogovern/pkg/simclient"
	"github.com/antigravity-dev/robogovern/pkg/store"
)

// Config is the umbrella configuration object every component reads from at
// startup — the same "one object built by Initialize, threaded through
// main.go" shape the teacher's config.Config follows, generalized from its
// agent/chain/MCP registries to this domain's policy/runloop/store/sim
// settings.
type Config struct {
	Store     store.Config
	Policy    policy.Config
	Run       runservice.Config
	Sim       simclient.Config
	Hub       HubConfig
	Agentic   AgenticConfig
	HTTPAddr  string
	LogLevel  string
}

// HubConfig sizes the broadcast hub (C6).
type HubConfig struct {
	SubscriberBuffer int
	EvictAfter       int
}

// AgenticConfig bounds the agentic-propose tool-calling loop (C4.b).
// WallClock (AGENT_WALL_MS) is handed on to the API server, which does not
// apply it; only MaxSteps bounds the loop.
type AgenticConfig struct {
	MaxSteps   int
	WallClock  time.Duration
}
