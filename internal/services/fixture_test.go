package services_test

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

const (
	owner       models.Principal = "owner"
	engine      models.Principal = "engine"
	distributor models.Principal = "distributor"
	alice       models.Principal = "alice"
	bob         models.Principal = "bob"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type testChain struct {
	*services.Chain
	cfg    services.ChainConfig
	random *services.FixedRandom
	events *services.EventLog
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testChainConfig() services.ChainConfig {
	return services.ChainConfig{
		Owner:            owner,
		Engine:           engine,
		Distributor:      distributor,
		Game:             services.DefaultGameConfig(),
		DistributionMode: services.DistributionMint,
		Categories: []services.RewardCategory{
			{Name: "quiz-beginner", Reward: *models.Tokens(5)},
			{Name: "quiz-expert", Reward: *models.Tokens(25)},
		},
		InitialSupply:       *models.Tokens(1_000_000),
		RewardPoolAllowance: *models.Tokens(50_000),
		Clock:               func() time.Time { return fixedNow },
	}
}

// newTestChain builds and bootstraps a chain whose targets come from
// targets in order.
func newTestChain(t *testing.T, cfg services.ChainConfig, targets ...uint8) *testChain {
	t.Helper()

	if len(targets) == 0 {
		targets = []uint8{50}
	}
	random := services.NewFixedRandom(targets...)
	events := services.NewEventLog(0)

	chain, err := services.NewChain(cfg, random, events, quietLogger())
	require.NoError(t, err)
	require.NoError(t, chain.Bootstrap(cfg))

	return &testChain{Chain: chain, cfg: cfg, random: random, events: events}
}

func requireConserved(t *testing.T, c *testChain) {
	t.Helper()
	require.NoError(t, c.CheckConservation())
}

func intPtr(v int) *int {
	return &v
}
