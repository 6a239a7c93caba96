package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guess-reward-backend/internal/config"
	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

func TestNewChainConfigFromEnvironment(t *testing.T) {
	t.Setenv("WIN_THRESHOLD", "10")
	t.Setenv("DISTRIBUTOR_MODE", "transfer")
	t.Setenv("DISTRIBUTOR_ALLOWANCE", models.Tokens(100).Dec())

	cfg, err := config.Load()
	require.NoError(t, err)

	cc, err := services.NewChainConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, models.Principal("owner"), cc.Owner)
	assert.Equal(t, services.DistributionTransfer, cc.DistributionMode)
	assert.Equal(t, uint8(10), cc.Game.WinThreshold)
	assert.Equal(t, uint8(10), cc.Game.Tiers[len(cc.Game.Tiers)-1].MaxDifference)
	assert.Equal(t, models.Tokens(100).Dec(), cc.DistributorAllowance.Dec())
	assert.Len(t, cc.Categories, 3)

	chain, err := services.NewChain(cc, services.NewFixedRandom(50), nil, quietLogger())
	require.NoError(t, err)
	require.NoError(t, chain.Bootstrap(cc))
	assert.Equal(t, models.Tokens(1_000_000).Dec(), chain.Ledger.TotalSupply().Dec())
}

func TestNewChainConfigRejectsSharedPrincipals(t *testing.T) {
	t.Setenv("ENGINE_PRINCIPAL", "owner")

	cfg, err := config.Load()
	require.NoError(t, err)

	_, err = services.NewChainConfig(cfg)
	assert.ErrorIs(t, err, services.ErrInvalidPrincipal)
}
