package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

func TestClaimIsOneTime(t *testing.T) {
	c := newTestChain(t, testChainConfig())

	reward, err := c.Distributor.DistributeReward(alice, "quiz-expert")
	require.NoError(t, err)
	assert.Equal(t, models.Tokens(25).Dec(), reward.Dec())
	assert.Equal(t, models.Tokens(25).Dec(), c.Ledger.BalanceOf(alice).Dec())
	assert.True(t, c.Distributor.HasClaimed(alice, "quiz-expert"))
	assert.False(t, c.Distributor.HasClaimed(alice, "quiz-beginner"))

	_, err = c.Distributor.DistributeReward(alice, "quiz-expert")
	assert.ErrorIs(t, err, services.ErrAlreadyClaimed)
	assert.Equal(t, models.Tokens(25).Dec(), c.Ledger.BalanceOf(alice).Dec())

	// Other categories and other players are independent.
	_, err = c.Distributor.DistributeReward(alice, "quiz-beginner")
	require.NoError(t, err)
	_, err = c.Distributor.DistributeReward(bob, "quiz-expert")
	require.NoError(t, err)

	assert.Equal(t, models.Tokens(1_000_055).Dec(), c.Ledger.TotalSupply().Dec())
	requireConserved(t, c)
}

func TestClaimRejectsUnknownCategoryAndPause(t *testing.T) {
	c := newTestChain(t, testChainConfig())

	_, err := c.Distributor.DistributeReward(alice, "quiz-impossible")
	assert.ErrorIs(t, err, services.ErrUnknownCategory)
	assert.Equal(t, "InvalidInput", services.Kind(err))

	_, err = c.Distributor.DistributeReward(models.ZeroPrincipal, "quiz-expert")
	assert.ErrorIs(t, err, services.ErrInvalidPrincipal)

	require.NoError(t, c.Access.Pause(owner))
	_, err = c.Distributor.DistributeReward(alice, "quiz-expert")
	assert.ErrorIs(t, err, services.ErrPaused)
	assert.False(t, c.Distributor.HasClaimed(alice, "quiz-expert"))
}

func TestFailedClaimLeavesClaimUnset(t *testing.T) {
	c := newTestChain(t, testChainConfig())
	require.NoError(t, c.Access.RemoveMinter(owner, distributor))

	_, err := c.Distributor.DistributeReward(alice, "quiz-expert")
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	assert.False(t, c.Distributor.HasClaimed(alice, "quiz-expert"))

	require.NoError(t, c.Access.AddMinter(owner, distributor))
	_, err = c.Distributor.DistributeReward(alice, "quiz-expert")
	assert.NoError(t, err)
}

func TestTransferModeDistributor(t *testing.T) {
	cfg := testChainConfig()
	cfg.DistributionMode = services.DistributionTransfer
	cfg.DistributorAllowance = *models.Tokens(30)
	c := newTestChain(t, cfg)

	assert.False(t, c.Access.IsMinter(distributor))
	assert.Equal(t, models.Tokens(30).Dec(), c.Ledger.Allowance(owner, distributor).Dec())

	_, err := c.Distributor.DistributeReward(alice, "quiz-expert")
	require.NoError(t, err)
	assert.Equal(t, models.Tokens(1_000_000).Dec(), c.Ledger.TotalSupply().Dec(), "transfer mode mints nothing")

	_, err = c.Distributor.DistributeReward(bob, "quiz-expert")
	assert.ErrorIs(t, err, services.ErrRewardPoolExhausted)
	assert.ErrorIs(t, err, services.ErrInsufficientAllowance)
	assert.False(t, c.Distributor.HasClaimed(bob, "quiz-expert"))
	requireConserved(t, c)
}

func TestClaimsOf(t *testing.T) {
	c := newTestChain(t, testChainConfig())
	_, err := c.Distributor.DistributeReward(alice, "quiz-expert")
	require.NoError(t, err)

	claims := c.Distributor.ClaimsOf(alice)
	require.Len(t, claims, 2)
	assert.Equal(t, models.ClaimResponse{Category: "quiz-beginner", Reward: models.Tokens(5).Dec(), Claimed: false}, claims[0])
	assert.Equal(t, models.ClaimResponse{Category: "quiz-expert", Reward: models.Tokens(25).Dec(), Claimed: true}, claims[1])
}

func TestDistributorRejectsBadCategories(t *testing.T) {
	cfg := testChainConfig()
	cfg.Categories = append(cfg.Categories, services.RewardCategory{Name: "quiz-expert", Reward: *models.Tokens(1)})

	_, err := services.NewChain(cfg, services.NewFixedRandom(1), nil, quietLogger())
	assert.Error(t, err)

	cfg = testChainConfig()
	cfg.DistributionMode = "airdrop"
	_, err = services.NewChain(cfg, services.NewFixedRandom(1), nil, quietLogger())
	assert.Error(t, err)
}
