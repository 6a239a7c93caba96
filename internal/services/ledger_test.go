package services_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

func TestBootstrapMintsSupplyAndFundsEngine(t *testing.T) {
	c := newTestChain(t, testChainConfig())

	assert.Equal(t, models.Tokens(1_000_000).Dec(), c.Ledger.BalanceOf(owner).Dec())
	assert.Equal(t, models.Tokens(1_000_000).Dec(), c.Ledger.TotalSupply().Dec())
	assert.Equal(t, models.Tokens(50_000).Dec(), c.Ledger.Allowance(owner, engine).Dec())
	assert.True(t, c.Access.IsMinter(engine))
	assert.True(t, c.Access.IsMinter(distributor))
	requireConserved(t, c)

	// A second bootstrap is a no-op.
	require.NoError(t, c.Bootstrap(c.cfg))
	assert.Equal(t, models.Tokens(1_000_000).Dec(), c.Ledger.TotalSupply().Dec())
}

func TestTransfer(t *testing.T) {
	c := newTestChain(t, testChainConfig())

	require.NoError(t, c.Ledger.Transfer(owner, alice, models.Tokens(100)))
	assert.Equal(t, models.Tokens(100).Dec(), c.Ledger.BalanceOf(alice).Dec())
	assert.Equal(t, models.Tokens(999_900).Dec(), c.Ledger.BalanceOf(owner).Dec())
	requireConserved(t, c)

	err := c.Ledger.Transfer(alice, bob, models.Tokens(101))
	assert.ErrorIs(t, err, services.ErrInsufficientBalance)
	assert.Equal(t, models.Tokens(100).Dec(), c.Ledger.BalanceOf(alice).Dec())
	assert.True(t, c.Ledger.BalanceOf(bob).IsZero())

	err = c.Ledger.Transfer(alice, models.ZeroPrincipal, models.Tokens(1))
	assert.ErrorIs(t, err, services.ErrInvalidPrincipal)
	requireConserved(t, c)
}

func TestSelfTransferKeepsBalance(t *testing.T) {
	c := newTestChain(t, testChainConfig())
	require.NoError(t, c.Ledger.Transfer(owner, alice, models.Tokens(10)))

	require.NoError(t, c.Ledger.Transfer(alice, alice, models.Tokens(10)))
	assert.Equal(t, models.Tokens(10).Dec(), c.Ledger.BalanceOf(alice).Dec())
	requireConserved(t, c)
}

func TestApproveOverwrites(t *testing.T) {
	c := newTestChain(t, testChainConfig())

	require.NoError(t, c.Ledger.Approve(alice, bob, models.Tokens(10)))
	require.NoError(t, c.Ledger.Approve(alice, bob, models.Tokens(3)))
	assert.Equal(t, models.Tokens(3).Dec(), c.Ledger.Allowance(alice, bob).Dec())

	require.NoError(t, c.Ledger.Approve(alice, bob, new(uint256.Int)))
	assert.True(t, c.Ledger.Allowance(alice, bob).IsZero())
}

func TestTransferFrom(t *testing.T) {
	c := newTestChain(t, testChainConfig())
	require.NoError(t, c.Ledger.Transfer(owner, alice, models.Tokens(100)))
	require.NoError(t, c.Ledger.Approve(alice, bob, models.Tokens(40)))

	require.NoError(t, c.Ledger.TransferFrom(bob, alice, bob, models.Tokens(15)))
	assert.Equal(t, models.Tokens(25).Dec(), c.Ledger.Allowance(alice, bob).Dec())
	assert.Equal(t, models.Tokens(85).Dec(), c.Ledger.BalanceOf(alice).Dec())
	assert.Equal(t, models.Tokens(15).Dec(), c.Ledger.BalanceOf(bob).Dec())

	err := c.Ledger.TransferFrom(bob, alice, bob, models.Tokens(26))
	assert.ErrorIs(t, err, services.ErrInsufficientAllowance)
	assert.Equal(t, models.Tokens(25).Dec(), c.Ledger.Allowance(alice, bob).Dec())
	requireConserved(t, c)
}

func TestTransferFromChecksAllowanceBeforeBalance(t *testing.T) {
	c := newTestChain(t, testChainConfig())
	require.NoError(t, c.Ledger.Transfer(owner, alice, models.Tokens(5)))
	require.NoError(t, c.Ledger.Approve(alice, bob, models.Tokens(10)))

	// Covered by the allowance but not by the balance.
	err := c.Ledger.TransferFrom(bob, alice, bob, models.Tokens(8))
	assert.ErrorIs(t, err, services.ErrInsufficientBalance)
	assert.Equal(t, models.Tokens(10).Dec(), c.Ledger.Allowance(alice, bob).Dec())

	// Neither covered: allowance is reported.
	err = c.Ledger.TransferFrom(bob, alice, bob, models.Tokens(11))
	assert.ErrorIs(t, err, services.ErrInsufficientAllowance)
}

func TestMintRequiresMinter(t *testing.T) {
	c := newTestChain(t, testChainConfig())

	err := c.Ledger.Mint(alice, alice, models.Tokens(1))
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	require.NoError(t, c.Ledger.AddMinter(owner, alice))
	require.NoError(t, c.Ledger.Mint(alice, bob, models.Tokens(7)))
	assert.Equal(t, models.Tokens(7).Dec(), c.Ledger.BalanceOf(bob).Dec())
	assert.Equal(t, models.Tokens(1_000_007).Dec(), c.Ledger.TotalSupply().Dec())

	require.NoError(t, c.Ledger.RemoveMinter(owner, alice))
	err = c.Ledger.Mint(alice, bob, models.Tokens(1))
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	requireConserved(t, c)
}

func TestMintOverflow(t *testing.T) {
	c := newTestChain(t, testChainConfig())

	max := new(uint256.Int).SetAllOne()
	err := c.Ledger.Mint(owner, alice, max)
	assert.ErrorIs(t, err, services.ErrOverflow)
	assert.True(t, c.Ledger.BalanceOf(alice).IsZero())
	requireConserved(t, c)
}

func TestBurn(t *testing.T) {
	c := newTestChain(t, testChainConfig())
	require.NoError(t, c.Ledger.Transfer(owner, alice, models.Tokens(10)))

	require.NoError(t, c.Ledger.Burn(alice, models.Tokens(4)))
	assert.Equal(t, models.Tokens(6).Dec(), c.Ledger.BalanceOf(alice).Dec())
	assert.Equal(t, models.Tokens(4).Dec(), c.Ledger.TotalBurned().Dec())
	assert.Equal(t, models.Tokens(999_996).Dec(), c.Ledger.TotalSupply().Dec())

	err := c.Ledger.Burn(alice, models.Tokens(7))
	assert.ErrorIs(t, err, services.ErrInsufficientBalance)
	requireConserved(t, c)
}

func TestTransfersLogNewestFirst(t *testing.T) {
	c := newTestChain(t, testChainConfig())
	require.NoError(t, c.Ledger.Transfer(owner, alice, models.Tokens(1)))
	require.NoError(t, c.Ledger.Transfer(owner, bob, models.Tokens(2)))

	transfers := c.Ledger.Transfers(2)
	require.Len(t, transfers, 2)
	assert.Equal(t, bob, transfers[0].To)
	assert.Equal(t, alice, transfers[1].To)
	assert.Equal(t, models.TransferKindTransfer, transfers[0].Kind)

	all := c.Ledger.Transfers(0)
	assert.Equal(t, models.TransferKindMint, all[len(all)-1].Kind)
}

func TestHoldersSorted(t *testing.T) {
	c := newTestChain(t, testChainConfig())
	require.NoError(t, c.Ledger.Transfer(owner, bob, models.Tokens(1)))
	require.NoError(t, c.Ledger.Transfer(owner, alice, models.Tokens(1)))

	assert.Equal(t, []models.Principal{alice, bob, owner}, c.Ledger.Holders())
}
