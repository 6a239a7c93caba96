package services

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/models"
)

const snapshotVersion = 1

// ChainConfig carries the deployment parameters of the core.
type ChainConfig struct {
	Owner       models.Principal
	Engine      models.Principal
	Distributor models.Principal

	Game             GameConfig
	DistributionMode DistributionMode
	Categories       []RewardCategory

	InitialSupply        uint256.Int
	RewardPoolAllowance  uint256.Int
	DistributorAllowance uint256.Int

	Clock func() time.Time
}

func (c ChainConfig) Validate() error {
	if c.Owner == models.ZeroPrincipal || c.Engine == models.ZeroPrincipal || c.Distributor == models.ZeroPrincipal {
		return fmt.Errorf("chain config: owner, engine and distributor principals are required: %w", ErrInvalidPrincipal)
	}
	if c.Owner == c.Engine || c.Owner == c.Distributor || c.Engine == c.Distributor {
		return fmt.Errorf("chain config: owner, engine and distributor must differ: %w", ErrInvalidPrincipal)
	}
	return c.Game.Validate()
}

// Chain wires the core components around one kernel.
type Chain struct {
	k           *kernel
	Access      *AccessControl
	Ledger      *Ledger
	Engine      *GameEngine
	Distributor *RewardDistributor
}

func NewChain(cfg ChainConfig, random RandomSource, sink EventSink, log *logrus.Logger) (*Chain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if random == nil {
		return nil, fmt.Errorf("chain: random source is required")
	}

	k := newKernel(sink, cfg.Clock, log)
	access := newAccessControl(k, cfg.Owner)
	ledger := newLedger(k, access)
	engine := newGameEngine(k, access, ledger, random, cfg.Engine, cfg.Game)
	distributor, err := newRewardDistributor(k, access, ledger, cfg.Distributor, cfg.DistributionMode, cfg.Categories)
	if err != nil {
		return nil, err
	}

	return &Chain{
		k:           k,
		Access:      access,
		Ledger:      ledger,
		Engine:      engine,
		Distributor: distributor,
	}, nil
}

// Bootstrap performs the deployment steps: mint the initial supply to the
// owner, fund the engine's reward allowance and register minters. It does
// nothing once tokens have been minted.
func (c *Chain) Bootstrap(cfg ChainConfig) error {
	if !c.Ledger.TotalMinted().IsZero() {
		c.k.log.Info("ledger already initialised, skipping bootstrap")
		return nil
	}

	owner := c.Access.Owner()
	if err := c.Ledger.Mint(owner, owner, cfg.InitialSupply.Clone()); err != nil {
		return fmt.Errorf("mint initial supply: %w", err)
	}
	if err := c.Ledger.Approve(owner, c.Engine.Principal(), cfg.RewardPoolAllowance.Clone()); err != nil {
		return fmt.Errorf("approve reward pool: %w", err)
	}
	if err := c.Access.AddMinter(owner, c.Engine.Principal()); err != nil {
		return fmt.Errorf("add engine minter: %w", err)
	}

	switch c.Distributor.Mode() {
	case DistributionMint:
		if err := c.Access.AddMinter(owner, c.Distributor.Principal()); err != nil {
			return fmt.Errorf("add distributor minter: %w", err)
		}
	case DistributionTransfer:
		if err := c.Ledger.Approve(owner, c.Distributor.Principal(), cfg.DistributorAllowance.Clone()); err != nil {
			return fmt.Errorf("approve distributor: %w", err)
		}
	}

	c.k.log.WithFields(logrus.Fields{
		"owner":          owner,
		"initial_supply": models.FormatTokens(&cfg.InitialSupply),
		"reward_pool":    models.FormatTokens(&cfg.RewardPoolAllowance),
	}).Info("chain bootstrapped")
	return nil
}

// CheckConservation verifies that balances sum to the total supply and that
// the supply equals minted minus burned.
func (c *Chain) CheckConservation() error {
	c.k.mu.RLock()
	defer c.k.mu.RUnlock()
	return c.checkConservationLocked()
}

func (c *Chain) checkConservationLocked() error {
	l := c.Ledger
	sum := new(uint256.Int)
	for p, bal := range l.balances {
		var overflow bool
		sum, overflow = sum.AddOverflow(sum, &bal)
		if overflow {
			return fmt.Errorf("balances overflow at %s: %w", p, ErrOverflow)
		}
	}
	if !sum.Eq(&l.totalSupply) {
		return fmt.Errorf("balances sum to %s, total supply is %s", sum.Dec(), l.totalSupply.Dec())
	}
	net, underflow := new(uint256.Int).SubOverflow(&l.totalMinted, &l.totalBurned)
	if underflow || !net.Eq(&l.totalSupply) {
		return fmt.Errorf("minted %s minus burned %s does not equal supply %s",
			l.totalMinted.Dec(), l.totalBurned.Dec(), l.totalSupply.Dec())
	}
	return nil
}

// Snapshot is a point-in-time copy of all core state. Amounts are decimal
// strings in base units.
type Snapshot struct {
	Version     int                                              `json:"version"`
	Owner       models.Principal                                 `json:"owner"`
	Paused      bool                                             `json:"paused"`
	Minters     []models.Principal                               `json:"minters"`
	Balances    map[models.Principal]string                      `json:"balances"`
	Allowances  map[models.Principal]map[models.Principal]string `json:"allowances"`
	TotalSupply string                                           `json:"total_supply"`
	TotalMinted string                                           `json:"total_minted"`
	TotalBurned string                                           `json:"total_burned"`
	Nonce       uint64                                           `json:"nonce"`
	Rounds      map[models.Principal]models.GameRoundResponse    `json:"rounds"`
	Stats       map[models.Principal]StatsSnapshot               `json:"stats"`
	Claims      map[models.Principal][]string                    `json:"claims"`
	Sequence    uint64                                           `json:"sequence"`
	TakenAt     time.Time                                        `json:"taken_at"`
}

type StatsSnapshot struct {
	TotalGames         uint64 `json:"total_games"`
	Wins               uint64 `json:"wins"`
	TotalRewardsEarned string `json:"total_rewards_earned"`
	SumDifference      uint64 `json:"sum_difference"`
}

// Snapshot copies the state under the read lock.
func (c *Chain) Snapshot() *Snapshot {
	c.k.mu.RLock()
	defer c.k.mu.RUnlock()

	l, ge := c.Ledger, c.Engine
	s := &Snapshot{
		Version:     snapshotVersion,
		Owner:       c.Access.owner,
		Paused:      c.Access.paused,
		Balances:    make(map[models.Principal]string, len(l.balances)),
		Allowances:  make(map[models.Principal]map[models.Principal]string, len(l.allowances)),
		TotalSupply: l.totalSupply.Dec(),
		TotalMinted: l.totalMinted.Dec(),
		TotalBurned: l.totalBurned.Dec(),
		Nonce:       ge.nonce,
		Rounds:      make(map[models.Principal]models.GameRoundResponse, len(ge.latest)),
		Stats:       make(map[models.Principal]StatsSnapshot, len(ge.stats)),
		Claims:      make(map[models.Principal][]string, len(c.Distributor.claims)),
		Sequence:    c.k.seq,
		TakenAt:     c.k.clock(),
	}
	for p := range c.Access.minters {
		s.Minters = append(s.Minters, p)
	}
	for p, bal := range l.balances {
		s.Balances[p] = bal.Dec()
	}
	for owner, bySpender := range l.allowances {
		m := make(map[models.Principal]string, len(bySpender))
		for spender, v := range bySpender {
			m[spender] = v.Dec()
		}
		s.Allowances[owner] = m
	}
	for p, r := range ge.latest {
		s.Rounds[p] = r.Response()
	}
	for p, st := range ge.stats {
		s.Stats[p] = StatsSnapshot{
			TotalGames:         st.TotalGames,
			Wins:               st.Wins,
			TotalRewardsEarned: st.TotalRewardsEarned.Dec(),
			SumDifference:      st.SumDifference,
		}
	}
	for p, byCategory := range c.Distributor.claims {
		for category, claimed := range byCategory {
			if claimed {
				s.Claims[p] = append(s.Claims[p], category)
			}
		}
	}
	return s
}

// Restore replaces all state with s. The snapshot must belong to the same
// owner and satisfy conservation; otherwise nothing changes.
func (c *Chain) Restore(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("restore: nil snapshot")
	}
	if s.Version != snapshotVersion {
		return fmt.Errorf("restore: unsupported snapshot version %d", s.Version)
	}
	if s.Owner != c.Access.owner {
		return fmt.Errorf("restore: snapshot owner %s does not match %s: %w", s.Owner, c.Access.owner, ErrUnauthorized)
	}

	balances := make(map[models.Principal]uint256.Int, len(s.Balances))
	for p, v := range s.Balances {
		amount, err := models.ParseAmount(v)
		if err != nil {
			return fmt.Errorf("restore balance of %s: %w", p, err)
		}
		if !amount.IsZero() {
			balances[p] = *amount
		}
	}
	allowances := make(map[models.Principal]map[models.Principal]uint256.Int, len(s.Allowances))
	for owner, bySpender := range s.Allowances {
		m := make(map[models.Principal]uint256.Int, len(bySpender))
		for spender, v := range bySpender {
			amount, err := models.ParseAmount(v)
			if err != nil {
				return fmt.Errorf("restore allowance %s->%s: %w", owner, spender, err)
			}
			if !amount.IsZero() {
				m[spender] = *amount
			}
		}
		if len(m) > 0 {
			allowances[owner] = m
		}
	}
	var totals [3]uint256.Int
	for i, v := range []string{s.TotalSupply, s.TotalMinted, s.TotalBurned} {
		amount, err := models.ParseAmount(v)
		if err != nil {
			return fmt.Errorf("restore totals: %w", err)
		}
		totals[i] = *amount
	}
	latest := make(map[models.Principal]models.GameRound, len(s.Rounds))
	for p, r := range s.Rounds {
		reward, err := models.ParseAmount(r.RewardAmount)
		if err != nil {
			return fmt.Errorf("restore round of %s: %w", p, err)
		}
		latest[p] = models.GameRound{
			Player:       p,
			TargetNumber: r.TargetNumber,
			UserGuess:    r.UserGuess,
			Difference:   r.Difference,
			RewardAmount: *reward,
			Tier:         r.Tier,
			Nonce:        r.Nonce,
			Timestamp:    time.Unix(r.Timestamp, 0),
		}
	}
	stats := make(map[models.Principal]models.PlayerStats, len(s.Stats))
	for p, st := range s.Stats {
		total, err := models.ParseAmount(st.TotalRewardsEarned)
		if err != nil {
			return fmt.Errorf("restore stats of %s: %w", p, err)
		}
		stats[p] = models.PlayerStats{
			TotalGames:         st.TotalGames,
			Wins:               st.Wins,
			TotalRewardsEarned: *total,
			SumDifference:      st.SumDifference,
		}
	}
	claims := make(map[models.Principal]map[string]bool, len(s.Claims))
	for p, categories := range s.Claims {
		m := make(map[string]bool, len(categories))
		for _, category := range categories {
			m[category] = true
		}
		claims[p] = m
	}
	minters := make(map[models.Principal]struct{}, len(s.Minters))
	for _, p := range s.Minters {
		minters[p] = struct{}{}
	}

	c.k.mu.Lock()
	defer c.k.mu.Unlock()

	l, ge := c.Ledger, c.Engine
	prev := struct {
		balances   map[models.Principal]uint256.Int
		allowances map[models.Principal]map[models.Principal]uint256.Int
		totals     [3]uint256.Int
	}{l.balances, l.allowances, [3]uint256.Int{l.totalSupply, l.totalMinted, l.totalBurned}}

	l.balances, l.allowances = balances, allowances
	l.totalSupply, l.totalMinted, l.totalBurned = totals[0], totals[1], totals[2]
	if err := c.checkConservationLocked(); err != nil {
		l.balances, l.allowances = prev.balances, prev.allowances
		l.totalSupply, l.totalMinted, l.totalBurned = prev.totals[0], prev.totals[1], prev.totals[2]
		return fmt.Errorf("restore: %w", err)
	}

	c.Access.paused = s.Paused
	c.Access.minters = minters
	ge.nonce = s.Nonce
	ge.latest = latest
	ge.stats = stats
	c.Distributor.claims = claims
	c.k.seq = s.Sequence
	l.transfers = nil

	c.k.log.WithFields(logrus.Fields{
		"taken_at": s.TakenAt,
		"players":  len(stats),
		"holders":  len(balances),
	}).Info("state restored from snapshot")
	return nil
}
