package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/models"
)

// GameConfig is fixed at construction.
type GameConfig struct {
	// EntryFee is charged on a loss. Zero is the free-to-play configuration;
	// a non-zero fee requires players to approve the engine.
	EntryFee     uint256.Int
	WinThreshold uint8
	BaseReward   uint256.Int
	Tiers        []RewardTier
}

func DefaultGameConfig() GameConfig {
	return GameConfig{
		WinThreshold: DefaultWinThreshold,
		BaseReward:   *models.Tokens(10),
		Tiers:        DefaultRewardTiers(),
	}
}

func (c GameConfig) Validate() error {
	if c.BaseReward.IsZero() {
		return fmt.Errorf("game config: base reward is zero: %w", ErrInvalidInput)
	}
	return ValidateTiers(c.Tiers, c.WinThreshold)
}

// GameEngine runs the guessing game. Rewards are paid from the owner's
// balance through the allowance the owner granted to the engine principal.
type GameEngine struct {
	k      *kernel
	access *AccessControl
	ledger *Ledger
	random RandomSource
	self   models.Principal
	cfg    GameConfig

	nonce  uint64
	latest map[models.Principal]models.GameRound
	stats  map[models.Principal]models.PlayerStats
}

func newGameEngine(k *kernel, access *AccessControl, ledger *Ledger, random RandomSource, self models.Principal, cfg GameConfig) *GameEngine {
	cfg.Tiers = append([]RewardTier(nil), cfg.Tiers...)
	return &GameEngine{
		k:      k,
		access: access,
		ledger: ledger,
		random: random,
		self:   self,
		cfg:    cfg,
		latest: make(map[models.Principal]models.GameRound),
		stats:  make(map[models.Principal]models.PlayerStats),
	}
}

// Principal is the identity the engine spends allowances as.
func (ge *GameEngine) Principal() models.Principal {
	return ge.self
}

func (ge *GameEngine) Config() GameConfig {
	cfg := ge.cfg
	cfg.Tiers = append([]RewardTier(nil), ge.cfg.Tiers...)
	return cfg
}

func (ge *GameEngine) EntryFee() *uint256.Int {
	return ge.cfg.EntryFee.Clone()
}

// PlayGame scores guess for caller against a freshly derived target and
// settles the reward.
func (ge *GameEngine) PlayGame(caller models.Principal, guess int) (models.GameRound, error) {
	ge.k.mu.Lock()
	defer ge.k.mu.Unlock()
	return ge.playLocked(caller, caller, guess)
}

// PlayGameOnBehalf records the round for beneficiary while the owner relays
// the call.
func (ge *GameEngine) PlayGameOnBehalf(relayer, beneficiary models.Principal, guess int) (models.GameRound, error) {
	ge.k.mu.Lock()
	defer ge.k.mu.Unlock()

	if beneficiary == models.ZeroPrincipal {
		return models.GameRound{}, fmt.Errorf("play on behalf: %w", ErrInvalidPrincipal)
	}
	if err := checkGuess(guess); err != nil {
		return models.GameRound{}, err
	}
	if err := ge.access.requireNotPausedLocked(); err != nil {
		return models.GameRound{}, err
	}
	if err := ge.access.requireOwnerLocked(relayer); err != nil {
		return models.GameRound{}, fmt.Errorf("play on behalf: %w", err)
	}
	return ge.playLocked(relayer, beneficiary, guess)
}

func checkGuess(guess int) error {
	if guess < models.MinGuess || guess > models.MaxGuess {
		return fmt.Errorf("guess %d: %w", guess, ErrInvalidGuess)
	}
	return nil
}

func (ge *GameEngine) playLocked(relayer, player models.Principal, guess int) (models.GameRound, error) {
	if player == models.ZeroPrincipal {
		return models.GameRound{}, fmt.Errorf("play: %w", ErrInvalidPrincipal)
	}
	if err := checkGuess(guess); err != nil {
		return models.GameRound{}, err
	}
	if err := ge.access.requireNotPausedLocked(); err != nil {
		return models.GameRound{}, err
	}

	// The fee is checked before a target exists.
	owner := ge.access.owner
	if !ge.cfg.EntryFee.IsZero() {
		if err := ge.ledger.checkTransferFromLocked(ge.self, player, owner, &ge.cfg.EntryFee); err != nil {
			return models.GameRound{}, fmt.Errorf("entry fee from %s: %w", player, err)
		}
	}

	now := ge.k.clock()
	target, err := ge.random.NextRandom(SeedMaterial{Player: player, Nonce: ge.nonce, Timestamp: now})
	if err != nil {
		return models.GameRound{}, fmt.Errorf("derive target: %w", err)
	}
	if target > models.MaxGuess {
		return models.GameRound{}, fmt.Errorf("derive target: %d out of range", target)
	}

	difference := absDiff(target, uint8(guess))
	tier, reward, err := ComputeReward(ge.cfg.Tiers, ge.cfg.WinThreshold, &ge.cfg.BaseReward, difference)
	if err != nil {
		return models.GameRound{}, err
	}

	stats := ge.stats[player]
	totalRewards, overflow := new(uint256.Int).AddOverflow(&stats.TotalRewardsEarned, reward)
	if overflow {
		return models.GameRound{}, fmt.Errorf("total rewards of %s: %w", player, ErrOverflow)
	}

	// Settlement is the last fallible step; nothing has been mutated before it.
	won := tier != models.OutcomeLoss
	if won && !reward.IsZero() {
		if err := ge.ledger.transferFromLocked(ge.self, owner, player, reward); err != nil {
			if cause := poolShortfall(err); cause != nil {
				ge.k.log.WithFields(logrus.Fields{
					"player": player,
					"reward": reward.Dec(),
				}).Warn("reward pool cannot cover payout")
				// No amount: the error must not reveal the tier.
				return models.GameRound{}, fmt.Errorf("pay reward to %s: %w: %w", player, ErrRewardPoolExhausted, cause)
			}
			return models.GameRound{}, fmt.Errorf("pay reward to %s: %w", player, err)
		}
	} else if !won && !ge.cfg.EntryFee.IsZero() {
		if err := ge.ledger.transferFromLocked(ge.self, player, owner, ge.cfg.EntryFee.Clone()); err != nil {
			return models.GameRound{}, fmt.Errorf("collect entry fee from %s: %w", player, err)
		}
	}

	round := models.GameRound{
		Player:       player,
		TargetNumber: target,
		UserGuess:    uint8(guess),
		Difference:   difference,
		RewardAmount: *reward,
		Tier:         tier,
		Nonce:        ge.nonce,
		Timestamp:    now,
	}
	ge.nonce++
	ge.latest[player] = round

	stats.TotalGames++
	stats.SumDifference += uint64(difference)
	stats.TotalRewardsEarned = *totalRewards
	if won {
		stats.Wins++
	}
	ge.stats[player] = stats

	ge.emitRoundLocked(relayer, round)

	ge.k.log.WithFields(logrus.Fields{
		"player":     player,
		"guess":      guess,
		"target":     target,
		"difference": difference,
		"tier":       tier,
		"reward":     reward.Dec(),
	}).Info("game played")

	return round, nil
}

func (ge *GameEngine) emitRoundLocked(relayer models.Principal, round models.GameRound) {
	attrs := map[string]string{
		"target":     strconv.Itoa(int(round.TargetNumber)),
		"guess":      strconv.Itoa(int(round.UserGuess)),
		"difference": strconv.Itoa(int(round.Difference)),
		"tier":       round.Tier,
		"nonce":      strconv.FormatUint(round.Nonce, 10),
	}
	principals := map[string]models.Principal{"player": round.Player}
	if relayer != round.Player {
		principals["relayer"] = relayer
	}

	ge.k.emit(models.EventGamePlayed, principals,
		map[string]string{"reward": round.RewardAmount.Dec()}, attrs)

	if round.Won() {
		ge.k.emit(models.EventPlayerWon,
			map[string]models.Principal{"player": round.Player},
			map[string]string{"reward": round.RewardAmount.Dec()},
			map[string]string{"target": attrs["target"], "guess": attrs["guess"], "tier": round.Tier})
		return
	}
	ge.k.emit(models.EventPlayerLost,
		map[string]models.Principal{"player": round.Player},
		map[string]string{"entry_fee": ge.cfg.EntryFee.Dec()},
		map[string]string{"target": attrs["target"], "guess": attrs["guess"]})
}

// poolShortfall returns the bare sentinel behind a ledger error caused by
// the owner's allowance or balance, or nil.
func poolShortfall(err error) error {
	switch {
	case errors.Is(err, ErrInsufficientAllowance):
		return ErrInsufficientAllowance
	case errors.Is(err, ErrInsufficientBalance):
		return ErrInsufficientBalance
	}
	return nil
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// LatestGameResult returns the most recent round of p.
func (ge *GameEngine) LatestGameResult(p models.Principal) (models.GameRound, error) {
	ge.k.mu.RLock()
	defer ge.k.mu.RUnlock()

	if ge.stats[p].TotalGames == 0 {
		return models.GameRound{}, fmt.Errorf("%s: %w", p, ErrNoGamesPlayed)
	}
	return ge.latest[p], nil
}

func (ge *GameEngine) UserTotalGames(p models.Principal) uint64 {
	ge.k.mu.RLock()
	defer ge.k.mu.RUnlock()
	return ge.stats[p].TotalGames
}

func (ge *GameEngine) UserTotalRewards(p models.Principal) *uint256.Int {
	ge.k.mu.RLock()
	defer ge.k.mu.RUnlock()
	total := ge.stats[p].TotalRewardsEarned
	return &total
}

// UserAverageAccuracy is the mean difference over all of p's rounds; lower
// is better.
func (ge *GameEngine) UserAverageAccuracy(p models.Principal) float64 {
	ge.k.mu.RLock()
	defer ge.k.mu.RUnlock()
	return ge.stats[p].AverageDifference()
}

func (ge *GameEngine) Stats(p models.Principal) models.PlayerStats {
	ge.k.mu.RLock()
	defer ge.k.mu.RUnlock()
	return ge.stats[p]
}

// NextNonce is the nonce the next round will be derived with.
func (ge *GameEngine) NextNonce() uint64 {
	ge.k.mu.RLock()
	defer ge.k.mu.RUnlock()
	return ge.nonce
}

func (ge *GameEngine) OwnerTokenBalance() *uint256.Int {
	ge.k.mu.RLock()
	defer ge.k.mu.RUnlock()
	return ge.ledger.balanceLocked(ge.access.owner)
}

// RewardPoolRemaining is what the engine can still pay out: the smaller of
// the owner's allowance to the engine and the owner's balance.
func (ge *GameEngine) RewardPoolRemaining() *uint256.Int {
	ge.k.mu.RLock()
	defer ge.k.mu.RUnlock()

	allowance := ge.ledger.allowanceLocked(ge.access.owner, ge.self)
	balance := ge.ledger.balanceLocked(ge.access.owner)
	if balance.Lt(allowance) {
		return balance
	}
	return allowance
}

// Leaderboard ranks players by rewards earned, then games played, then
// principal.
func (ge *GameEngine) Leaderboard(limit int) []models.LeaderboardEntry {
	ge.k.mu.RLock()
	type row struct {
		player models.Principal
		stats  models.PlayerStats
	}
	rows := make([]row, 0, len(ge.stats))
	for p, s := range ge.stats {
		rows = append(rows, row{p, s})
	}
	ge.k.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].stats.TotalRewardsEarned.Cmp(&rows[j].stats.TotalRewardsEarned); c != 0 {
			return c > 0
		}
		if rows[i].stats.TotalGames != rows[j].stats.TotalGames {
			return rows[i].stats.TotalGames > rows[j].stats.TotalGames
		}
		return rows[i].player < rows[j].player
	})
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	out := make([]models.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.LeaderboardEntry{
			Player:             r.player,
			TotalGames:         r.stats.TotalGames,
			TotalRewardsEarned: r.stats.TotalRewardsEarned.Dec(),
		})
	}
	return out
}
