package services

import (
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/models"
)

type DistributionMode string

const (
	// DistributionMint mints each reward; the distributor must be a minter.
	DistributionMint DistributionMode = "mint"
	// DistributionTransfer pays from the owner's balance through the
	// allowance granted to the distributor.
	DistributionTransfer DistributionMode = "transfer"
)

type RewardCategory struct {
	Name   string
	Reward uint256.Int
}

// RewardDistributor pays each category's reward at most once per principal.
type RewardDistributor struct {
	k      *kernel
	access *AccessControl
	ledger *Ledger
	self   models.Principal
	mode   DistributionMode

	categories map[string]uint256.Int
	claims     map[models.Principal]map[string]bool
}

func newRewardDistributor(k *kernel, access *AccessControl, ledger *Ledger, self models.Principal, mode DistributionMode, categories []RewardCategory) (*RewardDistributor, error) {
	switch mode {
	case DistributionMint, DistributionTransfer:
	default:
		return nil, fmt.Errorf("distribution mode %q: %w", mode, ErrInvalidInput)
	}

	byName := make(map[string]uint256.Int, len(categories))
	for _, c := range categories {
		if c.Name == "" {
			return nil, fmt.Errorf("reward category without name: %w", ErrInvalidInput)
		}
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate reward category %q: %w", c.Name, ErrInvalidInput)
		}
		byName[c.Name] = c.Reward
	}

	return &RewardDistributor{
		k:          k,
		access:     access,
		ledger:     ledger,
		self:       self,
		mode:       mode,
		categories: byName,
		claims:     make(map[models.Principal]map[string]bool),
	}, nil
}

func (rd *RewardDistributor) Principal() models.Principal {
	return rd.self
}

func (rd *RewardDistributor) Mode() DistributionMode {
	return rd.mode
}

// Categories returns the configured categories sorted by name.
func (rd *RewardDistributor) Categories() []RewardCategory {
	out := make([]RewardCategory, 0, len(rd.categories))
	for name, reward := range rd.categories {
		out = append(out, RewardCategory{Name: name, Reward: reward})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (rd *RewardDistributor) HasClaimed(p models.Principal, category string) bool {
	rd.k.mu.RLock()
	defer rd.k.mu.RUnlock()
	return rd.claims[p][category]
}

// ClaimsOf reports every category and whether p has claimed it.
func (rd *RewardDistributor) ClaimsOf(p models.Principal) []models.ClaimResponse {
	rd.k.mu.RLock()
	defer rd.k.mu.RUnlock()

	out := make([]models.ClaimResponse, 0, len(rd.categories))
	for _, c := range rd.Categories() {
		out = append(out, models.ClaimResponse{
			Category: c.Name,
			Reward:   c.Reward.Dec(),
			Claimed:  rd.claims[p][c.Name],
		})
	}
	return out
}

// DistributeReward pays category's reward to caller. The claim flag is set
// in the same critical section as the payment and only if it succeeded.
func (rd *RewardDistributor) DistributeReward(caller models.Principal, category string) (*uint256.Int, error) {
	rd.k.mu.Lock()
	defer rd.k.mu.Unlock()

	if caller == models.ZeroPrincipal {
		return nil, fmt.Errorf("distribute reward: %w", ErrInvalidPrincipal)
	}
	reward, ok := rd.categories[category]
	if !ok {
		return nil, fmt.Errorf("category %q: %w", category, ErrUnknownCategory)
	}
	if err := rd.access.requireNotPausedLocked(); err != nil {
		return nil, err
	}
	if rd.claims[caller][category] {
		return nil, fmt.Errorf("%s already claimed %q: %w", caller, category, ErrAlreadyClaimed)
	}

	amount := reward.Clone()
	var err error
	switch rd.mode {
	case DistributionMint:
		err = rd.ledger.mintLocked(rd.self, caller, amount)
	case DistributionTransfer:
		err = rd.ledger.transferFromLocked(rd.self, rd.access.owner, caller, amount)
		if errors.Is(err, ErrInsufficientAllowance) || errors.Is(err, ErrInsufficientBalance) {
			err = fmt.Errorf("%w: %w", ErrRewardPoolExhausted, err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("distribute %q to %s: %w", category, caller, err)
	}

	byCategory, ok := rd.claims[caller]
	if !ok {
		byCategory = make(map[string]bool)
		rd.claims[caller] = byCategory
	}
	byCategory[category] = true

	rd.k.emit(models.EventRewardDistributed,
		map[string]models.Principal{"recipient": caller},
		map[string]string{"reward": amount.Dec()},
		map[string]string{"category": category, "mode": string(rd.mode)})

	rd.k.log.WithFields(logrus.Fields{
		"recipient": caller,
		"category":  category,
		"reward":    amount.Dec(),
	}).Info("reward distributed")

	return amount, nil
}
