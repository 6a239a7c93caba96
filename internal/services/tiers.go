package services

import (
	"fmt"

	"github.com/holiman/uint256"

	"guess-reward-backend/internal/models"
)

const bpsDenominator = 10000

// RewardTier pays BaseReward * MultiplierBps / 10000 when the difference is
// at most MaxDifference and no earlier tier matched.
type RewardTier struct {
	Name          string `json:"name"`
	MaxDifference uint8  `json:"max_difference"`
	MultiplierBps uint64 `json:"multiplier_bps"`
}

const DefaultWinThreshold = 20

func DefaultRewardTiers() []RewardTier {
	return []RewardTier{
		{Name: "perfect", MaxDifference: 0, MultiplierBps: 20000},
		{Name: "excellent", MaxDifference: 5, MultiplierBps: 17500},
		{Name: "great", MaxDifference: 10, MultiplierBps: 15000},
		{Name: "good", MaxDifference: 20, MultiplierBps: 12500},
	}
}

// TiersForThreshold fits the default table to winThreshold: tiers below
// the threshold are kept and the next one is stretched to end at it.
func TiersForThreshold(winThreshold uint8) []RewardTier {
	defaults := DefaultRewardTiers()
	var out []RewardTier
	for _, t := range defaults {
		if t.MaxDifference < winThreshold {
			out = append(out, t)
		}
	}
	if len(out) == len(defaults) {
		out[len(out)-1].MaxDifference = winThreshold
		return out
	}
	next := defaults[len(out)]
	next.MaxDifference = winThreshold
	return append(out, next)
}

// ValidateTiers requires strictly increasing bounds, no tier beyond the win
// threshold and a tier covering the threshold itself.
func ValidateTiers(tiers []RewardTier, winThreshold uint8) error {
	if len(tiers) == 0 {
		return fmt.Errorf("reward tiers: empty table: %w", ErrInvalidInput)
	}
	if winThreshold > models.MaxGuess {
		return fmt.Errorf("reward tiers: win threshold %d above %d: %w", winThreshold, models.MaxGuess, ErrInvalidInput)
	}
	for i, t := range tiers {
		if t.Name == "" || t.Name == models.OutcomeLoss {
			return fmt.Errorf("reward tiers: tier %d has invalid name %q: %w", i, t.Name, ErrInvalidInput)
		}
		if i > 0 && t.MaxDifference <= tiers[i-1].MaxDifference {
			return fmt.Errorf("reward tiers: %s bound %d not above %s bound %d: %w",
				t.Name, t.MaxDifference, tiers[i-1].Name, tiers[i-1].MaxDifference, ErrInvalidInput)
		}
	}
	if last := tiers[len(tiers)-1]; last.MaxDifference != winThreshold {
		return fmt.Errorf("reward tiers: last bound %d must equal win threshold %d: %w",
			last.MaxDifference, winThreshold, ErrInvalidInput)
	}
	return nil
}

// ComputeReward looks difference up in tiers, most favourable first. A
// difference above winThreshold is a loss with zero reward.
func ComputeReward(tiers []RewardTier, winThreshold uint8, baseReward *uint256.Int, difference uint8) (string, *uint256.Int, error) {
	if difference > winThreshold {
		return models.OutcomeLoss, new(uint256.Int), nil
	}
	for _, t := range tiers {
		if difference > t.MaxDifference {
			continue
		}
		reward, overflow := new(uint256.Int).MulOverflow(baseReward, uint256.NewInt(t.MultiplierBps))
		if overflow {
			return "", nil, fmt.Errorf("reward for tier %s: %w", t.Name, ErrOverflow)
		}
		return t.Name, reward.Div(reward, uint256.NewInt(bpsDenominator)), nil
	}
	return models.OutcomeLoss, new(uint256.Int), nil
}
