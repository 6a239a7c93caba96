package services

import (
	"fmt"

	"guess-reward-backend/internal/config"
	"guess-reward-backend/internal/models"
)

// NewChainConfig translates the environment configuration.
func NewChainConfig(cfg *config.Config) (ChainConfig, error) {
	categories, err := cfg.Categories()
	if err != nil {
		return ChainConfig{}, err
	}

	cc := ChainConfig{
		Owner:            models.Principal(cfg.OwnerPrincipal),
		Engine:           models.Principal(cfg.EnginePrincipal),
		Distributor:      models.Principal(cfg.DistributorPrincipal),
		DistributionMode: DistributionMode(cfg.DistributorMode),
		Game: GameConfig{
			EntryFee:     *config.Amount(cfg.EntryFee),
			WinThreshold: cfg.WinThreshold,
			BaseReward:   *config.Amount(cfg.BaseReward),
			Tiers:        TiersForThreshold(cfg.WinThreshold),
		},
		InitialSupply:        *config.Amount(cfg.InitialSupply),
		RewardPoolAllowance:  *config.Amount(cfg.RewardPoolAllowance),
		DistributorAllowance: *config.Amount(cfg.DistributorAllowance),
	}
	for _, c := range categories {
		cc.Categories = append(cc.Categories, RewardCategory{Name: c.Name, Reward: *c.Reward})
	}

	if err := cc.Validate(); err != nil {
		return ChainConfig{}, fmt.Errorf("chain config: %w", err)
	}
	return cc, nil
}
