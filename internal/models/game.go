package models

import (
	"time"

	"github.com/holiman/uint256"
)

// Principal is an opaque caller or account identity.
type Principal string

// ZeroPrincipal marks the mint source and burn sink in transfer records.
const ZeroPrincipal Principal = ""

const (
	MinGuess = 0
	MaxGuess = 100

	OutcomeLoss = "loss"
)

// GameRound is the finalized outcome of one play. Only the latest round per
// player is kept.
type GameRound struct {
	Player       Principal
	TargetNumber uint8
	UserGuess    uint8
	Difference   uint8
	RewardAmount uint256.Int
	Tier         string
	Nonce        uint64
	Timestamp    time.Time
}

func (r GameRound) Won() bool {
	return r.Tier != OutcomeLoss
}

// PlayerStats holds the running aggregates for one player.
type PlayerStats struct {
	TotalGames         uint64
	Wins               uint64
	TotalRewardsEarned uint256.Int
	SumDifference      uint64
}

// AverageDifference is the mean distance between guess and target over all
// rounds, or 0 when nothing has been played.
func (s PlayerStats) AverageDifference() float64 {
	if s.TotalGames == 0 {
		return 0
	}
	return float64(s.SumDifference) / float64(s.TotalGames)
}

type GameRoundResponse struct {
	Player       Principal `json:"player"`
	TargetNumber uint8     `json:"target_number"`
	UserGuess    uint8     `json:"user_guess"`
	Difference   uint8     `json:"difference"`
	RewardAmount string    `json:"reward_amount"`
	Tier         string    `json:"tier"`
	Won          bool      `json:"won"`
	Nonce        uint64    `json:"nonce"`
	Timestamp    int64     `json:"timestamp"`
}

func (r GameRound) Response() GameRoundResponse {
	return GameRoundResponse{
		Player:       r.Player,
		TargetNumber: r.TargetNumber,
		UserGuess:    r.UserGuess,
		Difference:   r.Difference,
		RewardAmount: r.RewardAmount.Dec(),
		Tier:         r.Tier,
		Won:          r.Won(),
		Nonce:        r.Nonce,
		Timestamp:    r.Timestamp.Unix(),
	}
}

type PlayerStatsResponse struct {
	Player             Principal `json:"player"`
	TotalGames         uint64    `json:"total_games"`
	Wins               uint64    `json:"wins"`
	TotalRewardsEarned string    `json:"total_rewards_earned"`
	AverageDifference  float64   `json:"average_difference"`
}

func (s PlayerStats) Response(player Principal) PlayerStatsResponse {
	return PlayerStatsResponse{
		Player:             player,
		TotalGames:         s.TotalGames,
		Wins:               s.Wins,
		TotalRewardsEarned: s.TotalRewardsEarned.Dec(),
		AverageDifference:  s.AverageDifference(),
	}
}

// LeaderboardEntry ranks a player by rewards earned.
type LeaderboardEntry struct {
	Player             Principal `json:"player"`
	TotalGames         uint64    `json:"total_games"`
	TotalRewardsEarned string    `json:"total_rewards_earned"`
}

type VerificationData struct {
	ServerSeedHash string `json:"server_seed_hash"`
	NextNonce      uint64 `json:"next_nonce"`
}
