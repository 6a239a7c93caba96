package models

import "time"

// UserSession is stored in redis for every issued bearer token so that a
// logout can revoke it before expiry.
type UserSession struct {
	Principal    Principal `json:"principal"`
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// ClaimResponse reports one reward category for a player.
type ClaimResponse struct {
	Category string `json:"category"`
	Reward   string `json:"reward"`
	Claimed  bool   `json:"claimed"`
}
