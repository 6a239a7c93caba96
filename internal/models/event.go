package models

import "time"

type EventType string

const (
	EventGamePlayed        EventType = "GamePlayed"
	EventPlayerWon         EventType = "PlayerWon"
	EventPlayerLost        EventType = "PlayerLost"
	EventRewardDistributed EventType = "RewardDistributed"
	EventTransfer          EventType = "Transfer"
	EventApproval          EventType = "Approval"
	EventPaused            EventType = "Paused"
	EventUnpaused          EventType = "Unpaused"
	EventMinterAdded       EventType = "MinterAdded"
	EventMinterRemoved     EventType = "MinterRemoved"
)

// Event is emitted by the core after a state change commits. Amounts are
// decimal strings in base units.
type Event struct {
	ID         string               `json:"id"`
	Sequence   uint64               `json:"sequence"`
	Type       EventType            `json:"type"`
	Principals map[string]Principal `json:"principals"`
	Amounts    map[string]string    `json:"amounts,omitempty"`
	Attributes map[string]string    `json:"attributes,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
}

// Involves reports whether p is one of the event's principals.
func (e Event) Involves(p Principal) bool {
	for _, v := range e.Principals {
		if v == p {
			return true
		}
	}
	return false
}
