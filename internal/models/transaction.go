package models

import (
	"time"

	"github.com/holiman/uint256"
)

type TransferKind string

const (
	TransferKindMint     TransferKind = "mint"
	TransferKindBurn     TransferKind = "burn"
	TransferKindTransfer TransferKind = "transfer"
)

// TransferRecord is one entry of the ledger's transfer log. Mints have an
// empty From, burns an empty To.
type TransferRecord struct {
	ID        string
	Kind      TransferKind
	From      Principal
	To        Principal
	Spender   Principal
	Amount    uint256.Int
	Timestamp time.Time
}

type TransferRecordResponse struct {
	ID        string       `json:"id"`
	Kind      TransferKind `json:"kind"`
	From      Principal    `json:"from"`
	To        Principal    `json:"to"`
	Spender   Principal    `json:"spender,omitempty"`
	Amount    string       `json:"amount"`
	CreatedAt int64        `json:"created_at"`
}

func (t TransferRecord) Response() TransferRecordResponse {
	return TransferRecordResponse{
		ID:        t.ID,
		Kind:      t.Kind,
		From:      t.From,
		To:        t.To,
		Spender:   t.Spender,
		Amount:    t.Amount.Dec(),
		CreatedAt: t.Timestamp.Unix(),
	}
}
