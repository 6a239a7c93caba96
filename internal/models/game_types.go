package models

// PlayRequest uses a pointer so that a guess of 0 survives binding.
type PlayRequest struct {
	Guess *int `json:"guess" binding:"required"`
}

type PlayOnBehalfRequest struct {
	Beneficiary Principal `json:"beneficiary" binding:"required"`
	Guess       *int      `json:"guess" binding:"required"`
}

type VerifyRequest struct {
	ServerSeed string    `json:"server_seed" binding:"required"`
	Player     Principal `json:"player" binding:"required"`
	Nonce      uint64    `json:"nonce"`
	Timestamp  int64     `json:"timestamp" binding:"required"`
}

type ApproveRequest struct {
	Spender Principal `json:"spender" binding:"required"`
	Amount  string    `json:"amount" binding:"required"`
}

type TransferRequest struct {
	To     Principal `json:"to" binding:"required"`
	Amount string    `json:"amount" binding:"required"`
}

type TransferFromRequest struct {
	From   Principal `json:"from" binding:"required"`
	To     Principal `json:"to" binding:"required"`
	Amount string    `json:"amount" binding:"required"`
}

type MintRequest struct {
	To     Principal `json:"to" binding:"required"`
	Amount string    `json:"amount" binding:"required"`
}

type BurnRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type MinterRequest struct {
	Principal Principal `json:"principal" binding:"required"`
}

type ClaimRequest struct {
	Category string `json:"category" binding:"required"`
}

type TokenRequest struct {
	Principal Principal `json:"principal" binding:"required"`
}
