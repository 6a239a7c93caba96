package models

// BalanceResponse is the account view returned to clients.
type BalanceResponse struct {
	Principal Principal `json:"principal"`
	Balance   string    `json:"balance"`
	Tokens    string    `json:"tokens"`
}

type AllowanceResponse struct {
	Owner     Principal `json:"owner"`
	Spender   Principal `json:"spender"`
	Allowance string    `json:"allowance"`
}

type SupplyResponse struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"total_supply"`
	TotalMinted string `json:"total_minted"`
	TotalBurned string `json:"total_burned"`
}
