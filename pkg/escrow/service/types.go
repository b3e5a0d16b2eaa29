package service

// MovementRequest is the body of a deposit or withdraw call.
type MovementRequest struct {
	Token  string `json:"token" validate:"required,eth_addr"`
	Amount string `json:"amount" validate:"required"`
	Agent  string `json:"agent" validate:"required,eth_addr"`
}

// BalanceResponse reports an allowance or an agent record.
type BalanceResponse struct {
	Ledger string `json:"ledger"`
	Token  string `json:"token"`
	Agent  string `json:"agent,omitempty"`
	Amount string `json:"amount"`
}
