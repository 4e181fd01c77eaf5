package response

type CreditBalance struct {
	UserID  string `json:"userId"`
	Balance int64  `json:"balance"`
}

type CreditTransaction struct {
	ID           uint    `json:"id"`
	Amount       int64   `json:"amount"`
	Type         string  `json:"type"`
	ExecutionID  *string `json:"executionId,omitempty"`
	Description  string  `json:"description"`
	BalanceAfter int64   `json:"balanceAfter"`
	CreatedAt    int64   `json:"createdAt"`
}
