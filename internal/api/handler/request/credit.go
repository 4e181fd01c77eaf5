package request

type GrantCredits struct {
	UserID string `json:"userId" validate:"required"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}
