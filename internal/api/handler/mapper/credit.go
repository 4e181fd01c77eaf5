package mapper

import (
	"clipflow/internal/api/handler/response"
	"clipflow/internal/api/models"
)

func ToCreditTransactionResponses(txs []models.CreditTransaction) []response.CreditTransaction {
	out := make([]response.CreditTransaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, response.CreditTransaction{
			ID:           tx.ID,
			Amount:       tx.Amount,
			Type:         string(tx.Type),
			ExecutionID:  tx.ExecutionID,
			Description:  tx.Description,
			BalanceAfter: tx.BalanceAfter,
			CreatedAt:    millis(tx.CreatedAt),
		})
	}
	return out
}
