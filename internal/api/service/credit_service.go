package service

import (
	"context"
	"errors"
	"fmt"

	"clipflow"
	"clipflow/internal/api/models"
	"clipflow/internal/api/repo"
	"clipflow/internal/engine/credit"

	"github.com/rs/zerolog"
)

type TransactionStore interface {
	Create(tx *models.CreditTransaction) error
	FindAllByUser(userID string, limit, offset int) ([]models.CreditTransaction, error)
}

// AuditedLedger writes a credit_transaction row for every balance change of the wrapped ledger.
// The ledger stays the source of truth: a failed audit write is logged, not returned.
type AuditedLedger struct {
	credit.Ledger
	txs    TransactionStore
	logger zerolog.Logger
}

func NewAuditedLedger(inner credit.Ledger, txs TransactionStore) *AuditedLedger {
	return &AuditedLedger{Ledger: inner, txs: txs, logger: clipflow.Logger}
}

func (slf *AuditedLedger) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	balance, err := slf.Ledger.Debit(ctx, userID, amount)
	if err != nil {
		return balance, err
	}
	slf.record(ctx, userID, -amount, models.TransactionWorkflowExecution, balance)
	return balance, nil
}

func (slf *AuditedLedger) Refund(ctx context.Context, userID string, amount int64) (int64, error) {
	balance, err := slf.Ledger.Refund(ctx, userID, amount)
	if err != nil {
		return balance, err
	}
	slf.record(ctx, userID, amount, models.TransactionRefund, balance)
	return balance, nil
}

func (slf *AuditedLedger) Grant(ctx context.Context, userID string, amount int64) (int64, error) {
	balance, err := slf.Ledger.Grant(ctx, userID, amount)
	if err != nil {
		return balance, err
	}
	slf.record(ctx, userID, amount, models.TransactionGrant, balance)
	return balance, nil
}

func (slf *AuditedLedger) record(ctx context.Context, userID string, amount int64, kind models.TransactionType, balance int64) {
	tx := &models.CreditTransaction{
		UserID:       userID,
		Amount:       amount,
		Type:         kind,
		BalanceAfter: balance,
	}
	if id := credit.ExecutionFrom(ctx); id != "" {
		tx.ExecutionID = &id
		tx.Description = fmt.Sprintf("%s for execution %s", kind, id)
	} else {
		tx.Description = string(kind)
	}
	if err := slf.txs.Create(tx); err != nil {
		slf.logger.Error().Err(err).Str("userId", userID).Int64("amount", amount).Msg("Failed to write credit transaction")
	}
}

type CreditService struct {
	ledger credit.Ledger
	txs    TransactionStore
	logger zerolog.Logger
}

func NewCreditService(e *Engine) *CreditService {
	return NewCreditServiceWith(e.Ledger, repo.NewCreditTransactionRepository())
}

func NewCreditServiceWith(ledger credit.Ledger, txs TransactionStore) *CreditService {
	return &CreditService{ledger: ledger, txs: txs, logger: clipflow.Logger}
}

func (slf *CreditService) Balance(ctx context.Context, userID string) (int64, error) {
	balance, err := slf.ledger.Balance(ctx, userID)
	if err != nil {
		slf.logger.Error().Err(err).Str("userId", userID).Msg("Error reading credit balance")
		return 0, err
	}
	return balance, nil
}

// Transactions returns a page of the user's credit history, newest first.
func (slf *CreditService) Transactions(userID string, limit, offset int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	txs, err := slf.txs.FindAllByUser(userID, limit, offset)
	if err != nil {
		slf.logger.Error().Err(err).Str("userId", userID).Msg("Error getting credit transactions")
		return nil, err
	}
	return txs, nil
}

// Grant adds credits to a user's balance and returns the new balance.
func (slf *CreditService) Grant(ctx context.Context, userID string, amount int64) (int64, error) {
	balance, err := slf.ledger.Grant(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, credit.ErrInvalidAmount) {
			return 0, err
		}
		slf.logger.Error().Err(err).Str("userId", userID).Int64("amount", amount).Msg("Error granting credits")
		return 0, err
	}
	slf.logger.Info().Str("userId", userID).Int64("amount", amount).Int64("balance", balance).Msg("Credits granted")
	return balance, nil
}
