package models

import "time"

type TransactionType string

const (
	TransactionWorkflowExecution TransactionType = "workflow_execution"
	TransactionRefund            TransactionType = "refund"
	TransactionGrant             TransactionType = "grant"
)

// CreditTransaction is the audit trail of every balance change. Amount is negative for debits.
type CreditTransaction struct {
	ID           uint            `gorm:"primaryKey"`
	UserID       string          `gorm:"not null;index"`
	Amount       int64           `gorm:"not null"`
	Type         TransactionType `gorm:"not null;type:varchar(30)"`
	ExecutionID  *string         `gorm:"index"`
	Description  string
	BalanceAfter int64
	CreatedAt    time.Time `gorm:"index"`
}
