package credit

import (
	"context"
	"errors"
	"fmt"
)

// DefaultStartingBalance is credited to a user the first time the ledger sees them.
const DefaultStartingBalance = 100

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("credit amount must be positive")
)

// InsufficientError reports a debit the balance could not cover.
type InsufficientError struct {
	Required  int64
	Available int64
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("Insufficient credits. Required: %d, Available: %d", e.Required, e.Available)
}

func (e *InsufficientError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// Ledger is the per-user credit counter shared by every execution. Debit is an atomic
// check-and-decrement: it either takes the whole amount or fails with an InsufficientError.
type Ledger interface {
	Balance(ctx context.Context, userID string) (int64, error)
	Debit(ctx context.Context, userID string, amount int64) (int64, error)
	Refund(ctx context.Context, userID string, amount int64) (int64, error)
	Grant(ctx context.Context, userID string, amount int64) (int64, error)
}

type executionKey struct{}

// WithExecution tags ctx with the execution a debit or refund belongs to, for audit trails.
func WithExecution(ctx context.Context, executionID string) context.Context {
	return context.WithValue(ctx, executionKey{}, executionID)
}

func ExecutionFrom(ctx context.Context) string {
	id, _ := ctx.Value(executionKey{}).(string)
	return id
}
