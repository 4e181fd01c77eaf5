package credit

import (
	"context"
	"sync"
)

// MemoryLedger keeps balances in process. Used by tests and the offline CLI.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	starting int64
}

func NewMemoryLedger(starting int64) *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]int64), starting: starting}
}

func (l *MemoryLedger) balance(userID string) int64 {
	b, ok := l.balances[userID]
	if !ok {
		b = l.starting
		l.balances[userID] = b
	}
	return b
}

func (l *MemoryLedger) Balance(_ context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(userID), nil
}

func (l *MemoryLedger) Debit(_ context.Context, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balance(userID)
	if b < amount {
		return b, &InsufficientError{Required: amount, Available: b}
	}
	l.balances[userID] = b - amount
	return b - amount, nil
}

func (l *MemoryLedger) Refund(ctx context.Context, userID string, amount int64) (int64, error) {
	return l.add(userID, amount)
}

func (l *MemoryLedger) Grant(ctx context.Context, userID string, amount int64) (int64, error) {
	return l.add(userID, amount)
}

func (l *MemoryLedger) add(userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balance(userID) + amount
	l.balances[userID] = b
	return b, nil
}
