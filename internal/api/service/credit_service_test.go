package service

import (
	"context"
	"testing"

	"clipflow/internal/api/models"
	"clipflow/internal/engine/credit"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCredits(starting int64) (*CreditService, *fakeTransactions) {
	txs := &fakeTransactions{}
	ledger := &AuditedLedger{Ledger: credit.NewMemoryLedger(starting), txs: txs, logger: zerolog.Nop()}
	return NewCreditServiceWith(ledger, txs), txs
}

func TestAuditedLedger_RecordsEveryChange(t *testing.T) {
	txs := &fakeTransactions{}
	ledger := &AuditedLedger{Ledger: credit.NewMemoryLedger(10), txs: txs, logger: zerolog.Nop()}
	ctx := credit.WithExecution(context.Background(), "exec-1")

	_, err := ledger.Debit(ctx, "user-1", 4)
	require.NoError(t, err)
	_, err = ledger.Refund(ctx, "user-1", 4)
	require.NoError(t, err)
	_, err = ledger.Grant(context.Background(), "user-1", 5)
	require.NoError(t, err)

	_, err = ledger.Debit(ctx, "user-1", 100)
	assert.ErrorIs(t, err, credit.ErrInsufficientCredits)

	got := txs.all()
	require.Len(t, got, 3, "rejected debits leave no trace")

	tests := []struct {
		typ     models.TransactionType
		amount  int64
		balance int64
		exec    bool
	}{
		{models.TransactionWorkflowExecution, -4, 6, true},
		{models.TransactionRefund, 4, 10, true},
		{models.TransactionGrant, 5, 15, false},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.typ, got[i].Type)
		assert.Equal(t, tt.amount, got[i].Amount)
		assert.Equal(t, tt.balance, got[i].BalanceAfter)
		assert.Equal(t, tt.exec, got[i].ExecutionID != nil)
	}
	assert.Equal(t, "exec-1", *got[0].ExecutionID)
}

func TestCreditService_BalanceAndGrant(t *testing.T) {
	svc, _ := newTestCredits(credit.DefaultStartingBalance)
	ctx := context.Background()

	balance, err := svc.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	balance, err = svc.Grant(ctx, "user-1", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)

	_, err = svc.Grant(ctx, "user-1", 0)
	assert.ErrorIs(t, err, credit.ErrInvalidAmount)
}

func TestCreditService_TransactionsPaging(t *testing.T) {
	svc, _ := newTestCredits(0)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := svc.Grant(ctx, "user-1", int64(i))
		require.NoError(t, err)
	}
	_, err := svc.Grant(ctx, "user-2", 9)
	require.NoError(t, err)

	tests := []struct {
		name    string
		limit   int
		offset  int
		amounts []int64
	}{
		{"default limit", 0, 0, []int64{5, 4, 3, 2, 1}},
		{"first page", 2, 0, []int64{5, 4}},
		{"second page", 2, 2, []int64{3, 2}},
		{"negative offset", 2, -1, []int64{5, 4}},
		{"past the end", 2, 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, err := svc.Transactions("user-1", tt.limit, tt.offset)
			require.NoError(t, err)
			var amounts []int64
			for _, tx := range txs {
				amounts = append(amounts, tx.Amount)
			}
			assert.Equal(t, tt.amounts, amounts)
		})
	}
}
