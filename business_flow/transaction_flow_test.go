package businessflow

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransactionFlow(txRepo *fakeTransactionRepo) (TransactionFlow, *fakeAuditRepo) {
	msgRepo := newFakeMessageRepo()
	auditRepo := &fakeAuditRepo{}
	return NewTransactionFlow(txRepo, msgRepo, auditRepo, scanTestConfig()), auditRepo
}

func TestListTills(t *testing.T) {
	till1 := "174379"
	till2 := "555200"
	empty := ""
	txRepo := &fakeTransactionRepo{
		sample: sampleWithTillColumn(),
		tillValues: []*string{
			&till1, &till2, &till1, nil, &empty, &till1, &till2,
		},
	}
	flow, _ := newTestTransactionFlow(txRepo)

	resp, err := flow.ListTills(context.Background(), &dto.ListTillsRequest{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "till_number", resp.TillColumn)
	assert.Equal(t, int64(7), resp.ScannedRows)

	// Nil and blank values contribute to no till; ordering is by
	// transaction count descending.
	require.Len(t, resp.Tills, 2)
	assert.Equal(t, dto.TillDTO{TillID: "174379", TxCount: 3}, resp.Tills[0])
	assert.Equal(t, dto.TillDTO{TillID: "555200", TxCount: 2}, resp.Tills[1])
}

func TestListTillsCountTieBreaksOnTillID(t *testing.T) {
	a := "222222"
	b := "111111"
	txRepo := &fakeTransactionRepo{
		sample:     sampleWithTillColumn(),
		tillValues: []*string{&a, &b},
	}
	flow, _ := newTestTransactionFlow(txRepo)

	resp, err := flow.ListTills(context.Background(), &dto.ListTillsRequest{}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Tills, 2)
	assert.Equal(t, "111111", resp.Tills[0].TillID)
	assert.Equal(t, "222222", resp.Tills[1].TillID)
}

func TestListTransactionsPagination(t *testing.T) {
	now := time.Now().UTC()
	txRepo := &fakeTransactionRepo{sample: sampleWithTillColumn()}
	for i := int64(0); i < 5; i++ {
		txRepo.rows = append(txRepo.rows, testTx(i+1, "0712345678", float64(100+i), models.TransactionStatusSuccess, now))
	}
	flow, _ := newTestTransactionFlow(txRepo)

	resp, err := flow.ListTransactions(context.Background(), &dto.ListTransactionsRequest{
		TillID:   "174379",
		Page:     2,
		PageSize: 2,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(5), resp.Total)
	assert.Equal(t, 2, resp.Page)
	require.Len(t, resp.Transactions, 2)
	assert.Equal(t, int64(3), resp.Transactions[0].ID)
	assert.Equal(t, int64(4), resp.Transactions[1].ID)
}

func TestExportTransactions(t *testing.T) {
	now := time.Now().UTC()
	txRepo := &fakeTransactionRepo{
		sample: sampleWithTillColumn(),
		rows: []*models.Transaction{
			testTx(1, "0712345678", 150, models.TransactionStatusSuccess, now),
			testTx(2, "0722000001", 300, models.TransactionStatusFailed, now),
		},
	}
	flow, auditRepo := newTestTransactionFlow(txRepo)

	content, filename, err := flow.ExportTransactions(context.Background(), &dto.ListTransactionsRequest{TillID: "174379"}, nil)
	require.NoError(t, err)

	// XLSX files are zip archives.
	assert.True(t, bytes.HasPrefix(content, []byte("PK")))
	assert.Contains(t, filename, "transactions_174379_")
	assert.Contains(t, filename, ".xlsx")
	assert.Equal(t, models.AuditActionExportDownloaded, auditRepo.lastAction())
}

func TestGetTransaction(t *testing.T) {
	now := time.Now().UTC()
	txRepo := &fakeTransactionRepo{
		sample: sampleWithTillColumn(),
		rows: []*models.Transaction{
			testTx(1, "0712345678", 150, models.TransactionStatusSuccess, now),
			testTx(2, "0722000001", 300, models.TransactionStatusFailed, now),
		},
	}
	flow, _ := newTestTransactionFlow(txRepo)

	t.Run("returns the matching row", func(t *testing.T) {
		resp, err := flow.GetTransaction(context.Background(), 2, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), resp.Transaction.ID)
		assert.Equal(t, "0722000001", resp.Transaction.PhoneNumber)
		assert.Equal(t, 300.0, resp.Transaction.Amount)
		assert.Equal(t, models.TransactionStatusFailed, resp.Transaction.Status)
	})

	t.Run("missing row reported as not found", func(t *testing.T) {
		_, err := flow.GetTransaction(context.Background(), 99, nil)
		require.Error(t, err)
		assert.True(t, IsTransactionNotFound(err))
	})
}

func TestAmountCategories(t *testing.T) {
	now := time.Now().UTC()
	txRepo := &fakeTransactionRepo{
		sample: sampleWithTillColumn(),
		rows: []*models.Transaction{
			testTx(1, "0711000001", 100, models.TransactionStatusSuccess, now),
			testTx(2, "0711000002", 100, models.TransactionStatusSuccess, now),
			testTx(3, "0711000003", 250, models.TransactionStatusSuccess, now),
		},
	}
	flow, _ := newTestTransactionFlow(txRepo)

	resp, err := flow.AmountCategories(context.Background(), &dto.AmountCategoriesRequest{TillID: "174379"}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(3), resp.TotalTransactions)
	require.Len(t, resp.Categories, 2)
	assert.Equal(t, 100.0, resp.Categories[0].Amount)
	assert.Equal(t, int64(2), resp.Categories[0].TxCount)
	assert.Equal(t, int64(2), resp.Categories[0].RecipientsTotal)
	assert.Equal(t, int64(2), resp.Categories[0].RecipientsNew)
}
