package testing

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestTransaction inserts an upstream-style transaction row. The
// till value goes into the till_number column the test schema carries.
func (tf *TestFixtures) CreateTestTransaction(till, phone string, amount float64, status string, createdAt time.Time) (*models.Transaction, error) {
	reference := fmt.Sprintf("REF%08d", rand.Intn(100000000))

	tx := &models.Transaction{
		PhoneNumber: phone,
		Amount:      amount,
		Status:      status,
		Reference:   &reference,
		CreatedAt:   createdAt.UTC(),
	}

	err := tf.DB.DB.Exec(
		`INSERT INTO transactions (phone_number, amount, status, reference, till_number, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tx.PhoneNumber, tx.Amount, tx.Status, tx.Reference, till, tx.CreatedAt,
	).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test transaction: %w", err)
	}

	err = tf.DB.DB.Raw(`SELECT id FROM transactions WHERE reference = ?`, reference).Scan(&tx.ID).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read back test transaction: %w", err)
	}

	return tx, nil
}

// CreateTestCampaign creates a campaign in the given status
func (tf *TestFixtures) CreateTestCampaign(status models.SMSCampaignStatus) (*models.SMSCampaign, error) {
	tillID := "174379"

	campaign := &models.SMSCampaign{
		UUID:      uuid.New(),
		CreatedBy: "ops@tillboard.co.ke",
		Name:      fmt.Sprintf("Test Campaign %d", rand.Intn(10000)),
		SenderID:  "TILLBOARD",
		Message:   "Karibu! Thank you for shopping with us.",
		Status:    status,
		Segment: models.SegmentSpec{
			TillID: &tillID,
			Status: utils.ToPtr(models.TransactionStatusSuccess),
		},
		CreatedAt: time.Now().UTC(),
	}

	err := tf.DB.DB.Create(campaign).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}

	return campaign, nil
}

// CreateTestMessage creates a campaign message in the given status
func (tf *TestFixtures) CreateTestMessage(campaignID uint, phoneLocal, phoneNormalized string, status models.SMSMessageStatus) (*models.SMSMessage, error) {
	message := &models.SMSMessage{
		CampaignID:      campaignID,
		PhoneLocal:      phoneLocal,
		PhoneNormalized: phoneNormalized,
		Status:          status,
		CreatedAt:       time.Now().UTC(),
	}

	if status != models.SMSMessageStatusQueued {
		providerID := fmt.Sprintf("msg-%s", uuid.NewString())
		message.ProviderMessageID = &providerID
		message.SendResponse = json.RawMessage(`{"status":"Success"}`)
	}
	if status == models.SMSMessageStatusFailed {
		statusText := "DeliveryImpossible"
		message.DeliveryStatusText = &statusText
		message.DeliveryCode = utils.ToPtr(5)
	}

	err := tf.DB.DB.Create(message).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test message: %w", err)
	}

	return message, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(staffEmail *string, action string, success bool) (*models.AuditLog, error) {
	description := fmt.Sprintf("Test %s action", action)
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	audit := &models.AuditLog{
		StaffEmail:  staffEmail,
		Action:      action,
		Description: &description,
		Success:     &success,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
	}

	if !success {
		errorMessage := "Test failed action"
		audit.ErrorMessage = &errorMessage
	}

	err := tf.DB.DB.Create(audit).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return audit, nil
}

// SeedTillTransactions inserts a small spread of transactions for one till
// across the last few days, mixing statuses and repeat phones.
func (tf *TestFixtures) SeedTillTransactions(till string, count int) ([]*models.Transaction, error) {
	statuses := []string{
		models.TransactionStatusSuccess,
		models.TransactionStatusSuccess,
		models.TransactionStatusSuccess,
		models.TransactionStatusFailed,
		models.TransactionStatusPending,
	}

	var rows []*models.Transaction
	for i := 0; i < count; i++ {
		phone := fmt.Sprintf("07%08d", rand.Intn(100000000))
		// Repeat roughly every fourth phone to exercise deduplication
		if i > 0 && i%4 == 0 {
			phone = rows[i-1].PhoneNumber
		}

		createdAt := time.Now().UTC().Add(-time.Duration(i) * 6 * time.Hour)
		amount := float64(rand.Intn(5000)) + 50

		tx, err := tf.CreateTestTransaction(till, phone, amount, statuses[i%len(statuses)], createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to seed transaction %d: %w", i, err)
		}
		rows = append(rows, tx)
	}

	return rows, nil
}
