package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/app/services"
	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCampaignRepo holds a single campaign and mirrors the counter
// write semantics of the real repository.
type fakeCampaignRepo struct {
	repository.SMSCampaignRepository
	mu       sync.Mutex
	campaign *models.SMSCampaign
	saved    []*models.SMSCampaign
}

func (f *fakeCampaignRepo) Save(ctx context.Context, campaign *models.SMSCampaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if campaign.ID == 0 {
		campaign.ID = uint(len(f.saved) + 100)
	}
	f.saved = append(f.saved, campaign)
	return nil
}

func (f *fakeCampaignRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.SMSCampaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.campaign == nil || f.campaign.UUID != id {
		return nil, nil
	}
	c := *f.campaign
	return &c, nil
}

func (f *fakeCampaignRepo) ByID(ctx context.Context, id uint) (*models.SMSCampaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.campaign == nil || f.campaign.ID != id {
		return nil, nil
	}
	c := *f.campaign
	return &c, nil
}

func (f *fakeCampaignRepo) ByFilter(ctx context.Context, filter models.SMSCampaignFilter, orderBy string, limit, offset int) ([]*models.SMSCampaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.saved
	if f.campaign != nil {
		all = append([]*models.SMSCampaign{f.campaign}, all...)
	}
	wanted := make(map[uint]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		wanted[id] = true
	}
	var out []*models.SMSCampaign
	for _, c := range all {
		if len(filter.IDs) > 0 && !wanted[c.ID] {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCampaignRepo) UpdateCounters(ctx context.Context, campaignID uint, counters models.CampaignCounters, extra map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaign.TargetCount = counters.TargetCount()
	f.campaign.SentCount = counters.SentCount()
	f.campaign.DeliveredCount = counters.DeliveredCount()
	f.campaign.FailedCount = counters.FailedCount()
	for k, v := range extra {
		switch k {
		case "status":
			f.campaign.Status = v.(models.SMSCampaignStatus)
		case "last_dispatch_at":
			t := v.(time.Time)
			f.campaign.LastDispatchAt = &t
		case "last_refresh_at":
			t := v.(time.Time)
			f.campaign.LastRefreshAt = &t
		}
	}
	return nil
}

// fakeMessageRepo keeps campaign messages in memory. The dispatch flow
// updates messages from goroutines, so writes take the mutex.
type fakeMessageRepo struct {
	repository.SMSMessageRepository
	mu       sync.Mutex
	messages []*models.SMSMessage
}

func newFakeMessageRepo(messages ...*models.SMSMessage) *fakeMessageRepo {
	repo := &fakeMessageRepo{messages: messages}
	for i, m := range repo.messages {
		if m.ID == 0 {
			m.ID = uint(i + 1)
		}
	}
	return repo
}

func (f *fakeMessageRepo) Save(ctx context.Context, message *models.SMSMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if message.ID == 0 {
		message.ID = uint(len(f.messages) + 1)
	}
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeMessageRepo) ListQueued(ctx context.Context, campaignID uint, limit int) ([]*models.SMSMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SMSMessage
	for _, m := range f.messages {
		if m.CampaignID == campaignID && m.Status == models.SMSMessageStatusQueued {
			out = append(out, m)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) ListSentForRefresh(ctx context.Context, campaignID uint, limit int) ([]*models.SMSMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SMSMessage
	for _, m := range f.messages {
		if m.CampaignID == campaignID && m.Status == models.SMSMessageStatusSent && m.ProviderMessageID != nil {
			out = append(out, m)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) ListByPhones(ctx context.Context, phones []string) ([]*models.SMSMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(phones))
	for _, p := range phones {
		wanted[p] = true
	}
	var out []*models.SMSMessage
	for _, m := range f.messages {
		if wanted[m.PhoneNormalized] {
			out = append(out, m)
		}
	}
	return out, nil
}

// matching applies the subset of filter fields the flows exercise.
// Callers must hold the mutex.
func (f *fakeMessageRepo) matching(filter models.SMSMessageFilter) []*models.SMSMessage {
	var out []*models.SMSMessage
	for _, m := range f.messages {
		if filter.CampaignID != nil && m.CampaignID != *filter.CampaignID {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		if filter.Search != nil && *filter.Search != "" {
			needle := strings.ToLower(strings.ReplaceAll(*filter.Search, "%", ""))
			providerID := ""
			if m.ProviderMessageID != nil {
				providerID = *m.ProviderMessageID
			}
			if !strings.Contains(strings.ToLower(m.PhoneLocal), needle) &&
				!strings.Contains(strings.ToLower(m.PhoneNormalized), needle) &&
				!strings.Contains(strings.ToLower(providerID), needle) {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeMessageRepo) Count(ctx context.Context, filter models.SMSMessageFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.matching(filter))), nil
}

func (f *fakeMessageRepo) ByFilter(ctx context.Context, filter models.SMSMessageFilter, orderBy string, limit, offset int) ([]*models.SMSMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.matching(filter)
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeMessageRepo) Update(ctx context.Context, message *models.SMSMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.messages {
		if m.ID == message.ID {
			f.messages[i] = message
			return nil
		}
	}
	return errors.New("message not found")
}

func (f *fakeMessageRepo) CountByStatus(ctx context.Context, campaignID uint, status models.SMSMessageStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.messages {
		if m.CampaignID == campaignID && m.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeMessageRepo) RequeueFailed(ctx context.Context, campaignID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.messages {
		if m.CampaignID == campaignID && m.Status == models.SMSMessageStatusFailed {
			m.Status = models.SMSMessageStatusQueued
			m.ProviderMessageID = nil
			m.SendResponse = nil
			m.DeliveryResponse = nil
			m.DeliveryCode = nil
			m.DeliveryStatusText = nil
			m.LastCheckedAt = nil
			n++
		}
	}
	return n, nil
}

// fakeAuditRepo records saved audit entries.
type fakeAuditRepo struct {
	repository.AuditLogRepository
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (f *fakeAuditRepo) Save(ctx context.Context, entry *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) lastAction() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return ""
	}
	return f.entries[len(f.entries)-1].Action
}

func testCampaign(status models.SMSCampaignStatus) *models.SMSCampaign {
	return &models.SMSCampaign{
		ID:        1,
		UUID:      uuid.New(),
		CreatedBy: "ops@tillboard.co.ke",
		Name:      "August promo",
		SenderID:  "TILLBOARD",
		Message:   "Karibu! Thank you for shopping with us.",
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}

func queuedMessage(id uint, phone string) *models.SMSMessage {
	return &models.SMSMessage{
		ID:              id,
		CampaignID:      1,
		PhoneLocal:      "0" + phone[3:],
		PhoneNormalized: phone,
		Status:          models.SMSMessageStatusQueued,
		CreatedAt:       time.Now().UTC(),
	}
}

func sentMessage(id uint, phone, providerID string) *models.SMSMessage {
	m := queuedMessage(id, phone)
	m.Status = models.SMSMessageStatusSent
	m.ProviderMessageID = &providerID
	return m
}

func newTestDispatchFlow(campaign *models.SMSCampaign, msgRepo *fakeMessageRepo, gateway services.FluxSMSClient) (DispatchFlow, *fakeCampaignRepo, *fakeAuditRepo) {
	campaignRepo := &fakeCampaignRepo{campaign: campaign}
	auditRepo := &fakeAuditRepo{}
	flow := NewDispatchFlow(campaignRepo, msgRepo, auditRepo, gateway, nil)
	return flow, campaignRepo, auditRepo
}

func TestDispatchCampaignMixedOutcome(t *testing.T) {
	campaign := testCampaign(models.SMSCampaignStatusDraft)
	msgRepo := newFakeMessageRepo(
		queuedMessage(1, "254711000001"),
		queuedMessage(2, "254711000002"),
		queuedMessage(3, "254711000003"),
	)

	gateway := services.NewMockFluxSMSClient()
	gateway.SendResults["254711000002"] = services.SendResult{
		Mobile:              "254711000002",
		ResponseCode:        500,
		ResponseDescription: "Insufficient balance",
	}

	flow, campaignRepo, auditRepo := newTestDispatchFlow(campaign, msgRepo, gateway)

	resp, err := flow.DispatchCampaign(context.Background(), &dto.DispatchCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Attempted)
	assert.Equal(t, int64(2), resp.Sent)
	assert.Equal(t, int64(1), resp.Failed)

	byPhone := make(map[string]*models.SMSMessage)
	for _, m := range msgRepo.messages {
		byPhone[m.PhoneNormalized] = m
	}
	assert.Equal(t, models.SMSMessageStatusSent, byPhone["254711000001"].Status)
	assert.NotNil(t, byPhone["254711000001"].ProviderMessageID)
	assert.Equal(t, models.SMSMessageStatusFailed, byPhone["254711000002"].Status)
	assert.Nil(t, byPhone["254711000002"].ProviderMessageID)

	// Counters are recounted from message rows, not incremented.
	assert.Equal(t, models.SMSCampaignStatusSending, campaignRepo.campaign.Status)
	assert.Equal(t, 3, campaignRepo.campaign.TargetCount)
	assert.Equal(t, 2, campaignRepo.campaign.SentCount)
	assert.Equal(t, 1, campaignRepo.campaign.FailedCount)
	assert.NotNil(t, campaignRepo.campaign.LastDispatchAt)

	assert.Equal(t, models.AuditActionCampaignDispatched, auditRepo.lastAction())
	assert.Equal(t, 1, gateway.BulkCallCount)
}

func TestDispatchCampaignNothingQueued(t *testing.T) {
	campaign := testCampaign(models.SMSCampaignStatusSending)
	msgRepo := newFakeMessageRepo(
		sentMessage(1, "254711000001", "msg-1"),
	)
	gateway := services.NewMockFluxSMSClient()
	flow, _, _ := newTestDispatchFlow(campaign, msgRepo, gateway)

	resp, err := flow.DispatchCampaign(context.Background(), &dto.DispatchCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.Attempted)
	assert.Equal(t, 0, gateway.BulkCallCount)
	// Stale counters are still recomputed.
	assert.Equal(t, int64(1), resp.Campaign.TargetCount)
	assert.Equal(t, int64(1), resp.Campaign.SentCount)
}

func TestDispatchCampaignNotDispatchable(t *testing.T) {
	campaign := testCampaign(models.SMSCampaignStatusFailed)
	flow, _, _ := newTestDispatchFlow(campaign, newFakeMessageRepo(), services.NewMockFluxSMSClient())

	_, err := flow.DispatchCampaign(context.Background(), &dto.DispatchCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.Error(t, err)
	assert.True(t, IsCampaignNotDispatchable(err))
}

func TestDispatchCampaignSingleFlight(t *testing.T) {
	campaign := testCampaign(models.SMSCampaignStatusDraft)
	flow, _, _ := newTestDispatchFlow(campaign, newFakeMessageRepo(queuedMessage(1, "254711000001")), services.NewMockFluxSMSClient())

	impl := flow.(*DispatchFlowImpl)
	release, err := impl.locker.Acquire(context.Background(), campaign.ID)
	require.NoError(t, err)
	defer release()

	_, err = flow.DispatchCampaign(context.Background(), &dto.DispatchCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.Error(t, err)
	assert.True(t, IsCampaignDispatchInFlight(err))
}

func TestDispatchCampaignGatewayDown(t *testing.T) {
	campaign := testCampaign(models.SMSCampaignStatusDraft)
	msgRepo := newFakeMessageRepo(queuedMessage(1, "254711000001"))
	gateway := services.NewMockFluxSMSClient()
	gateway.SendErr = errors.New("connection refused")

	flow, _, auditRepo := newTestDispatchFlow(campaign, msgRepo, gateway)

	_, err := flow.DispatchCampaign(context.Background(), &dto.DispatchCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.Error(t, err)
	assert.True(t, IsGatewayFailure(err))

	// The failed attempt is audited and the message stays queued.
	assert.Equal(t, models.AuditActionCampaignDispatched, auditRepo.lastAction())
	assert.Equal(t, models.SMSMessageStatusQueued, msgRepo.messages[0].Status)
}

func TestDispatchCampaignUnknownUUID(t *testing.T) {
	campaign := testCampaign(models.SMSCampaignStatusDraft)
	flow, _, _ := newTestDispatchFlow(campaign, newFakeMessageRepo(), services.NewMockFluxSMSClient())

	_, err := flow.DispatchCampaign(context.Background(), &dto.DispatchCampaignRequest{UUID: uuid.NewString()}, nil)
	require.Error(t, err)
	assert.True(t, IsCampaignNotFound(err))

	_, err = flow.DispatchCampaign(context.Background(), &dto.DispatchCampaignRequest{UUID: "not-a-uuid"}, nil)
	require.Error(t, err)
	assert.True(t, IsCampaignUUIDRequired(err))
}

func TestRefreshCampaignContinuesPastGatewayErrors(t *testing.T) {
	campaign := testCampaign(models.SMSCampaignStatusSending)
	msgRepo := newFakeMessageRepo(
		sentMessage(1, "254711000001", "msg-1"),
		sentMessage(2, "254711000002", "msg-2"),
		sentMessage(3, "254711000003", "msg-3"),
	)

	gateway := services.NewMockFluxSMSClient()
	gateway.DeliveryResults["msg-1"] = services.DeliveryResult{Code: 32, Description: "Delivered"}
	gateway.DeliveryErrors["msg-2"] = errors.New("status endpoint timeout")
	gateway.DeliveryResults["msg-3"] = services.DeliveryResult{Code: 5, Description: "DeliveryImpossible - failed"}

	flow, campaignRepo, _ := newTestDispatchFlow(campaign, msgRepo, gateway)

	resp, err := flow.RefreshCampaign(context.Background(), &dto.RefreshCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Checked)
	assert.Equal(t, int64(1), resp.Delivered)
	assert.Equal(t, int64(1), resp.Failed)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "timeout")

	assert.Equal(t, models.SMSMessageStatusDelivered, msgRepo.messages[0].Status)
	// The errored message keeps its status but records the attempt.
	assert.Equal(t, models.SMSMessageStatusSent, msgRepo.messages[1].Status)
	assert.NotNil(t, msgRepo.messages[1].LastCheckedAt)
	assert.Equal(t, models.SMSMessageStatusFailed, msgRepo.messages[2].Status)

	assert.Equal(t, 1, campaignRepo.campaign.DeliveredCount)
	assert.Equal(t, 1, campaignRepo.campaign.FailedCount)
	assert.NotNil(t, campaignRepo.campaign.LastRefreshAt)
}

func TestRefreshCampaignKeepsSendRecord(t *testing.T) {
	campaign := testCampaign(models.SMSCampaignStatusSending)
	sendRaw := json.RawMessage(`{"response-code":200,"response-description":"Success"}`)
	deliveryRaw := json.RawMessage(`{"delivery-status":32}`)

	checked := sentMessage(1, "254711000001", "msg-1")
	checked.SendResponse = sendRaw
	errored := sentMessage(2, "254711000002", "msg-2")
	errored.SendResponse = sendRaw
	msgRepo := newFakeMessageRepo(checked, errored)

	gateway := services.NewMockFluxSMSClient()
	gateway.DeliveryResults["msg-1"] = services.DeliveryResult{Code: 32, Description: "Delivered", Raw: deliveryRaw}
	gateway.DeliveryErrors["msg-2"] = errors.New("status endpoint timeout")

	flow, _, _ := newTestDispatchFlow(campaign, msgRepo, gateway)

	_, err := flow.RefreshCampaign(context.Background(), &dto.RefreshCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.NoError(t, err)

	// The delivery payload lands in its own column; the send record is kept.
	assert.Equal(t, sendRaw, msgRepo.messages[0].SendResponse)
	assert.Equal(t, deliveryRaw, msgRepo.messages[0].DeliveryResponse)

	// A gateway error only stamps the check time.
	assert.Equal(t, sendRaw, msgRepo.messages[1].SendResponse)
	assert.Nil(t, msgRepo.messages[1].DeliveryResponse)
	assert.NotNil(t, msgRepo.messages[1].LastCheckedAt)
}

func TestClassifyDelivery(t *testing.T) {
	tests := []struct {
		name     string
		result   services.DeliveryResult
		expected models.SMSMessageStatus
	}{
		{"delivered code", services.DeliveryResult{Code: 32, Description: "whatever"}, models.SMSMessageStatusDelivered},
		{"delivered by description", services.DeliveryResult{Code: 0, Description: "Message Delivered"}, models.SMSMessageStatusDelivered},
		{"failed by description", services.DeliveryResult{Code: 5, Description: "Delivery Failed"}, models.SMSMessageStatusFailed},
		{"undeliverable", services.DeliveryResult{Code: 9, Description: "Undeliverable handset"}, models.SMSMessageStatusFailed},
		{"unrecognized stays sent", services.DeliveryResult{Code: 1, Description: "Pending"}, models.SMSMessageStatusSent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyDelivery(&tt.result))
		})
	}
}

func TestResendCampaign(t *testing.T) {
	t.Run("failed messages flip back to queued", func(t *testing.T) {
		campaign := testCampaign(models.SMSCampaignStatusSending)
		failed := sentMessage(1, "254711000001", "msg-1")
		failed.Status = models.SMSMessageStatusFailed
		msgRepo := newFakeMessageRepo(
			failed,
			sentMessage(2, "254711000002", "msg-2"),
		)

		flow, campaignRepo, _ := newTestDispatchFlow(campaign, msgRepo, services.NewMockFluxSMSClient())

		resp, err := flow.ResendCampaign(context.Background(), &dto.ResendCampaignRequest{UUID: campaign.UUID.String()}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), resp.Rescheduled)
		assert.Equal(t, models.SMSMessageStatusQueued, msgRepo.messages[0].Status)
		assert.Nil(t, msgRepo.messages[0].ProviderMessageID)
		assert.Equal(t, models.SMSCampaignStatusSending, campaignRepo.campaign.Status)
	})

	t.Run("zero failed messages is a no-op success", func(t *testing.T) {
		campaign := testCampaign(models.SMSCampaignStatusSent)
		msgRepo := newFakeMessageRepo(sentMessage(1, "254711000001", "msg-1"))

		flow, campaignRepo, _ := newTestDispatchFlow(campaign, msgRepo, services.NewMockFluxSMSClient())

		resp, err := flow.ResendCampaign(context.Background(), &dto.ResendCampaignRequest{UUID: campaign.UUID.String()}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(0), resp.Rescheduled)
		// Status stays untouched when nothing was requeued.
		assert.Equal(t, models.SMSCampaignStatusSent, campaignRepo.campaign.Status)
	})
}

func TestTestSend(t *testing.T) {
	campaign := testCampaign(models.SMSCampaignStatusDraft)

	t.Run("rejects non Kenyan numbers", func(t *testing.T) {
		flow, _, _ := newTestDispatchFlow(campaign, newFakeMessageRepo(), services.NewMockFluxSMSClient())
		_, err := flow.TestSend(context.Background(), &dto.TestSendRequest{Phone: "12345", Message: "hello"}, nil)
		require.Error(t, err)
		assert.True(t, IsInvalidPhone(err))
	})

	t.Run("normalizes before sending", func(t *testing.T) {
		gateway := services.NewMockFluxSMSClient()
		flow, _, auditRepo := newTestDispatchFlow(campaign, newFakeMessageRepo(), gateway)

		resp, err := flow.TestSend(context.Background(), &dto.TestSendRequest{Phone: "0712 345 678", Message: "hello"}, nil)
		require.NoError(t, err)
		assert.True(t, resp.Accepted)
		assert.Equal(t, "254712345678", resp.Phone)
		require.Len(t, gateway.SentMessages, 1)
		assert.Equal(t, "254712345678", gateway.SentMessages[0].Mobile)
		assert.Equal(t, models.AuditActionTestSMSSent, auditRepo.lastAction())
	})

	t.Run("logs a one-off campaign and message", func(t *testing.T) {
		gateway := services.NewMockFluxSMSClient()
		raw := json.RawMessage(`{"response-code":200,"response-description":"Success"}`)
		gateway.SendResults["254712345678"] = services.SendResult{
			Mobile:              "254712345678",
			MessageID:           "flux-1",
			ResponseCode:        200,
			ResponseDescription: "Success",
			Raw:                 raw,
		}
		msgRepo := newFakeMessageRepo()
		flow, campaignRepo, _ := newTestDispatchFlow(campaign, msgRepo, gateway)

		resp, err := flow.TestSend(context.Background(), &dto.TestSendRequest{
			CreatedBy: "ops@tillboard.co.ke",
			Phone:     "0712345678",
			Message:   "hello",
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, resp.CampaignUUID)

		require.Len(t, campaignRepo.saved, 1)
		logged := campaignRepo.saved[0]
		assert.Equal(t, *resp.CampaignUUID, logged.UUID.String())
		assert.Equal(t, "ops@tillboard.co.ke", logged.CreatedBy)
		assert.Equal(t, "Test SMS 0712345678", logged.Name)
		assert.Equal(t, models.SMSCampaignStatusSent, logged.Status)
		assert.Equal(t, 1, logged.TargetCount)
		assert.Equal(t, 1, logged.SentCount)
		assert.Equal(t, 0, logged.FailedCount)
		assert.NotNil(t, logged.LastDispatchAt)
		require.NotNil(t, logged.Segment.Mode)
		assert.Equal(t, "test", *logged.Segment.Mode)
		require.NotNil(t, logged.Segment.Phone)
		assert.Equal(t, "254712345678", *logged.Segment.Phone)

		require.Len(t, msgRepo.messages, 1)
		row := msgRepo.messages[0]
		assert.Equal(t, logged.ID, row.CampaignID)
		assert.Equal(t, "0712345678", row.PhoneLocal)
		assert.Equal(t, "254712345678", row.PhoneNormalized)
		assert.Equal(t, models.SMSMessageStatusSent, row.Status)
		require.NotNil(t, row.ProviderMessageID)
		assert.Equal(t, "flux-1", *row.ProviderMessageID)
		assert.Equal(t, raw, row.SendResponse)
	})

	t.Run("rejected sends are logged as failed", func(t *testing.T) {
		gateway := services.NewMockFluxSMSClient()
		gateway.SendResults["254712345678"] = services.SendResult{
			Mobile:              "254712345678",
			ResponseCode:        500,
			ResponseDescription: "Insufficient balance",
		}
		msgRepo := newFakeMessageRepo()
		flow, campaignRepo, _ := newTestDispatchFlow(campaign, msgRepo, gateway)

		resp, err := flow.TestSend(context.Background(), &dto.TestSendRequest{Phone: "0712345678", Message: "hello"}, nil)
		require.NoError(t, err)
		assert.False(t, resp.Accepted)

		require.Len(t, campaignRepo.saved, 1)
		logged := campaignRepo.saved[0]
		assert.Equal(t, models.SMSCampaignStatusFailed, logged.Status)
		assert.Equal(t, 0, logged.SentCount)
		assert.Equal(t, 1, logged.FailedCount)
		require.Len(t, msgRepo.messages, 1)
		assert.Equal(t, models.SMSMessageStatusFailed, msgRepo.messages[0].Status)
	})

	t.Run("gateway errors persist nothing", func(t *testing.T) {
		gateway := services.NewMockFluxSMSClient()
		gateway.SendErr = errors.New("connection refused")
		msgRepo := newFakeMessageRepo()
		flow, campaignRepo, _ := newTestDispatchFlow(campaign, msgRepo, gateway)

		_, err := flow.TestSend(context.Background(), &dto.TestSendRequest{Phone: "0712345678", Message: "hello"}, nil)
		require.Error(t, err)
		assert.True(t, IsGatewayFailure(err))
		assert.Empty(t, campaignRepo.saved)
		assert.Empty(t, msgRepo.messages)
	})
}

func TestBalance(t *testing.T) {
	campaign := testCampaign(models.SMSCampaignStatusDraft)
	gateway := services.NewMockFluxSMSClient()
	gateway.BalanceValue = "4321"
	flow, _, _ := newTestDispatchFlow(campaign, newFakeMessageRepo(), gateway)

	resp, err := flow.Balance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "4321", resp.Balance)
}
