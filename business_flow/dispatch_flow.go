// Package businessflow contains the core business logic for campaign dispatch and delivery polling
package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/app/services"
	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/repository"
	"github.com/pesaops/tillboard/utils"
	"github.com/redis/go-redis/v9"
)

const (
	dispatchDefaultRecipients = 300
	dispatchMaxRecipients     = 1000
	refreshDefaultLimit       = 20
	refreshMaxLimit           = 50
	deliveryCodeDelivered     = 32
)

// DispatchFlow handles campaign dispatch, delivery polling, resend,
// test sends and gateway balance
type DispatchFlow interface {
	DispatchCampaign(ctx context.Context, req *dto.DispatchCampaignRequest, metadata *ClientMetadata) (*dto.DispatchCampaignResponse, error)
	RefreshCampaign(ctx context.Context, req *dto.RefreshCampaignRequest, metadata *ClientMetadata) (*dto.RefreshCampaignResponse, error)
	ResendCampaign(ctx context.Context, req *dto.ResendCampaignRequest, metadata *ClientMetadata) (*dto.ResendCampaignResponse, error)
	TestSend(ctx context.Context, req *dto.TestSendRequest, metadata *ClientMetadata) (*dto.TestSendResponse, error)
	Balance(ctx context.Context, metadata *ClientMetadata) (*dto.BalanceResponse, error)
}

// DispatchFlowImpl drives the campaign message lifecycle against the
// SMS gateway. Campaign counters are always recomputed from message
// rows, never incremented, so any operation can be retried safely.
type DispatchFlowImpl struct {
	campaignRepo repository.SMSCampaignRepository
	msgRepo      repository.SMSMessageRepository
	auditRepo    repository.AuditLogRepository
	gateway      services.FluxSMSClient
	locker       *campaignLocker
}

// NewDispatchFlow creates a new dispatch flow instance
func NewDispatchFlow(
	campaignRepo repository.SMSCampaignRepository,
	msgRepo repository.SMSMessageRepository,
	auditRepo repository.AuditLogRepository,
	gateway services.FluxSMSClient,
	cache *redis.Client,
) DispatchFlow {
	return &DispatchFlowImpl{
		campaignRepo: campaignRepo,
		msgRepo:      msgRepo,
		auditRepo:    auditRepo,
		gateway:      gateway,
		locker:       newCampaignLocker(cache),
	}
}

// DispatchCampaign sends a bounded batch of queued messages through the
// gateway. Dispatch is single-flight per campaign.
func (f *DispatchFlowImpl) DispatchCampaign(ctx context.Context, req *dto.DispatchCampaignRequest, metadata *ClientMetadata) (*dto.DispatchCampaignResponse, error) {
	campaign, err := f.campaignByUUID(ctx, req.UUID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsDispatchable() {
		return nil, NewBusinessErrorf("CAMPAIGN_NOT_DISPATCHABLE",
			"Campaign in status %s cannot be dispatched", ErrCampaignNotDispatchable, campaign.Status)
	}

	release, err := f.locker.Acquire(ctx, campaign.ID)
	if err != nil {
		if IsCampaignDispatchInFlight(err) {
			return nil, NewBusinessError("DISPATCH_IN_FLIGHT", "Campaign dispatch already in progress", err)
		}
		return nil, NewBusinessError("DISPATCH_LOCK_FAILED", "Failed to acquire dispatch lease", err)
	}
	defer release()

	maxRecipients := dispatchDefaultRecipients
	if req.MaxRecipients != nil {
		maxRecipients = *req.MaxRecipients
	}
	if maxRecipients < 1 {
		maxRecipients = 1
	}
	if maxRecipients > dispatchMaxRecipients {
		maxRecipients = dispatchMaxRecipients
	}

	queued, err := f.msgRepo.ListQueued(ctx, campaign.ID, maxRecipients)
	if err != nil {
		return nil, NewBusinessError("DISPATCH_FAILED", "Failed to load queued messages", err)
	}

	resp := &dto.DispatchCampaignResponse{}
	if len(queued) == 0 {
		// Nothing to send, but counters may be stale.
		updated, err := f.recompute(ctx, campaign, nil)
		if err != nil {
			return nil, err
		}
		resp.Campaign = ToCampaignDTO(*updated)
		return resp, nil
	}

	phones := make([]string, 0, len(queued))
	for _, m := range queued {
		phones = append(phones, m.PhoneNormalized)
	}

	results, err := f.gateway.SendBulk(ctx, phones, campaign.Message, campaign.SenderID)
	if err != nil {
		errMsg := fmt.Sprintf("Dispatch of campaign %s failed: %s", campaign.UUID, err.Error())
		_ = f.createAuditLog(ctx, models.AuditActionCampaignDispatched, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("GATEWAY_FAILURE", "Sms gateway request failed", errors.Join(ErrGatewayFailure, err))
	}

	byMobile := make(map[string]services.SendResult, len(results))
	for _, r := range results {
		byMobile[r.Mobile] = r
	}

	now := time.Now().UTC()
	var (
		mu       sync.Mutex
		firstErr error
		sent     int64
		failed   int64
		wg       sync.WaitGroup
	)
	for _, msg := range queued {
		wg.Add(1)
		go func(msg *models.SMSMessage) {
			defer wg.Done()
			result, ok := byMobile[msg.PhoneNormalized]
			accepted := ok && result.Accepted()
			if accepted {
				msg.Status = models.SMSMessageStatusSent
				if result.MessageID != "" {
					id := result.MessageID
					msg.ProviderMessageID = &id
				}
			} else {
				msg.Status = models.SMSMessageStatusFailed
			}
			if ok {
				msg.SendResponse = result.Raw
			} else {
				note, _ := json.Marshal(map[string]string{"error": "no gateway response for recipient"})
				msg.SendResponse = note
			}
			msg.LastCheckedAt = nil
			err := f.msgRepo.Update(ctx, msg)

			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if accepted {
				sent++
			} else {
				failed++
			}
		}(msg)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, NewBusinessError("DISPATCH_FAILED", "Failed to record dispatch outcome", firstErr)
	}

	updated, err := f.recompute(ctx, campaign, map[string]any{
		"status":           models.SMSCampaignStatusSending,
		"last_dispatch_at": now,
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Campaign %s dispatched: %d sent, %d failed", campaign.UUID, sent, failed)
	_ = f.createAuditLog(ctx, models.AuditActionCampaignDispatched, msg, true, nil, metadata)

	resp.Campaign = ToCampaignDTO(*updated)
	resp.Attempted = int64(len(queued))
	resp.Sent = sent
	resp.Failed = failed
	return resp, nil
}

// classifyDelivery maps a gateway delivery result onto a message state.
// Code 32 is the gateway's delivered code; otherwise the description
// decides, and anything unrecognized stays sent.
func classifyDelivery(result *services.DeliveryResult) models.SMSMessageStatus {
	if result.Code == deliveryCodeDelivered {
		return models.SMSMessageStatusDelivered
	}
	desc := strings.ToLower(result.Description)
	switch {
	case strings.Contains(desc, "delivered"):
		return models.SMSMessageStatusDelivered
	case strings.Contains(desc, "failed"), strings.Contains(desc, "undeliver"):
		return models.SMSMessageStatusFailed
	default:
		return models.SMSMessageStatusSent
	}
}

// RefreshCampaign polls delivery status for sent messages, least
// recently checked first. A per-message gateway failure is recorded and
// the batch continues.
func (f *DispatchFlowImpl) RefreshCampaign(ctx context.Context, req *dto.RefreshCampaignRequest, metadata *ClientMetadata) (*dto.RefreshCampaignResponse, error) {
	campaign, err := f.campaignByUUID(ctx, req.UUID)
	if err != nil {
		return nil, err
	}

	limit := refreshDefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > refreshMaxLimit {
		limit = refreshMaxLimit
	}

	messages, err := f.msgRepo.ListSentForRefresh(ctx, campaign.ID, limit)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Failed to load sent messages", err)
	}

	resp := &dto.RefreshCampaignResponse{}
	for _, msg := range messages {
		now := time.Now().UTC()
		msg.LastCheckedAt = &now

		result, gwErr := f.gateway.DeliveryStatus(ctx, *msg.ProviderMessageID)
		if gwErr != nil {
			// Record the attempt timestamp only; the send record and any
			// earlier delivery payload stay untouched.
			resp.Errors = append(resp.Errors, fmt.Sprintf("message %d: %s", msg.ID, gwErr.Error()))
		} else {
			newStatus := classifyDelivery(result)
			switch newStatus {
			case models.SMSMessageStatusDelivered:
				resp.Delivered++
			case models.SMSMessageStatusFailed:
				resp.Failed++
			}
			msg.Status = newStatus
			msg.DeliveryCode = &result.Code
			desc := result.Description
			msg.DeliveryStatusText = &desc
			msg.DeliveryResponse = result.Raw
		}
		if err := f.msgRepo.Update(ctx, msg); err != nil {
			return nil, NewBusinessError("REFRESH_FAILED", "Failed to record delivery status", err)
		}
		resp.Checked++
	}

	updated, err := f.recompute(ctx, campaign, map[string]any{
		"last_refresh_at": time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Campaign %s refreshed: %d checked, %d delivered, %d failed",
		campaign.UUID, resp.Checked, resp.Delivered, resp.Failed)
	_ = f.createAuditLog(ctx, models.AuditActionCampaignRefreshed, msg, true, nil, metadata)

	resp.Campaign = ToCampaignDTO(*updated)
	return resp, nil
}

// ResendCampaign flips failed messages back to queued. Zero failed
// messages is a no-op success.
func (f *DispatchFlowImpl) ResendCampaign(ctx context.Context, req *dto.ResendCampaignRequest, metadata *ClientMetadata) (*dto.ResendCampaignResponse, error) {
	campaign, err := f.campaignByUUID(ctx, req.UUID)
	if err != nil {
		return nil, err
	}

	rescheduled, err := f.msgRepo.RequeueFailed(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("RESEND_FAILED", "Failed to requeue messages", err)
	}

	var extra map[string]any
	if rescheduled > 0 {
		extra = map[string]any{"status": models.SMSCampaignStatusSending}
	}
	updated, err := f.recompute(ctx, campaign, extra)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Campaign %s resend requeued %d messages", campaign.UUID, rescheduled)
	_ = f.createAuditLog(ctx, models.AuditActionCampaignResent, msg, true, nil, metadata)

	return &dto.ResendCampaignResponse{
		Campaign:    ToCampaignDTO(*updated),
		Rescheduled: rescheduled,
	}, nil
}

// TestSend sends a one-off message to a single Kenyan mobile number.
// Each send is logged as a one-off campaign with a single message row so
// it shows up in campaign history; a failed log write does not fail the
// send.
func (f *DispatchFlowImpl) TestSend(ctx context.Context, req *dto.TestSendRequest, metadata *ClientMetadata) (*dto.TestSendResponse, error) {
	normalized := utils.NormalizePhoneE164(req.Phone)
	if !utils.IsKenyanMobile(normalized) {
		return nil, NewBusinessErrorf("INVALID_PHONE", "%q is not a valid Kenyan mobile number", ErrInvalidPhone, req.Phone)
	}

	senderID := ""
	if req.SenderID != nil {
		senderID = *req.SenderID
	}
	result, err := f.gateway.SendSMS(ctx, normalized, req.Message, senderID)
	if err != nil {
		errMsg := fmt.Sprintf("Test send to %s failed: %s", normalized, err.Error())
		_ = f.createAuditLog(ctx, models.AuditActionTestSMSSent, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("GATEWAY_FAILURE", "Sms gateway request failed", errors.Join(ErrGatewayFailure, err))
	}

	msg := fmt.Sprintf("Test message sent to %s", normalized)
	_ = f.createAuditLog(ctx, models.AuditActionTestSMSSent, msg, true, nil, metadata)

	resp := &dto.TestSendResponse{
		Phone:               normalized,
		Accepted:            result.Accepted(),
		ResponseCode:        result.ResponseCode,
		ResponseDescription: result.ResponseDescription,
	}
	if result.MessageID != "" {
		id := result.MessageID
		resp.ProviderMessageID = &id
	}
	if campaignUUID := f.logTestSend(ctx, req, normalized, senderID, result); campaignUUID != "" {
		resp.CampaignUUID = &campaignUUID
	}
	return resp, nil
}

// logTestSend records a one-off campaign plus its single message row and
// returns the campaign UUID, or "" when either write failed.
func (f *DispatchFlowImpl) logTestSend(ctx context.Context, req *dto.TestSendRequest, normalized, senderID string, result *services.SendResult) string {
	local := utils.ToKenyanLocalPhone(normalized)
	if senderID == "" {
		senderID = utils.DefaultSenderID
	}

	status := models.SMSCampaignStatusFailed
	msgStatus := models.SMSMessageStatusFailed
	sent, failed := 0, 1
	if result.Accepted() {
		status = models.SMSCampaignStatusSent
		msgStatus = models.SMSMessageStatusSent
		sent, failed = 1, 0
	}

	now := time.Now().UTC()
	mode := "test"
	campaign := &models.SMSCampaign{
		CreatedBy:      req.CreatedBy,
		Name:           fmt.Sprintf("Test SMS %s", local),
		SenderID:       senderID,
		Message:        req.Message,
		Segment:        models.SegmentSpec{Mode: &mode, Phone: &normalized},
		Status:         status,
		TargetCount:    1,
		SentCount:      sent,
		FailedCount:    failed,
		LastDispatchAt: &now,
	}
	if err := campaign.BeforeCreate(); err != nil {
		return ""
	}
	if err := f.campaignRepo.Save(ctx, campaign); err != nil {
		return ""
	}

	message := &models.SMSMessage{
		CampaignID:      campaign.ID,
		PhoneLocal:      local,
		PhoneNormalized: normalized,
		Status:          msgStatus,
		SendResponse:    result.Raw,
	}
	if result.MessageID != "" {
		id := result.MessageID
		message.ProviderMessageID = &id
	}
	if err := message.BeforeCreate(); err != nil {
		return ""
	}
	if err := f.msgRepo.Save(ctx, message); err != nil {
		return ""
	}
	return campaign.UUID.String()
}

// Balance returns the gateway's remaining SMS credit.
func (f *DispatchFlowImpl) Balance(ctx context.Context, metadata *ClientMetadata) (*dto.BalanceResponse, error) {
	result, err := f.gateway.Balance(ctx)
	if err != nil {
		return nil, NewBusinessError("GATEWAY_FAILURE", "Sms gateway request failed", errors.Join(ErrGatewayFailure, err))
	}
	return &dto.BalanceResponse{Balance: result.Balance}, nil
}

// recompute recounts message rows per status and writes the counters
// back, together with any extra column values. The returned campaign
// reflects the new counters.
func (f *DispatchFlowImpl) recompute(ctx context.Context, campaign *models.SMSCampaign, extra map[string]any) (*models.SMSCampaign, error) {
	var counters models.CampaignCounters
	for _, pair := range []struct {
		status models.SMSMessageStatus
		target *int64
	}{
		{models.SMSMessageStatusQueued, &counters.Queued},
		{models.SMSMessageStatusSent, &counters.Sent},
		{models.SMSMessageStatusDelivered, &counters.Delivered},
		{models.SMSMessageStatusFailed, &counters.Failed},
	} {
		count, err := f.msgRepo.CountByStatus(ctx, campaign.ID, pair.status)
		if err != nil {
			return nil, NewBusinessError("RECOMPUTE_FAILED", "Failed to recount campaign messages", err)
		}
		*pair.target = count
	}

	if err := f.campaignRepo.UpdateCounters(ctx, campaign.ID, counters, extra); err != nil {
		return nil, NewBusinessError("RECOMPUTE_FAILED", "Failed to update campaign counters", err)
	}

	updated, err := f.campaignRepo.ByID(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to reload campaign", err)
	}
	if updated == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	return updated, nil
}

func (f *DispatchFlowImpl) campaignByUUID(ctx context.Context, rawUUID string) (*models.SMSCampaign, error) {
	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_UUID_REQUIRED", "Campaign UUID is invalid", ErrCampaignUUIDRequired)
	}
	campaign, err := f.campaignRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	return campaign, nil
}

func (f *DispatchFlowImpl) createAuditLog(ctx context.Context, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		audit.RequestID = &requestID
	}

	return f.auditRepo.Save(ctx, audit)
}
