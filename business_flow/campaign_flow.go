// Package businessflow contains the core business logic for the campaign lifecycle
package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/config"
	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/repository"
	"github.com/pesaops/tillboard/utils"
	"gorm.io/gorm"
)

// Cross-campaign message pages stay between these bounds.
const (
	minMessagesPageSize = 10
	maxMessagesPageSize = 200
)

// CampaignFlow handles campaign creation and browsing business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, metadata *ClientMetadata) (*dto.ListCampaignsResponse, error)
	GetCampaign(ctx context.Context, req *dto.GetCampaignRequest, metadata *ClientMetadata) (*dto.CampaignDTO, error)
	ListCampaignMessages(ctx context.Context, req *dto.ListCampaignMessagesRequest, metadata *ClientMetadata) (*dto.ListCampaignMessagesResponse, error)
	ListMessages(ctx context.Context, req *dto.ListMessagesRequest, metadata *ClientMetadata) (*dto.ListMessagesResponse, error)
}

// CampaignFlowImpl implements campaign creation: it materializes a
// segment into one message row per deduplicated recipient.
type CampaignFlowImpl struct {
	campaignRepo repository.SMSCampaignRepository
	msgRepo      repository.SMSMessageRepository
	txRepo       repository.TransactionRepository
	auditRepo    repository.AuditLogRepository
	scanCfg      config.ScanConfig
	smsCfg       config.SMSConfig
	db           *gorm.DB
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.SMSCampaignRepository,
	msgRepo repository.SMSMessageRepository,
	txRepo repository.TransactionRepository,
	auditRepo repository.AuditLogRepository,
	scanCfg config.ScanConfig,
	smsCfg config.SMSConfig,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		msgRepo:      msgRepo,
		txRepo:       txRepo,
		auditRepo:    auditRepo,
		scanCfg:      scanCfg,
		smsCfg:       smsCfg,
		db:           db,
	}
}

// CreateCampaign resolves the segment into recipients and persists the
// campaign plus one queued message per recipient, atomically.
func (f *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, NewBusinessError("MESSAGE_REQUIRED", "Message is required", ErrMessageRequired)
	}
	if utf8.RuneCountInString(message) > utils.MaxMessageLength {
		return nil, NewBusinessErrorf("MESSAGE_TOO_LONG",
			"Message exceeds %d characters", ErrMessageTooLong, utils.MaxMessageLength)
	}

	column, err := resolveTillColumn(ctx, f.txRepo, f.scanCfg)
	if err != nil {
		return nil, err
	}
	filter, err := buildSegmentFilter(req.Segment, column)
	if err != nil {
		return nil, NewBusinessError("INVALID_FILTER", "Invalid segment filter", err)
	}

	maxScan := clampMaxScan(req.Segment.MaxScan, f.scanCfg)
	rows, total, err := scanSegment(ctx, f.txRepo, filter, maxScan, f.scanCfg.PageSize)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, NewBusinessError("NO_MATCHING_TRANSACTIONS", "No matching transactions", ErrNoMatchingTransactions)
	}

	recipients := aggregateRecipients(rows)
	if recipients.Len() == 0 {
		return nil, NewBusinessError("NO_VALID_PHONES", "No valid phone numbers found", ErrNoValidPhones)
	}

	now := time.Now().UTC()
	name := fmt.Sprintf("Campaign %s", now.Format(time.RFC3339))
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		name = strings.TrimSpace(*req.Name)
	}
	senderID := f.smsCfg.SenderID
	if senderID == "" {
		senderID = utils.DefaultSenderID
	}
	if req.SenderID != nil && strings.TrimSpace(*req.SenderID) != "" {
		senderID = strings.TrimSpace(*req.SenderID)
	}

	campaign := &models.SMSCampaign{
		CreatedBy: req.CreatedBy,
		Name:      name,
		SenderID:  senderID,
		Message:   message,
		Status:    models.SMSCampaignStatusDraft,
		Segment: models.SegmentSpec{
			TillID:            &req.Segment.TillID,
			Status:            req.Segment.Status,
			StartDate:         req.Segment.StartDate,
			EndDate:           req.Segment.EndDate,
			Amount:            req.Segment.Amount,
			Search:            req.Segment.Search,
			TotalTransactions: total,
		},
		TargetCount: recipients.Len(),
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := campaign.BeforeCreate(); err != nil {
			return err
		}
		if err := f.campaignRepo.Save(txCtx, campaign); err != nil {
			return fmt.Errorf("failed to save campaign: %w", err)
		}

		batch := make([]*models.SMSMessage, 0, utils.MessageInsertBatchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := f.msgRepo.SaveBatch(txCtx, batch); err != nil {
				return fmt.Errorf("failed to save campaign messages: %w", err)
			}
			batch = batch[:0]
			return nil
		}
		for _, phone := range recipients.Order {
			stats := recipients.ByPhone[phone]
			msg := &models.SMSMessage{
				CampaignID:      campaign.ID,
				PhoneLocal:      stats.PhoneLocal,
				PhoneNormalized: stats.PhoneIntl,
				Status:          models.SMSMessageStatusQueued,
			}
			if tx := stats.FirstTx; tx != nil {
				msg.TransactionID = &tx.ID
				msg.TransactionStatus = &tx.Status
				msg.Amount = &tx.Amount
			}
			if err := msg.BeforeCreate(); err != nil {
				return err
			}
			batch = append(batch, msg)
			if len(batch) >= utils.MessageInsertBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})
	if err != nil {
		errMsg := fmt.Sprintf("Campaign creation failed: %s", err.Error())
		_ = f.createAuditLog(ctx, req.CreatedBy, models.AuditActionCampaignCreated, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	msg := fmt.Sprintf("Campaign %s created with %d recipients", campaign.UUID, recipients.Len())
	_ = f.createAuditLog(ctx, req.CreatedBy, models.AuditActionCampaignCreated, msg, true, nil, metadata)

	return &dto.CreateCampaignResponse{
		Campaign:   ToCampaignDTO(*campaign),
		Recipients: int64(recipients.Len()),
	}, nil
}

// ListCampaigns returns one page of campaigns, newest first.
func (f *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, metadata *ClientMetadata) (*dto.ListCampaignsResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	filter := models.SMSCampaignFilter{}
	if req.Status != nil {
		status := models.SMSCampaignStatus(*req.Status)
		if !status.Valid() {
			return nil, NewBusinessErrorf("INVALID_FILTER", "Unknown campaign status %q", nil, *req.Status)
		}
		filter.Status = &status
	}

	total, err := f.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to count campaigns", err)
	}
	campaigns, err := f.campaignRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	out := make([]dto.CampaignDTO, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, ToCampaignDTO(*c))
	}
	return &dto.ListCampaignsResponse{
		Campaigns: out,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	}, nil
}

// GetCampaign fetches one campaign by UUID.
func (f *CampaignFlowImpl) GetCampaign(ctx context.Context, req *dto.GetCampaignRequest, metadata *ClientMetadata) (*dto.CampaignDTO, error) {
	campaign, err := f.campaignByUUID(ctx, req.UUID)
	if err != nil {
		return nil, err
	}
	out := ToCampaignDTO(*campaign)
	return &out, nil
}

// ListCampaignMessages returns one page of a campaign's message rows.
func (f *CampaignFlowImpl) ListCampaignMessages(ctx context.Context, req *dto.ListCampaignMessagesRequest, metadata *ClientMetadata) (*dto.ListCampaignMessagesResponse, error) {
	campaign, err := f.campaignByUUID(ctx, req.UUID)
	if err != nil {
		return nil, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	filter := models.SMSMessageFilter{CampaignID: &campaign.ID}
	if req.Status != nil {
		status := models.SMSMessageStatus(*req.Status)
		filter.Status = &status
	}

	total, err := f.msgRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LIST_FAILED", "Failed to count campaign messages", err)
	}
	messages, err := f.msgRepo.ByFilter(ctx, filter, "id ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LIST_FAILED", "Failed to list campaign messages", err)
	}

	out := make([]dto.CampaignMessageDTO, 0, len(messages))
	for _, m := range messages {
		out = append(out, ToCampaignMessageDTO(*m))
	}
	return &dto.ListCampaignMessagesResponse{
		Messages: out,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ListMessages returns one page of message rows across all campaigns,
// newest first, with the referenced campaigns attached keyed by UUID.
func (f *CampaignFlowImpl) ListMessages(ctx context.Context, req *dto.ListMessagesRequest, metadata *ClientMetadata) (*dto.ListMessagesResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize < minMessagesPageSize {
		pageSize = minMessagesPageSize
	}
	if pageSize > maxMessagesPageSize {
		pageSize = maxMessagesPageSize
	}

	filter := models.SMSMessageFilter{Search: req.Search}
	if req.Status != nil {
		status := models.SMSMessageStatus(*req.Status)
		filter.Status = &status
	}
	if req.CampaignUUID != nil {
		campaignID, err := uuid.Parse(*req.CampaignUUID)
		if err != nil {
			return nil, NewBusinessError("INVALID_FILTER", "Campaign UUID is invalid", ErrCampaignUUIDRequired)
		}
		campaign, err := f.campaignRepo.ByUUID(ctx, campaignID)
		if err != nil {
			return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
		}
		if campaign == nil {
			// An unknown campaign filter matches nothing rather than failing.
			return &dto.ListMessagesResponse{
				Messages:  []dto.MessageWithCampaignDTO{},
				Campaigns: map[string]dto.MessageCampaignDTO{},
				Page:      page,
				PageSize:  pageSize,
			}, nil
		}
		filter.CampaignID = &campaign.ID
	}

	total, err := f.msgRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LIST_FAILED", "Failed to count messages", err)
	}
	messages, err := f.msgRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LIST_FAILED", "Failed to list messages", err)
	}

	campaignIDs := make([]uint, 0, len(messages))
	seen := make(map[uint]bool)
	for _, m := range messages {
		if !seen[m.CampaignID] {
			seen[m.CampaignID] = true
			campaignIDs = append(campaignIDs, m.CampaignID)
		}
	}

	uuidByID := make(map[uint]string, len(campaignIDs))
	campaignsByUUID := make(map[string]dto.MessageCampaignDTO, len(campaignIDs))
	if len(campaignIDs) > 0 {
		campaigns, err := f.campaignRepo.ByFilter(ctx, models.SMSCampaignFilter{IDs: campaignIDs}, "id ASC", len(campaignIDs), 0)
		if err != nil {
			return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaigns", err)
		}
		for _, c := range campaigns {
			id := c.UUID.String()
			uuidByID[c.ID] = id
			campaignsByUUID[id] = dto.MessageCampaignDTO{UUID: id, Name: c.Name}
		}
	}

	out := make([]dto.MessageWithCampaignDTO, 0, len(messages))
	for _, m := range messages {
		out = append(out, dto.MessageWithCampaignDTO{
			CampaignMessageDTO: ToCampaignMessageDTO(*m),
			CampaignUUID:       uuidByID[m.CampaignID],
		})
	}
	return &dto.ListMessagesResponse{
		Messages:  out,
		Campaigns: campaignsByUUID,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	}, nil
}

func (f *CampaignFlowImpl) campaignByUUID(ctx context.Context, rawUUID string) (*models.SMSCampaign, error) {
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

func (f *CampaignFlowImpl) createAuditLog(ctx context.Context, staffEmail, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
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
	if staffEmail != "" {
		audit.StaffEmail = &staffEmail
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		audit.RequestID = &requestID
	}

	return f.auditRepo.Save(ctx, audit)
}
