// Package businessflow contains the core business logic for segment previews and recipient reports
package businessflow

import (
	"context"
	"sort"
	"time"

	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/config"
	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/repository"
	"github.com/pesaops/tillboard/utils"
)

const (
	recipientsDefaultMaxScan = 20000
	recipientsDefaultLimit   = 50
	recipientsMinLimit       = 10
	recipientsMaxLimit       = 200
	// tzOffsetDefaultMin is the UTC-minus-local offset for Nairobi.
	tzOffsetDefaultMin = -180
	tzOffsetBoundMin   = 840
)

// SegmentFlow handles segment coverage previews and per-recipient
// reports
type SegmentFlow interface {
	Preview(ctx context.Context, req *dto.PreviewSegmentRequest, metadata *ClientMetadata) (*dto.PreviewSegmentResponse, error)
	ListRecipients(ctx context.Context, req *dto.ListRecipientsRequest, metadata *ClientMetadata) (*dto.ListRecipientsResponse, error)
}

// SegmentFlowImpl implements the reconciliation pipeline: scan a
// transaction segment, deduplicate recipients, join SMS history, and
// compute coverage.
type SegmentFlowImpl struct {
	txRepo  repository.TransactionRepository
	msgRepo repository.SMSMessageRepository
	scanCfg config.ScanConfig
}

// NewSegmentFlow creates a new segment flow instance
func NewSegmentFlow(
	txRepo repository.TransactionRepository,
	msgRepo repository.SMSMessageRepository,
	scanCfg config.ScanConfig,
) SegmentFlow {
	return &SegmentFlowImpl{
		txRepo:  txRepo,
		msgRepo: msgRepo,
		scanCfg: scanCfg,
	}
}

// Preview computes coverage statistics for a segment without creating
// anything.
func (f *SegmentFlowImpl) Preview(ctx context.Context, req *dto.PreviewSegmentRequest, metadata *ClientMetadata) (*dto.PreviewSegmentResponse, error) {
	column, err := resolveTillColumn(ctx, f.txRepo, f.scanCfg)
	if err != nil {
		return nil, err
	}
	filter, err := buildSegmentFilter(req.SegmentFilterRequest, column)
	if err != nil {
		return nil, NewBusinessError("INVALID_FILTER", "Invalid segment filter", err)
	}

	var breakdown *dto.StatusBreakdownDTO
	if req.IncludeStatusBreakdown == nil || *req.IncludeStatusBreakdown {
		breakdown, err = f.statusBreakdown(ctx, filter)
		if err != nil {
			return nil, NewBusinessError("BREAKDOWN_FAILED", "Failed to compute status breakdown", err)
		}
	}

	maxScan := clampMaxScan(req.MaxScan, f.scanCfg)
	rows, total, err := scanSegment(ctx, f.txRepo, filter, maxScan, f.scanCfg.PageSize)
	if err != nil {
		if IsScanTooLarge(err) {
			// The refusal still carries the breakdown so the caller can
			// see what the segment holds before narrowing it.
			return &dto.PreviewSegmentResponse{StatusBreakdown: breakdown}, err
		}
		return nil, err
	}

	recipients := aggregateRecipients(rows)
	history, err := lookupHistory(ctx, f.msgRepo, recipients.Phones(), nil)
	if err != nil {
		return nil, NewBusinessError("HISTORY_LOOKUP_FAILED", "Failed to look up sms history", err)
	}

	return &dto.PreviewSegmentResponse{
		TotalTransactions: total,
		Coverage:          computeCoverage(recipients, history),
		StatusBreakdown:   breakdown,
		AmountCoverage:    computeAmountCoverage(rows, history),
	}, nil
}

// statusBreakdown counts the segment's transactions by status over the
// base filter, deliberately ignoring any status the segment itself
// filters on.
func (f *SegmentFlowImpl) statusBreakdown(ctx context.Context, filter models.TransactionFilter) (*dto.StatusBreakdownDTO, error) {
	base := filter
	base.Status = nil

	total, err := f.txRepo.Count(ctx, base)
	if err != nil {
		return nil, err
	}
	success, err := f.txRepo.StatusCount(ctx, base, models.TransactionStatusSuccess)
	if err != nil {
		return nil, err
	}
	failed, err := f.txRepo.StatusCount(ctx, base, models.TransactionStatusFailed)
	if err != nil {
		return nil, err
	}
	pending, err := f.txRepo.StatusCount(ctx, base, models.TransactionStatusPending)
	if err != nil {
		return nil, err
	}

	return &dto.StatusBreakdownDTO{
		Total:   total,
		Success: success,
		Failed:  failed,
		Pending: pending,
	}, nil
}

// recipientsWindow derives the UTC day window from the request. A
// single date yields one local day; a range spans whole local days.
// The timezone offset follows the UTC-minus-local convention and is
// clamped to real-world bounds.
func recipientsWindow(req *dto.ListRecipientsRequest) (dayWindow, error) {
	offset := tzOffsetDefaultMin
	if req.TzOffsetMin != nil {
		offset = *req.TzOffsetMin
		if offset > tzOffsetBoundMin {
			offset = tzOffsetBoundMin
		}
		if offset < -tzOffsetBoundMin {
			offset = -tzOffsetBoundMin
		}
	}

	var startDate, endDate string
	switch {
	case req.Date != nil:
		startDate, endDate = *req.Date, *req.Date
	case req.StartDate != nil && req.EndDate != nil:
		startDate, endDate = *req.StartDate, *req.EndDate
	default:
		return dayWindow{}, ErrDateRangeRequired
	}
	if startDate > endDate {
		return dayWindow{}, ErrStartDateAfterEndDate
	}

	start, err := dateFloor(startDate)
	if err != nil {
		return dayWindow{}, err
	}
	end, err := dateFloor(endDate)
	if err != nil {
		return dayWindow{}, err
	}

	shift := time.Duration(offset) * time.Minute
	return dayWindow{
		Start: start.Add(shift),
		End:   end.Add(24 * time.Hour).Add(shift),
	}, nil
}

// ListRecipients produces the per-recipient day report: who transacted
// in the window, how much, and what SMS they have received ever and
// within the same window.
func (f *SegmentFlowImpl) ListRecipients(ctx context.Context, req *dto.ListRecipientsRequest, metadata *ClientMetadata) (*dto.ListRecipientsResponse, error) {
	window, err := recipientsWindow(req)
	if err != nil {
		return nil, NewBusinessError("INVALID_FILTER", "Invalid recipients filter", err)
	}

	column, err := resolveTillColumn(ctx, f.txRepo, f.scanCfg)
	if err != nil {
		return nil, err
	}

	filter := models.TransactionFilter{
		TillColumn:    column,
		TillValue:     &req.TillID,
		Status:        req.Status,
		CreatedAfter:  &window.Start,
		CreatedBefore: &window.End,
	}

	maxScan := req.MaxScan
	if maxScan == nil {
		maxScan = utils.ToPtr(recipientsDefaultMaxScan)
	}
	rows, total, err := scanSegment(ctx, f.txRepo, filter, clampMaxScan(maxScan, f.scanCfg), f.scanCfg.PageSize)
	if err != nil {
		return nil, err
	}

	recipients := aggregateRecipients(rows)
	history, err := lookupHistory(ctx, f.msgRepo, recipients.Phones(), &window)
	if err != nil {
		return nil, NewBusinessError("HISTORY_LOOKUP_FAILED", "Failed to look up sms history", err)
	}

	ordered := make([]*RecipientStats, 0, recipients.Len())
	for _, phone := range recipients.Order {
		ordered = append(ordered, recipients.ByPhone[phone])
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].LastTxAt != ordered[j].LastTxAt {
			return ordered[i].LastTxAt > ordered[j].LastTxAt
		}
		return ordered[i].PhoneIntl < ordered[j].PhoneIntl
	})

	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit == 0 {
		limit = recipientsDefaultLimit
	}
	if limit < recipientsMinLimit {
		limit = recipientsMinLimit
	}
	if limit > recipientsMaxLimit {
		limit = recipientsMaxLimit
	}

	startIdx := (page - 1) * limit
	if startIdx > len(ordered) {
		startIdx = len(ordered)
	}
	endIdx := startIdx + limit
	if endIdx > len(ordered) {
		endIdx = len(ordered)
	}

	out := make([]dto.RecipientDTO, 0, endIdx-startIdx)
	for _, stats := range ordered[startIdx:endIdx] {
		h := history[stats.PhoneIntl]
		if h == nil {
			h = &HistoryStats{}
		}
		out = append(out, dto.RecipientDTO{
			PhoneLocal:   stats.PhoneLocal,
			PhoneIntl:    stats.PhoneIntl,
			TxCount:      stats.TxCount,
			AmountTotal:  stats.AmountTotal,
			StatusCounts: stats.StatusCounts,
			LastTxAt:     stats.LastTxAt,
			SmsEver:      toHistoryDTO(h.Ever),
			SmsDay:       toHistoryDTO(h.Day),
		})
	}

	return &dto.ListRecipientsResponse{
		Recipients:        out,
		Total:             int64(recipients.Len()),
		Page:              page,
		Limit:             limit,
		TotalTransactions: total,
	}, nil
}

func toHistoryDTO(c HistoryCounters) dto.RecipientHistoryDTO {
	return dto.RecipientHistoryDTO{
		Count:      c.Count,
		Delivered:  c.Delivered,
		Sent:       c.Sent,
		Failed:     c.Failed,
		LastStatus: c.LastStatus,
		LastAt:     c.LastAt,
	}
}
