// Package businessflow contains the core business logic for browsing the transactions table
package businessflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/config"
	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/repository"
	"github.com/pesaops/tillboard/utils"
	"github.com/xuri/excelize/v2"
)

const defaultPageSize = 50

// TransactionFlow handles till and transaction browsing business logic
type TransactionFlow interface {
	ListTills(ctx context.Context, req *dto.ListTillsRequest, metadata *ClientMetadata) (*dto.ListTillsResponse, error)
	ListTransactions(ctx context.Context, req *dto.ListTransactionsRequest, metadata *ClientMetadata) (*dto.ListTransactionsResponse, error)
	GetTransaction(ctx context.Context, id int64, metadata *ClientMetadata) (*dto.GetTransactionResponse, error)
	ExportTransactions(ctx context.Context, req *dto.ListTransactionsRequest, metadata *ClientMetadata) ([]byte, string, error)
	AmountCategories(ctx context.Context, req *dto.AmountCategoriesRequest, metadata *ClientMetadata) (*dto.AmountCategoriesResponse, error)
}

// TransactionFlowImpl implements transaction browsing over the upstream
// table. The till column is re-resolved on every request so schema
// migrations upstream never require a restart.
type TransactionFlowImpl struct {
	txRepo    repository.TransactionRepository
	msgRepo   repository.SMSMessageRepository
	auditRepo repository.AuditLogRepository
	scanCfg   config.ScanConfig
}

// NewTransactionFlow creates a new transaction flow instance
func NewTransactionFlow(
	txRepo repository.TransactionRepository,
	msgRepo repository.SMSMessageRepository,
	auditRepo repository.AuditLogRepository,
	scanCfg config.ScanConfig,
) TransactionFlow {
	return &TransactionFlowImpl{
		txRepo:    txRepo,
		msgRepo:   msgRepo,
		auditRepo: auditRepo,
		scanCfg:   scanCfg,
	}
}

// resolveTillColumn fetches a sample row and resolves the till column
// for this one request.
func resolveTillColumn(ctx context.Context, txRepo repository.TransactionRepository, scanCfg config.ScanConfig) (models.TillColumn, error) {
	sample, err := txRepo.SampleRow(ctx)
	if err != nil {
		return "", NewBusinessError("SAMPLE_ROW_FAILED", "Failed to inspect transactions table", err)
	}
	if sample == nil {
		return "", NewBusinessError("NO_SAMPLE_ROW", "Transactions table is empty", ErrNoSampleRow)
	}
	column, err := ResolveTillColumn(sample, scanCfg.TillColumnOverride)
	if err != nil {
		return "", NewBusinessError("TILL_COLUMN_NOT_FOUND", "Failed to resolve till column", err)
	}
	return column, nil
}

// ListTills derives the till list by scanning the resolved till column
// and counting occurrences, newest rows first, capped by the scan
// ceiling.
func (f *TransactionFlowImpl) ListTills(ctx context.Context, req *dto.ListTillsRequest, metadata *ClientMetadata) (*dto.ListTillsResponse, error) {
	column, err := resolveTillColumn(ctx, f.txRepo, f.scanCfg)
	if err != nil {
		return nil, err
	}

	maxScan := clampMaxScan(req.MaxScan, f.scanCfg)
	counts := make(map[string]int64)
	var scanned int64
	for scanned < maxScan {
		pageSize := f.scanCfg.PageSize
		if remaining := maxScan - scanned; remaining < int64(pageSize) {
			pageSize = int(remaining)
		}
		values, err := f.txRepo.TillValues(ctx, column, pageSize, int(scanned))
		if err != nil {
			return nil, NewBusinessError("TILL_SCAN_FAILED", "Failed to scan till values", err)
		}
		if len(values) == 0 {
			break
		}
		scanned += int64(len(values))
		for _, v := range values {
			if v == nil || *v == "" {
				continue
			}
			counts[*v]++
		}
		if len(values) < pageSize {
			break
		}
	}

	tills := make([]dto.TillDTO, 0, len(counts))
	for till, count := range counts {
		tills = append(tills, dto.TillDTO{TillID: till, TxCount: count})
	}
	sort.Slice(tills, func(i, j int) bool {
		if tills[i].TxCount != tills[j].TxCount {
			return tills[i].TxCount > tills[j].TxCount
		}
		return tills[i].TillID < tills[j].TillID
	})

	return &dto.ListTillsResponse{
		Tills:       tills,
		TillColumn:  column.String(),
		ScannedRows: scanned,
	}, nil
}

func (f *TransactionFlowImpl) buildListFilter(ctx context.Context, tillID string, status *string, amount *float64, search, startDate, endDate *string) (models.TransactionFilter, error) {
	column, err := resolveTillColumn(ctx, f.txRepo, f.scanCfg)
	if err != nil {
		return models.TransactionFilter{}, err
	}
	req := dto.SegmentFilterRequest{
		TillID:    tillID,
		Status:    status,
		Amount:    amount,
		Search:    search,
		StartDate: startDate,
		EndDate:   endDate,
	}
	filter, err := buildSegmentFilter(req, column)
	if err != nil {
		return models.TransactionFilter{}, NewBusinessError("INVALID_FILTER", "Invalid transaction filter", err)
	}
	return filter, nil
}

// ListTransactions returns one page of the filtered listing, newest
// first.
func (f *TransactionFlowImpl) ListTransactions(ctx context.Context, req *dto.ListTransactionsRequest, metadata *ClientMetadata) (*dto.ListTransactionsResponse, error) {
	filter, err := f.buildListFilter(ctx, req.TillID, req.Status, req.Amount, req.Search, req.StartDate, req.EndDate)
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

	total, err := f.txRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("TRANSACTION_COUNT_FAILED", "Failed to count transactions", err)
	}

	rows, err := f.txRepo.Page(ctx, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("TRANSACTION_LIST_FAILED", "Failed to list transactions", err)
	}

	out := make([]dto.TransactionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.TransactionDTO{
			ID:          row.ID,
			PhoneNumber: row.PhoneNumber,
			Amount:      row.Amount,
			Status:      row.Status,
			Reference:   row.Reference,
			CreatedAt:   row.CreatedAtISO(),
		})
	}

	return &dto.ListTransactionsResponse{
		Transactions: out,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	}, nil
}

// GetTransaction fetches one transaction by primary key.
func (f *TransactionFlowImpl) GetTransaction(ctx context.Context, id int64, metadata *ClientMetadata) (*dto.GetTransactionResponse, error) {
	row, err := f.txRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("TRANSACTION_LOOKUP_FAILED", "Failed to look up transaction", err)
	}
	if row == nil {
		return nil, NewBusinessError("TRANSACTION_NOT_FOUND", "Transaction not found", ErrTransactionNotFound)
	}

	return &dto.GetTransactionResponse{
		Transaction: dto.TransactionDTO{
			ID:          row.ID,
			PhoneNumber: row.PhoneNumber,
			Amount:      row.Amount,
			Status:      row.Status,
			Reference:   row.Reference,
			CreatedAt:   row.CreatedAtISO(),
		},
	}, nil
}

// ExportTransactions writes the full filtered listing to an XLSX
// workbook. The export is bounded by the hard scan ceiling.
func (f *TransactionFlowImpl) ExportTransactions(ctx context.Context, req *dto.ListTransactionsRequest, metadata *ClientMetadata) ([]byte, string, error) {
	filter, err := f.buildListFilter(ctx, req.TillID, req.Status, req.Amount, req.Search, req.StartDate, req.EndDate)
	if err != nil {
		return nil, "", err
	}

	maxScan := int64(f.scanCfg.HardMaxScan)
	rows, _, err := scanSegment(ctx, f.txRepo, filter, maxScan, f.scanCfg.PageSize)
	if err != nil {
		return nil, "", err
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	sheet := "Transactions"
	index, err := workbook.NewSheet(sheet)
	if err != nil {
		return nil, "", NewBusinessError("EXPORT_FAILED", "Failed to build export workbook", err)
	}
	workbook.SetActiveSheet(index)
	workbook.DeleteSheet("Sheet1")

	headers := []string{"ID", "Phone Number", "Amount", "Status", "Reference", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := workbook.SetCellValue(sheet, cell, h); err != nil {
			return nil, "", NewBusinessError("EXPORT_FAILED", "Failed to build export workbook", err)
		}
	}
	for i, row := range rows {
		values := []any{row.ID, row.PhoneNumber, row.Amount, row.Status, "", row.CreatedAtISO()}
		if row.Reference != nil {
			values[4] = *row.Reference
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := workbook.SetCellValue(sheet, cell, v); err != nil {
				return nil, "", NewBusinessError("EXPORT_FAILED", "Failed to build export workbook", err)
			}
		}
	}

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		return nil, "", NewBusinessError("EXPORT_FAILED", "Failed to serialize export workbook", err)
	}

	msg := fmt.Sprintf("Exported %d transactions for till %s", len(rows), req.TillID)
	_ = f.createAuditLog(ctx, models.AuditActionExportDownloaded, msg, true, nil, metadata)

	filename := fmt.Sprintf("transactions_%s_%s.xlsx", req.TillID, time.Now().UTC().Format("20060102_150405"))
	return buf.Bytes(), filename, nil
}

// AmountCategories computes per-amount recipient coverage for a till.
func (f *TransactionFlowImpl) AmountCategories(ctx context.Context, req *dto.AmountCategoriesRequest, metadata *ClientMetadata) (*dto.AmountCategoriesResponse, error) {
	filter, err := f.buildListFilter(ctx, req.TillID, req.Status, nil, nil, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	maxScan := clampMaxScan(req.MaxScan, f.scanCfg)
	rows, total, err := scanSegment(ctx, f.txRepo, filter, maxScan, f.scanCfg.PageSize)
	if err != nil {
		return nil, err
	}

	recipients := aggregateRecipients(rows)
	history, err := lookupHistory(ctx, f.msgRepo, recipients.Phones(), nil)
	if err != nil {
		return nil, NewBusinessError("HISTORY_LOOKUP_FAILED", "Failed to look up sms history", err)
	}

	coverage := computeAmountCoverage(rows, history)
	categories := make([]dto.AmountCategoryDTO, 0, len(coverage))
	for _, c := range coverage {
		categories = append(categories, dto.AmountCategoryDTO{
			Amount:             c.Amount,
			TxCount:            c.TxCount,
			RecipientsTotal:    c.RecipientsTotal,
			RecipientsNew:      c.RecipientsNew,
			RecipientsMessaged: c.RecipientsMessaged,
		})
	}

	return &dto.AmountCategoriesResponse{
		Categories:        categories,
		TotalTransactions: total,
	}, nil
}

func (f *TransactionFlowImpl) createAuditLog(ctx context.Context, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
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
