package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/pesaops/tillboard/app/dto"
	businessflow "github.com/pesaops/tillboard/business_flow"
)

// TransactionHandlerInterface defines the contract for transaction browsing handlers
type TransactionHandlerInterface interface {
	ListTills(c fiber.Ctx) error
	ListTransactions(c fiber.Ctx) error
	GetTransaction(c fiber.Ctx) error
	ExportTransactions(c fiber.Ctx) error
	AmountCategories(c fiber.Ctx) error
}

// TransactionHandler handles transaction browsing HTTP requests
type TransactionHandler struct {
	transactionFlow businessflow.TransactionFlow
	validator       *validator.Validate
}

func (h *TransactionHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *TransactionHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(transactionFlow businessflow.TransactionFlow) *TransactionHandler {
	return &TransactionHandler{
		transactionFlow: transactionFlow,
		validator:       validator.New(),
	}
}

// ListTills derives the list of tills from the transactions table
// @Summary List tills
// @Description Scan recent transactions and return the distinct till identifiers found
// @Tags Transactions
// @Produce json
// @Param max_scan query int false "Maximum rows to scan"
// @Success 200 {object} dto.APIResponse{data=dto.ListTillsResponse} "Till list"
// @Failure 413 {object} dto.APIResponse "Segment too large to scan"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/tills [get]
func (h *TransactionHandler) ListTills(c fiber.Ctx) error {
	req := &dto.ListTillsRequest{
		MaxScan: queryIntPtr(c, "max_scan"),
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.transactionFlow.ListTills(h.createRequestContext(c, "/api/v1/tills"), req, metadata)
	if err != nil {
		return h.mapSegmentError(c, err, "Failed to list tills", "LIST_TILLS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tills retrieved successfully", result)
}

// ListTransactions returns a paginated transaction listing for a till
// @Summary List transactions
// @Description List transactions for a till with optional status, amount, search and date filters
// @Tags Transactions
// @Produce json
// @Param till_id query string true "Till identifier"
// @Param status query string false "Transaction status filter"
// @Param amount query number false "Exact amount filter"
// @Param search query string false "Phone or reference substring"
// @Param start_date query string false "Start date (YYYY-MM-DD)"
// @Param end_date query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListTransactionsResponse} "Transaction listing"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) ListTransactions(c fiber.Ctx) error {
	req, err := h.parseListRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.transactionFlow.ListTransactions(h.createRequestContext(c, "/api/v1/transactions"), req, metadata)
	if err != nil {
		return h.mapSegmentError(c, err, "Failed to list transactions", "LIST_TRANSACTIONS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Transactions retrieved successfully", result)
}

// GetTransaction fetches one transaction by id
// @Summary Get transaction
// @Description Fetch a single transaction by its numeric id
// @Tags Transactions
// @Produce json
// @Param id path int true "Transaction id"
// @Success 200 {object} dto.APIResponse{data=dto.GetTransactionResponse} "Transaction"
// @Failure 400 {object} dto.APIResponse "Invalid id"
// @Failure 404 {object} dto.APIResponse "Transaction not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id < 1 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Transaction id must be a positive integer", "INVALID_REQUEST", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.transactionFlow.GetTransaction(h.createRequestContext(c, "/api/v1/transactions/:id"), id, metadata)
	if err != nil {
		if businessflow.IsTransactionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Transaction not found", "TRANSACTION_NOT_FOUND", nil)
		}
		return h.mapSegmentError(c, err, "Failed to fetch transaction", "TRANSACTION_LOOKUP_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Transaction retrieved successfully", result)
}

// ExportTransactions streams the filtered transactions as an Excel workbook
// @Summary Export transactions
// @Description Export the filtered transactions of a till as an .xlsx download
// @Tags Transactions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param till_id query string true "Till identifier"
// @Param status query string false "Transaction status filter"
// @Param start_date query string false "Start date (YYYY-MM-DD)"
// @Param end_date query string false "End date (YYYY-MM-DD)"
// @Success 200 {file} binary "Excel workbook"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 413 {object} dto.APIResponse "Segment too large to export"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/transactions/export [get]
func (h *TransactionHandler) ExportTransactions(c fiber.Ctx) error {
	req, err := h.parseListRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	content, filename, err := h.transactionFlow.ExportTransactions(h.createRequestContextWithTimeout(c, "/api/v1/transactions/export", 2*time.Minute), req, metadata)
	if err != nil {
		return h.mapSegmentError(c, err, "Failed to export transactions", "EXPORT_FAILED")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(content)
}

// AmountCategories returns per-amount recipient coverage for a till
// @Summary Amount categories
// @Description Group a till's transactions by exact amount and report recipient coverage per bucket
// @Tags Transactions
// @Produce json
// @Param till_id query string true "Till identifier"
// @Param status query string false "Transaction status filter"
// @Param start_date query string false "Start date (YYYY-MM-DD)"
// @Param end_date query string false "End date (YYYY-MM-DD)"
// @Param max_scan query int false "Maximum rows to scan"
// @Success 200 {object} dto.APIResponse{data=dto.AmountCategoriesResponse} "Amount coverage"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 413 {object} dto.APIResponse "Segment too large to scan"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/amount-categories [get]
func (h *TransactionHandler) AmountCategories(c fiber.Ctx) error {
	req := &dto.AmountCategoriesRequest{
		TillID:    c.Query("till_id"),
		Status:    queryStrPtr(c, "status"),
		StartDate: queryStrPtr(c, "start_date"),
		EndDate:   queryStrPtr(c, "end_date"),
		MaxScan:   queryIntPtr(c, "max_scan"),
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.transactionFlow.AmountCategories(h.createRequestContext(c, "/api/v1/amount-categories"), req, metadata)
	if err != nil {
		return h.mapSegmentError(c, err, "Failed to compute amount categories", "AMOUNT_CATEGORIES_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Amount categories retrieved successfully", result)
}

func (h *TransactionHandler) parseListRequest(c fiber.Ctx) (*dto.ListTransactionsRequest, error) {
	req := &dto.ListTransactionsRequest{
		TillID:    c.Query("till_id"),
		Status:    queryStrPtr(c, "status"),
		Search:    queryStrPtr(c, "search"),
		StartDate: queryStrPtr(c, "start_date"),
		EndDate:   queryStrPtr(c, "end_date"),
		Page:      1,
		PageSize:  50,
	}
	if raw := c.Query("amount"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("amount must be a number")
		}
		req.Amount = &v
	}
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		req.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size", "50")); err == nil && v > 0 {
		req.PageSize = v
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}
	return req, nil
}

// mapSegmentError translates segment scanning failures shared by the
// browsing endpoints into HTTP statuses.
func (h *TransactionHandler) mapSegmentError(c fiber.Ctx, err error, message, fallbackCode string) error {
	if businessflow.IsScanTooLarge(err) {
		return h.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, err.Error(), "SCAN_TOO_LARGE", nil)
	}
	if businessflow.IsNoSampleRow(err) {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Transactions table is empty", "NO_SAMPLE_ROW", nil)
	}
	if businessflow.IsTillColumnNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Could not resolve the till column", "TILL_COLUMN_NOT_FOUND", nil)
	}
	if businessflow.IsStartDateAfterEndDate(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date must not be after end date", "INVALID_DATE_RANGE", nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, fallbackCode, nil)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *TransactionHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *TransactionHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)

	return ctx
}

// queryStrPtr returns a pointer to the query value, or nil when absent.
func queryStrPtr(c fiber.Ctx, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}

// queryIntPtr returns a pointer to the parsed query value, or nil when
// absent or unparsable.
func queryIntPtr(c fiber.Ctx, key string) *int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return &v
		}
	}
	return nil
}
