package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/pesaops/tillboard/app/dto"
	businessflow "github.com/pesaops/tillboard/business_flow"
)

// SegmentHandlerInterface defines the contract for segment reconciliation handlers
type SegmentHandlerInterface interface {
	Preview(c fiber.Ctx) error
	ListRecipients(c fiber.Ctx) error
}

// SegmentHandler handles segment preview and recipient report HTTP requests
type SegmentHandler struct {
	segmentFlow businessflow.SegmentFlow
	validator   *validator.Validate
}

func (h *SegmentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SegmentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewSegmentHandler creates a new segment handler
func NewSegmentHandler(segmentFlow businessflow.SegmentFlow) *SegmentHandler {
	return &SegmentHandler{
		segmentFlow: segmentFlow,
		validator:   validator.New(),
	}
}

// Preview computes coverage statistics for a segment without creating anything
// @Summary Preview segment
// @Description Scan the segment and report recipient coverage against SMS history
// @Tags Segments
// @Accept json
// @Produce json
// @Param request body dto.PreviewSegmentRequest true "Segment filter"
// @Success 200 {object} dto.APIResponse{data=dto.PreviewSegmentResponse} "Segment coverage"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 413 {object} dto.APIResponse "Segment too large to scan"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/sms/preview [post]
func (h *SegmentHandler) Preview(c fiber.Ctx) error {
	var req dto.PreviewSegmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.segmentFlow.Preview(h.createRequestContext(c, "/api/v1/sms/preview"), &req, metadata)
	if err != nil {
		if businessflow.IsScanTooLarge(err) && result != nil && result.StatusBreakdown != nil {
			return h.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, err.Error(), "SCAN_TOO_LARGE", fiber.Map{
				"status_breakdown": result.StatusBreakdown,
			})
		}
		return h.mapSegmentError(c, err, "Failed to preview segment", "PREVIEW_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segment preview computed successfully", result)
}

// ListRecipients returns the per-recipient report for one local day or date range
// @Summary List recipients
// @Description Deduplicate a day's transactions into recipients joined with their SMS history
// @Tags Segments
// @Produce json
// @Param till_id query string true "Till identifier"
// @Param status query string false "Transaction status filter"
// @Param date query string false "Single local day (YYYY-MM-DD)"
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Param tz_offset_min query int false "Minutes to add to local time to reach UTC"
// @Param page query int false "Page number"
// @Param limit query int false "Page size (10-200)"
// @Param max_scan query int false "Maximum rows to scan"
// @Success 200 {object} dto.APIResponse{data=dto.ListRecipientsResponse} "Recipient report"
// @Failure 400 {object} dto.APIResponse "Validation error or missing date"
// @Failure 413 {object} dto.APIResponse "Segment too large to scan"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/sms/recipients [get]
func (h *SegmentHandler) ListRecipients(c fiber.Ctx) error {
	req := &dto.ListRecipientsRequest{
		TillID:      c.Query("till_id"),
		Status:      queryStrPtr(c, "status"),
		Date:        queryStrPtr(c, "date"),
		StartDate:   queryStrPtr(c, "start_date"),
		EndDate:     queryStrPtr(c, "end_date"),
		TzOffsetMin: queryIntPtr(c, "tz_offset_min"),
		MaxScan:     queryIntPtr(c, "max_scan"),
		Page:        1,
	}
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		req.Page = v
	}
	if v, err := strconv.Atoi(c.Query("limit", "0")); err == nil && v > 0 {
		req.Limit = v
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.segmentFlow.ListRecipients(h.createRequestContext(c, "/api/v1/sms/recipients"), req, metadata)
	if err != nil {
		return h.mapSegmentError(c, err, "Failed to list recipients", "LIST_RECIPIENTS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Recipients retrieved successfully", result)
}

func (h *SegmentHandler) mapSegmentError(c fiber.Ctx, err error, message, fallbackCode string) error {
	if businessflow.IsScanTooLarge(err) {
		return h.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, err.Error(), "SCAN_TOO_LARGE", nil)
	}
	if businessflow.IsDateRangeRequired(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Either date or start_date and end_date are required", "DATE_REQUIRED", nil)
	}
	if businessflow.IsStartDateAfterEndDate(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date must not be after end date", "INVALID_DATE_RANGE", nil)
	}
	if businessflow.IsNoSampleRow(err) {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Transactions table is empty", "NO_SAMPLE_ROW", nil)
	}
	if businessflow.IsTillColumnNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Could not resolve the till column", "TILL_COLUMN_NOT_FOUND", nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, fallbackCode, nil)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *SegmentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)

	return ctx
}
