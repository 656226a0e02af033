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

// CampaignHandlerInterface defines the contract for campaign lifecycle handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	ListCampaignMessages(c fiber.Ctx) error
	ListMessages(c fiber.Ctx) error
	DispatchCampaign(c fiber.Ctx) error
	RefreshCampaign(c fiber.Ctx) error
	ResendCampaign(c fiber.Ctx) error
}

// CampaignHandler handles campaign lifecycle HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	dispatchFlow businessflow.DispatchFlow
	validator    *validator.Validate
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow, dispatchFlow businessflow.DispatchFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		dispatchFlow: dispatchFlow,
		validator:    validator.New(),
	}
}

// CreateCampaign materializes a segment into a draft campaign with one message per recipient
// @Summary Create campaign
// @Description Scan the segment, deduplicate recipients and persist the campaign with queued messages
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRequest true "Campaign definition"
// @Success 201 {object} dto.APIResponse{data=dto.CreateCampaignResponse} "Campaign created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "No matching transactions or no valid phones"
// @Failure 413 {object} dto.APIResponse "Segment too large to scan"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/sms/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
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

	staffEmail, _ := c.Locals("staff_email").(string)
	req.CreatedBy = staffEmail

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.CreateCampaign(h.createRequestContextWithTimeout(c, "/api/v1/sms/campaigns", 2*time.Minute), &req, metadata)
	if err != nil {
		if businessflow.IsMessageRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Message text is required", "MESSAGE_REQUIRED", nil)
		}
		if businessflow.IsMessageTooLong(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Message text is too long", "MESSAGE_TOO_LONG", nil)
		}
		if businessflow.IsNoMatchingTransactions(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No transactions match the segment", "NO_MATCHING_TRANSACTIONS", nil)
		}
		if businessflow.IsNoValidPhones(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No valid phone numbers in the segment", "NO_VALID_PHONES", nil)
		}
		return h.mapCampaignError(c, err, "Failed to create campaign", "CREATE_CAMPAIGN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// ListCampaigns returns a paginated campaign listing, newest first
// @Summary List campaigns
// @Description List campaigns with optional status filter
// @Tags Campaigns
// @Produce json
// @Param status query string false "Campaign status filter" Enums(draft, sending, sent, failed)
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListCampaignsResponse} "Campaign listing"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/sms/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	req := &dto.ListCampaignsRequest{
		Status:   queryStrPtr(c, "status"),
		Page:     1,
		PageSize: 20,
	}
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		req.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size", "20")); err == nil && v > 0 {
		req.PageSize = v
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.ListCampaigns(h.createRequestContext(c, "/api/v1/sms/campaigns"), req, metadata)
	if err != nil {
		return h.mapCampaignError(c, err, "Failed to list campaigns", "LIST_CAMPAIGNS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", result)
}

// GetCampaign returns one campaign by UUID
// @Summary Get campaign
// @Description Fetch a single campaign with its counters and segment definition
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignDTO} "Campaign"
// @Failure 400 {object} dto.APIResponse "Invalid UUID"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/sms/campaigns/{uuid} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	req := &dto.GetCampaignRequest{UUID: c.Params("uuid")}

	if err := h.validator.Struct(req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign UUID", "CAMPAIGN_UUID_REQUIRED", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.GetCampaign(h.createRequestContext(c, "/api/v1/sms/campaigns/:uuid"), req, metadata)
	if err != nil {
		return h.mapCampaignError(c, err, "Failed to get campaign", "GET_CAMPAIGN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// ListCampaignMessages returns the per-recipient message rows of a campaign
// @Summary List campaign messages
// @Description List the message rows of a campaign with optional status filter
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param status query string false "Message status filter" Enums(queued, sent, delivered, failed)
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 500)"
// @Success 200 {object} dto.APIResponse{data=dto.ListCampaignMessagesResponse} "Message listing"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/sms/campaigns/{uuid}/messages [get]
func (h *CampaignHandler) ListCampaignMessages(c fiber.Ctx) error {
	req := &dto.ListCampaignMessagesRequest{
		UUID:     c.Params("uuid"),
		Status:   queryStrPtr(c, "status"),
		Page:     1,
		PageSize: 100,
	}
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		req.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size", "100")); err == nil && v > 0 {
		req.PageSize = v
	}
	if req.PageSize > 500 {
		req.PageSize = 500
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.ListCampaignMessages(h.createRequestContext(c, "/api/v1/sms/campaigns/:uuid/messages"), req, metadata)
	if err != nil {
		return h.mapCampaignError(c, err, "Failed to list campaign messages", "LIST_MESSAGES_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign messages retrieved successfully", result)
}

// ListMessages returns message rows across all campaigns
// @Summary List messages
// @Description List message rows across all campaigns with optional status, campaign and search filters
// @Tags Campaigns
// @Produce json
// @Param status query string false "Message status filter" Enums(queued, sent, delivered, failed)
// @Param campaign_id query string false "Campaign UUID filter"
// @Param search query string false "Phone or provider message id substring"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (10 to 200)"
// @Success 200 {object} dto.APIResponse{data=dto.ListMessagesResponse} "Message listing"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/sms/messages [get]
func (h *CampaignHandler) ListMessages(c fiber.Ctx) error {
	req := &dto.ListMessagesRequest{
		Status:       queryStrPtr(c, "status"),
		CampaignUUID: queryStrPtr(c, "campaign_id"),
		Search:       queryStrPtr(c, "search"),
		Page:         1,
		PageSize:     50,
	}
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		req.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size", "50")); err == nil && v > 0 {
		req.PageSize = v
	}
	if req.PageSize > 200 {
		req.PageSize = 200
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.ListMessages(h.createRequestContext(c, "/api/v1/sms/messages"), req, metadata)
	if err != nil {
		return h.mapCampaignError(c, err, "Failed to list messages", "LIST_MESSAGES_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Messages retrieved successfully", result)
}

// DispatchCampaign sends the next batch of queued messages through the gateway
// @Summary Dispatch campaign
// @Description Send up to max_recipients queued messages through the SMS gateway
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param request body dto.DispatchCampaignRequest false "Dispatch options"
// @Success 200 {object} dto.APIResponse{data=dto.DispatchCampaignResponse} "Dispatch outcome"
// @Failure 400 {object} dto.APIResponse "Invalid UUID"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Dispatch already in progress or campaign not dispatchable"
// @Failure 502 {object} dto.APIResponse "Gateway failure"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/sms/campaigns/{uuid}/dispatch [post]
func (h *CampaignHandler) DispatchCampaign(c fiber.Ctx) error {
	req := &dto.DispatchCampaignRequest{UUID: c.Params("uuid")}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		req.UUID = c.Params("uuid")
	}

	if err := h.validator.Struct(req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign UUID", "CAMPAIGN_UUID_REQUIRED", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.dispatchFlow.DispatchCampaign(h.createRequestContextWithTimeout(c, "/api/v1/sms/campaigns/:uuid/dispatch", 2*time.Minute), req, metadata)
	if err != nil {
		if businessflow.IsCampaignDispatchInFlight(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign dispatch already in progress", "DISPATCH_IN_FLIGHT", nil)
		}
		if businessflow.IsCampaignNotDispatchable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, err.Error(), "CAMPAIGN_NOT_DISPATCHABLE", nil)
		}
		if businessflow.IsGatewayFailure(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Sms gateway request failed", "GATEWAY_FAILURE", nil)
		}
		return h.mapCampaignError(c, err, "Failed to dispatch campaign", "DISPATCH_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign dispatched successfully", result)
}

// RefreshCampaign polls the gateway for delivery status of sent messages
// @Summary Refresh delivery status
// @Description Poll the gateway for up to limit sent messages and reclassify them
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param request body dto.RefreshCampaignRequest false "Refresh options"
// @Success 200 {object} dto.APIResponse{data=dto.RefreshCampaignResponse} "Refresh outcome"
// @Failure 400 {object} dto.APIResponse "Invalid UUID"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/sms/campaigns/{uuid}/refresh [post]
func (h *CampaignHandler) RefreshCampaign(c fiber.Ctx) error {
	req := &dto.RefreshCampaignRequest{UUID: c.Params("uuid")}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		req.UUID = c.Params("uuid")
	}

	if err := h.validator.Struct(req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign UUID", "CAMPAIGN_UUID_REQUIRED", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.dispatchFlow.RefreshCampaign(h.createRequestContextWithTimeout(c, "/api/v1/sms/campaigns/:uuid/refresh", 2*time.Minute), req, metadata)
	if err != nil {
		return h.mapCampaignError(c, err, "Failed to refresh campaign", "REFRESH_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Delivery status refreshed successfully", result)
}

// ResendCampaign requeues failed messages for another dispatch
// @Summary Resend failed messages
// @Description Requeue the campaign's failed messages so a later dispatch retries them
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ResendCampaignResponse} "Resend outcome"
// @Failure 400 {object} dto.APIResponse "Invalid UUID"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/sms/campaigns/{uuid}/resend [post]
func (h *CampaignHandler) ResendCampaign(c fiber.Ctx) error {
	req := &dto.ResendCampaignRequest{UUID: c.Params("uuid")}

	if err := h.validator.Struct(req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign UUID", "CAMPAIGN_UUID_REQUIRED", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.dispatchFlow.ResendCampaign(h.createRequestContext(c, "/api/v1/sms/campaigns/:uuid/resend"), req, metadata)
	if err != nil {
		return h.mapCampaignError(c, err, "Failed to resend campaign", "RESEND_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Failed messages requeued successfully", result)
}

// mapCampaignError translates failures shared by the campaign endpoints
// into HTTP statuses.
func (h *CampaignHandler) mapCampaignError(c fiber.Ctx, err error, message, fallbackCode string) error {
	if businessflow.IsCampaignNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	}
	if businessflow.IsCampaignUUIDRequired(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign UUID", "CAMPAIGN_UUID_REQUIRED", nil)
	}
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
func (h *CampaignHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *CampaignHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)

	return ctx
}
