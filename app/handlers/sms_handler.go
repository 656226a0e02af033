package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/pesaops/tillboard/app/dto"
	businessflow "github.com/pesaops/tillboard/business_flow"
)

// SMSHandlerInterface defines the contract for direct gateway handlers
type SMSHandlerInterface interface {
	TestSend(c fiber.Ctx) error
	Balance(c fiber.Ctx) error
}

// SMSHandler handles direct SMS gateway HTTP requests
type SMSHandler struct {
	dispatchFlow businessflow.DispatchFlow
	validator    *validator.Validate
}

func (h *SMSHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SMSHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewSMSHandler creates a new SMS gateway handler
func NewSMSHandler(dispatchFlow businessflow.DispatchFlow) *SMSHandler {
	return &SMSHandler{
		dispatchFlow: dispatchFlow,
		validator:    validator.New(),
	}
}

// TestSend sends a single message outside any campaign
// @Summary Test send
// @Description Send one SMS through the gateway to verify connectivity and credentials
// @Tags SMS
// @Accept json
// @Produce json
// @Param request body dto.TestSendRequest true "Test message"
// @Success 200 {object} dto.APIResponse{data=dto.TestSendResponse} "Gateway response"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid phone"
// @Failure 502 {object} dto.APIResponse "Gateway failure"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/sms/test-send [post]
func (h *SMSHandler) TestSend(c fiber.Ctx) error {
	var req dto.TestSendRequest
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

	result, err := h.dispatchFlow.TestSend(h.createRequestContext(c, "/api/v1/sms/test-send"), &req, metadata)
	if err != nil {
		if businessflow.IsInvalidPhone(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PHONE", nil)
		}
		if businessflow.IsGatewayFailure(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Sms gateway request failed", "GATEWAY_FAILURE", nil)
		}

		log.Println("Test send failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Test send failed", "TEST_SEND_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Test message submitted", result)
}

// Balance returns the remaining gateway account balance
// @Summary Gateway balance
// @Description Query the SMS gateway for the remaining account balance
// @Tags SMS
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.BalanceResponse} "Account balance"
// @Failure 502 {object} dto.APIResponse "Gateway failure"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/sms/balance [get]
func (h *SMSHandler) Balance(c fiber.Ctx) error {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.dispatchFlow.Balance(h.createRequestContext(c, "/api/v1/sms/balance"), metadata)
	if err != nil {
		if businessflow.IsGatewayFailure(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Sms gateway request failed", "GATEWAY_FAILURE", nil)
		}

		log.Println("Balance query failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Balance query failed", "BALANCE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Balance retrieved successfully", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *SMSHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)

	return ctx
}
