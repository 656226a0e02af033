// Package businessflow contains the core business logic for segment
// reconciliation and campaign workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Auth errors
	ErrStaffNotFound     = errors.New("staff account not found")
	ErrStaffNotAllowed   = errors.New("staff account is not allowed")
	ErrIncorrectPassword = errors.New("incorrect password")

	// Till resolution errors
	ErrNoSampleRow        = errors.New("transactions table is empty, cannot resolve till column")
	ErrTillColumnNotFound = errors.New("no till column found in transactions table")

	// Transaction errors
	ErrTransactionNotFound = errors.New("transaction not found")

	// Segment errors
	ErrScanTooLarge           = errors.New("segment matches too many transactions")
	ErrNoMatchingTransactions = errors.New("no matching transactions")
	ErrNoValidPhones          = errors.New("no valid phone numbers found")
	ErrDateRangeRequired      = errors.New("date is required")
	ErrStartDateAfterEndDate  = errors.New("start date cannot be after end date")

	// Campaign errors
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrCampaignUUIDRequired     = errors.New("campaign UUID is required")
	ErrMessageRequired          = errors.New("message is required")
	ErrMessageTooLong           = errors.New("message exceeds maximum length")
	ErrCampaignDispatchInFlight = errors.New("campaign dispatch already in progress")
	ErrCampaignNotDispatchable  = errors.New("campaign cannot be dispatched in its current status")

	// Gateway errors
	ErrGatewayFailure = errors.New("sms gateway request failed")
	ErrInvalidPhone   = errors.New("invalid phone number")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsStaffNotFound(err error) bool {
	return errors.Is(err, ErrStaffNotFound)
}

func IsStaffNotAllowed(err error) bool {
	return errors.Is(err, ErrStaffNotAllowed)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsNoSampleRow(err error) bool {
	return errors.Is(err, ErrNoSampleRow)
}

func IsTillColumnNotFound(err error) bool {
	return errors.Is(err, ErrTillColumnNotFound)
}

func IsTransactionNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound)
}

func IsScanTooLarge(err error) bool {
	return errors.Is(err, ErrScanTooLarge)
}

func IsNoMatchingTransactions(err error) bool {
	return errors.Is(err, ErrNoMatchingTransactions)
}

func IsNoValidPhones(err error) bool {
	return errors.Is(err, ErrNoValidPhones)
}

func IsDateRangeRequired(err error) bool {
	return errors.Is(err, ErrDateRangeRequired)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignUUIDRequired(err error) bool {
	return errors.Is(err, ErrCampaignUUIDRequired)
}

func IsMessageRequired(err error) bool {
	return errors.Is(err, ErrMessageRequired)
}

func IsMessageTooLong(err error) bool {
	return errors.Is(err, ErrMessageTooLong)
}

func IsCampaignDispatchInFlight(err error) bool {
	return errors.Is(err, ErrCampaignDispatchInFlight)
}

func IsCampaignNotDispatchable(err error) bool {
	return errors.Is(err, ErrCampaignNotDispatchable)
}

func IsGatewayFailure(err error) bool {
	return errors.Is(err, ErrGatewayFailure)
}

func IsInvalidPhone(err error) bool {
	return errors.Is(err, ErrInvalidPhone)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
