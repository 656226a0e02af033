// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pesaops/tillboard/config"
	"github.com/pesaops/tillboard/utils"
)

// FluxSMSClient is the SMS gateway used for campaign dispatch, delivery
// status polling and balance checks. Every request is JSON over HTTPS
// with the API key injected into the body.
type FluxSMSClient interface {
	SendSMS(ctx context.Context, mobile, message, senderID string) (*SendResult, error)
	SendBulk(ctx context.Context, mobiles []string, message, senderID string) ([]SendResult, error)
	DeliveryStatus(ctx context.Context, providerMessageID string) (*DeliveryResult, error)
	Balance(ctx context.Context) (*BalanceResult, error)
}

// SendResult is the per-recipient outcome of a send call
type SendResult struct {
	Mobile              string
	MessageID           string
	ResponseCode        int
	ResponseDescription string
	Raw                 json.RawMessage
}

// Accepted reports whether the gateway accepted the message for delivery
func (r *SendResult) Accepted() bool {
	return r.ResponseCode == 200 || strings.EqualFold(r.ResponseDescription, "success")
}

// DeliveryResult is the gateway's view of a previously sent message
type DeliveryResult struct {
	Code        int
	Description string
	Raw         json.RawMessage
}

// BalanceResult is the remaining SMS credit on the gateway account
type BalanceResult struct {
	Balance string
	Raw     json.RawMessage
}

// FluxSMSClientImpl implements FluxSMSClient
type FluxSMSClientImpl struct {
	config *config.SMSConfig
	client *http.Client
}

// NewFluxSMSClient creates a new gateway client
func NewFluxSMSClient(cfg *config.SMSConfig) FluxSMSClient {
	return &FluxSMSClientImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type fluxSendRequest struct {
	APIKey   string   `json:"api_key"`
	SenderID string   `json:"sender_id"`
	Message  string   `json:"message"`
	Mobile   string   `json:"mobile,omitempty"`
	Mobiles  []string `json:"mobiles,omitempty"`
}

type fluxStatusRequest struct {
	APIKey    string `json:"api_key"`
	MessageID string `json:"message_id"`
}

type fluxBalanceRequest struct {
	APIKey string `json:"api_key"`
}

// fluxResponseItem mirrors one gateway response entry. Numeric fields
// arrive as numbers or strings depending on endpoint, hence json.Number.
type fluxResponseItem struct {
	ResponseCode        json.Number `json:"response-code"`
	ResponseDescription string      `json:"response-description"`
	Mobile              string      `json:"mobile"`
	MessageID           string      `json:"messageid"`
	DeliveryStatus      json.Number `json:"delivery-status"`
	DeliveryDescription string      `json:"delivery-description"`
	Balance             json.Number `json:"sms_balance"`
	Error               string      `json:"error"`
}

type fluxResponseEnvelope struct {
	Responses []json.RawMessage `json:"responses"`
	Error     string            `json:"error"`
}

// SendSMS sends a single message
func (c *FluxSMSClientImpl) SendSMS(ctx context.Context, mobile, message, senderID string) (*SendResult, error) {
	body := fluxSendRequest{
		APIKey:   c.config.APIKey,
		SenderID: c.senderOrDefault(senderID),
		Message:  message,
		Mobile:   utils.NormalizePhoneE164(mobile),
	}

	items, err := c.post(ctx, "/sendsms", body)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("gateway returned no response for %s", mobile)
	}
	result := toSendResult(items[0])
	return &result, nil
}

// SendBulk sends one message to many recipients in a single gateway call
func (c *FluxSMSClientImpl) SendBulk(ctx context.Context, mobiles []string, message, senderID string) ([]SendResult, error) {
	if len(mobiles) == 0 {
		return nil, nil
	}

	normalized := make([]string, 0, len(mobiles))
	for _, m := range mobiles {
		normalized = append(normalized, utils.NormalizePhoneE164(m))
	}

	body := fluxSendRequest{
		APIKey:   c.config.APIKey,
		SenderID: c.senderOrDefault(senderID),
		Message:  message,
		Mobiles:  normalized,
	}

	items, err := c.post(ctx, "/bulksms", body)
	if err != nil {
		return nil, err
	}

	results := make([]SendResult, 0, len(items))
	for _, item := range items {
		results = append(results, toSendResult(item))
	}
	return results, nil
}

// DeliveryStatus queries the gateway for the state of a sent message
func (c *FluxSMSClientImpl) DeliveryStatus(ctx context.Context, providerMessageID string) (*DeliveryResult, error) {
	body := fluxStatusRequest{
		APIKey:    c.config.APIKey,
		MessageID: providerMessageID,
	}

	items, err := c.post(ctx, "/smsstatus", body)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("gateway returned no status for message %s", providerMessageID)
	}

	item := items[0]
	code := numberToInt(item.parsed.DeliveryStatus)
	if code == 0 {
		code = numberToInt(item.parsed.ResponseCode)
	}
	desc := item.parsed.DeliveryDescription
	if desc == "" {
		desc = item.parsed.ResponseDescription
	}
	return &DeliveryResult{
		Code:        code,
		Description: desc,
		Raw:         item.raw,
	}, nil
}

// Balance returns the remaining SMS credit
func (c *FluxSMSClientImpl) Balance(ctx context.Context) (*BalanceResult, error) {
	items, err := c.post(ctx, "/check_sms_balance", fluxBalanceRequest{APIKey: c.config.APIKey})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("gateway returned no balance")
	}
	return &BalanceResult{
		Balance: items[0].parsed.Balance.String(),
		Raw:     items[0].raw,
	}, nil
}

type decodedItem struct {
	parsed fluxResponseItem
	raw    json.RawMessage
}

// post performs one gateway call and flattens the response into items.
// Non-2xx statuses and a populated error field are both hard failures.
func (c *FluxSMSClientImpl) post(ctx context.Context, path string, payload any) ([]decodedItem, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned status %d for %s", resp.StatusCode, path)
	}

	var rawBody json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rawBody); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	var envelope fluxResponseEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err == nil && len(envelope.Responses) > 0 {
		if envelope.Error != "" {
			return nil, fmt.Errorf("gateway error: %s", envelope.Error)
		}
		items := make([]decodedItem, 0, len(envelope.Responses))
		for _, raw := range envelope.Responses {
			item, err := decodeItem(raw)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	}

	// Single-object responses (status, balance) come without the envelope.
	item, err := decodeItem(rawBody)
	if err != nil {
		return nil, err
	}
	return []decodedItem{item}, nil
}

func decodeItem(raw json.RawMessage) (decodedItem, error) {
	var parsed fluxResponseItem
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return decodedItem{}, fmt.Errorf("failed to decode gateway response item: %w", err)
	}
	if parsed.Error != "" {
		return decodedItem{}, fmt.Errorf("gateway error: %s", parsed.Error)
	}
	return decodedItem{parsed: parsed, raw: raw}, nil
}

func toSendResult(item decodedItem) SendResult {
	return SendResult{
		Mobile:              utils.NormalizePhoneE164(item.parsed.Mobile),
		MessageID:           item.parsed.MessageID,
		ResponseCode:        numberToInt(item.parsed.ResponseCode),
		ResponseDescription: item.parsed.ResponseDescription,
		Raw:                 item.raw,
	}
}

func numberToInt(n json.Number) int {
	if n == "" {
		return 0
	}
	v, err := n.Int64()
	if err != nil {
		// Some endpoints quote codes as floats.
		f, ferr := n.Float64()
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return int(v)
}

func (c *FluxSMSClientImpl) senderOrDefault(senderID string) string {
	if senderID != "" {
		return senderID
	}
	if c.config.SenderID != "" {
		return c.config.SenderID
	}
	return utils.DefaultSenderID
}

// MockFluxSMSClient implements FluxSMSClient for testing
type MockFluxSMSClient struct {
	SentMessages []MockSentMessage
	// SendResults keys are normalized mobiles; missing entries are
	// reported as accepted.
	SendResults      map[string]SendResult
	DeliveryResults  map[string]DeliveryResult
	DeliveryErrors   map[string]error
	BalanceValue     string
	SendErr          error
	BulkCallCount    int
	StatusCallCount  int
	BalanceCallCount int
}

// MockSentMessage records one mock send
type MockSentMessage struct {
	Mobile   string
	Message  string
	SenderID string
	SentAt   time.Time
}

// NewMockFluxSMSClient creates a new mock gateway client
func NewMockFluxSMSClient() *MockFluxSMSClient {
	return &MockFluxSMSClient{
		SendResults:     make(map[string]SendResult),
		DeliveryResults: make(map[string]DeliveryResult),
		DeliveryErrors:  make(map[string]error),
		BalanceValue:    "1000",
	}
}

func (m *MockFluxSMSClient) SendSMS(ctx context.Context, mobile, message, senderID string) (*SendResult, error) {
	results, err := m.SendBulk(ctx, []string{mobile}, message, senderID)
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

func (m *MockFluxSMSClient) SendBulk(ctx context.Context, mobiles []string, message, senderID string) ([]SendResult, error) {
	m.BulkCallCount++
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	results := make([]SendResult, 0, len(mobiles))
	for _, mobile := range mobiles {
		normalized := utils.NormalizePhoneE164(mobile)
		m.SentMessages = append(m.SentMessages, MockSentMessage{
			Mobile:   normalized,
			Message:  message,
			SenderID: senderID,
			SentAt:   utils.UTCNow(),
		})
		if r, ok := m.SendResults[normalized]; ok {
			results = append(results, r)
			continue
		}
		results = append(results, SendResult{
			Mobile:              normalized,
			MessageID:           fmt.Sprintf("mock-%d", len(m.SentMessages)),
			ResponseCode:        200,
			ResponseDescription: "Success",
		})
	}
	return results, nil
}

func (m *MockFluxSMSClient) DeliveryStatus(ctx context.Context, providerMessageID string) (*DeliveryResult, error) {
	m.StatusCallCount++
	if err, ok := m.DeliveryErrors[providerMessageID]; ok {
		return nil, err
	}
	if r, ok := m.DeliveryResults[providerMessageID]; ok {
		return &r, nil
	}
	return &DeliveryResult{Code: 0, Description: "Pending"}, nil
}

func (m *MockFluxSMSClient) Balance(ctx context.Context) (*BalanceResult, error) {
	m.BalanceCallCount++
	return &BalanceResult{Balance: m.BalanceValue}, nil
}
