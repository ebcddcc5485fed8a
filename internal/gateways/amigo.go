package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/logger"
	"github.com/valyala/fasthttp"
)

// ErrProviderUnavailable wraps transport-level failures against the delivery
// provider, as opposed to a business rejection which arrives as
// DeliverResult{Success: false}.
var ErrProviderUnavailable = errors.New("delivery provider unavailable")

// Amigo network identifiers.
var amigoNetworkIDs = map[model.Network]int{
	model.NetworkMTN:    1,
	model.NetworkGlo:    2,
	model.NetworkAirtel: 4,
}

type DeliverRequest struct {
	Network        model.Network
	Phone          string
	PlanID         int64 // Amigo catalog plan id
	IdempotencyKey string
}

// DeliverResult carries the provider's verdict plus its raw response body,
// persisted verbatim for audit.
type DeliverResult struct {
	Success bool
	Reason  string
	Payload json.RawMessage
}

type AmigoConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	MaxConns int
}

// AmigoClient dispenses data bundles. Every request carries the purchase's
// idempotency key, so re-issuing a call whose response was lost is safe: the
// provider recognizes the key and will not dispense twice.
type AmigoClient struct {
	config AmigoConfig
	client *fasthttp.Client
}

func NewAmigoClient(config AmigoConfig) (*AmigoClient, error) {
	if config.BaseURL == "" {
		return nil, errors.New("amigo base url is required")
	}
	if config.APIKey == "" {
		return nil, errors.New("amigo api key is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxConns <= 0 {
		config.MaxConns = 64
	}

	return &AmigoClient{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}, nil
}

type amigoDeliverPayload struct {
	Network      int    `json:"network"`
	MobileNumber string `json:"mobile_number"`
	Plan         int64  `json:"plan"`
	PortedNumber bool   `json:"Ported_number"`
}

type amigoResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	Reference string `json:"reference"`
}

func (c *AmigoClient) Deliver(ctx context.Context, dr DeliverRequest) (*DeliverResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	networkID, ok := amigoNetworkIDs[dr.Network]
	if !ok {
		// Bad catalog data, not an outage. Reject without calling out.
		return &DeliverResult{
			Success: false,
			Reason:  fmt.Sprintf("unknown network %q", dr.Network),
			Payload: json.RawMessage(fmt.Sprintf(`{"error":"unknown network %s"}`, dr.Network)),
		}, nil
	}

	reqBody, err := json.Marshal(amigoDeliverPayload{
		Network:      networkID,
		MobileNumber: dr.Phone,
		Plan:         dr.PlanID,
		PortedNumber: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deliver request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + "/api/data/")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Idempotency-Key", dr.IdempotencyKey)
	req.SetBody(reqBody)

	deadline := time.Now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		logger.Warn("Amigo deliver request failed", "idempotency_key", dr.IdempotencyKey, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if resp.StatusCode() >= 500 {
		logger.Warn("Amigo returned server error", "idempotency_key", dr.IdempotencyKey, "status", resp.StatusCode())
		return nil, fmt.Errorf("%w: http %d", ErrProviderUnavailable, resp.StatusCode())
	}

	raw := append(json.RawMessage(nil), resp.Body()...)

	var body amigoResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrProviderUnavailable, err)
	}

	result := &DeliverResult{
		Success: body.Success || body.Status == "delivered",
		Payload: raw,
	}
	if !result.Success {
		result.Reason = body.Error
		if result.Reason == "" {
			result.Reason = body.Message
		}
		if result.Reason == "" {
			result.Reason = "unknown provider error"
		}
	}

	logger.Info("Amigo deliver completed",
		"idempotency_key", dr.IdempotencyKey,
		"success", result.Success,
		"latency_ms", time.Since(start).Milliseconds())

	return result, nil
}
