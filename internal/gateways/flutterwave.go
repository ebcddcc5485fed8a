package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Abdallahnangere/SaukinKarshe/pkg/logger"
	"github.com/valyala/fasthttp"
)

// ErrGatewayUnavailable wraps transport-level failures against the payment
// gateway: timeouts, refused connections, 5xx responses. The caller leaves
// the purchase untouched and lets a later trigger re-drive it.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// VerificationResult is what the gateway's ledger says about a reference.
// Amount is in minor currency units. The caller must re-compare Amount
// against its own record; nothing here is trusted on its own.
type VerificationResult struct {
	Confirmed      bool
	Amount         int64
	ProviderStatus string
}

type FlutterwaveConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
	MaxConns  int
}

// FlutterwaveClient queries the Flutterwave transaction ledger by reference.
// Pure read path; it never mutates anything on either side.
type FlutterwaveClient struct {
	config FlutterwaveConfig
	client *fasthttp.Client
}

func NewFlutterwaveClient(config FlutterwaveConfig) (*FlutterwaveClient, error) {
	if config.BaseURL == "" {
		return nil, errors.New("flutterwave base url is required")
	}
	if config.SecretKey == "" {
		return nil, errors.New("flutterwave secret key is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxConns <= 0 {
		config.MaxConns = 64
	}

	return &FlutterwaveClient{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}, nil
}

type flutterwaveVerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status   string  `json:"status"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		TxRef    string  `json:"tx_ref"`
	} `json:"data"`
}

// Verify looks up a payment by reference. A "not found yet" or non-successful
// ledger entry is not an error; it comes back as Confirmed=false.
func (c *FlutterwaveClient) Verify(ctx context.Context, reference string) (*VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/v3/transactions/verify_by_reference?tx_ref=%s", c.config.BaseURL, reference))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		logger.Warn("Flutterwave verify request failed", "tx_ref", reference, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	status := resp.StatusCode()
	if status >= 500 {
		logger.Warn("Flutterwave verify returned server error", "tx_ref", reference, "status", status)
		return nil, fmt.Errorf("%w: http %d", ErrGatewayUnavailable, status)
	}

	var body flutterwaveVerifyResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrGatewayUnavailable, err)
	}

	result := &VerificationResult{
		Confirmed:      body.Status == "success" && body.Data.Status == "successful",
		Amount:         toMinorUnits(body.Data.Amount),
		ProviderStatus: body.Data.Status,
	}

	logger.Debug("Flutterwave verify completed",
		"tx_ref", reference,
		"confirmed", result.Confirmed,
		"provider_status", result.ProviderStatus,
		"latency_ms", time.Since(start).Milliseconds())

	return result, nil
}

// Flutterwave reports amounts in major units; purchases store minor units.
func toMinorUnits(major float64) int64 {
	return int64(math.Round(major * 100))
}
