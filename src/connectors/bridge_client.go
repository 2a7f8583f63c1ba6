package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"tradeassistant/src/health"
)

const (
	defaultBridgeBaseURL   = "http://127.0.0.1:5000"
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 4 * time.Second
)

// BridgeClient talks to the local broker-bridge process: a connectivity
// probe plus market-data quotes. Order placement happens beyond the bridge
// and never through this client.
type BridgeClient struct {
	baseURL string
	http    *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewBridgeClient(baseURL string) *BridgeClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBridgeBaseURL
		logger.Warnf("No bridge base URL provided, using default: %s", baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &BridgeClient{
		baseURL: baseURL,
		http:    httpClient,
	}
}

type bridgeStatusResponse struct {
	Reachable bool   `json:"reachable"`
	Connected bool   `json:"connected"`
	LatencyMs *int64 `json:"latencyMs,omitempty"`
}

// Probe implements health.Prober. A transport failure or timeout returns
// an error; the monitor degrades it to offline, it is never rethrown to
// the monitor's callers.
func (c *BridgeClient) Probe(ctx context.Context, timeout time.Duration) (*health.ProbeResult, error) {
	probeCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()

	var status bridgeStatusResponse
	resp, err := c.http.R().
		SetContext(probeCtx).
		SetResult(&status).
		Get("/v1/status")

	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bridge status returned %d", resp.StatusCode())
	}

	result := &health.ProbeResult{
		Reachable: status.Reachable,
		Connected: status.Connected,
	}
	if status.LatencyMs != nil {
		result.LatencyMs = *status.LatencyMs
	} else {
		result.LatencyMs = time.Since(started).Milliseconds()
	}

	return result, nil
}

// Quote is one market-data snapshot from the bridge.
type Quote struct {
	Symbol string    `json:"symbol"`
	Last   float64   `json:"last"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	AsOf   time.Time `json:"as_of"`
}

// FetchQuote pulls one quote from the bridge. Callers go through the
// tiered cache first; this is the rate-limited upstream it protects.
func (c *BridgeClient) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	var quote Quote

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&quote).
		Get("/v1/quote")

	if err != nil {
		logger.WithFields(logger.Fields{
			"connector": "BridgeClient",
			"op":        "FetchQuote",
			"symbol":    symbol,
		}).WithError(err).Error("Failed to fetch quote from bridge")

		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bridge quote returned %d for %s", resp.StatusCode(), symbol)
	}

	if quote.AsOf.IsZero() {
		quote.AsOf = time.Now()
	}

	return &quote, nil
}
