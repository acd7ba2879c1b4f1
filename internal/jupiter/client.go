// internal/jupiter/client.go
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://quote-api.jup.ag/v6"
	defaultTimeout = 15 * time.Second
)

// ErrNoRoute is returned when the aggregator finds no way to fill the swap.
var ErrNoRoute = errors.New("no swap route")

// QuoteRequest describes the swap to price.
type QuoteRequest struct {
	InputMint      string
	OutputMint     string
	Amount         uint64 // smallest units of InputMint
	SlippageBps    int
	PlatformFeeBps int
}

// Quote is the aggregator's answer. Raw is sent back verbatim when
// requesting the swap transaction.
type Quote struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`

	Raw json.RawMessage `json:"-"`
}

// SwapRequest asks for a pre-built transaction for a quote.
type SwapRequest struct {
	Quote            *Quote
	UserPublicKey    string
	WrapAndUnwrapSol bool
}

type swapRequestBody struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

// SwapResponse carries the base64 serialized, unsigned transaction.
type SwapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type apiError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// Client is a minimal Jupiter swap API client.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger.Named("jupiter"),
	}
}

// GetQuote requests a quote for req.
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.Amount == 0 {
		return nil, fmt.Errorf("quote amount must be positive")
	}
	query := url.Values{
		"inputMint":      {req.InputMint},
		"outputMint":     {req.OutputMint},
		"amount":         {strconv.FormatUint(req.Amount, 10)},
		"slippageBps":    {strconv.Itoa(req.SlippageBps)},
		"platformFeeBps": {strconv.Itoa(req.PlatformFeeBps)},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create quote request: %w", err)
	}

	raw, err := c.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}

	var quote Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if quote.OutAmount == "" || quote.OutAmount == "0" {
		return nil, ErrNoRoute
	}
	quote.Raw = raw

	c.logger.Debug("quote received",
		zap.String("output_mint", quote.OutputMint),
		zap.String("in_amount", quote.InAmount),
		zap.String("out_amount", quote.OutAmount),
		zap.String("price_impact_pct", quote.PriceImpactPct))
	return &quote, nil
}

// GetSwapTransaction requests the pre-built transaction for a quote.
func (c *Client) GetSwapTransaction(ctx context.Context, req SwapRequest) (*SwapResponse, error) {
	if req.Quote == nil || len(req.Quote.Raw) == 0 {
		return nil, fmt.Errorf("swap request without quote")
	}
	body, err := json.Marshal(swapRequestBody{
		QuoteResponse:    req.Quote.Raw,
		UserPublicKey:    req.UserPublicKey,
		WrapAndUnwrapSol: req.WrapAndUnwrapSol,
	})
	if err != nil {
		return nil, fmt.Errorf("encode swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create swap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	raw, err := c.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}

	var resp SwapResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode swap response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, fmt.Errorf("swap response without transaction")
	}
	return &resp, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.ErrorCode == "COULD_NOT_FIND_ANY_ROUTE" {
				return nil, fmt.Errorf("%w: %s", ErrNoRoute, apiErr.Error)
			}
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
