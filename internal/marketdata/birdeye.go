// internal/marketdata/birdeye.go

package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://public-api.birdeye.so"
	defaultTimeout = 10 * time.Second
	solanaChain    = "solana"

	walletTokenListPath = "/public/wallet/token-list"
	tokenBasicInfoPath  = "/public/token/basic-info"
)

var (
	// ErrUpstreamUnavailable is returned for any transport, status or decoding
	// failure of the indexing service. Callers treat it as transient.
	ErrUpstreamUnavailable = errors.New("market data upstream unavailable")

	// ErrMarketCapMissing means the service answered but did not report a
	// market cap for the token.
	ErrMarketCapMissing = fmt.Errorf("%w: market cap not reported", ErrUpstreamUnavailable)
)

// Error wraps a failed request with the endpoint that produced it.
type Error struct {
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("birdeye %s: %v", e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every *Error match ErrUpstreamUnavailable.
func (e *Error) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// Holding is one token entry of the monitored wallet.
type Holding struct {
	Address string `json:"tokenAddress"`
	Symbol  string `json:"tokenSymbol"`
}

type walletTokenListResponse struct {
	Success bool      `json:"success"`
	Data    []Holding `json:"data"`
}

type tokenBasicInfoResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		MarketCap *float64 `json:"marketCap"`
	} `json:"data"`
}

// Config describes how to reach the indexing service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// ZeroOnMissingMarketCap restores the legacy behaviour of reporting an
	// absent market cap as 0, which makes the watch loop buy immediately.
	ZeroOnMissingMarketCap bool
}

// Service представляет клиент Birdeye API.
type Service struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

// NewService создает новый экземпляр сервиса
func NewService(cfg Config, logger *zap.Logger) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Service{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger.Named("birdeye"),
	}
}

// FetchLatestHolding returns the first entry of the wallet's holdings list.
// ok is false when the service reports no holdings.
func (s *Service) FetchLatestHolding(ctx context.Context, wallet string) (Holding, bool, error) {
	query := url.Values{"wallet": {wallet}}

	var resp walletTokenListResponse
	if err := s.doRequest(ctx, walletTokenListPath, query, &resp); err != nil {
		return Holding{}, false, err
	}
	if len(resp.Data) == 0 {
		s.logger.Debug("wallet has no holdings", zap.String("wallet", wallet))
		return Holding{}, false, nil
	}

	holding := resp.Data[0]
	if holding.Address == "" {
		return Holding{}, false, &Error{Endpoint: walletTokenListPath, Err: errors.New("holding without token address")}
	}
	return holding, true, nil
}

// FetchMarketCap returns the USD market capitalization of a token.
func (s *Service) FetchMarketCap(ctx context.Context, token string) (float64, error) {
	query := url.Values{"address": {token}}

	var resp tokenBasicInfoResponse
	if err := s.doRequest(ctx, tokenBasicInfoPath, query, &resp); err != nil {
		return 0, err
	}
	if resp.Data == nil || resp.Data.MarketCap == nil {
		if s.cfg.ZeroOnMissingMarketCap {
			s.logger.Warn("market cap missing, assuming 0", zap.String("token", token))
			return 0, nil
		}
		return 0, &Error{Endpoint: tokenBasicInfoPath, Err: ErrMarketCapMissing}
	}
	return *resp.Data.MarketCap, nil
}

// doRequest выполняет один HTTP запрос без повторов.
func (s *Service) doRequest(ctx context.Context, path string, query url.Values, dst interface{}) error {
	endpoint := s.cfg.BaseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &Error{Endpoint: path, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("X-API-KEY", s.cfg.APIKey)
	req.Header.Set("x-chain", solanaChain)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &Error{Endpoint: path, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{Endpoint: path, Err: fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &Error{Endpoint: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
