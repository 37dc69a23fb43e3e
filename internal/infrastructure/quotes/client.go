// Package quotes is a client for a Yahoo-style batch quote endpoint.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5
	DefaultBatchSize = 20
	DefaultWorkers   = 4
	DefaultRetries   = 3
	DefaultFXPair    = "USDKRW=X"
	DefaultSuffix    = ".KS"
)

// ErrRateLimited is returned when the endpoint keeps answering 429 after all retries.
var ErrRateLimited = errors.New("quote endpoint rate limited")

// Client fetches quotes in parallel batches, pacing requests with a token bucket and
// retrying only rate-limited responses.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	batchSize    int
	workers      int
	maxRetries   int
	retryBackoff time.Duration
	fxPair       string
	homeSuffix   string
}

// Option configures the client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit sets the sustained requests per second.
func WithRateLimit(perSecond int) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		}
	}
}

func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithWorkers bounds the number of batches in flight.
func WithWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryBackoff sets the first retry interval; later ones grow exponentially with jitter.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryBackoff = d
		}
	}
}

func WithFXPair(symbol string) Option {
	return func(c *Client) {
		if symbol != "" {
			c.fxPair = symbol
		}
	}
}

// WithHomeSuffix sets the exchange suffix appended to six-digit home-market tickers.
func WithHomeSuffix(s string) Option {
	return func(c *Client) { c.homeSuffix = s }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a quote client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		limiter:      rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		batchSize:    DefaultBatchSize,
		workers:      DefaultWorkers,
		maxRetries:   DefaultRetries,
		retryBackoff: 500 * time.Millisecond,
		fxPair:       DefaultFXPair,
		homeSuffix:   DefaultSuffix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-retryable HTTP failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quote API error: %s (status: %d)", e.Message, e.StatusCode)
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string              `json:"symbol"`
			Currency           string              `json:"currency"`
			RegularMarketPrice decimal.NullDecimal `json:"regularMarketPrice"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// Symbol maps a ticker to the feed's symbol: six-digit home-market codes get the
// exchange suffix, everything else is upper-cased.
func (c *Client) Symbol(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if len(t) == 6 && strings.IndexFunc(t, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return t + c.homeSuffix
	}
	return t
}

// Quotes returns the latest price per ticker. Batches run in parallel; a failed batch only
// drops its own tickers, and the joined batch errors are returned with the partial map.
func (c *Client) Quotes(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	bySymbol := make(map[string][]string, len(tickers))
	var symbols []string
	for _, t := range tickers {
		if strings.TrimSpace(t) == "" {
			continue
		}
		s := c.Symbol(t)
		if _, ok := bySymbol[s]; !ok {
			symbols = append(symbols, s)
		}
		bySymbol[s] = append(bySymbol[s], t)
	}
	out := make(map[string]decimal.Decimal, len(tickers))
	if len(symbols) == 0 {
		return out, nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	pool := pond.NewPool(c.workers, pond.WithContext(ctx))
	defer pool.StopAndWait()
	group := pool.NewGroup()
	for start := 0; start < len(symbols); start += c.batchSize {
		end := start + c.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]
		group.Submit(func() {
			prices, err := c.fetch(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("batch %s: %w", strings.Join(batch, ","), err))
				return
			}
			for sym, p := range prices {
				for _, t := range bySymbol[sym] {
					out[t] = p
				}
			}
		})
	}
	if err := group.Wait(); err != nil {
		errs = append(errs, err)
	}

	log.Debug().Int("requested", len(symbols)).Int("received", len(out)).Int("failed_batches", len(errs)).Msg("Quotes fetched")
	return out, errors.Join(errs...)
}

// FXRate returns the home-currency price of one unit of foreign currency.
func (c *Client) FXRate(ctx context.Context) (decimal.Decimal, error) {
	prices, err := c.fetch(ctx, []string{c.fxPair})
	if err != nil {
		return decimal.Zero, err
	}
	r, ok := prices[strings.ToUpper(c.fxPair)]
	if !ok || !r.IsPositive() {
		return decimal.Zero, fmt.Errorf("no rate for %s", c.fxPair)
	}
	return r, nil
}

// Ping checks that the feed answers by requesting the FX pair.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.FXRate(ctx)
	return err
}

// fetch performs one rate-limited request, retrying 429 responses with backoff.
func (c *Client) fetch(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	reqURL := fmt.Sprintf("%s/v7/finance/quote?%s", c.baseURL, params.Encode())

	var body []byte
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to execute request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			log.Warn().Strs("symbols", symbols).Msg("Quote endpoint rate limited, backing off")
			return ErrRateLimited
		}
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(&APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))})
		}
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to read response body: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBackoff
	b.MaxInterval = 30 * c.retryBackoff
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	out := make(map[string]decimal.Decimal, len(parsed.QuoteResponse.Result))
	for _, r := range parsed.QuoteResponse.Result {
		if !r.RegularMarketPrice.Valid {
			continue
		}
		out[strings.ToUpper(r.Symbol)] = r.RegularMarketPrice.Decimal
	}
	return out, nil
}
