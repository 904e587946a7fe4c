package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"kerotrack/internal/config"
)

// Quote holds supplier prices in pence per litre at the two standard
// order volumes.
type Quote struct {
	Price500 float64 `json:"price_500"`
	Price900 float64 `json:"price_900"`
}

// Client fetches live kerosene quotes. Quotes move slowly, so the
// last successful fetch is cached and reused for up to an hour.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger

	mu        sync.RWMutex
	lastQuote *Quote
	fetchedAt time.Time
}

const quoteCacheTTL = time.Hour

// NewClient creates a pricing client.
func NewClient(cfg *config.PricingConfig, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.QuoteURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

// FetchQuote returns the current supplier quote, serving the cached
// one when fresh. Returns nil with no error when the supplier is
// unreachable and nothing is cached; pricing is best effort.
func (c *Client) FetchQuote(ctx context.Context) *Quote {
	c.mu.RLock()
	if c.lastQuote != nil && time.Since(c.fetchedAt) < quoteCacheTTL {
		quote := *c.lastQuote
		c.mu.RUnlock()
		return &quote
	}
	c.mu.RUnlock()

	var quote Quote
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&quote).
		Get("")
	if err != nil {
		c.logger.Error("Failed to fetch price quote", zap.Error(err))
		return c.staleQuote()
	}
	if resp.IsError() {
		c.logger.Error("Price quote request rejected",
			zap.Int("status", resp.StatusCode()),
		)
		return c.staleQuote()
	}
	if quote.Price500 <= 0 || quote.Price900 <= 0 {
		c.logger.Warn("Price quote missing expected volumes")
		return c.staleQuote()
	}

	c.mu.Lock()
	c.lastQuote = &quote
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info("Fetched price quote",
		zap.Float64("ppl_500", quote.Price500),
		zap.Float64("ppl_900", quote.Price900),
	)
	return &quote
}

// staleQuote returns the last known quote regardless of age, or nil.
func (c *Client) staleQuote() *Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastQuote == nil {
		return nil
	}
	quote := *c.lastQuote
	return &quote
}

// PPLForVolume interpolates the pence-per-litre price for an order of
// the given size. Suppliers discount larger orders linearly between
// the 500L and 900L price points; outside that range the nearer
// band's price applies.
func PPLForVolume(litres float64, quote *Quote) (float64, error) {
	if quote == nil {
		return 0, fmt.Errorf("no quote available")
	}
	switch {
	case litres < 500:
		return quote.Price500, nil
	case litres > 900:
		return quote.Price900, nil
	default:
		perLitre := (quote.Price500 - quote.Price900) / 400
		return quote.Price500 - perLitre*(litres-500), nil
	}
}
