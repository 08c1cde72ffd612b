// Package sync pulls transactions from connected bank accounts through the
// Pluggy open banking API and funnels them into the shared import pipeline.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

const apiKeyTTL = 25 * time.Minute // Pluggy keys expire after 30

// PluggyConfig carries the connector credentials.
type PluggyConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
}

// PluggyClient is a thin HTTP client for the Pluggy API. Unlike the import
// pipeline, sync calls retry transient failures: the remote API is outside
// our control and a failed sync simply runs again later.
type PluggyClient struct {
	cfg        PluggyConfig
	httpClient *http.Client
	logger     *slog.Logger

	mu           sync.Mutex
	apiKey       string
	apiKeyExpiry time.Time
}

func NewPluggyClient(cfg PluggyConfig, logger *slog.Logger) *PluggyClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.pluggy.ai"
	}
	return &PluggyClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// PluggyAccount is a bank account on the Pluggy side.
type PluggyAccount struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Number  string  `json:"number"`
	Balance float64 `json:"balance"`
}

// PluggyTransaction is one transaction from the connector. Amounts are
// signed major units in the account currency.
type PluggyTransaction struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"` // DEBIT or CREDIT
}

type pluggyPage[T any] struct {
	Results    []T `json:"results"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// authenticate exchanges the client credentials for a short-lived API key.
func (c *PluggyClient) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.apiKey != "" && time.Now().Before(c.apiKeyExpiry) {
		return c.apiKey, nil
	}

	body, err := json.Marshal(map[string]string{
		"clientId":     c.cfg.ClientID,
		"clientSecret": c.cfg.ClientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("marshal auth request: %w", err)
	}

	var authResp struct {
		APIKey string `json:"apiKey"`
	}
	err = c.doRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/auth", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.decode(req, &authResp)
	})
	if err != nil {
		return "", fmt.Errorf("pluggy auth: %w", err)
	}

	c.apiKey = authResp.APIKey
	c.apiKeyExpiry = time.Now().Add(apiKeyTTL)
	return c.apiKey, nil
}

// ListAccounts returns the accounts under one Pluggy item (a bank
// connection).
func (c *PluggyClient) ListAccounts(ctx context.Context, itemID string) ([]PluggyAccount, error) {
	apiKey, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{"itemId": {itemID}}
	var page pluggyPage[PluggyAccount]
	err = c.doRetry(ctx, func(ctx context.Context) error {
		req, err := c.newRequest(ctx, apiKey, "/accounts", query)
		if err != nil {
			return err
		}
		return c.decode(req, &page)
	})
	if err != nil {
		return nil, fmt.Errorf("pluggy list accounts: %w", err)
	}
	return page.Results, nil
}

// ListTransactions pages through the transactions of one account starting
// at from.
func (c *PluggyClient) ListTransactions(ctx context.Context, accountID string, from time.Time) ([]PluggyTransaction, error) {
	apiKey, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var all []PluggyTransaction
	for pageNum := 1; ; pageNum++ {
		query := url.Values{
			"accountId": {accountID},
			"from":      {from.Format("2006-01-02")},
			"page":      {fmt.Sprint(pageNum)},
			"pageSize":  {"200"},
		}

		var page pluggyPage[PluggyTransaction]
		err = c.doRetry(ctx, func(ctx context.Context) error {
			req, err := c.newRequest(ctx, apiKey, "/transactions", query)
			if err != nil {
				return err
			}
			return c.decode(req, &page)
		})
		if err != nil {
			return nil, fmt.Errorf("pluggy list transactions: %w", err)
		}

		all = append(all, page.Results...)
		if pageNum >= page.TotalPages || len(page.Results) == 0 {
			break
		}
	}
	return all, nil
}

func (c *PluggyClient) newRequest(ctx context.Context, apiKey, path string, query url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", apiKey)
	return req, nil
}

// decode executes the request and unmarshals the response. Server errors
// are marked retryable, client errors are not.
func (c *PluggyClient) decode(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return retry.RetryableError(err)
	}

	if resp.StatusCode >= 500 {
		return retry.RetryableError(fmt.Errorf("pluggy returned %d: %s", resp.StatusCode, body))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("pluggy returned %d: %s", resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode pluggy response: %w", err)
	}
	return nil
}

func (c *PluggyClient) doRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && retry.ErrorIsRetryable(err) {
			c.logger.Warn("pluggy request failed, retrying", "error", err)
		}
		return err
	})
}
