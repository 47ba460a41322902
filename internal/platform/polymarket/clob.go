package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/yonghanchen/predictbot/internal/domain"
)

// ClobClient is the REST client for the CLOB (Central Limit Order Book)
// API. It is keyed by condition ID and is the only source of tradable token
// IDs and live order-book prices.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client

	apiKey        string
	apiPassphrase string
}

// NewClobClient creates a CLOB REST client.
//
// baseURL is the API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetCredentials attaches API credentials to subsequent requests. The
// endpoints used here work unauthenticated but get better rate limits with
// a key.
func (c *ClobClient) SetCredentials(apiKey, apiPassphrase string) {
	c.apiKey = apiKey
	c.apiPassphrase = apiPassphrase
}

// GetMarket returns the venue record for a settlement condition: its outcome
// tokens and, when the venue includes it, top-of-book bid/ask data.
func (c *ClobClient) GetMarket(ctx context.Context, conditionID string) (ClobMarket, error) {
	body, err := c.doGet(ctx, "/markets/"+url.PathEscape(conditionID))
	if err != nil {
		return ClobMarket{}, fmt.Errorf("polymarket/clob: get market %s: %w", conditionID, err)
	}

	var m ClobMarket
	if err := json.Unmarshal(body, &m); err != nil {
		return ClobMarket{}, fmt.Errorf("polymarket/clob: decode market: %w", err)
	}
	return m, nil
}

// GetMarketsPage returns one page of the venue's own market listing. Pass
// InitialCursor for the first page; iteration ends when NextCursor equals
// EndCursor.
func (c *ClobClient) GetMarketsPage(ctx context.Context, cursor string) (ClobMarketsPage, error) {
	path := "/markets"
	if cursor != InitialCursor {
		params := url.Values{}
		params.Set("next_cursor", cursor)
		path += "?" + params.Encode()
	}

	body, err := c.doGet(ctx, path)
	if err != nil {
		return ClobMarketsPage{}, fmt.Errorf("polymarket/clob: list markets: %w", err)
	}

	var page ClobMarketsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return ClobMarketsPage{}, fmt.Errorf("polymarket/clob: decode markets page: %w", err)
	}
	return page, nil
}

// doGet sends a GET request to the CLOB API, attaching credential headers
// when configured.
func (c *ClobClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("POLY-API-KEY", c.apiKey)
		req.Header.Set("POLY-PASSPHRASE", c.apiPassphrase)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
