package quote

import (
	"context"
	"fmt"
	"time"

	drepo "TickFuse/internal/domain/repository"
	"TickFuse/pkg/config"
	xhttp "TickFuse/pkg/http"
)

// Client fetches quotes from the vetted fallback API over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *xhttp.Client
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Quote.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: cfg.Quote.BaseURL,
		apiKey:  cfg.Quote.APIKey,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type quoteResp struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	TS     int64   `json:"ts"` // ms
}

// FetchQuote returns the latest price for symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (float64, error) {
	var qr quoteResp
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/quote",
		QueryParams: map[string][]string{
			"symbol": {symbol},
			"token":  {c.apiKey},
		},
	}, &qr)
	if err != nil {
		return 0, fmt.Errorf("get quote %s: %w", symbol, err)
	}
	if qr.Price <= 0 {
		return 0, fmt.Errorf("quote %s: empty price", symbol)
	}
	return qr.Price, nil
}

var _ drepo.QuoteFetcher = (*Client)(nil)
