// Package cryptocompare is a thin HTTP client for the CryptoCompare
// min-api price endpoints.
package cryptocompare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// tickerBySymbol maps canonical coin ids to CryptoCompare tickers.
var tickerBySymbol = map[string]string{
	"bitcoin":  "BTC",
	"litecoin": "LTC",
	"ethereum": "ETH",
	"ripple":   "XRP",
	"dogecoin": "DOGE",
	"solana":   "SOL",
	"cardano":  "ADA",
}

// Ticker returns the CryptoCompare ticker for a canonical coin id. Unknown
// ids fall back to the upper-cased id so that new coins can be configured
// without a code change.
func Ticker(symbol string) string {
	if t, ok := tickerBySymbol[strings.ToLower(symbol)]; ok {
		return t
	}
	return strings.ToUpper(symbol)
}

// TickerQuote is one fetched price in the requested quote currency.
type TickerQuote struct {
	Symbol       string // canonical coin id
	Price        float64
	ChangePct24h float64
}

// Client calls the CryptoCompare min-api.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new CryptoCompare client.
//
// baseURL is the min-api root, e.g. "https://min-api.cryptocompare.com/data".
// apiKey is optional; without one the free-tier rate limits apply.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchQuotes retrieves the current price and 24h change for the given coin
// ids in the given quote currency, in a single pricemultifull call. The
// result preserves the order of the symbols argument; a symbol missing from
// the response is an error.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string, currency string) ([]TickerQuote, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("cryptocompare: no symbols requested")
	}
	currency = strings.ToUpper(currency)

	tickers := make([]string, 0, len(symbols))
	for _, s := range symbols {
		tickers = append(tickers, Ticker(s))
	}

	q := url.Values{}
	q.Set("fsyms", strings.Join(tickers, ","))
	q.Set("tsyms", currency)

	endpoint := c.baseURL + "/pricemultifull?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptocompare: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Apikey "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cryptocompare: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cryptocompare: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cryptocompare: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed priceMultiFullResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("cryptocompare: decode response: %w", err)
	}
	// The API reports errors inside a 200 response.
	if strings.EqualFold(parsed.Response, "Error") {
		return nil, fmt.Errorf("cryptocompare: api error: %s", parsed.Message)
	}

	quotes := make([]TickerQuote, 0, len(symbols))
	for i, s := range symbols {
		byCcy, ok := parsed.Raw[tickers[i]]
		if !ok {
			return nil, fmt.Errorf("cryptocompare: missing ticker %s in response", tickers[i])
		}
		raw, ok := byCcy[currency]
		if !ok {
			return nil, fmt.Errorf("cryptocompare: missing currency %s for ticker %s", currency, tickers[i])
		}
		quotes = append(quotes, TickerQuote{
			Symbol:       strings.ToLower(s),
			Price:        raw.Price,
			ChangePct24h: raw.ChangePct24h,
		})
	}
	return quotes, nil
}
