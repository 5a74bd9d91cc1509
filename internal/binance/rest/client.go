package rest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"futures-sim-bot/internal/pricing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Binance error code for a symbol the exchange does not list.
const codeInvalidSymbol = -1121

// Client talks to the Binance USD-M futures REST API (testnet or live).
// Public market data needs no credentials; account endpoints are
// HMAC-SHA256 signed with the API secret.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	log       *zap.Logger
}

func New(baseURL string, timeout time.Duration, apiKey, apiSecret string, log *zap.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type tickerPayload struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// TickerPrice fetches the current price for one symbol, mapping the
// exchange's invalid-symbol error to ErrUnknownSymbol and everything
// else to ErrUnavailable so callers see the same taxonomy as the mock.
func (c *Client) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	body, err := c.get(ctx, "/fapi/v1/ticker/price", query, false)
	if err != nil {
		return decimal.Decimal{}, err
	}
	var ticker tickerPayload
	if err := json.Unmarshal(body, &ticker); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: decode ticker: %v", pricing.ErrUnavailable, err)
	}
	if !ticker.Price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: ticker %s returned price %s", pricing.ErrUnavailable, symbol, ticker.Price)
	}
	return ticker.Price, nil
}

// AllTickerPrices fetches the full price list.
func (c *Client) AllTickerPrices(ctx context.Context) ([]pricing.Ticker, error) {
	body, err := c.get(ctx, "/fapi/v1/ticker/price", nil, false)
	if err != nil {
		return nil, err
	}
	var payload []tickerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode tickers: %v", pricing.ErrUnavailable, err)
	}
	tickers := make([]pricing.Ticker, 0, len(payload))
	for _, t := range payload {
		tickers = append(tickers, pricing.Ticker{Symbol: t.Symbol, Price: t.Price})
	}
	return tickers, nil
}

type balancePayload struct {
	Asset   string          `json:"asset"`
	Balance decimal.Decimal `json:"balance"`
}

// AccountBalance fetches the futures wallet balances. Signed request.
func (c *Client) AccountBalance(ctx context.Context) (map[string]decimal.Decimal, error) {
	body, err := c.get(ctx, "/fapi/v2/balance", url.Values{}, true)
	if err != nil {
		return nil, err
	}
	var payload []balancePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode balances: %v", pricing.ErrUnavailable, err)
	}
	balances := make(map[string]decimal.Decimal, len(payload))
	for _, b := range payload {
		balances[b.Asset] = b.Balance
	}
	return balances, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, signed bool) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	encoded := query.Encode()
	if signed {
		query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		// The signature covers the encoded query and must be the final
		// parameter, after it.
		encoded = query.Encode()
		encoded += "&signature=" + c.sign(encoded)
	}
	reqURL := c.baseURL + path
	if encoded != "" {
		reqURL += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pricing.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", pricing.ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code == codeInvalidSymbol {
			return nil, fmt.Errorf("%s: %w", apiErr.Msg, pricing.ErrUnknownSymbol)
		}
		return nil, fmt.Errorf("%w: http %d: %s", pricing.ErrUnavailable, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) sign(queryString string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(queryString))
	return hex.EncodeToString(mac.Sum(nil))
}
