package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// CoinGecko reads spot prices from the CoinGecko simple price endpoint.
type CoinGecko struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCoinGecko(baseURL, apiKey string, client *http.Client) *CoinGecko {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &CoinGecko{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: client}
}

func (c *CoinGecko) CryptoPrice(ctx context.Context, symbol, currency string) (float64, error) {
	symbol = strings.ToLower(symbol)
	currency = strings.ToLower(currency)

	q := url.Values{}
	q.Set("ids", symbol)
	q.Set("vs_currencies", currency)

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("x-cg-demo-api-key", c.apiKey)
	}

	body, err := getJSON(ctx, c.client, c.baseURL+"/simple/price?"+q.Encode(), header)
	if err != nil {
		return 0, fmt.Errorf("coingecko %s/%s: %w", symbol, currency, err)
	}

	v := gjson.GetBytes(body, gjson.Escape(symbol)+"."+gjson.Escape(currency))
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("coingecko %s/%s: no price in response", symbol, currency)
	}
	return v.Float(), nil
}
