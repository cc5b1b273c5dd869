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

// Stocks reads the last traded price from a Yahoo-style chart endpoint.
type Stocks struct {
	baseURL string
	client  *http.Client
}

func NewStocks(baseURL string, client *http.Client) *Stocks {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Stocks{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *Stocks) StockPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(symbol)

	endpoint := s.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?interval=1d&range=1d"
	body, err := getJSON(ctx, s.client, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("stock %s: %w", symbol, err)
	}

	if msg := gjson.GetBytes(body, "chart.error.description"); msg.Exists() && msg.String() != "" {
		return 0, fmt.Errorf("stock %s: %s", symbol, msg.String())
	}

	v := gjson.GetBytes(body, "chart.result.0.meta.regularMarketPrice")
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("stock %s: no price in response", symbol)
	}
	return v.Float(), nil
}
