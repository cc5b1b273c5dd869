// Package oracle fetches current market prices for alert targets.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/common"
	"github.com/dmitrijs2005/pricewatch/internal/server/models"
	"golang.org/x/time/rate"
)

// CryptoSource prices a coin in a quote currency.
type CryptoSource interface {
	CryptoPrice(ctx context.Context, symbol, currency string) (float64, error)
}

// StockSource prices a ticker in its listing currency.
type StockSource interface {
	StockPrice(ctx context.Context, symbol string) (float64, error)
}

// Router dispatches a target to the source for its kind. It throttles all
// upstream calls through one limiter and bounds each call by a timeout.
type Router struct {
	crypto  CryptoSource
	stock   StockSource
	limiter *rate.Limiter
	timeout time.Duration
}

// NewRouter builds a router. rps <= 0 disables throttling and timeout <= 0
// disables the per-call deadline.
func NewRouter(crypto CryptoSource, stock StockSource, rps float64, timeout time.Duration) *Router {
	r := &Router{crypto: crypto, stock: stock, timeout: timeout}
	if rps > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return r
}

// Price returns the current price of t. Every failure wraps
// common.ErrPriceUnavailable.
func (r *Router) Price(ctx context.Context, t models.Target) (float64, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return 0, unavailable(err)
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var (
		price float64
		err   error
	)
	switch t := t.(type) {
	case models.CryptoTarget:
		price, err = r.crypto.CryptoPrice(ctx, t.Symbol, t.Currency)
	case models.StockTarget:
		price, err = r.stock.StockPrice(ctx, t.Symbol)
	default:
		err = fmt.Errorf("%w: %T", common.ErrUnknownCheckKind, t)
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return price, nil
}

func unavailable(err error) error {
	if errors.Is(err, common.ErrPriceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrPriceUnavailable, err)
}

// maxBody caps how much of an upstream response is read.
const maxBody = 1 << 20

func getJSON(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
