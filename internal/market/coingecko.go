package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/yielddelta/backtester/pkg/httputil"
	"github.com/yielddelta/backtester/pkg/logger"
)

// CoinGeckoClient fetches daily closes from the public market_chart endpoint.
type CoinGeckoClient struct {
	http    *httputil.Client
	baseURL string
	logger  *logger.Logger
}

// NewCoinGeckoClient creates a price client rooted at baseURL (".../api/v3").
func NewCoinGeckoClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *CoinGeckoClient {
	return &CoinGeckoClient{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log,
	}
}

type marketChartResponse struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// FetchPrices returns up to days+1 daily candles, oldest first.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context, assetID string, days int) ([]PricePoint, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", fmt.Sprintf("%d", days))
	q.Set("interval", "daily")
	fullURL := fmt.Sprintf("%s/coins/%s/market_chart?%s", c.baseURL, url.PathEscape(assetID), q.Encode())

	var body marketChartResponse
	if err := c.http.GetJSON(ctx, fullURL, &body); err != nil {
		return nil, fmt.Errorf("coingecko market_chart %s: %w", assetID, err)
	}
	if len(body.Prices) == 0 {
		return nil, fmt.Errorf("coingecko market_chart %s: %w", assetID, ErrNoData)
	}

	points := make([]PricePoint, 0, len(body.Prices))
	for i, p := range body.Prices {
		volume := 0.0
		if i < len(body.TotalVolumes) {
			volume = body.TotalVolumes[i][1]
		}
		points = append(points, PointFromClose(int64(p[0]), p[1], volume))
	}

	c.logger.WithFields(map[string]interface{}{
		"asset": assetID,
		"count": len(points),
	}).Debug("Fetched price series")
	return points, nil
}
