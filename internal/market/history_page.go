package market

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yielddelta/backtester/pkg/httputil"
	"github.com/yielddelta/backtester/pkg/logger"
)

// HistoryPageClient scrapes the CoinGecko "historical data" page. It is the
// secondary price source when the JSON API refuses or rate limits us.
type HistoryPageClient struct {
	http    *httputil.Client
	baseURL string
	logger  *logger.Logger
	now     Clock
}

// NewHistoryPageClient creates a scraper rooted at baseURL (".../en/coins").
func NewHistoryPageClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *HistoryPageClient {
	return &HistoryPageClient{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log,
		now:     time.Now,
	}
}

// FetchPrices returns the last days rows of the page, oldest first.
func (c *HistoryPageClient) FetchPrices(ctx context.Context, assetID string, days int) ([]PricePoint, error) {
	end := c.now().UTC()
	start := end.AddDate(0, 0, -days)

	q := url.Values{}
	q.Set("start", start.Format("2006-01-02"))
	q.Set("end", end.Format("2006-01-02"))
	fullURL := fmt.Sprintf("%s/%s/historical_data?%s", c.baseURL, url.PathEscape(assetID), q.Encode())

	resp, err := c.http.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("history page %s: %w", assetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("history page %s: unexpected status code: %d", assetID, resp.StatusCode)
	}

	points, err := ParseHistoryTable(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("history page %s: %w", assetID, err)
	}
	if len(points) > days+1 {
		points = points[len(points)-days-1:]
	}

	c.logger.WithFields(map[string]interface{}{
		"asset": assetID,
		"count": len(points),
	}).Debug("Scraped price history")
	return points, nil
}

// ParseHistoryTable reads a "Date | Market Cap | Volume | Open | Close" table.
// Rows with unparseable dates or closes are skipped. Output is sorted by date.
func ParseHistoryTable(r io.Reader) ([]PricePoint, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var points []PricePoint
	doc.Find("table tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 5 {
			return
		}

		date, err := time.Parse("2006-01-02", strings.TrimSpace(cells.Eq(0).Text()))
		if err != nil {
			return
		}

		closePrice, ok := parseMoney(cells.Eq(4).Text())
		if !ok || closePrice <= 0 {
			return
		}
		openPrice, ok := parseMoney(cells.Eq(3).Text())
		if !ok || openPrice <= 0 {
			openPrice = closePrice
		}
		volume, _ := parseMoney(cells.Eq(2).Text())

		points = append(points, PricePoint{
			Timestamp: date.UnixMilli(),
			Date:      date,
			Open:      openPrice,
			High:      math.Max(openPrice, closePrice),
			Low:       math.Min(openPrice, closePrice),
			Close:     closePrice,
			Volume:    volume,
		})
	})

	if len(points) == 0 {
		return nil, ErrNoData
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	return points, nil
}

// parseMoney accepts "$1,234.56" style cells. "N/A" and "-" are not numbers.
func parseMoney(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" || strings.EqualFold(s, "N/A") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
