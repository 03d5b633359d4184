package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yielddelta/backtester/pkg/httputil"
	"github.com/yielddelta/backtester/pkg/logger"
)

const poolDayDatasQuery = `
query poolDayDatas($pool: String!, $startTime: Int!, $endTime: Int!) {
  poolDayDatas(
    where: { pool: $pool, date_gte: $startTime, date_lte: $endTime }
    orderBy: date
    orderDirection: asc
  ) {
    date
    liquidity
    volumeUSD
    feesUSD
    token0Price
    token1Price
    tvlUSD
  }
}`

// SubgraphClient reads pool day data from a Uniswap-v3 style subgraph.
type SubgraphClient struct {
	http     *httputil.Client
	endpoint string
	logger   *logger.Logger
}

// NewSubgraphClient creates a pool client for the given GraphQL endpoint.
func NewSubgraphClient(httpClient *httputil.Client, endpoint string, log *logger.Logger) *SubgraphClient {
	return &SubgraphClient{http: httpClient, endpoint: endpoint, logger: log}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type poolDayData struct {
	Date        int64  `json:"date"`
	Liquidity   string `json:"liquidity"`
	VolumeUSD   string `json:"volumeUSD"`
	FeesUSD     string `json:"feesUSD"`
	Token0Price string `json:"token0Price"`
	Token1Price string `json:"token1Price"`
	TVLUSD      string `json:"tvlUSD"`
}

type poolDayDatasResponse struct {
	Data struct {
		PoolDayDatas []poolDayData `json:"poolDayDatas"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// FetchPoolData returns the pool's day data between start and end, oldest first.
func (c *SubgraphClient) FetchPoolData(ctx context.Context, pool string, start, end time.Time) ([]PoolSnapshot, error) {
	req := graphQLRequest{
		Query: poolDayDatasQuery,
		Variables: map[string]interface{}{
			"pool":      strings.ToLower(pool),
			"startTime": start.Unix(),
			"endTime":   end.Unix(),
		},
	}

	resp, err := c.http.PostJSON(ctx, c.endpoint, req)
	if err != nil {
		return nil, fmt.Errorf("subgraph poolDayDatas %s: %w", pool, err)
	}

	var body poolDayDatasResponse
	if err := httputil.DecodeJSON(resp, &body); err != nil {
		return nil, fmt.Errorf("subgraph poolDayDatas %s: %w", pool, err)
	}
	if len(body.Errors) > 0 {
		return nil, fmt.Errorf("subgraph poolDayDatas %s: %s", pool, body.Errors[0].Message)
	}

	rows := body.Data.PoolDayDatas
	if len(rows) == 0 {
		return nil, fmt.Errorf("subgraph poolDayDatas %s: %w", pool, ErrNoData)
	}

	snapshots := make([]PoolSnapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := row.snapshot()
		if err != nil {
			return nil, fmt.Errorf("subgraph poolDayDatas %s: day %d: %w", pool, row.Date, err)
		}
		snapshots = append(snapshots, snap)
	}

	c.logger.WithFields(map[string]interface{}{
		"pool":  pool,
		"count": len(snapshots),
	}).Debug("Fetched pool series")
	return snapshots, nil
}

type decimalField struct {
	name string
	raw  string
	dst  *float64
}

// snapshot converts the subgraph's string-encoded numerics.
func (d poolDayData) snapshot() (PoolSnapshot, error) {
	var snap PoolSnapshot
	fields := []decimalField{
		{"liquidity", d.Liquidity, &snap.Liquidity},
		{"volumeUSD", d.VolumeUSD, &snap.VolumeUSD},
		{"feesUSD", d.FeesUSD, &snap.FeesUSD},
		{"token0Price", d.Token0Price, &snap.Token0Price},
		{"token1Price", d.Token1Price, &snap.Token1Price},
		{"tvlUSD", d.TVLUSD, &snap.TVLUSD},
	}

	for _, f := range fields {
		v, err := parseDecimal(f.raw)
		if err != nil {
			return PoolSnapshot{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}

	snap.Timestamp = d.Date * 1000
	snap.Date = time.Unix(d.Date, 0).UTC()
	return snap, nil
}

// parseDecimal reads a subgraph BigDecimal/BigInt string. Empty means zero.
func parseDecimal(raw string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
