package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/yielddelta/backtester/internal/backtest"
)

// dayRow is one CSV line of daily performance.
type dayRow struct {
	Date                string  `csv:"date"`
	Timestamp           int64   `csv:"timestamp"`
	Price               float64 `csv:"price"`
	PortfolioValue      float64 `csv:"portfolio_value"`
	DailyReturnPct      float64 `csv:"daily_return_pct"`
	CumulativeReturnPct float64 `csv:"cumulative_return_pct"`
	FeesEarned          float64 `csv:"fees_earned"`
	ImpermanentLoss     float64 `csv:"impermanent_loss"`
	GasSpent            float64 `csv:"gas_spent"`
	Rebalanced          bool    `csv:"rebalanced"`
	Position            string  `csv:"position"`
}

// WriteCSV writes the daily performance of a run, one row per day.
func WriteCSV(w io.Writer, records []backtest.DailyRecord) error {
	rows := make([]*dayRow, len(records))
	for i, rec := range records {
		kind := ""
		if rec.Position != nil {
			kind = rec.Position.Kind()
		}
		rows[i] = &dayRow{
			Date:                rec.Date.Format(dateLayout),
			Timestamp:           rec.Timestamp,
			Price:               rec.Price,
			PortfolioValue:      rec.PortfolioValue,
			DailyReturnPct:      rec.DailyReturnPct,
			CumulativeReturnPct: rec.CumulativeReturnPct,
			FeesEarned:          rec.FeesEarned,
			ImpermanentLoss:     rec.ImpermanentLoss,
			GasSpent:            rec.GasSpent,
			Rebalanced:          rec.Rebalanced,
			Position:            kind,
		}
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// ExportFile creates path and writes to it with write.
func ExportFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
