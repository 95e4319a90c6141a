// Package dataset persists bars and labelled backtest series as CSV.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"RegimeSentinel/internal/model"
)

var barHeader = []string{"Datetime", "Open", "High", "Low", "Close", "Volume"}

var seriesHeader = []string{"Datetime", "Close", "State", "Value"}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// FileName returns the conventional dataset name for a symbol and interval.
func FileName(symbol, interval string) string {
	return fmt.Sprintf("%s_%s.csv", symbol, interval)
}

// WriteBars writes bars with RFC 3339 timestamps and shortest round-trip
// float formatting, so ReadBars restores them exactly.
func WriteBars(w io.Writer, bars []model.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(barHeader); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Time.Format(time.RFC3339Nano),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadBars parses a file written by WriteBars.
func ReadBars(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(barHeader)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: csv has no header", model.ErrDataInsufficient)
	}
	for i, h := range barHeader {
		if records[0][i] != h {
			return nil, fmt.Errorf("%w: unexpected column %q, want %q", model.ErrShapeMismatch, records[0][i], h)
		}
	}

	bars := make([]model.Bar, 0, len(records)-1)
	for line, rec := range records[1:] {
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+2, err)
		}
		var vals [5]float64
		for j := range vals {
			v, err := strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line+2, barHeader[j+1], err)
			}
			vals[j] = v
		}
		bars = append(bars, model.Bar{
			Time:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return bars, nil
}

// SaveBars writes bars to path, creating parent directories.
func SaveBars(path string, bars []model.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteBars(f, bars); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadBars reads bars from path.
func LoadBars(path string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBars(f)
}

// WriteSeries exports one row per labelled bar: time, close, regime and
// portfolio value. The lengths of all inputs must match.
func WriteSeries(w io.Writer, times []time.Time, closes []float64, states []int, values []float64) error {
	n := len(times)
	if len(closes) != n || len(states) != n || len(values) != n {
		return fmt.Errorf("%w: series lengths %d/%d/%d/%d", model.ErrAlignment, n, len(closes), len(states), len(values))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(seriesHeader); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		rec := []string{
			times[i].Format(time.RFC3339Nano),
			formatFloat(closes[i]),
			strconv.Itoa(states[i]),
			formatFloat(values[i]),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveSeries writes WriteSeries output to path.
func SaveSeries(path string, times []time.Time, closes []float64, states []int, values []float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSeries(f, times, closes, states, values); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
