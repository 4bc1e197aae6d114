package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/stratswitch/internal/domain/market"
)

// CSVProvider reads <dir>/<INSTRUMENT>.csv files with columns
// time,open,high,low,close[,volume]. Time is RFC3339 or unix seconds. A
// header row is skipped.
type CSVProvider struct {
	dir string
}

// NewCSVProvider creates a provider rooted at dir.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir}
}

// History loads the file for instrument and returns its most recent bars.
func (p *CSVProvider) History(ctx context.Context, instrument string, bars int) (market.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return market.PriceSeries{}, err
	}

	path := filepath.Join(p.dir, strings.ToUpper(instrument)+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return market.PriceSeries{}, fmt.Errorf("%w: %s", ErrNoData, instrument)
		}
		return market.PriceSeries{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	series, err := ReadBars(f, instrument)
	if err != nil {
		return market.PriceSeries{}, fmt.Errorf("read %s: %w", path, err)
	}
	if series.Empty() {
		return market.PriceSeries{}, fmt.Errorf("%w: %s", ErrNoData, instrument)
	}
	return series.Tail(bars), nil
}

// ReadBars parses CSV bars and validates ordering.
func ReadBars(r io.Reader, instrument string) (market.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	series := market.PriceSeries{Instrument: instrument}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return market.PriceSeries{}, err
		}
		line++

		if line == 1 && isHeader(record) {
			continue
		}
		bar, err := parseBar(record)
		if err != nil {
			return market.PriceSeries{}, fmt.Errorf("line %d: %w", line, err)
		}
		series.Bars = append(series.Bars, bar)
	}

	if err := series.Validate(); err != nil && !errors.Is(err, market.ErrEmptySeries) {
		return market.PriceSeries{}, err
	}
	return series, nil
}

func isHeader(record []string) bool {
	if len(record) < 2 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	return err != nil
}

func parseBar(record []string) (market.Bar, error) {
	if len(record) < 5 {
		return market.Bar{}, fmt.Errorf("expected at least 5 columns, got %d", len(record))
	}

	ts, err := parseTime(strings.TrimSpace(record[0]))
	if err != nil {
		return market.Bar{}, err
	}

	values := make([]float64, 5)
	for i := 1; i < len(record) && i <= 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("column %d: %w", i, err)
		}
		values[i-1] = v
	}

	return market.Bar{
		Time:   ts,
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

func parseTime(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	return t.UTC(), nil
}
