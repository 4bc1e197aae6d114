package market

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptySeries     = errors.New("price series is empty")
	ErrUnorderedSeries = errors.New("price series is not strictly time-ascending")
)

// Bar is a single OHLCV observation.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is an ordered, strictly time-ascending sequence of bars for one
// instrument. Consumers treat it as read-only.
type PriceSeries struct {
	Instrument string `json:"instrument"`
	Bars       []Bar  `json:"bars"`
}

// Len returns the number of bars.
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// Empty reports whether the series holds no bars.
func (s PriceSeries) Empty() bool {
	return len(s.Bars) == 0
}

// Tail returns a view over the most recent n bars. The returned slice shares
// storage with the receiver and is capped so appends cannot leak into it.
func (s PriceSeries) Tail(n int) PriceSeries {
	if n <= 0 || n >= len(s.Bars) {
		return s
	}
	start := len(s.Bars) - n
	return PriceSeries{
		Instrument: s.Instrument,
		Bars:       s.Bars[start:len(s.Bars):len(s.Bars)],
	}
}

// Closes returns the close prices in order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent bar.
func (s PriceSeries) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Validate checks ordering and duplicate timestamps.
func (s PriceSeries) Validate() error {
	if len(s.Bars) == 0 {
		return ErrEmptySeries
	}
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Time.After(s.Bars[i-1].Time) {
			return fmt.Errorf("%w: bar %d at %s follows %s", ErrUnorderedSeries, i,
				s.Bars[i].Time.Format(time.RFC3339), s.Bars[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}
