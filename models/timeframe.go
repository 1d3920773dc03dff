package models

import (
	"fmt"
	"strconv"
	"time"
)

// Timeframe is a fixed candle bucket duration such as "1h" or "4h".
type Timeframe struct {
	label string
	step  time.Duration
}

// ParseTimeframe accepts venue style labels: <n>m, <n>h, <n>d, <n>w.
func ParseTimeframe(s string) (Timeframe, error) {
	if len(s) < 2 {
		return Timeframe{}, fmt.Errorf("invalid timeframe %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return Timeframe{}, fmt.Errorf("invalid timeframe %q", s)
	}
	var unit time.Duration
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return Timeframe{}, fmt.Errorf("invalid timeframe unit in %q", s)
	}
	return Timeframe{label: s, step: time.Duration(n) * unit}, nil
}

// MustTimeframe is ParseTimeframe for compile-time constants.
func MustTimeframe(s string) Timeframe {
	tf, err := ParseTimeframe(s)
	if err != nil {
		panic(err)
	}
	return tf
}

func (t Timeframe) String() string { return t.label }

// Step is the bucket duration.
func (t Timeframe) Step() time.Duration { return t.step }

// StepMillis is the bucket duration in milliseconds.
func (t Timeframe) StepMillis() int64 { return t.step.Milliseconds() }
