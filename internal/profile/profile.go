// Package profile holds the command sets for the bench instruments. A profile
// only decides which strings are sent; sessions carry them.
package profile

import (
	"context"
	"fmt"
	"strconv"
)

const (
	IdentifyCommand       = "*IDN?"
	MeasureVoltageCommand = "meas:volt?"
	MeasureCurrentCommand = "meas:curr?"
)

// Commander is the part of an instrument session a profile needs.
type Commander interface {
	Write(ctx context.Context, command string) error
	QueryNumeric(ctx context.Context, command string) (float64, error)
}

type Variant string

const (
	// Standard initializes with current limit, zero volts, output on.
	Standard Variant = "standard"
	// RemoteSense first switches the supply to remote control and
	// parallel/sense output before the standard sequence.
	RemoteSense Variant = "remote-sense"
)

func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case Standard, RemoteSense:
		return Variant(s), nil
	default:
		return "", fmt.Errorf("unknown source profile %q", s)
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func apply(ctx context.Context, c Commander, commands []string) error {
	for _, cmd := range commands {
		if err := c.Write(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

func measure(ctx context.Context, c Commander) (volts, amps float64, err error) {
	volts, err = c.QueryNumeric(ctx, MeasureVoltageCommand)
	if err != nil {
		return 0, 0, err
	}
	amps, err = c.QueryNumeric(ctx, MeasureCurrentCommand)
	if err != nil {
		return 0, 0, err
	}
	return volts, amps, nil
}
