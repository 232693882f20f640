package profile

import (
	"context"
	"fmt"
	"math"
)

// Source is the command profile of the programmable power supply.
type Source struct {
	variant      Variant
	currentLimit float64
}

func NewSource(variant Variant, currentLimit float64) (*Source, error) {
	if _, err := ParseVariant(string(variant)); err != nil {
		return nil, err
	}
	if currentLimit <= 0 || math.IsNaN(currentLimit) || math.IsInf(currentLimit, 0) {
		return nil, fmt.Errorf("source current limit must be positive, got %v", currentLimit)
	}
	return &Source{variant: variant, currentLimit: currentLimit}, nil
}

func (p *Source) Variant() Variant {
	return p.variant
}

func (p *Source) CurrentLimit() float64 {
	return p.currentLimit
}

// InitCommands ends with the output enabled at 0 V and the current limit at
// the configured ceiling, whichever variant is selected.
func (p *Source) InitCommands() []string {
	limit := "curr " + formatValue(p.currentLimit)
	if p.variant == RemoteSense {
		return []string{"syst:rem", "outp:par", "volt 0", limit, "output on"}
	}
	return []string{limit, "volt 0", "output on"}
}

func (p *Source) SetVoltageCommand(volts float64) string {
	return "volt " + formatValue(volts)
}

func (p *Source) DisableCommand() string {
	return "output off"
}

func (p *Source) Initialize(ctx context.Context, c Commander) error {
	return apply(ctx, c, p.InitCommands())
}

func (p *Source) SetVoltage(ctx context.Context, c Commander, volts float64) error {
	return c.Write(ctx, p.SetVoltageCommand(volts))
}

// Measure reads the input side of the DUT.
func (p *Source) Measure(ctx context.Context, c Commander) (volts, amps float64, err error) {
	return measure(ctx, c)
}

func (p *Source) Disable(ctx context.Context, c Commander) error {
	return c.Write(ctx, p.DisableCommand())
}
