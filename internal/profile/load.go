package profile

import (
	"context"
	"fmt"
	"strconv"
)

// Load is the command profile of the electronic load, operated in
// constant-current-with-hysteresis mode on a single channel.
type Load struct {
	channel int
}

func NewLoad(channel int) (*Load, error) {
	if channel < 1 {
		return nil, fmt.Errorf("load channel must be at least 1, got %d", channel)
	}
	return &Load{channel: channel}, nil
}

func (p *Load) Channel() int {
	return p.channel
}

func (p *Load) InitCommands() []string {
	return []string{
		"chan " + strconv.Itoa(p.channel),
		"mode cch",
		"curr:stat:l1 0",
		"load on",
	}
}

func (p *Load) SetCurrentCommand(amps float64) string {
	return "curr:stat:l1 " + formatValue(amps)
}

func (p *Load) DisableCommand() string {
	return "load off"
}

func (p *Load) Initialize(ctx context.Context, c Commander) error {
	return apply(ctx, c, p.InitCommands())
}

func (p *Load) SetCurrent(ctx context.Context, c Commander, amps float64) error {
	return c.Write(ctx, p.SetCurrentCommand(amps))
}

// Measure reads the output side of the DUT.
func (p *Load) Measure(ctx context.Context, c Commander) (volts, amps float64, err error) {
	return measure(ctx, c)
}

func (p *Load) Disable(ctx context.Context, c Commander) error {
	return c.Write(ctx, p.DisableCommand())
}
