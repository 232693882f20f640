package instrument

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// DUTModel describes the simulated converter sitting between source and load.
type DUTModel struct {
	OutputVoltage      float64 // regulated output at no load
	DroopPerAmp        float64 // output droop per ampere of load
	ConversionEff      float64 // switching efficiency, 0..1
	ConductionLossOhms float64 // series resistance dissipating Iout^2*R
	QuiescentCurrent   float64 // input current drawn with the output unloaded
}

func DefaultDUTModel() DUTModel {
	return DUTModel{
		OutputVoltage:      5.0,
		DroopPerAmp:        0.02,
		ConversionEff:      0.95,
		ConductionLossOhms: 0.01,
		QuiescentCurrent:   0.005,
	}
}

// SimCommand is one command as seen by the simulated bench.
type SimCommand struct {
	Role    string
	Command string
}

// SimState is a snapshot of the simulated instruments.
type SimState struct {
	SourceVoltage float64
	CurrentLimit  float64
	SourceOn      bool
	Remote        bool
	Parallel      bool
	LoadCurrent   float64
	LoadOn        bool
	LoadChannel   int
	LoadMode      string
}

// SimBench models a source, an electronic load and a lossy DUT well enough to
// run a full sweep without hardware.
type SimBench struct {
	mu       sync.Mutex
	model    DUTModel
	state    SimState
	commands []SimCommand
}

func NewSimBench(model DUTModel) *SimBench {
	return &SimBench{model: model}
}

// Transport returns a transport for role "source" or "load".
func (b *SimBench) Transport(role string) (Transport, error) {
	switch role {
	case "source", "load":
		return &simTransport{bench: b, role: role}, nil
	default:
		return nil, fmt.Errorf("unknown simulated role %q", role)
	}
}

func (b *SimBench) State() SimState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *SimBench) Commands() []SimCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SimCommand, len(b.commands))
	copy(out, b.commands)
	return out
}

// outputs returns the DUT operating point for the current instrument state.
func (b *SimBench) outputs() (vin, iin, vout, iout float64) {
	s := b.state
	if !s.SourceOn {
		return 0, 0, 0, 0
	}
	vin = s.SourceVoltage

	if s.LoadOn {
		iout = s.LoadCurrent
	}
	vout = b.model.OutputVoltage - b.model.DroopPerAmp*iout
	if vout > vin {
		vout = vin
	}
	if vout < 0 {
		vout = 0
	}

	if vin > 0 {
		pout := vout * iout
		loss := iout * iout * b.model.ConductionLossOhms
		iin = (pout+loss)/b.model.ConversionEff/vin + b.model.QuiescentCurrent
	}
	if s.CurrentLimit > 0 && iin > s.CurrentLimit {
		iin = s.CurrentLimit
	}
	return vin, iin, vout, iout
}

func (b *SimBench) handle(role, command string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.commands = append(b.commands, SimCommand{Role: role, Command: command})

	fields := strings.Fields(strings.ToLower(strings.TrimSpace(command)))
	if len(fields) == 0 {
		return "", false, fmt.Errorf("empty command")
	}
	verb := fields[0]
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	if verb == "*idn?" {
		return fmt.Sprintf("SIMULATED,%s,0,1.0", role), true, nil
	}

	vin, iin, vout, iout := b.outputs()

	if role == "source" {
		switch verb {
		case "volt":
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return "", false, err
			}
			b.state.SourceVoltage = v
		case "curr":
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return "", false, err
			}
			b.state.CurrentLimit = v
		case "output":
			b.state.SourceOn = arg == "on"
		case "syst:rem":
			b.state.Remote = true
		case "outp:par":
			b.state.Parallel = true
		case "meas:volt?":
			return formatReading(vin), true, nil
		case "meas:curr?":
			return formatReading(iin), true, nil
		default:
			return "", false, fmt.Errorf("unsupported source command %q", command)
		}
		return "", false, nil
	}

	switch verb {
	case "chan":
		ch, err := strconv.Atoi(arg)
		if err != nil {
			return "", false, err
		}
		b.state.LoadChannel = ch
	case "mode":
		b.state.LoadMode = arg
	case "curr:stat:l1":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return "", false, err
		}
		b.state.LoadCurrent = v
	case "load":
		b.state.LoadOn = arg == "on"
	case "abort":
		b.state.LoadOn = false
	case "meas:volt?":
		return formatReading(vout), true, nil
	case "meas:curr?":
		return formatReading(iout), true, nil
	default:
		return "", false, fmt.Errorf("unsupported load command %q", command)
	}
	return "", false, nil
}

func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'E', 6, 64)
}

type simTransport struct {
	bench   *SimBench
	role    string
	pending []string
	closed  bool
}

func (t *simTransport) Send(ctx context.Context, command string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.closed {
		return fmt.Errorf("transport closed")
	}
	reply, hasReply, err := t.bench.handle(t.role, command)
	if err != nil {
		return err
	}
	if hasReply {
		t.pending = append(t.pending, reply)
	}
	return nil
}

func (t *simTransport) Receive(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(t.pending) == 0 {
		return "", fmt.Errorf("no reply pending")
	}
	reply := t.pending[0]
	t.pending = t.pending[1:]
	return reply, nil
}

func (t *simTransport) Close() error {
	t.closed = true
	return nil
}
