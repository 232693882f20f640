package sweep

import (
	"efficiency-bench/internal/results"
)

// Epsilon keeps the efficiency division finite when no input power flows.
const Epsilon = 1e-8

// Reading is the raw, uncorrected measurement of one operating point.
type Reading struct {
	InputVoltage  float64
	InputCurrent  float64
	OutputVoltage float64
	OutputCurrent float64
}

// ComputeSample applies the offsets to both currents and derives power and
// efficiency. It is a pure function of its arguments.
func ComputeSample(r Reading, off Offsets) results.Sample {
	iin := r.InputCurrent + off.Input
	iout := r.OutputCurrent + off.Output
	pin := r.InputVoltage * iin
	pout := r.OutputVoltage * iout

	return results.Sample{
		InputVoltage:  r.InputVoltage,
		InputCurrent:  iin,
		InputPower:    pin,
		OutputVoltage: r.OutputVoltage,
		OutputCurrent: iout,
		OutputPower:   pout,
		Efficiency:    pout / (pin + Epsilon) * 100,
	}
}
