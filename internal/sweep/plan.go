package sweep

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// Offsets are additive calibration constants applied to the raw current
// readings before any power is computed.
type Offsets struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Plan is the parameter space of one sweep. It is immutable once built.
type Plan struct {
	voltages     []float64
	currents     []float64
	currentLimit float64
	offsets      Offsets
}

// PlanSpec is the unvalidated input to NewPlan.
type PlanSpec struct {
	Voltages     []float64
	CurrentStart float64
	CurrentEnd   float64
	Points       int
	CurrentLimit float64
	Offsets      Offsets
}

func NewPlan(spec PlanSpec) (*Plan, error) {
	if len(spec.Voltages) == 0 {
		return nil, fmt.Errorf("at least one input voltage setpoint is required")
	}
	for i, v := range spec.Voltages {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("voltage setpoint %d (%v) must be finite and non-negative", i, v)
		}
	}
	if spec.Points < 1 {
		return nil, fmt.Errorf("number of current points must be at least 1, got %d", spec.Points)
	}
	if !isFinite(spec.CurrentLimit) || spec.CurrentLimit <= 0 {
		return nil, fmt.Errorf("source current limit must be positive, got %v", spec.CurrentLimit)
	}
	if !isFinite(spec.Offsets.Input) || !isFinite(spec.Offsets.Output) {
		return nil, fmt.Errorf("current offsets must be finite")
	}

	currents := linspace(spec.CurrentStart, spec.CurrentEnd, spec.Points)
	for _, c := range currents {
		if !isFinite(c) || c < 0 || c > spec.CurrentLimit {
			return nil, fmt.Errorf("load current %v is outside [0, %v]", c, spec.CurrentLimit)
		}
	}
	sort.Float64s(currents)

	voltages := make([]float64, len(spec.Voltages))
	copy(voltages, spec.Voltages)

	return &Plan{
		voltages:     voltages,
		currents:     currents,
		currentLimit: spec.CurrentLimit,
		offsets:      spec.Offsets,
	}, nil
}

func linspace(start, end float64, n int) []float64 {
	if n == 1 {
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, end)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Voltages returns the input-voltage setpoints in run order.
func (p *Plan) Voltages() []float64 {
	return append([]float64(nil), p.voltages...)
}

// Currents returns the load-current setpoints in ascending order.
func (p *Plan) Currents() []float64 {
	return append([]float64(nil), p.currents...)
}

func (p *Plan) CurrentLimit() float64 {
	return p.currentLimit
}

func (p *Plan) Offsets() Offsets {
	return p.offsets
}

func (p *Plan) MaxVoltage() float64 {
	return floats.Max(p.voltages)
}

func (p *Plan) MaxCurrent() float64 {
	return floats.Max(p.currents)
}

// Steps is the number of operating points the sweep will visit.
func (p *Plan) Steps() int {
	return len(p.voltages) * len(p.currents)
}

// ParseArgs builds a plan from the positional command line form
//
//	Vin_min Vin_nom Vin_max Iload_min Iload_max N_points [Iin_offset Iout_offset] I_limit
func ParseArgs(args []string) (*Plan, error) {
	if len(args) != 7 && len(args) != 9 {
		return nil, fmt.Errorf("expected 7 or 9 arguments, got %d", len(args))
	}

	values := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%q) is not a number", i+1, a)
		}
		values[i] = v
	}

	points := math.Trunc(values[5])
	if !isFinite(points) || points < 1 || points > math.MaxInt32 {
		return nil, fmt.Errorf("number of current points must be at least 1, got %v", values[5])
	}

	spec := PlanSpec{
		Voltages:     values[0:3],
		CurrentStart: values[3],
		CurrentEnd:   values[4],
		Points:       int(points),
		CurrentLimit: values[len(values)-1],
	}
	if len(values) == 9 {
		spec.Offsets = Offsets{Input: values[6], Output: values[7]}
	}
	return NewPlan(spec)
}
