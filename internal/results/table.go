package results

import (
	"errors"
	"fmt"
)

var ErrFrozen = errors.New("result table is frozen")

// Sample is one measured operating point. Currents already include the
// configured offsets.
type Sample struct {
	InputVoltage  float64 `json:"vin"`
	InputCurrent  float64 `json:"iin"`
	InputPower    float64 `json:"pin"`
	OutputVoltage float64 `json:"vout"`
	OutputCurrent float64 `json:"iout"`
	OutputPower   float64 `json:"pout"`
	Efficiency    float64 `json:"eff"`
}

// Row returns the sample in export column order.
func (s Sample) Row() []float64 {
	return []float64{
		s.InputVoltage,
		s.InputCurrent,
		s.InputPower,
		s.OutputVoltage,
		s.OutputCurrent,
		s.OutputPower,
		s.Efficiency,
	}
}

func sampleFromRow(row []float64) (Sample, error) {
	if len(row) != len(Header) {
		return Sample{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(row))
	}
	return Sample{
		InputVoltage:  row[0],
		InputCurrent:  row[1],
		InputPower:    row[2],
		OutputVoltage: row[3],
		OutputCurrent: row[4],
		OutputPower:   row[5],
		Efficiency:    row[6],
	}, nil
}

// Table holds the samples of one input-voltage setpoint. Index is the
// setpoint's position in the plan, not its magnitude.
type Table struct {
	Index    int
	Setpoint float64

	samples []Sample
	frozen  bool
}

func NewTable(index int, setpoint float64, capacity int) *Table {
	return &Table{
		Index:    index,
		Setpoint: setpoint,
		samples:  make([]Sample, 0, capacity),
	}
}

func (t *Table) Append(s Sample) error {
	if t.frozen {
		return ErrFrozen
	}
	t.samples = append(t.samples, s)
	return nil
}

func (t *Table) Freeze() {
	t.frozen = true
}

func (t *Table) Frozen() bool {
	return t.frozen
}

func (t *Table) Len() int {
	return len(t.samples)
}

// Samples returns a copy of the table's rows.
func (t *Table) Samples() []Sample {
	out := make([]Sample, len(t.samples))
	copy(out, t.samples)
	return out
}
