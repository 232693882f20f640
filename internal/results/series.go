package results

import "fmt"

// Series is one plotted line: load current on X against a derived column on Y.
type Series struct {
	Label    string
	Setpoint float64
	X        []float64
	Y        []float64
}

// EfficiencySeries returns output current vs efficiency, one series per table.
func (s *Store) EfficiencySeries() []Series {
	return s.series(func(sample Sample) float64 { return sample.Efficiency })
}

// OutputVoltageSeries returns output current vs output voltage, one series per table.
func (s *Store) OutputVoltageSeries() []Series {
	return s.series(func(sample Sample) float64 { return sample.OutputVoltage })
}

func (s *Store) series(y func(Sample) float64) []Series {
	out := make([]Series, 0, len(s.tables))
	for _, t := range s.tables {
		ser := Series{
			Label:    fmt.Sprintf("Vin=%.2fV", t.Setpoint),
			Setpoint: t.Setpoint,
			X:        make([]float64, 0, len(t.samples)),
			Y:        make([]float64, 0, len(t.samples)),
		}
		for _, sample := range t.samples {
			ser.X = append(ser.X, sample.OutputCurrent)
			ser.Y = append(ser.Y, y(sample))
		}
		out = append(out, ser)
	}
	return out
}
