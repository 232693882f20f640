package results

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Header is the column row of the exported file.
var Header = []string{"Vin", "Iin", "Pin", "Vout", "Iout", "Pout", "Eff"}

const fileTimeLayout = "2006_01_02_15_04_05"

// Store is a read-only view over the frozen tables of one completed sweep.
type Store struct {
	tables []*Table
}

func NewStore(tables []*Table) (*Store, error) {
	if len(tables) == 0 {
		return nil, errors.New("result store needs at least one table")
	}
	for i, t := range tables {
		if t == nil {
			return nil, fmt.Errorf("table %d is nil", i)
		}
		if !t.Frozen() {
			return nil, fmt.Errorf("table %d (Vin=%.2fV) is still open", i, t.Setpoint)
		}
	}
	return &Store{tables: tables}, nil
}

func (s *Store) Tables() []*Table {
	return s.tables
}

// FileName returns efficiency_test_<YYYY_MM_DD_HH_MM_SS>.csv for the given time.
func FileName(at time.Time) string {
	return "efficiency_test_" + at.Format(fileTimeLayout) + ".csv"
}

// WriteCSV writes the header, then each table's rows in table order with a
// blank line between tables.
func (s *Store) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i, t := range s.tables {
		if i > 0 {
			cw.Flush()
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		for _, sample := range t.samples {
			if err := cw.Write(formatRow(sample.Row())); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes the CSV export into dir atomically and returns its path.
func (s *Store) Save(dir string, at time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := FileName(at)
	finalPath := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+".tmp.*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := s.WriteCSV(bw); err != nil {
		return "", err
	}
	if err := bw.Flush(); err != nil {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", err
	}
	ok = true
	return finalPath, nil
}

func formatRow(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

// ReadCSV parses an export back into frozen tables. The file carries no
// setpoint column, so each table's Setpoint is taken from its first Vin reading.
func ReadCSV(r io.Reader) ([]*Table, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("empty file")
	}
	if header := strings.TrimSpace(scanner.Text()); header != strings.Join(Header, ",") {
		return nil, fmt.Errorf("unexpected header %q", header)
	}

	var tables []*Table
	var current *Table
	line := 1
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			if current != nil {
				current.Freeze()
				current = nil
			}
			continue
		}

		fields := strings.Split(text, ",")
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			row[i] = v
		}
		sample, err := sampleFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if current == nil {
			current = NewTable(len(tables), sample.InputVoltage, 0)
			tables = append(tables, current)
		}
		current.samples = append(current.samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		current.Freeze()
	}
	if len(tables) == 0 {
		return nil, errors.New("file contains no samples")
	}
	return tables, nil
}

func LoadCSV(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tables, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewStore(tables)
}
