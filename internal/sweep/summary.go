package sweep

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Summary is the pre-flight safety information shown to the operator before
// anything is energized.
type Summary struct {
	SourceResource string
	SourceID       string
	SourceProfile  string
	LoadResource   string
	LoadID         string
	LoadChannel    int
	Voltages       []float64
	MaxVoltage     float64
	MaxCurrent     float64
	CurrentLimit   float64
	Offsets        Offsets
	Points         int
	Steps          int
	SettleTime     time.Duration
}

var (
	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	summaryTitle = lipgloss.NewStyle().Bold(true)
	summaryWarn  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

func (s Summary) Lines() []string {
	volts := make([]string, len(s.Voltages))
	for i, v := range s.Voltages {
		volts[i] = fmt.Sprintf("%.2fV", v)
	}

	return []string{
		fmt.Sprintf("Source  %s (%s profile): %s", s.SourceResource, s.SourceProfile, s.SourceID),
		fmt.Sprintf("Load    %s (channel %d): %s", s.LoadResource, s.LoadChannel, s.LoadID),
		fmt.Sprintf("Input voltages: %s", strings.Join(volts, ", ")),
		fmt.Sprintf("Load points: %d per voltage, %d total, settling %v", s.Points, s.Steps, s.SettleTime),
		fmt.Sprintf("The source current limit is set to %.2fA", s.CurrentLimit),
		fmt.Sprintf("The input current offset is set to %.2fmA", s.Offsets.Input*1e3),
		fmt.Sprintf("The output current offset is set to %.2fmA", s.Offsets.Output*1e3),
		fmt.Sprintf("The max voltage to be tested is %.2fV and a max load current of %.2fA", s.MaxVoltage, s.MaxCurrent),
	}
}

func (s Summary) Render() string {
	lines := s.Lines()
	body := []string{summaryTitle.Render("AUTO EFFICIENCY TEST")}
	body = append(body, lines[:len(lines)-1]...)
	body = append(body, summaryWarn.Render(lines[len(lines)-1]))
	return summaryBox.Render(strings.Join(body, "\n"))
}
