package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"efficiency-bench/internal/guard"
	"efficiency-bench/internal/instrument"
	"efficiency-bench/internal/logging"
	"efficiency-bench/internal/profile"
	"efficiency-bench/internal/results"

	"github.com/sirupsen/logrus"
)

var (
	// ErrDeclined is returned when the operator does not confirm the run.
	// Nothing has been energized.
	ErrDeclined = errors.New("sweep declined by operator")
	// ErrInterrupted is returned when the run context is cancelled. Partial
	// results are discarded.
	ErrInterrupted = errors.New("sweep interrupted")
)

// Config is the bench-specific part of a run.
type Config struct {
	SourceResource  string
	LoadResource    string
	Source          *profile.Source
	Load            *profile.Load
	SettleTime      time.Duration
	SourceInitDelay time.Duration
	ShutdownTimeout time.Duration
}

// Observer is notified of state transitions and recorded samples.
type Observer interface {
	StateChanged(from, to string)
	SampleRecorded(tableIndex int, setpoint float64, sample results.Sample)
}

type nopObserver struct{}

func (nopObserver) StateChanged(string, string)                  {}
func (nopObserver) SampleRecorded(int, float64, results.Sample) {}

type Option func(*Controller)

func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithProgress sets where the per-sample progress lines go (stdout by default).
func WithProgress(w io.Writer) Option {
	return func(c *Controller) { c.progress = w }
}

// WithSleeper replaces the settling wait, mainly for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) { c.sleep = sleep }
}

func WithLogger(l *logrus.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller runs one sweep. It owns the plan, the result tables and, for
// the duration of Run, both instrument sessions. A controller runs once.
type Controller struct {
	plan      *Plan
	cfg       Config
	opener    instrument.Opener
	confirmer Confirmer

	logger   *logrus.Logger
	progress io.Writer
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	state   State
	taken   int
	summary Summary
	guard   *guard.Guard
}

func New(plan *Plan, cfg Config, opener instrument.Opener, confirmer Confirmer, opts ...Option) *Controller {
	c := &Controller{
		plan:      plan,
		cfg:       cfg,
		opener:    opener,
		confirmer: confirmer,
		logger:    logging.GetLogger(),
		progress:  os.Stdout,
		observer:  nopObserver{},
		sleep:     sleepContext,
		state:     Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Taken is the number of samples recorded so far.
func (c *Controller) Taken() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taken
}

// Summary returns what was shown to the operator, once pre-flight has run.
func (c *Controller) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"from": from.String(),
		"to":   to.String(),
	}).Debug("Sweep state changed")
	c.observer.StateChanged(from.String(), to.String())
}

// Run executes the sweep and returns one frozen table per voltage setpoint.
// The equipment is safed before Run returns on every path.
func (c *Controller) Run(ctx context.Context) (tables []*results.Table, err error) {
	if s := c.State(); s != Idle {
		if s.Terminal() {
			return nil, fmt.Errorf("controller has already run (%s)", s)
		}
		return nil, fmt.Errorf("controller is already running (%s)", s)
	}
	c.transition(Initializing)

	source, err := c.opener.Open(ctx, c.cfg.SourceResource)
	if err != nil {
		return nil, c.abandon(ctx, fmt.Errorf("failed to open source: %w", err))
	}
	defer c.closeSession(source)

	load, err := c.opener.Open(ctx, c.cfg.LoadResource)
	if err != nil {
		return nil, c.abandon(ctx, fmt.Errorf("failed to open load: %w", err))
	}
	defer c.closeSession(load)

	c.guard = guard.New(c.logger, c.cfg.ShutdownTimeout,
		guard.Step{Name: "disable load", Run: func(ctx context.Context) error {
			return c.cfg.Load.Disable(ctx, load)
		}},
		guard.Step{Name: "disable source output", Run: func(ctx context.Context) error {
			return c.cfg.Source.Disable(ctx, source)
		}},
	)
	defer func() {
		if r := recover(); r != nil {
			c.guard.Shutdown()
			c.transition(Safed)
			c.transition(Failed)
			panic(r)
		}

		c.guard.Shutdown()
		if c.State() != Safed {
			c.transition(Safed)
		}
		switch {
		case err == nil:
			c.transition(Completed)
		case errors.Is(err, ErrDeclined), errors.Is(err, ErrInterrupted):
			c.transition(Aborted)
		default:
			c.transition(Failed)
		}
	}()

	c.transition(AwaitingConfirmation)
	confirmed, err := c.preflight(ctx, source, load)
	if err != nil {
		return nil, c.interruptOr(ctx, err)
	}
	if !confirmed {
		c.logger.Info("Run not confirmed, exiting")
		return nil, ErrDeclined
	}

	if err := c.energize(ctx, source, load); err != nil {
		return nil, c.interruptOr(ctx, err)
	}

	c.transition(Running)
	c.logger.WithField("steps", c.plan.Steps()).Info("Starting sweep, press Ctrl+C to abort")
	tables, err = c.sweep(ctx, source, load)
	if err != nil {
		return nil, c.interruptOr(ctx, err)
	}

	c.transition(Draining)
	for _, t := range tables {
		t.Freeze()
	}

	c.guard.Shutdown()
	c.transition(Safed)

	c.logger.WithField("samples", c.Taken()).Info("Sweep completed")
	return tables, nil
}

func (c *Controller) preflight(ctx context.Context, source, load *instrument.Session) (bool, error) {
	sourceID, err := source.Query(ctx, profile.IdentifyCommand)
	if err != nil {
		return false, fmt.Errorf("failed to identify source: %w", err)
	}
	loadID, err := load.Query(ctx, profile.IdentifyCommand)
	if err != nil {
		return false, fmt.Errorf("failed to identify load: %w", err)
	}

	summary := Summary{
		SourceResource: c.cfg.SourceResource,
		SourceID:       sourceID,
		SourceProfile:  string(c.cfg.Source.Variant()),
		LoadResource:   c.cfg.LoadResource,
		LoadID:         loadID,
		LoadChannel:    c.cfg.Load.Channel(),
		Voltages:       c.plan.Voltages(),
		MaxVoltage:     c.plan.MaxVoltage(),
		MaxCurrent:     c.plan.MaxCurrent(),
		CurrentLimit:   c.plan.CurrentLimit(),
		Offsets:        c.plan.Offsets(),
		Points:         len(c.plan.Currents()),
		Steps:          c.plan.Steps(),
		SettleTime:     c.cfg.SettleTime,
	}

	c.mu.Lock()
	c.summary = summary
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"source_id":   sourceID,
		"load_id":     loadID,
		"max_voltage": summary.MaxVoltage,
		"max_current": summary.MaxCurrent,
	}).Info("Awaiting operator confirmation")

	return c.confirmer.Confirm(ctx, summary)
}

func (c *Controller) energize(ctx context.Context, source, load *instrument.Session) error {
	c.guard.MarkEnergized()

	c.logger.WithFields(logrus.Fields{
		"profile":       c.cfg.Source.Variant(),
		"current_limit": c.cfg.Source.CurrentLimit(),
	}).Info("Turning supply on")
	if err := c.cfg.Source.Initialize(ctx, source); err != nil {
		return fmt.Errorf("failed to initialize source: %w", err)
	}
	if err := c.sleep(ctx, c.cfg.SourceInitDelay); err != nil {
		return err
	}

	c.logger.WithField("channel", c.cfg.Load.Channel()).Info("Configuring load")
	if err := c.cfg.Load.Initialize(ctx, load); err != nil {
		return fmt.Errorf("failed to initialize load: %w", err)
	}
	return nil
}

func (c *Controller) sweep(ctx context.Context, source, load *instrument.Session) ([]*results.Table, error) {
	voltages := c.plan.Voltages()
	currents := c.plan.Currents()

	tables := make([]*results.Table, len(voltages))
	for vi, volts := range voltages {
		table := results.NewTable(vi, volts, len(currents))
		tables[vi] = table

		for _, amps := range currents {
			sample, err := c.step(ctx, source, load, volts, amps)
			if err != nil {
				return nil, fmt.Errorf("Vin=%.2fV Iload=%.3fA: %w", volts, amps, err)
			}
			if err := table.Append(sample); err != nil {
				return nil, err
			}

			c.mu.Lock()
			c.taken++
			c.mu.Unlock()

			c.observer.SampleRecorded(vi, volts, sample)
			c.report(vi, sample)
		}
		table.Freeze()
	}
	return tables, nil
}

func (c *Controller) step(ctx context.Context, source, load *instrument.Session, volts, amps float64) (results.Sample, error) {
	if err := c.cfg.Source.SetVoltage(ctx, source, volts); err != nil {
		return results.Sample{}, err
	}
	if err := c.cfg.Load.SetCurrent(ctx, load, amps); err != nil {
		return results.Sample{}, err
	}

	if err := c.sleep(ctx, c.cfg.SettleTime); err != nil {
		return results.Sample{}, err
	}

	vin, iin, err := c.cfg.Source.Measure(ctx, source)
	if err != nil {
		return results.Sample{}, err
	}
	vout, iout, err := c.cfg.Load.Measure(ctx, load)
	if err != nil {
		return results.Sample{}, err
	}

	reading := Reading{
		InputVoltage:  vin,
		InputCurrent:  iin,
		OutputVoltage: vout,
		OutputCurrent: iout,
	}
	return ComputeSample(reading, c.plan.Offsets()), nil
}

func (c *Controller) report(tableIndex int, s results.Sample) {
	fmt.Fprintf(c.progress, "|\t%.2fV\t%.2fA\t%.2fW\t%.2fV\t%.2fA\t%.2fW\t%.2f%%\n",
		s.InputVoltage, s.InputCurrent, s.InputPower,
		s.OutputVoltage, s.OutputCurrent, s.OutputPower, s.Efficiency)

	c.logger.WithFields(logrus.Fields{
		"table": tableIndex,
		"vin":   s.InputVoltage,
		"iin":   s.InputCurrent,
		"vout":  s.OutputVoltage,
		"iout":  s.OutputCurrent,
		"eff":   s.Efficiency,
	}).Debug("Sample recorded")
}

// interruptOr turns any failure observed after the run context was cancelled
// into ErrInterrupted.
func (c *Controller) interruptOr(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	return fmt.Errorf("%w after %d of %d samples: %v", ErrInterrupted, c.Taken(), c.plan.Steps(), ctx.Err())
}

// abandon ends a run that never got as far as arming the shutdown guard.
func (c *Controller) abandon(ctx context.Context, err error) error {
	err = c.interruptOr(ctx, err)
	if errors.Is(err, ErrInterrupted) {
		c.transition(Aborted)
	} else {
		c.transition(Failed)
	}
	return err
}

func (c *Controller) closeSession(s *instrument.Session) {
	if err := s.Close(); err != nil {
		c.logger.WithField("resource", s.Name()).WithError(err).Warn("Failed to close instrument")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
