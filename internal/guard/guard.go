// Package guard returns the bench to a de-energized state exactly once,
// whichever way a run ends.
package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Step is one shutdown action, e.g. "disable load".
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

type Guard struct {
	logger  *logrus.Logger
	timeout time.Duration
	steps   []Step

	energized atomic.Bool
	fired     atomic.Bool
	once      sync.Once
}

// New arms a guard. Steps run in the given order on Shutdown, each with its
// own timeout.
func New(logger *logrus.Logger, timeout time.Duration, steps ...Step) *Guard {
	return &Guard{
		logger:  logger,
		timeout: timeout,
		steps:   steps,
	}
}

// MarkEnergized records that commands which can energize the DUT are about to
// be sent. Until then Shutdown has nothing to undo and sends nothing.
func (g *Guard) MarkEnergized() {
	g.energized.Store(true)
}

func (g *Guard) Energized() bool {
	return g.energized.Load()
}

// Fired reports whether Shutdown has started.
func (g *Guard) Fired() bool {
	return g.fired.Load()
}

// Shutdown runs every step once. Concurrent and repeated callers block until
// the first call has finished and then return without doing anything. Step
// failures are logged and never returned.
func (g *Guard) Shutdown() {
	g.once.Do(g.shutdown)
}

func (g *Guard) shutdown() {
	g.fired.Store(true)

	if !g.energized.Load() {
		g.logger.Info("Equipment was never energized, no shutdown commands needed")
		return
	}

	g.logger.Info("Shutting down equipment")
	for _, step := range g.steps {
		g.runStep(step)
	}
	g.logger.Info("Equipment safed")
}

func (g *Guard) runStep(step Step) {
	ctx := context.Background()
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.WithFields(logrus.Fields{
				"step":  step.Name,
				"panic": r,
			}).Error("Shutdown step panicked")
		}
	}()

	if err := step.Run(ctx); err != nil {
		g.logger.WithField("step", step.Name).WithError(err).Error("Shutdown step failed")
		return
	}
	g.logger.WithField("step", step.Name).Debug("Shutdown step completed")
}
