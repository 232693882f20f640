package instrument

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"efficiency-bench/internal/logging"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Transport carries newline-delimited text commands to one instrument.
// Implementations must honour the context deadline and cancellation.
type Transport interface {
	Send(ctx context.Context, command string) error
	Receive(ctx context.Context) (string, error)
	Close() error
}

// Observer receives per-command accounting. kind is "write" or "query".
type Observer interface {
	CommandIssued(resource, kind string)
	CommandFailed(resource, kind string)
	QueryLatency(resource string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) CommandIssued(string, string)        {}
func (nopObserver) CommandFailed(string, string)        {}
func (nopObserver) QueryLatency(string, time.Duration) {}

type Options struct {
	// Timeout bounds every exchange; zero disables the bound.
	Timeout time.Duration
	// CommandInterval is the minimum spacing between commands; zero means unpaced.
	CommandInterval time.Duration
	Observer        Observer
	Logger          *logrus.Logger
}

// Session wraps a single bench instrument. It is not safe for concurrent use;
// the sweep controller owns it for the duration of a run.
type Session struct {
	name      string
	transport Transport
	timeout   time.Duration
	limiter   *rate.Limiter
	observer  Observer
	logger    *logrus.Logger
}

func NewSession(name string, transport Transport, opts Options) *Session {
	limit := rate.Inf
	if opts.CommandInterval > 0 {
		limit = rate.Every(opts.CommandInterval)
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetInstrumentLogger()
	}

	return &Session{
		name:      name,
		transport: transport,
		timeout:   opts.Timeout,
		limiter:   rate.NewLimiter(limit, 1),
		observer:  observer,
		logger:    logger,
	}
}

func (s *Session) Name() string {
	return s.name
}

func (s *Session) Write(ctx context.Context, command string) error {
	_, err := s.exchange(ctx, command, false)
	return err
}

func (s *Session) Query(ctx context.Context, command string) (string, error) {
	return s.exchange(ctx, command, true)
}

// QueryNumeric sends command and parses exactly one finite number from the reply.
func (s *Session) QueryNumeric(ctx context.Context, command string) (float64, error) {
	reply, err := s.exchange(ctx, command, true)
	if err != nil {
		return 0, err
	}

	value, err := parseNumeric(reply)
	if err != nil {
		s.observer.CommandFailed(s.name, "query")
		return 0, &ParseError{Resource: s.name, Command: command, Reply: reply, Err: err}
	}
	return value, nil
}

func (s *Session) Close() error {
	if s.transport == nil {
		return nil
	}
	return s.transport.Close()
}

func (s *Session) exchange(ctx context.Context, command string, expectReply bool) (string, error) {
	kind := "write"
	if expectReply {
		kind = "query"
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	opCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.timeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	if err := s.limiter.Wait(opCtx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.observer.CommandFailed(s.name, kind)
		return "", &TimeoutError{Resource: s.name, Command: command, After: s.timeout}
	}

	s.observer.CommandIssued(s.name, kind)
	s.logger.WithFields(logrus.Fields{
		"resource": s.name,
		"command":  command,
	}).Debug("Sending command")

	start := time.Now()
	var reply string
	err := s.transport.Send(opCtx, command)
	if err == nil && expectReply {
		reply, err = s.transport.Receive(opCtx)
	}
	if err != nil {
		// An operator interrupt cancels the parent context; report it as such
		// so the controller can tell an abort from an instrument failure.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.observer.CommandFailed(s.name, kind)
		if opCtx.Err() != nil || isTimeout(err) {
			return "", &TimeoutError{Resource: s.name, Command: command, After: s.timeout}
		}
		return "", &TransportError{Resource: s.name, Command: command, Err: err}
	}

	if expectReply {
		s.observer.QueryLatency(s.name, time.Since(start))
		s.logger.WithFields(logrus.Fields{
			"resource": s.name,
			"command":  command,
			"reply":    reply,
		}).Debug("Received reply")
	}

	return reply, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func parseNumeric(reply string) (float64, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return 0, fmt.Errorf("empty reply")
	}
	if strings.ContainsAny(reply, ",;") {
		return 0, fmt.Errorf("expected exactly one value")
	}
	value, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("value is not finite")
	}
	return value, nil
}
