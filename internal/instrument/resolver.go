package instrument

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"efficiency-bench/internal/logging"

	"github.com/sirupsen/logrus"
)

// Opener binds logical resource names to open sessions.
type Opener interface {
	Open(ctx context.Context, name string) (*Session, error)
}

// Resolver opens sessions for the names listed in a station's resource map.
// Supported address schemes are tcp://host:port and sim://source|load.
type Resolver struct {
	resources map[string]string
	opts      Options

	benchOnce sync.Once
	bench     *SimBench
}

func NewResolver(resources map[string]string, opts Options) *Resolver {
	return &Resolver{
		resources: resources,
		opts:      opts,
	}
}

// Bench returns the simulated bench shared by every sim:// resource.
func (r *Resolver) Bench() *SimBench {
	r.benchOnce.Do(func() {
		r.bench = NewSimBench(DefaultDUTModel())
	})
	return r.bench
}

func (r *Resolver) Open(ctx context.Context, name string) (*Session, error) {
	logger := logging.GetLogger()

	address, ok := r.resources[name]
	if !ok {
		return nil, &ResourceNotFoundError{Name: name, Err: errUnknownResource}
	}

	u, err := url.Parse(address)
	if err != nil {
		return nil, &ResourceNotFoundError{Name: name, Address: address, Err: err}
	}

	var transport Transport
	switch u.Scheme {
	case "tcp":
		socket, err := dialSocket(ctx, u.Host, r.opts.Timeout)
		if err != nil {
			return nil, &ResourceNotFoundError{Name: name, Address: address, Err: err}
		}
		transport = socket
	case "sim":
		sim, err := r.Bench().Transport(u.Host)
		if err != nil {
			return nil, &ResourceNotFoundError{Name: name, Address: address, Err: err}
		}
		transport = sim
	default:
		return nil, &ResourceNotFoundError{
			Name:    name,
			Address: address,
			Err:     fmt.Errorf("unsupported scheme %q", u.Scheme),
		}
	}

	logger.WithFields(logrus.Fields{
		"resource": name,
		"address":  address,
	}).Info("Instrument opened")

	return NewSession(name, transport, r.opts), nil
}
