package facts

import (
	"context"
	"fmt"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
)

// Pinger is implemented by registries reachable over a connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Negotiate checks that reference behaves like a live fact registry with a
// single benign probe: a ping when supported, then a membership query for the
// zero fact. Every negative signal is an ErrConfig with its own cause.
func Negotiate(ctx context.Context, reference Querier) error {
	if reference == nil {
		return core.Configf("reference registry is nil")
	}
	if p, ok := reference.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return core.Wrap(core.ErrConfig, err, "reference registry is unreachable")
		}
	}
	valid, err := probe(reference)
	if err != nil {
		return core.Wrap(core.ErrConfig, err, "reference registry rejected the probe")
	}
	if valid {
		return core.Configf("reference registry reports the zero fact as valid")
	}
	return nil
}

func probe(q Querier) (valid bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("isValid panicked: %v", r)
		}
	}()
	return q.IsValid(core.Fact{}), nil
}
