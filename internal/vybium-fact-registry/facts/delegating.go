package facts

import (
	"context"
	"math"
	"reflect"
	"time"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
)

// Clock supplies the current time for referral expiry checks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time { return time.Now() }

// Delegating decorates a primary Registry with a time-bounded fallback to a
// reference registry. The referral window is fixed at construction and is
// never renewed.
type Delegating struct {
	primary    Registry
	reference  Querier
	expiration int64
	clock      Clock
}

// NewDelegating wraps primary. A nil reference with zero duration disables
// delegation. Any other setup problem is reported as ErrConfig.
func NewDelegating(ctx context.Context, primary Registry, reference Querier, referralDurationSeconds uint64, clock Clock) (*Delegating, error) {
	if primary == nil {
		return nil, core.Configf("primary registry is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}

	if reference == nil {
		if referralDurationSeconds != 0 {
			return nil, core.Configf("referral duration %ds set without a reference registry", referralDurationSeconds)
		}
		return &Delegating{primary: primary, clock: clock}, nil
	}

	if sameStore(reference, primary) {
		return nil, core.Configf("reference registry cannot be the registry itself")
	}

	now := clock.Now().Unix()
	if now < 0 || referralDurationSeconds > uint64(math.MaxInt64-now) {
		return nil, core.Configf("referral expiration overflows: now=%d duration=%d", now, referralDurationSeconds)
	}

	if err := Negotiate(ctx, reference); err != nil {
		return nil, err
	}

	return &Delegating{
		primary:    primary,
		reference:  reference,
		expiration: now + int64(referralDurationSeconds),
		clock:      clock,
	}, nil
}

// IsValid checks the primary first, then the reference while the referral
// window is open.
func (d *Delegating) IsValid(fact core.Fact) bool {
	if d.primary.IsValid(fact) {
		return true
	}
	if d.reference == nil || !d.referralActive() {
		return false
	}
	return d.reference.IsValid(fact)
}

// RegisterFact always writes to the primary
func (d *Delegating) RegisterFact(ctx context.Context, fact core.Fact) error {
	return d.primary.RegisterFact(ctx, fact)
}

// Reference returns the fallback registry, or nil
func (d *Delegating) Reference() Querier {
	return d.reference
}

// ReferralExpiration returns when delegation stops. It is the zero time when
// delegation is disabled.
func (d *Delegating) ReferralExpiration() time.Time {
	if d.reference == nil {
		return time.Time{}
	}
	return time.Unix(d.expiration, 0)
}

func (d *Delegating) referralActive() bool {
	return d.clock.Now().Unix() < d.expiration
}

// sameStore compares two registries by identity without panicking on
// non-comparable dynamic types.
func sameStore(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == nil || ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
