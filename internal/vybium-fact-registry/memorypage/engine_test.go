package memorypage

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/events"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/facts"
)

type recorder struct {
	mu    sync.Mutex
	pages []events.PageRegistered
}

func (r *recorder) EmitPage(ctx context.Context, ev events.PageRegistered) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, ev)
	return nil
}

func (r *recorder) EmitStatement(context.Context, events.StatementRegistered) error { return nil }

type refusingRegistry struct {
	*facts.Store
}

func (refusingRegistry) RegisterFact(context.Context, core.Fact) error {
	return core.Wrap(core.ErrStorage, errors.New("disk full"), "write fact")
}

var bigComparer = cmp.Comparer(func(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
})

func ints(xs ...int64) []*big.Int {
	out := make([]*big.Int, len(xs))
	for i, x := range xs {
		out[i] = big.NewInt(x)
	}
	return out
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *facts.Store) {
	t.Helper()
	store := facts.NewStore()
	e, err := NewEngine(core.StarkField(), store, opts...)
	require.NoError(t, err)
	return e, store
}

func TestRegisterRegularPage(t *testing.T) {
	ctx := context.Background()
	p := core.StarkPrime()
	z, alpha := big.NewInt(3), big.NewInt(2)

	t.Run("ProductAndFact", func(t *testing.T) {
		e, store := newEngine(t)
		pairs := ints(1, 5, 2, 7)

		pageHash := RegularPageHash(pairs)
		want := FactDigest(core.RegularPage, pageHash, big.NewInt(32), 2)
		require.False(t, store.IsValid(want))

		page, err := e.RegisterRegularPage(ctx, pairs, z, alpha, p)
		require.NoError(t, err)
		require.Equal(t, 0, page.Product.Cmp(big.NewInt(32)))
		require.Equal(t, uint64(2), page.Size)
		require.Equal(t, pageHash, page.PageHash)
		require.Equal(t, want, page.Fact)
		require.Equal(t, uint64(0), page.Index)
		require.Nil(t, page.StartAddress)
		require.True(t, store.IsValid(want))

		again, err := e.RegisterRegularPage(ctx, pairs, z, alpha, p)
		require.NoError(t, err)
		require.Equal(t, page.Index, again.Index)
		require.True(t, store.IsValid(want))
		require.Equal(t, 1, e.PageCount())
	})

	t.Run("FactEncoding", func(t *testing.T) {
		pageHash := RegularPageHash(ints(1, 5, 2, 7))
		var buf []byte
		for _, x := range []*big.Int{big.NewInt(0), core.FactToBig(pageHash), big.NewInt(32), big.NewInt(2)} {
			w := core.Word(x)
			buf = append(buf, w[:]...)
		}
		require.Equal(t, core.Keccak256(buf), FactDigest(core.RegularPage, pageHash, big.NewInt(32), 2))
	})

	t.Run("Rejections", func(t *testing.T) {
		tooBig := new(big.Int).Set(p)
		cases := []struct {
			name  string
			pairs []*big.Int
			z     *big.Int
			alpha *big.Int
			prime *big.Int
		}{
			{"Empty", nil, z, alpha, p},
			{"Odd", ints(1, 5, 2), z, alpha, p},
			{"ValueNotCanonical", []*big.Int{big.NewInt(1), tooBig}, z, alpha, p},
			{"NegativeAddress", ints(-1, 5), z, alpha, p},
			{"ZNotCanonical", ints(1, 5), tooBig, alpha, p},
			{"AlphaNotCanonical", ints(1, 5), z, tooBig, p},
			{"WrongPrime", ints(1, 5), z, alpha, big.NewInt(101)},
			{"NilPrime", ints(1, 5), z, alpha, nil},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				rec := &recorder{}
				e, store := newEngine(t, WithEmitter(rec))
				_, err := e.RegisterRegularPage(ctx, tc.pairs, tc.z, tc.alpha, tc.prime)
				require.ErrorIs(t, err, core.ValidationError)
				require.False(t, store.HasRegisteredFact())
				require.Zero(t, e.PageCount())
				require.Empty(t, rec.pages)
			})
		}
	})

	t.Run("OrderSensitive", func(t *testing.T) {
		field := core.StarkField()
		a := RegularProduct(field, ints(1, 5, 2, 7), z, alpha)
		b := RegularProduct(field, ints(1, 7, 2, 5), z, alpha)
		require.NotEqual(t, 0, a.Cmp(b))
		require.NotEqual(t, RegularPageHash(ints(1, 5, 2, 7)), RegularPageHash(ints(2, 7, 1, 5)))
	})

	t.Run("RegistryFailureLeavesNoPage", func(t *testing.T) {
		rec := &recorder{}
		e, err := NewEngine(nil, refusingRegistry{facts.NewStore()}, WithEmitter(rec))
		require.NoError(t, err)
		_, err = e.RegisterRegularPage(ctx, ints(1, 5), z, alpha, p)
		require.ErrorIs(t, err, core.StorageError)
		require.Zero(t, e.PageCount())
		require.Empty(t, rec.pages)
	})
}

func TestRegisterContinuousPage(t *testing.T) {
	ctx := context.Background()
	p := core.StarkPrime()
	z, alpha := big.NewInt(3), big.NewInt(2)

	t.Run("MatchesRegularProduct", func(t *testing.T) {
		e, store := newEngine(t)
		page, err := e.RegisterContinuousPage(ctx, big.NewInt(1), ints(5, 7), z, alpha, p)
		require.NoError(t, err)
		require.Equal(t, 0, page.Product.Cmp(big.NewInt(32)))
		require.Equal(t, core.ContinuousPage, page.Type)
		require.Equal(t, ContinuousPageHash(ints(5, 7)), page.PageHash)
		require.Equal(t, 0, page.StartAddress.Cmp(big.NewInt(1)))
		require.True(t, store.IsValid(page.Fact))

		// Same product as the regular page, different type word.
		require.NotEqual(t, FactDigest(core.RegularPage, page.PageHash, page.Product, page.Size), page.Fact)
	})

	t.Run("SameValuesDifferentStart", func(t *testing.T) {
		e, store := newEngine(t)
		first, err := e.RegisterContinuousPage(ctx, big.NewInt(1), ints(5, 7), z, alpha, p)
		require.NoError(t, err)
		second, err := e.RegisterContinuousPage(ctx, big.NewInt(10), ints(5, 7), z, alpha, p)
		require.NoError(t, err)

		require.Equal(t, first.PageHash, second.PageHash)
		require.NotEqual(t, first.Fact, second.Fact)
		require.NotEqual(t, first.Index, second.Index)
		require.True(t, store.IsValid(first.Fact))
		require.True(t, store.IsValid(second.Fact))

		got, err := e.Lookup(first.PageHash, first.Product)
		require.NoError(t, err)
		require.Equal(t, first.Fact, got.Fact)
		got, err = e.Lookup(second.PageHash, second.Product)
		require.NoError(t, err)
		require.Equal(t, second.Fact, got.Fact)

		info, err := e.PageInfo(first.PageHash)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(first.Info(), info, bigComparer))
	})

	t.Run("Rejections", func(t *testing.T) {
		e, store := newEngine(t)
		last := new(big.Int).Sub(p, big.NewInt(1))

		_, err := e.RegisterContinuousPage(ctx, big.NewInt(1), nil, z, alpha, p)
		require.ErrorIs(t, err, core.ValidationError)

		_, err = e.RegisterContinuousPage(ctx, last, ints(5, 7), z, alpha, p)
		require.ErrorIs(t, err, core.ValidationError)

		_, err = e.RegisterContinuousPage(ctx, nil, ints(5), z, alpha, p)
		require.ErrorIs(t, err, core.ValidationError)

		_, err = e.RegisterContinuousPage(ctx, big.NewInt(1), []*big.Int{p}, z, alpha, p)
		require.ErrorIs(t, err, core.ValidationError)

		require.False(t, store.HasRegisteredFact())

		// The last field address is still usable for a single value.
		_, err = e.RegisterContinuousPage(ctx, last, ints(5), z, alpha, p)
		require.NoError(t, err)
	})
}

func TestEngineQueries(t *testing.T) {
	ctx := context.Background()
	p := core.StarkPrime()
	rec := &recorder{}
	e, _ := newEngine(t, WithEmitter(rec))

	_, err := e.PageInfo(RegularPageHash(ints(1, 5)))
	require.ErrorIs(t, err, core.NotFoundError)
	_, err = e.Page(0)
	require.ErrorIs(t, err, core.NotFoundError)

	a, err := e.RegisterRegularPage(ctx, ints(1, 5), big.NewInt(3), big.NewInt(2), p)
	require.NoError(t, err)
	b, err := e.RegisterContinuousPage(ctx, big.NewInt(100), ints(1, 2, 3), big.NewInt(3), big.NewInt(2), p)
	require.NoError(t, err)
	_, err = e.RegisterRegularPage(ctx, ints(1, 5), big.NewInt(3), big.NewInt(2), p)
	require.NoError(t, err)

	require.Equal(t, 2, e.PageCount())
	got, err := e.Page(1)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(b, got, bigComparer))

	_, err = e.Lookup(a.PageHash, big.NewInt(12345))
	require.ErrorIs(t, err, core.NotFoundError)

	// Returned pages are copies.
	got.Product.SetInt64(0)
	again, err := e.Page(1)
	require.NoError(t, err)
	require.Equal(t, 0, again.Product.Cmp(b.Product))

	require.Len(t, rec.pages, 2)
	require.Equal(t, a.Fact, rec.pages[0].Fact)
	require.Equal(t, uint64(1), rec.pages[1].Index)
	require.Equal(t, core.ContinuousPage, rec.pages[1].Type)
	require.NotEmpty(t, rec.pages[0].ID)
	require.Equal(t, 0, rec.pages[0].Product.ToInt().Cmp(a.Product))
	require.Nil(t, rec.pages[0].StartAddress)
	require.Equal(t, int64(100), rec.pages[1].StartAddress.ToInt().Int64())

	// Records do not alias the pages handed to callers.
	b.Product.SetInt64(0)
	require.NotEqual(t, 0, rec.pages[1].Product.ToInt().Sign())
}

func TestEngineConcurrentIndices(t *testing.T) {
	ctx := context.Background()
	p := core.StarkPrime()
	e, _ := newEngine(t)

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = e.RegisterRegularPage(ctx, ints(int64(i), 1), big.NewInt(3), big.NewInt(2), p)
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, e.PageCount())
	seen := make(map[core.Fact]bool)
	for i := uint64(0); i < n; i++ {
		page, err := e.Page(i)
		require.NoError(t, err)
		require.Equal(t, i, page.Index)
		require.False(t, seen[page.Fact])
		seen[page.Fact] = true
	}
}

func TestNewEngineRequiresRegistry(t *testing.T) {
	_, err := NewEngine(core.StarkField(), nil)
	require.ErrorIs(t, err, core.ConfigError)
}
