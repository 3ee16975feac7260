package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/facts"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	a := core.Keccak256([]byte("a"))
	b := core.Keccak256([]byte("b"))
	require.NoError(t, s.SaveFact(ctx, a))
	require.NoError(t, s.SaveFact(ctx, b))
	require.NoError(t, s.SaveFact(ctx, a))

	got, err := s.LoadFacts(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []core.Fact{a, b}, got)
	require.NoError(t, s.Ping(ctx))
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "facts.db")}

	backend, err := Open(ctx, cfg)
	require.NoError(t, err)
	store, err := facts.Open(ctx, backend)
	require.NoError(t, err)
	f := core.Keccak256([]byte("persisted"))
	require.NoError(t, store.RegisterFact(ctx, f))
	require.NoError(t, backend.Close())

	backend, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer backend.Close()
	store, err = facts.Open(ctx, backend)
	require.NoError(t, err)
	require.True(t, store.IsValid(f))
}

func TestOpenRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	cases := []Config{
		{Driver: DriverSQLite},
		{Driver: "postgres", DSN: "x"},
		{Driver: DriverSQLite, DSN: ":memory:", Table: "facts; DROP TABLE x"},
		{Driver: DriverSQLite, DSN: ":memory:", Table: "1facts"},
	}
	for _, cfg := range cases {
		_, err := Open(ctx, cfg)
		require.ErrorIs(t, err, core.ConfigError, "%+v", cfg)
	}
}

func TestCustomTable(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: DriverSQLite, DSN: ":memory:", Table: "aggregate_facts"})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.SaveFact(ctx, core.Fact{1}))
	got, err := s.LoadFacts(ctx)
	require.NoError(t, err)
	require.Equal(t, []core.Fact{{1}}, got)
}
