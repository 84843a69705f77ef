package fipe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motorgestor-api/internal/cache"
	"motorgestor-api/internal/client"
	"motorgestor-api/internal/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeUpstream serves a tiny catalog and counts calls per step
type fakeUpstream struct {
	marcas  []client.Marca
	modelos map[client.Codigo][]client.Modelo
	anos    map[client.Codigo][]client.Ano
	valor   string

	marcasErr error
	// when set, GetMarcas blocks until it is closed
	gate chan struct{}

	calls struct {
		marcas, modelos, anos, valor atomic.Int32
	}
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		marcas: []client.Marca{
			{Nome: "Fiat Professional", Codigo: "20"},
			{Nome: "Fiat", Codigo: "21"},
			{Nome: "Chevrolet", Codigo: "23"},
			{Nome: "Toyota", Codigo: "56"},
		},
		modelos: map[client.Codigo][]client.Modelo{
			"21": {{Nome: "Uno Mille 1.0", Codigo: "1000"}},
			"23": {
				{Nome: "Cruze LT 1.4", Codigo: "7000"},
				{Nome: "Onix Hatch LT 1.0", Codigo: "8475"},
			},
			"56": {
				{Nome: "Corolla Cross XRE 2.0", Codigo: "9001"},
				{Nome: "Corolla XEi 2.0", Codigo: "9002"},
			},
		},
		anos: map[client.Codigo][]client.Ano{
			"1000": {{Nome: "2010 Gasolina", Codigo: "2010-1"}},
			"8475": {
				{Nome: "2023 Flex", Codigo: "2023-5"},
				{Nome: "2022 Flex", Codigo: "2022-5"},
			},
			"9001": {
				{Nome: "2021 Flex", Codigo: "2021-5"},
				{Nome: "2020 Flex", Codigo: "2020-5"},
			},
		},
		valor: "R$ 98.765,43",
	}
}

func (f *fakeUpstream) wait(ctx context.Context) error {
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeUpstream) GetMarcas(ctx context.Context) ([]client.Marca, error) {
	f.calls.marcas.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.marcasErr != nil {
		return nil, f.marcasErr
	}
	return f.marcas, nil
}

func (f *fakeUpstream) GetModelos(_ context.Context, marca client.Codigo) ([]client.Modelo, error) {
	f.calls.modelos.Add(1)
	return f.modelos[marca], nil
}

func (f *fakeUpstream) GetAnos(_ context.Context, _, modelo client.Codigo) ([]client.Ano, error) {
	f.calls.anos.Add(1)
	return f.anos[modelo], nil
}

func (f *fakeUpstream) GetValor(_ context.Context, _, _, ano client.Codigo) (*client.ValorResponse, error) {
	f.calls.valor.Add(1)
	return &client.ValorResponse{
		Valor:         f.valor,
		MesReferencia: "outubro de 2026 ",
		CodigoFipe:    "002161-" + string(ano[len(ano)-1]),
	}, nil
}

func (f *fakeUpstream) totalCalls() int32 {
	return f.calls.marcas.Load() + f.calls.modelos.Load() + f.calls.anos.Load() + f.calls.valor.Load()
}

type testEnv struct {
	svc      *Service
	upstream *fakeUpstream
	store    *cache.MemoryStore
	clock    *fakeClock
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	store, err := cache.NewMemoryStore(clock, 0)
	require.NoError(t, err)

	upstream := newFakeUpstream()
	m := metrics.New(false)

	svc := NewService(upstream, store, Options{
		Clock:   clock,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: m,
	})

	return &testEnv{svc: svc, upstream: upstream, store: store, clock: clock, metrics: m}
}

func TestLookup_ResolvesAndCaches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	q, err := env.svc.Lookup(ctx, "Toyota", "Corolla", 2020)
	require.NoError(t, err)
	assert.Equal(t, "98765.43", q.Value.String())
	assert.Equal(t, "outubro de 2026", q.ReferenceMonth)
	assert.Equal(t, "002161-5", q.ReferenceCode)
	assert.Equal(t, env.clock.Now().Add(cache.DefaultTTL), q.ExpiresAt)
	assert.False(t, q.Cached)
	assert.Equal(t, int32(4), env.upstream.totalCalls())

	env.clock.Advance(9 * time.Minute)

	again, err := env.svc.Lookup(ctx, "toyota ", "COROLLA", 2020)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.True(t, q.Value.Equal(again.Value))
	assert.Equal(t, q.ExpiresAt, again.ExpiresAt)
	assert.Equal(t, int32(4), env.upstream.totalCalls(), "cache hit performs no upstream calls")

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CacheCounter("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.LookupCounter(metrics.OutcomeSuccess)))
}

func TestLookup_ExpiredEntryHitsUpstreamAgain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Lookup(ctx, "Toyota", "Corolla", 2020)
	require.NoError(t, err)
	require.Equal(t, int32(1), env.upstream.calls.marcas.Load())

	env.clock.Advance(10 * time.Minute)

	q, err := env.svc.Lookup(ctx, "Toyota", "Corolla", 2020)
	require.NoError(t, err)
	assert.False(t, q.Cached)
	assert.Equal(t, int32(2), env.upstream.calls.marcas.Load())
	assert.Equal(t, int32(2), env.upstream.calls.valor.Load())
}

func TestLookup_CaseInsensitiveBrand(t *testing.T) {
	env := newTestEnv(t)

	q, err := env.svc.Lookup(context.Background(), "chevrolet", "onix", 2022)
	require.NoError(t, err)
	assert.Equal(t, "002161-5", q.ReferenceCode)
}

func TestLookup_ExactBrandBeatsPrefix(t *testing.T) {
	env := newTestEnv(t)

	// "Fiat Professional" comes first in the catalog but has no models;
	// resolving through it would end in a model miss.
	q, err := env.svc.Lookup(context.Background(), "Fiat", "Uno", 2010)
	require.NoError(t, err)
	assert.Equal(t, "98765.43", q.Value.String())
}

func TestLookup_NotFoundStages(t *testing.T) {
	tests := []struct {
		name   string
		marca  string
		modelo string
		ano    int
		stage  Stage
	}{
		{"marca", "Ferrari", "F40", 1990, StageMarca},
		{"modelo", "Chevrolet", "Opala", 1990, StageModelo},
		{"ano", "Chevrolet", "Onix", 2019, StageAno},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			_, err := env.svc.Lookup(context.Background(), tt.marca, tt.modelo, tt.ano)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotFound)

			var nf *NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, tt.stage, nf.Stage)
			assert.Equal(t, 0, env.store.Len())
			assert.Equal(t, int32(0), env.upstream.calls.valor.Load())
		})
	}
}

func TestLookup_InvalidInputSkipsNetwork(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, ano := range []int{1899, 2101, 0} {
		_, err := env.svc.Lookup(ctx, "Toyota", "Corolla", ano)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	_, err := env.svc.Lookup(ctx, "", "Corolla", 2020)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.svc.Lookup(ctx, "Toyota", "", 2020)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, int32(0), env.upstream.totalCalls())
}

func TestLookup_UnparsablePriceIsNotCached(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.valor = "N/D"

	_, err := env.svc.Lookup(context.Background(), "Toyota", "Corolla", 2020)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnparsableResponse)

	var unp *UnparsableError
	require.True(t, errors.As(err, &unp))
	assert.Equal(t, "N/D", unp.Raw)

	assert.Equal(t, 0, env.store.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.LookupCounter(metrics.OutcomeUnparsable)))
}

func TestLookup_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	upErr := &client.UpstreamError{Op: client.StepMarcas, Err: context.DeadlineExceeded}
	env.upstream.marcasErr = upErr

	_, err := env.svc.Lookup(context.Background(), "Toyota", "Corolla", 2020)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, env.store.Len())
}

// signalingStore reports every cache read so a test knows all callers missed
type signalingStore struct {
	cache.Store
	gets chan struct{}
}

func (s *signalingStore) Get(ctx context.Context, key cache.LookupKey) (cache.Entry, bool, error) {
	e, ok, err := s.Store.Get(ctx, key)
	s.gets <- struct{}{}
	return e, ok, err
}

func TestLookup_ConcurrentMissesShareOnePipeline(t *testing.T) {
	const callers = 8

	env := newTestEnv(t)
	env.upstream.gate = make(chan struct{})
	store := &signalingStore{Store: env.store, gets: make(chan struct{}, callers)}
	svc := NewService(env.upstream, store, Options{
		Clock:  env.clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Lookup(context.Background(), "Toyota", "Corolla", 2020)
			errs <- err
		}()
	}

	// every caller has missed the cache; the leader is parked in GetMarcas
	for i := 0; i < callers; i++ {
		<-store.gets
	}
	require.Eventually(t, func() bool { return env.upstream.calls.marcas.Load() == 1 }, time.Second, time.Millisecond)
	// let the followers reach the in-flight call before it completes
	time.Sleep(20 * time.Millisecond)
	close(env.upstream.gate)

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), env.upstream.calls.marcas.Load())
	assert.Equal(t, int32(1), env.upstream.calls.valor.Load())
	assert.Equal(t, 1, env.store.Len())
}
