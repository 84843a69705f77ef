package fipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"motorgestor-api/internal/cache"
	"motorgestor-api/internal/client"
	"motorgestor-api/internal/matching"
	"motorgestor-api/internal/metrics"
	"motorgestor-api/internal/parser"
)

// Upstream defines methods needed from the FIPE API client
type Upstream interface {
	GetMarcas(ctx context.Context) ([]client.Marca, error)
	GetModelos(ctx context.Context, marca client.Codigo) ([]client.Modelo, error)
	GetAnos(ctx context.Context, marca, modelo client.Codigo) ([]client.Ano, error)
	GetValor(ctx context.Context, marca, modelo, ano client.Codigo) (*client.ValorResponse, error)
}

var _ Upstream = (*client.FipeClient)(nil)

// Quote is a resolved FIPE price
type Quote struct {
	Value          decimal.Decimal
	ReferenceMonth string
	ReferenceCode  string
	ExpiresAt      time.Time
	Cached         bool
}

// Options tune the service; zero values fall back to defaults
type Options struct {
	TTL     time.Duration
	Clock   cache.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Service resolves (make, model, year) into a FIPE quote with memoization
type Service struct {
	upstream Upstream
	store    cache.Store
	ttl      time.Duration
	clock    cache.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// collapses concurrent misses for the same key into one pipeline
	inflight singleflight.Group
}

// NewService creates a new lookup service
func NewService(upstream Upstream, store cache.Store, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = cache.DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = cache.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Service{
		upstream: upstream,
		store:    store,
		ttl:      opts.TTL,
		clock:    opts.Clock,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Lookup returns the quote for a vehicle, from cache when a valid entry exists
func (s *Service) Lookup(ctx context.Context, marca, modelo string, ano int) (*Quote, error) {
	if marca == "" || modelo == "" || !matching.ValidYear(ano) {
		s.metrics.ObserveLookup(metrics.OutcomeInvalid)
		return nil, ErrInvalidInput
	}

	key := cache.NewLookupKey(marca, modelo, ano)

	entry, ok, err := s.store.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.ObserveCache("error")
		s.logger.Warn("falha ao ler cache fipe", "key", key.String(), "error", err)
	case ok:
		s.metrics.ObserveCache("hit")
		s.metrics.ObserveLookup(metrics.OutcomeSuccess)
		return quoteFromEntry(entry, true), nil
	default:
		s.metrics.ObserveCache("miss")
	}

	v, err, _ := s.inflight.Do(key.String(), func() (any, error) {
		return s.resolveAndStore(ctx, key, marca, modelo, ano)
	})
	if err != nil {
		s.metrics.ObserveLookup(outcomeOf(err))
		return nil, err
	}

	s.metrics.ObserveLookup(metrics.OutcomeSuccess)

	// each caller gets its own copy
	q := *v.(*Quote)
	return &q, nil
}

func (s *Service) resolveAndStore(ctx context.Context, key cache.LookupKey, marca, modelo string, ano int) (*Quote, error) {
	q, err := s.resolvePrice(ctx, marca, modelo, ano)
	if err != nil {
		return nil, err
	}

	entry := cache.Entry{
		ExpiresAt:      s.clock.Now().Add(s.ttl),
		Value:          q.Value,
		ReferenceMonth: q.ReferenceMonth,
		ReferenceCode:  q.ReferenceCode,
	}
	if err := s.store.Put(ctx, key, entry); err != nil {
		s.logger.Warn("falha ao gravar cache fipe", "key", key.String(), "error", err)
	}

	return quoteFromEntry(entry, false), nil
}

// resolvePrice walks brands -> models -> years -> price. Each step needs the
// code resolved by the previous one.
func (s *Service) resolvePrice(ctx context.Context, marca, modelo string, ano int) (*Quote, error) {
	marcas, err := s.upstream.GetMarcas(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	marcaSel, tier, ok := matching.MatchBestTier(marcas, marca)
	if !ok {
		return nil, &NotFoundError{Stage: StageMarca, Query: marca}
	}
	s.logger.Debug("marca encontrada", "consulta", marca, "marca", marcaSel.Nome, "codigo", marcaSel.Codigo, "tier", tier.String())

	modelos, err := s.upstream.GetModelos(ctx, marcaSel.Codigo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	modeloSel, tier, ok := matching.MatchBestTier(modelos, modelo)
	if !ok {
		return nil, &NotFoundError{Stage: StageModelo, Query: modelo}
	}
	s.logger.Debug("modelo encontrado", "consulta", modelo, "modelo", modeloSel.Nome, "codigo", modeloSel.Codigo, "tier", tier.String())

	anos, err := s.upstream.GetAnos(ctx, marcaSel.Codigo, modeloSel.Codigo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	// years are matched by exact prefix, never fuzzily
	anoSel, ok := matching.MatchYear(anos, ano)
	if !ok {
		return nil, &NotFoundError{Stage: StageAno, Query: strconv.Itoa(ano)}
	}

	valor, err := s.upstream.GetValor(ctx, marcaSel.Codigo, modeloSel.Codigo, anoSel.Codigo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	amount, ok := parser.ParseBRL(valor.Valor)
	if !ok {
		return nil, &UnparsableError{Raw: valor.Valor}
	}

	return &Quote{
		Value:          amount,
		ReferenceMonth: strings.TrimSpace(valor.MesReferencia),
		ReferenceCode:  strings.TrimSpace(valor.CodigoFipe),
	}, nil
}

func quoteFromEntry(e cache.Entry, cached bool) *Quote {
	return &Quote{
		Value:          e.Value,
		ReferenceMonth: e.ReferenceMonth,
		ReferenceCode:  e.ReferenceCode,
		ExpiresAt:      e.ExpiresAt,
		Cached:         cached,
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrUnparsableResponse):
		return metrics.OutcomeUnparsable
	default:
		return metrics.OutcomeUnavailable
	}
}
