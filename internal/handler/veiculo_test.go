package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motorgestor-api/internal/fipe"
	"motorgestor-api/internal/model"
	"motorgestor-api/internal/repository"
)

type fakeVeiculoStore struct {
	veiculos map[uuid.UUID]*model.Veiculo
	findErr  error
	saveErr  error
	saved    []repository.FipeSnapshot
}

func (s *fakeVeiculoStore) BuscarPorID(_ context.Context, companyID, id uuid.UUID) (*model.Veiculo, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	v, ok := s.veiculos[id]
	if !ok || v.CompanyID != companyID {
		return nil, repository.ErrVeiculoNaoEncontrado
	}
	return v, nil
}

func (s *fakeVeiculoStore) AtualizarFipe(_ context.Context, companyID, id uuid.UUID, snap repository.FipeSnapshot) (*model.Veiculo, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.saved = append(s.saved, snap)
	v := *s.veiculos[id]
	v.FipeValue = &snap.Value
	v.FipeReference = &snap.Reference
	v.FipeCode = &snap.Code
	v.FipeUpdatedAt = &snap.UpdatedAt
	return &v, nil
}

type fakeLookuper struct {
	quote *fipe.Quote
	err   error
	calls int
}

func (l *fakeLookuper) Lookup(_ context.Context, _, _ string, _ int) (*fipe.Quote, error) {
	l.calls++
	return l.quote, l.err
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

type veiculoEnv struct {
	handler   *VeiculoHandler
	store     *fakeVeiculoStore
	lookup    *fakeLookuper
	router    chi.Router
	companyID uuid.UUID
	veiculoID uuid.UUID
}

func newVeiculoEnv(t *testing.T) *veiculoEnv {
	t.Helper()

	companyID := uuid.New()
	veiculoID := uuid.New()

	store := &fakeVeiculoStore{veiculos: map[uuid.UUID]*model.Veiculo{
		veiculoID: {
			ID:        veiculoID,
			CompanyID: companyID,
			Title:     "Corolla XEi 2020",
			Make:      strPtr("Toyota"),
			Model:     strPtr("Corolla"),
			Year:      intPtr(2020),
			Status:    model.VeiculoDisponivel,
		},
	}}
	lookup := &fakeLookuper{quote: &fipe.Quote{
		Value:          decimal.RequireFromString("98765.43"),
		ReferenceMonth: "outubro de 2026",
		ReferenceCode:  "002161-2",
	}}

	h := NewVeiculoHandler(store, lookup, "http://fipe.test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Put("/api/v1/veiculos/{id}/fipe", h.AtualizarFipe)

	return &veiculoEnv{
		handler:   h,
		store:     store,
		lookup:    lookup,
		router:    r,
		companyID: companyID,
		veiculoID: veiculoID,
	}
}

func (e *veiculoEnv) put(id string, company string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/veiculos/"+id+"/fipe", nil)
	if company != "" {
		req.Header.Set(CompanyHeader, company)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestAtualizarFipe_Success(t *testing.T) {
	env := newVeiculoEnv(t)

	rec := env.put(env.veiculoID.String(), env.companyID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	vehicle, ok := body["vehicle"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 98765.43, vehicle["fipe_value"])
	assert.Equal(t, "outubro de 2026", vehicle["fipe_reference"])
	assert.Equal(t, "002161-2", vehicle["fipe_code"])

	require.Len(t, env.store.saved, 1)
	assert.Equal(t, 98765.43, env.store.saved[0].Value)
	assert.Equal(t, 2026, env.store.saved[0].UpdatedAt.Year())
}

func TestAtualizarFipe_BadIdentifiers(t *testing.T) {
	env := newVeiculoEnv(t)

	rec := env.put(env.veiculoID.String(), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.put("nao-e-uuid", env.companyID.String())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, env.lookup.calls)
}

func TestAtualizarFipe_VehicleOfAnotherCompany(t *testing.T) {
	env := newVeiculoEnv(t)

	rec := env.put(env.veiculoID.String(), uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Veículo não encontrado.", decodeBody(t, rec)["error"])
	assert.Zero(t, env.lookup.calls)
}

func TestAtualizarFipe_MissingVehicleData(t *testing.T) {
	env := newVeiculoEnv(t)
	env.store.veiculos[env.veiculoID].Year = nil

	rec := env.put(env.veiculoID.String(), env.companyID.String())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.lookup.calls)
}

func TestAtualizarFipe_LookupErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"modelo", &fipe.NotFoundError{Stage: fipe.StageModelo, Query: "Corolla"}, http.StatusNotFound},
		{"upstream", errors.New("FIPE marcas: timeout"), http.StatusBadGateway},
		{"valor", &fipe.UnparsableError{Raw: "N/D"}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newVeiculoEnv(t)
			env.lookup.quote = nil
			env.lookup.err = tt.err

			rec := env.put(env.veiculoID.String(), env.companyID.String())
			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, env.store.saved)
		})
	}
}

func TestAtualizarFipe_DatabaseErrors(t *testing.T) {
	env := newVeiculoEnv(t)
	env.store.findErr = errors.New("conn reset")

	rec := env.put(env.veiculoID.String(), env.companyID.String())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "conn reset")

	env = newVeiculoEnv(t)
	env.store.saveErr = errors.New("conn reset")

	rec = env.put(env.veiculoID.String(), env.companyID.String())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
