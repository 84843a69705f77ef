package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"motorgestor-api/internal/model"
	"motorgestor-api/internal/repository"
)

// CompanyHeader carries the tenant resolved by the session layer in front of this service
const CompanyHeader = "X-Company-ID"

// VeiculoStore defines methods needed from the vehicle repository
type VeiculoStore interface {
	BuscarPorID(ctx context.Context, companyID, id uuid.UUID) (*model.Veiculo, error)
	AtualizarFipe(ctx context.Context, companyID, id uuid.UUID, snap repository.FipeSnapshot) (*model.Veiculo, error)
}

var _ VeiculoStore = (*repository.VeiculoRepo)(nil)

type VeiculoHandler struct {
	repo    VeiculoStore
	svc     Lookuper
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

func NewVeiculoHandler(repo VeiculoStore, svc Lookuper, baseURL string, logger *slog.Logger) *VeiculoHandler {
	return &VeiculoHandler{
		repo:    repo,
		svc:     svc,
		baseURL: baseURL,
		logger:  logger,
		now:     time.Now,
	}
}

// AtualizarFipe consulta a FIPE com marca/modelo/ano do veiculo e grava o resultado
func (h *VeiculoHandler) AtualizarFipe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	companyID, err := uuid.Parse(r.Header.Get(CompanyHeader))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Empresa não identificada.")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "ID do veículo inválido.")
		return
	}

	veiculo, err := h.repo.BuscarPorID(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, repository.ErrVeiculoNaoEncontrado) {
			writeError(w, http.StatusNotFound, "Veículo não encontrado.")
			return
		}
		h.logger.Error("falha ao buscar veiculo", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao buscar veículo.")
		return
	}

	if !veiculo.PodeConsultarFipe() {
		writeError(w, http.StatusBadRequest, "Veículo sem marca, modelo ou ano para consultar a FIPE.")
		return
	}

	quote, err := h.svc.Lookup(ctx, *veiculo.Make, *veiculo.Model, *veiculo.Year)
	if err != nil {
		writeLookupError(w, h.logger, lookupFailure{
			marca:   *veiculo.Make,
			modelo:  *veiculo.Model,
			ano:     *veiculo.Year,
			baseURL: h.baseURL,
		}, err)
		return
	}

	atualizado, err := h.repo.AtualizarFipe(ctx, companyID, id, repository.FipeSnapshot{
		Value:     quote.Value.InexactFloat64(),
		Reference: quote.ReferenceMonth,
		Code:      quote.ReferenceCode,
		UpdatedAt: h.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrVeiculoNaoEncontrado) {
			writeError(w, http.StatusNotFound, "Veículo não encontrado.")
			return
		}
		h.logger.Error("falha ao gravar fipe no veiculo", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao salvar valor FIPE do veículo.")
		return
	}

	writeJSON(w, http.StatusOK, model.VeiculoFipeResponse{
		OK:      true,
		Vehicle: atualizado,
	})
}
