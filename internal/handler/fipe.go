package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"motorgestor-api/internal/fipe"
	"motorgestor-api/internal/model"
)

// Lookuper resolves FIPE quotes
type Lookuper interface {
	Lookup(ctx context.Context, marca, modelo string, ano int) (*fipe.Quote, error)
}

type FipeHandler struct {
	svc      Lookuper
	validate *validator.Validate
	baseURL  string
	logger   *slog.Logger
}

func NewFipeHandler(svc Lookuper, baseURL string, logger *slog.Logger) *FipeHandler {
	return &FipeHandler{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		baseURL:  baseURL,
		logger:   logger,
	}
}

// Consultar busca o valor FIPE de um veiculo (marca, modelo, ano)
func (h *FipeHandler) Consultar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.FipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgEntradaInvalida)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, msgEntradaInvalida)
		return
	}

	ano, ok := req.AnoInteiro()
	if !ok {
		writeError(w, http.StatusBadRequest, msgEntradaInvalida)
		return
	}

	quote, err := h.svc.Lookup(ctx, req.Make, req.Model, ano)
	if err != nil {
		writeLookupError(w, h.logger, lookupFailure{
			marca:   req.Make,
			modelo:  req.Model,
			ano:     ano,
			baseURL: h.baseURL,
		}, err)
		return
	}

	if quote.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}

	writeJSON(w, http.StatusOK, model.FipeResponse{
		OK:             true,
		Value:          quote.Value.InexactFloat64(),
		ReferenceMonth: quote.ReferenceMonth,
		ReferenceCode:  quote.ReferenceCode,
		ExpiresAt:      quote.ExpiresAt.UnixMilli(),
	})
}
