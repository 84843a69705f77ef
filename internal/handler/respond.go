package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"motorgestor-api/internal/fipe"
	"motorgestor-api/internal/model"
)

const (
	msgEntradaInvalida     = "Informe marca, modelo e ano."
	msgMarcaNaoEncontrada  = "Marca não encontrada na FIPE."
	msgModeloNaoEncontrado = "Modelo não encontrado para essa marca na FIPE."
	msgAnoNaoEncontrado    = "Ano não encontrado para esse modelo na FIPE."
	msgFipeIndisponivel    = "FIPE indisponível no momento. Tente novamente."
	msgValorIlegivel       = "Não foi possível interpretar o valor da FIPE."
)

// writeJSON encodes before writing the status, so an unencodable body
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("falha ao serializar resposta", "status", status, "error", err)
		body = []byte(`{"ok":false,"error":"Erro interno."}`)
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Debug("falha ao escrever resposta", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.ErrorResponse{OK: false, Error: message})
}

// lookupFailure describes the vehicle being looked up, for server-side logs
type lookupFailure struct {
	marca   string
	modelo  string
	ano     int
	baseURL string
}

// writeLookupError translates a lookup error into the public response.
// Internal error text only goes to the log.
func writeLookupError(w http.ResponseWriter, logger *slog.Logger, f lookupFailure, err error) {
	var nf *fipe.NotFoundError
	var unp *fipe.UnparsableError

	switch {
	case errors.Is(err, fipe.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, msgEntradaInvalida)

	case errors.As(err, &nf):
		switch nf.Stage {
		case fipe.StageMarca:
			writeError(w, http.StatusNotFound, msgMarcaNaoEncontrada)
		case fipe.StageModelo:
			writeError(w, http.StatusNotFound, msgModeloNaoEncontrado)
		default:
			writeError(w, http.StatusNotFound, msgAnoNaoEncontrado)
		}

	case errors.As(err, &unp):
		logger.Error("valor fipe ilegivel, possivel mudanca de formato no upstream",
			"marca", f.marca,
			"modelo", f.modelo,
			"ano", f.ano,
			"base_url", f.baseURL,
			"valor_bruto", unp.Raw,
			"error", err.Error(),
		)
		writeError(w, http.StatusBadGateway, msgValorIlegivel)

	default:
		logger.Error("falha na consulta fipe",
			"marca", f.marca,
			"modelo", f.modelo,
			"ano", f.ano,
			"base_url", f.baseURL,
			"error", err.Error(),
		)
		writeError(w, http.StatusBadGateway, msgFipeIndisponivel)
	}
}
