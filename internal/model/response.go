package model

import (
	"math"
	"time"
)

// FipeRequest representa a requisicao de consulta FIPE
type FipeRequest struct {
	Make  string  `json:"make" validate:"required"`
	Model string  `json:"model" validate:"required"`
	// float64 so that 2020.0 is accepted; fractional years are rejected by the handler
	Year  float64 `json:"year" validate:"min=1900,max=2100"`
}

// AnoInteiro returns the year when it has no fractional part
func (r FipeRequest) AnoInteiro() (int, bool) {
	if r.Year != math.Trunc(r.Year) {
		return 0, false
	}
	return int(r.Year), true
}

// FipeResponse representa uma cotacao FIPE bem sucedida
type FipeResponse struct {
	OK             bool    `json:"ok"`
	Value          float64 `json:"value"`
	ReferenceMonth string  `json:"referenceMonth"`
	ReferenceCode  string  `json:"referenceCode,omitempty"`
	ExpiresAt      int64   `json:"expiresAt"` // unix ms
}

// VeiculoFipeResponse representa a resposta da atualizacao FIPE de um veiculo
type VeiculoFipeResponse struct {
	OK      bool     `json:"ok"`
	Vehicle *Veiculo `json:"vehicle"`
}

// HealthResponse representa a resposta do health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Cache     string    `json:"cache"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse representa uma resposta de erro
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
