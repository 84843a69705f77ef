package model

import (
	"time"

	"github.com/google/uuid"
)

type VeiculoStatus string

const (
	VeiculoDisponivel VeiculoStatus = "disponivel"
	VeiculoReservado  VeiculoStatus = "reservado"
	VeiculoVendido    VeiculoStatus = "vendido"
	VeiculoInativo    VeiculoStatus = "inativo"
)

// Veiculo is a row of the tenant's inventory. Only the columns the FIPE
// snapshot needs are mapped.
type Veiculo struct {
	ID            uuid.UUID     `json:"id"`
	CompanyID     uuid.UUID     `json:"company_id"`
	Title         string        `json:"title"`
	Make          *string       `json:"make"`
	Model         *string       `json:"model"`
	Year          *int          `json:"year"`
	Status        VeiculoStatus `json:"status"`
	FipeValue     *float64      `json:"fipe_value"`
	FipeReference *string       `json:"fipe_reference"`
	FipeCode      *string       `json:"fipe_code"`
	FipeUpdatedAt *time.Time    `json:"fipe_updated_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// PodeConsultarFipe reports whether make, model and year are all filled in
func (v *Veiculo) PodeConsultarFipe() bool {
	return v.Make != nil && *v.Make != "" &&
		v.Model != nil && *v.Model != "" &&
		v.Year != nil
}
