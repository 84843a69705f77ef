package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"motorgestor-api/internal/model"
)

// ErrVeiculoNaoEncontrado is returned when the vehicle does not exist in the tenant
var ErrVeiculoNaoEncontrado = errors.New("veiculo nao encontrado")

// FipeSnapshot is the quote data persisted on a vehicle
type FipeSnapshot struct {
	Value     float64
	Reference string
	Code      string
	UpdatedAt time.Time
}

type VeiculoRepo struct {
	db *pgxpool.Pool
}

func NewVeiculoRepo(db *pgxpool.Pool) *VeiculoRepo {
	return &VeiculoRepo{db: db}
}

const veiculoColumns = `
	id, company_id, title, make, model, year, status,
	fipe_value::float8, fipe_reference, fipe_code, fipe_updated_at, updated_at
`

// BuscarPorID busca um veiculo da empresa pelo ID
func (r *VeiculoRepo) BuscarPorID(ctx context.Context, companyID, id uuid.UUID) (*model.Veiculo, error) {
	query := `SELECT` + veiculoColumns + `
		FROM vehicles
		WHERE company_id = $1 AND id = $2
	`

	v, err := scanVeiculo(r.db.QueryRow(ctx, query, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVeiculoNaoEncontrado
		}
		return nil, err
	}

	return v, nil
}

// AtualizarFipe grava a cotacao FIPE no veiculo e retorna a linha atualizada
func (r *VeiculoRepo) AtualizarFipe(ctx context.Context, companyID, id uuid.UUID, snap FipeSnapshot) (*model.Veiculo, error) {
	query := `
		UPDATE vehicles
		SET fipe_value = $3,
			fipe_reference = $4,
			fipe_code = NULLIF($5, ''),
			fipe_updated_at = $6,
			updated_at = NOW()
		WHERE company_id = $1 AND id = $2
		RETURNING` + veiculoColumns

	v, err := scanVeiculo(r.db.QueryRow(ctx, query,
		companyID, id, snap.Value, snap.Reference, snap.Code, snap.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVeiculoNaoEncontrado
		}
		return nil, err
	}

	return v, nil
}

func scanVeiculo(row pgx.Row) (*model.Veiculo, error) {
	var v model.Veiculo
	var status string
	err := row.Scan(
		&v.ID, &v.CompanyID, &v.Title, &v.Make, &v.Model, &v.Year, &status,
		&v.FipeValue, &v.FipeReference, &v.FipeCode, &v.FipeUpdatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Status = model.VeiculoStatus(status)
	return &v, nil
}
