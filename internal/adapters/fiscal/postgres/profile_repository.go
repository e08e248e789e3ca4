package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"3tcapital/ms_fiscal_core/internal/core/fiscal"
)

// ProfileRepository implements fiscal.ProfileRepository over the
// fiscal_settings, fiscal_emitters and counterparties tables.
type ProfileRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewProfileRepository creates a new PostgreSQL profile repository.
func NewProfileRepository(pool *pgxpool.Pool, log *slog.Logger) *ProfileRepository {
	return &ProfileRepository{pool: pool, log: log}
}

func (r *ProfileRepository) FindSettings(ctx context.Context, tenantID string) (*fiscal.TenantSettings, error) {
	query := `
		SELECT tenant_id, api_token, environment, service_schema,
		       goods_defaults, service_defaults, persist_rejections
		FROM fiscal_settings
		WHERE tenant_id = $1
	`

	var (
		s                   fiscal.TenantSettings
		environment, schema string
		goodsJSON           []byte
		serviceJSON         []byte
	)
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&s.TenantID,
		&s.APIToken,
		&environment,
		&schema,
		&goodsJSON,
		&serviceJSON,
		&s.PersistRejections,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fiscal.ErrNotFound
		}
		return nil, fmt.Errorf("query fiscal settings: %w", err)
	}

	s.Environment = fiscal.ParseEnvironment(environment)
	s.ServiceSchema, err = fiscal.ParseSchemaVariant(schema)
	if err != nil {
		r.log.Warn("Unknown service schema in settings, using legacy",
			"tenant_id", tenantID,
			"service_schema", schema)
		s.ServiceSchema = fiscal.SchemaLegacy
	}
	if err := unmarshalDefaults(goodsJSON, &s.Goods); err != nil {
		return nil, fmt.Errorf("unmarshal goods defaults: %w", err)
	}
	if err := unmarshalDefaults(serviceJSON, &s.Service); err != nil {
		return nil, fmt.Errorf("unmarshal service defaults: %w", err)
	}
	return &s, nil
}

func (r *ProfileRepository) FindEmitter(ctx context.Context, tenantID string) (*fiscal.EmitterProfile, error) {
	query := `
		SELECT tenant_id, tax_id, legal_name, trade_name, address,
		       state_registration, municipal_registration, municipality_code,
		       tax_regime, phone, email
		FROM fiscal_emitters
		WHERE tenant_id = $1
	`

	var (
		e           fiscal.EmitterProfile
		addressJSON []byte
	)
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&e.TenantID,
		&e.TaxID,
		&e.LegalName,
		&e.TradeName,
		&addressJSON,
		&e.StateRegistration,
		&e.MunicipalRegistration,
		&e.MunicipalityCode,
		&e.TaxRegime,
		&e.Phone,
		&e.Email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fiscal.ErrNotFound
		}
		return nil, fmt.Errorf("query emitter: %w", err)
	}
	if err := unmarshalDefaults(addressJSON, &e.Address); err != nil {
		return nil, fmt.Errorf("unmarshal emitter address: %w", err)
	}
	return &e, nil
}

func (r *ProfileRepository) FindCounterparty(ctx context.Context, tenantID, counterpartyID string) (*fiscal.CounterpartyProfile, error) {
	query := `
		SELECT id, tenant_id, tax_id, name, address, state_registration,
		       municipality_code, email, phone
		FROM counterparties
		WHERE tenant_id = $1 AND id = $2
	`

	var (
		c           fiscal.CounterpartyProfile
		addressJSON []byte
	)
	err := r.pool.QueryRow(ctx, query, tenantID, counterpartyID).Scan(
		&c.ID,
		&c.TenantID,
		&c.TaxID,
		&c.Name,
		&addressJSON,
		&c.StateRegistration,
		&c.MunicipalityCode,
		&c.Email,
		&c.Phone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fiscal.ErrNotFound
		}
		return nil, fmt.Errorf("query counterparty: %w", err)
	}
	if err := unmarshalDefaults(addressJSON, &c.Address); err != nil {
		return nil, fmt.Errorf("unmarshal counterparty address: %w", err)
	}
	return &c, nil
}

// UpdateCounterpartyMunicipality caches a resolved IBGE code.
func (r *ProfileRepository) UpdateCounterpartyMunicipality(ctx context.Context, tenantID, counterpartyID, code string) error {
	query := `
		UPDATE counterparties
		SET municipality_code = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`

	tag, err := r.pool.Exec(ctx, query, tenantID, counterpartyID, code)
	if err != nil {
		return fmt.Errorf("update counterparty municipality: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fiscal.ErrNotFound
	}
	return nil
}

// unmarshalDefaults decodes a JSONB column, leaving dst untouched when empty.
func unmarshalDefaults(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
