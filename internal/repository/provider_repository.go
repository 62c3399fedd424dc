package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/rasp_bot/internal/model"
	"github.com/Freeeeeet/rasp_bot/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const providerColumns = `id::text, owner_id, education_space_id, user_name, password, access_token, created_at`

// ProviderRepository учётные записи, от имени которых бот ходит в API расписания
type ProviderRepository struct {
	*base.Repository
}

func NewProviderRepository(pool *pgxpool.Pool) *ProviderRepository {
	return &ProviderRepository{Repository: base.NewRepository(pool)}
}

// UpsertByOwner сохраняет провайдера пользователя. У пользователя не больше одного провайдера.
func (r *ProviderRepository) UpsertByOwner(ctx context.Context, p *model.Provider) error {
	query := `
		INSERT INTO providers (id, owner_id, education_space_id, user_name, password, access_token)
		VALUES ($1::uuid, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id) DO UPDATE
		SET education_space_id = EXCLUDED.education_space_id,
			user_name = EXCLUDED.user_name,
			password = EXCLUDED.password,
			access_token = EXCLUDED.access_token
		RETURNING id::text, created_at
	`

	err := r.QueryRow(
		ctx, query,
		uuid.NewString(),
		p.OwnerID,
		p.EducationSpaceID,
		p.UserName,
		p.Password,
		p.AccessToken,
	).Scan(&p.ID, &p.CreatedAt)

	if err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}

	return nil
}

// ListBySpace возвращает провайдеров траектории обучения
func (r *ProviderRepository) ListBySpace(ctx context.Context, spaceID int64) ([]*model.Provider, error) {
	return r.list(ctx, `SELECT `+providerColumns+` FROM providers WHERE education_space_id = $1`, spaceID)
}

// ListAll возвращает всех провайдеров
func (r *ProviderRepository) ListAll(ctx context.Context) ([]*model.Provider, error) {
	return r.list(ctx, `SELECT `+providerColumns+` FROM providers`)
}

// UpdateAccessToken сохраняет новый токен провайдера
func (r *ProviderRepository) UpdateAccessToken(ctx context.Context, providerID, token string) error {
	affected, err := r.ExecAffected(ctx,
		`UPDATE providers SET access_token = $1 WHERE id = $2::uuid`,
		token, providerID,
	)
	if err != nil {
		return fmt.Errorf("update access token: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("provider not found")
	}

	return nil
}

func (r *ProviderRepository) list(ctx context.Context, query string, args ...any) ([]*model.Provider, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	providers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Provider, error) {
		var p model.Provider
		err := row.Scan(
			&p.ID,
			&p.OwnerID,
			&p.EducationSpaceID,
			&p.UserName,
			&p.Password,
			&p.AccessToken,
			&p.CreatedAt,
		)
		return &p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan providers: %w", err)
	}

	return providers, nil
}
