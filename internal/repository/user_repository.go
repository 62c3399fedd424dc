package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/rasp_bot/internal/model"
	"github.com/Freeeeeet/rasp_bot/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, student_id, education_space_id, calendar_id, rasp_hash, last_schedule_update, created_at`

type UserRepository struct {
	*base.Repository
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(pool)}
}

// Save создаёт пользователя или перезаписывает его привязку к студенту и календарю
func (r *UserRepository) Save(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, student_id, education_space_id, calendar_id, rasp_hash, last_schedule_update)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET student_id = EXCLUDED.student_id,
			education_space_id = EXCLUDED.education_space_id,
			calendar_id = EXCLUDED.calendar_id,
			rasp_hash = EXCLUDED.rasp_hash,
			last_schedule_update = EXCLUDED.last_schedule_update
		RETURNING created_at
	`

	err := r.QueryRow(
		ctx, query,
		user.ID,
		user.StudentID,
		user.EducationSpaceID,
		user.CalendarID,
		user.RaspHash,
		user.LastScheduleUpdate,
	).Scan(&user.CreatedAt)

	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	return nil
}

// GetByID получает пользователя по Telegram ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

// ListStale возвращает пользователей, которые не синхронизировались с cutoff
// или не синхронизировались ни разу
func (r *UserRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE last_schedule_update IS NULL OR last_schedule_update < $1
		ORDER BY last_schedule_update NULLS FIRST
	`

	rows, err := r.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// UpdateSyncState сохраняет хэш расписания и время синхронизации
func (r *UserRepository) UpdateSyncState(ctx context.Context, userID int64, hash string, syncedAt time.Time) error {
	affected, err := r.ExecAffected(ctx,
		`UPDATE users SET rasp_hash = $1, last_schedule_update = $2 WHERE id = $3`,
		hash, syncedAt, userID,
	)
	if err != nil {
		return fmt.Errorf("update sync state: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// TouchScheduleUpdate обновляет только время синхронизации
func (r *UserRepository) TouchScheduleUpdate(ctx context.Context, userID int64, syncedAt time.Time) error {
	affected, err := r.ExecAffected(ctx,
		`UPDATE users SET last_schedule_update = $1 WHERE id = $2`,
		syncedAt, userID,
	)
	if err != nil {
		return fmt.Errorf("touch schedule update: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.StudentID,
		&user.EducationSpaceID,
		&user.CalendarID,
		&user.RaspHash,
		&user.LastScheduleUpdate,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
