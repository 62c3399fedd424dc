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

// DirectoryChannel канал уведомлений об обновлении справочника
const DirectoryChannel = "student_directory"

// DirectoryRepository хранит единственный снимок справочника студентов
type DirectoryRepository struct {
	*base.Repository
}

func NewDirectoryRepository(pool *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{Repository: base.NewRepository(pool)}
}

// Get возвращает текущий снимок справочника или nil, если его ещё нет
func (r *DirectoryRepository) Get(ctx context.Context) (*model.Directory, error) {
	var dir model.Directory
	err := r.QueryRow(ctx, `SELECT list, updated_at FROM student_directory WHERE id = 1`).
		Scan(&dir.Students, &dir.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student directory: %w", err)
	}

	return &dir, nil
}

// Save заменяет снимок справочника целиком и уведомляет подписчиков
func (r *DirectoryRepository) Save(ctx context.Context, students []model.Student, updatedAt time.Time) error {
	if students == nil {
		students = []model.Student{}
	}

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO student_directory (id, list, updated_at)
			VALUES (1, $1, $2)
			ON CONFLICT (id) DO UPDATE
			SET list = EXCLUDED.list, updated_at = EXCLUDED.updated_at
		`
		if _, err := tx.Exec(ctx, query, students, updatedAt); err != nil {
			return err
		}

		// Уведомление уходит только после коммита
		_, err := tx.Exec(ctx, `SELECT pg_notify($1, '')`, DirectoryChannel)
		return err
	})
	if err != nil {
		return fmt.Errorf("save student directory: %w", err)
	}

	return nil
}

// Listen вызывает onChange на каждое обновление справочника, пока не отменён ctx
func (r *DirectoryRepository) Listen(ctx context.Context, onChange func()) error {
	conn, err := r.Pool().Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+DirectoryChannel); err != nil {
		return fmt.Errorf("listen %s: %w", DirectoryChannel, err)
	}

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		onChange()
	}
}
