package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// AccessLogRepository — журнал аудита. Только добавление и чтение.
type AccessLogRepository interface {
	// Append добавляет запись. Заполняет ID и AccessedAt (если не задан).
	Append(ctx context.Context, entry *model.FileAccessLog) error
	// ListByFile возвращает последние записи по файлу, новые первыми.
	ListByFile(ctx context.Context, fileID string, limit int) ([]*model.FileAccessLog, error)
}

type accessLogRepo struct {
	db DBTX
}

// NewAccessLogRepository создаёт репозиторий журнала аудита.
func NewAccessLogRepository(db DBTX) AccessLogRepository {
	return &accessLogRepo{db: db}
}

func (r *accessLogRepo) Append(ctx context.Context, entry *model.FileAccessLog) error {
	query := `
		INSERT INTO file_access_logs (file_id, user_id, access_type, success, error_message, accessed_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING id, accessed_at`

	var accessedAt any
	if !entry.AccessedAt.IsZero() {
		accessedAt = entry.AccessedAt
	}

	err := r.db.QueryRow(ctx, query,
		entry.FileID, entry.UserID, string(entry.AccessType), entry.Success, entry.ErrorMessage, accessedAt,
	).Scan(&entry.ID, &entry.AccessedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи журнала аудита: %w", err)
	}
	return nil
}

func (r *accessLogRepo) ListByFile(ctx context.Context, fileID string, limit int) ([]*model.FileAccessLog, error) {
	query := `
		SELECT id, file_id, user_id, access_type, success, error_message, accessed_at
		FROM file_access_logs
		WHERE file_id = $1
		ORDER BY accessed_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, fileID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала аудита: %w", err)
	}
	defer rows.Close()

	var result []*model.FileAccessLog
	for rows.Next() {
		var (
			e          model.FileAccessLog
			accessType string
		)
		if err := rows.Scan(&e.ID, &e.FileID, &e.UserID, &accessType, &e.Success, &e.ErrorMessage, &e.AccessedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования журнала аудита: %w", err)
		}
		e.AccessType = model.AccessType(accessType)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации журнала аудита: %w", err)
	}
	return result, nil
}
