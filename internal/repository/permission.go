package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// PermissionRepository — явные разрешения на файлы.
type PermissionRepository interface {
	// Upsert атомарно создаёт или обновляет разрешение (file, user, type).
	// Файл не существует — ErrNotFound.
	Upsert(ctx context.Context, p *model.FilePermission) error
	// GetPermission возвращает разрешение или nil, если его нет.
	GetPermission(ctx context.Context, fileID string, userID int64, perm model.PermissionType) (*model.FilePermission, error)
	// Delete удаляет разрешение. Отсутствие строки ошибкой не является.
	Delete(ctx context.Context, fileID string, userID int64, perm model.PermissionType) error
	// ListByFile возвращает все разрешения файла.
	ListByFile(ctx context.Context, fileID string) ([]*model.FilePermission, error)
}

type permissionRepo struct {
	db DBTX
}

// NewPermissionRepository создаёт репозиторий разрешений.
func NewPermissionRepository(db DBTX) PermissionRepository {
	return &permissionRepo{db: db}
}

// Upsert — INSERT ... ON CONFLICT DO UPDATE. Конкурентные выдачи одного
// разрешения разрешаются на уровне уникального ключа: побеждает последняя запись.
func (r *permissionRepo) Upsert(ctx context.Context, p *model.FilePermission) error {
	query := `
		INSERT INTO file_permissions (file_id, user_id, permission_type, granted_by, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (file_id, user_id, permission_type) DO UPDATE
		SET granted_by = EXCLUDED.granted_by,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		p.FileID, p.UserID, string(p.PermissionType), p.GrantedBy, p.ExpiresAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: файл %s", ErrNotFound, p.FileID)
		}
		return fmt.Errorf("ошибка сохранения разрешения: %w", err)
	}
	return nil
}

func (r *permissionRepo) GetPermission(
	ctx context.Context, fileID string, userID int64, perm model.PermissionType,
) (*model.FilePermission, error) {
	query := `
		SELECT file_id, user_id, permission_type, granted_by, expires_at, created_at, updated_at
		FROM file_permissions
		WHERE file_id = $1 AND user_id = $2 AND permission_type = $3`

	p, err := scanPermission(r.db.QueryRow(ctx, query, fileID, userID, string(perm)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения разрешения: %w", err)
	}
	return p, nil
}

func (r *permissionRepo) Delete(ctx context.Context, fileID string, userID int64, perm model.PermissionType) error {
	query := `DELETE FROM file_permissions WHERE file_id = $1 AND user_id = $2 AND permission_type = $3`
	if _, err := r.db.Exec(ctx, query, fileID, userID, string(perm)); err != nil {
		return fmt.Errorf("ошибка удаления разрешения: %w", err)
	}
	return nil
}

func (r *permissionRepo) ListByFile(ctx context.Context, fileID string) ([]*model.FilePermission, error) {
	query := `
		SELECT file_id, user_id, permission_type, granted_by, expires_at, created_at, updated_at
		FROM file_permissions
		WHERE file_id = $1
		ORDER BY user_id, permission_type`

	rows, err := r.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения разрешений файла: %w", err)
	}
	defer rows.Close()

	var result []*model.FilePermission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования разрешения: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации разрешений: %w", err)
	}
	return result, nil
}

func scanPermission(row pgx.Row) (*model.FilePermission, error) {
	var (
		p    model.FilePermission
		perm string
	)
	if err := row.Scan(&p.FileID, &p.UserID, &perm, &p.GrantedBy, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.PermissionType = model.PermissionType(perm)
	return &p, nil
}
