package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// maxVersionAttempts — число попыток вставки версии при гонке за номер.
const maxVersionAttempts = 5

// VersionRepository — версии содержимого файлов. Версия 1 — исходное
// содержимое записи файла, таблица хранит версии начиная со 2-й.
type VersionRepository interface {
	// Create добавляет версию с номером max+1. Заполняет ID, VersionNumber, CreatedAt.
	// Файл не существует — ErrNotFound.
	Create(ctx context.Context, v *model.FileVersion) error
	// GetByNumber возвращает версию файла по номеру. Нет версии — ErrNotFound.
	GetByNumber(ctx context.Context, fileID string, number int) (*model.FileVersion, error)
	// ListByFile возвращает версии файла, новые первыми.
	ListByFile(ctx context.Context, fileID string) ([]*model.FileVersion, error)
}

type versionRepo struct {
	db DBTX
}

// NewVersionRepository создаёт репозиторий версий.
func NewVersionRepository(db DBTX) VersionRepository {
	return &versionRepo{db: db}
}

// Create вычисляет номер версии в том же INSERT. Две конкурентные вставки
// могут получить одинаковый номер: проигравшая ловит unique_violation и повторяет.
func (r *versionRepo) Create(ctx context.Context, v *model.FileVersion) error {
	query := `
		INSERT INTO file_versions (file_id, version_number, stored_name, file_path,
			file_size, checksum_md5, created_by)
		SELECT $1::uuid, COALESCE(MAX(version_number), 1) + 1, $2::text, $3::text, $4::bigint, $5::text, $6::bigint
		FROM file_versions WHERE file_id = $1::uuid
		RETURNING id, version_number, created_at`

	var err error
	for range maxVersionAttempts {
		err = r.db.QueryRow(ctx, query,
			v.FileID, v.StoredName, v.FilePath, v.FileSize, v.ChecksumMD5, v.CreatedBy,
		).Scan(&v.ID, &v.VersionNumber, &v.CreatedAt)
		if err == nil {
			return nil
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: файл %s", ErrNotFound, v.FileID)
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("ошибка создания версии: %w", err)
		}
	}
	return fmt.Errorf("%w: номер версии файла %s: %v", ErrConflict, v.FileID, err)
}

func (r *versionRepo) GetByNumber(ctx context.Context, fileID string, number int) (*model.FileVersion, error) {
	query := `
		SELECT id, file_id, version_number, stored_name, file_path, file_size,
			checksum_md5, created_by, created_at
		FROM file_versions
		WHERE file_id = $1 AND version_number = $2`

	v := &model.FileVersion{}
	err := r.db.QueryRow(ctx, query, fileID, number).Scan(
		&v.ID, &v.FileID, &v.VersionNumber, &v.StoredName, &v.FilePath, &v.FileSize,
		&v.ChecksumMD5, &v.CreatedBy, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: версия %d файла %s", ErrNotFound, number, fileID)
		}
		return nil, fmt.Errorf("ошибка получения версии: %w", err)
	}
	return v, nil
}

func (r *versionRepo) ListByFile(ctx context.Context, fileID string) ([]*model.FileVersion, error) {
	query := `
		SELECT id, file_id, version_number, stored_name, file_path, file_size,
			checksum_md5, created_by, created_at
		FROM file_versions
		WHERE file_id = $1
		ORDER BY version_number DESC`

	rows, err := r.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения версий файла: %w", err)
	}
	defer rows.Close()

	var result []*model.FileVersion
	for rows.Next() {
		v := &model.FileVersion{}
		if err := rows.Scan(
			&v.ID, &v.FileID, &v.VersionNumber, &v.StoredName, &v.FilePath, &v.FileSize,
			&v.ChecksumMD5, &v.CreatedBy, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования версии: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации версий: %w", err)
	}
	return result, nil
}
