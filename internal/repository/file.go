package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
const fileColumns = `id, original_name, stored_name, file_path, storage_provider, cdn_url,
	file_type, file_category, mime_type, file_size, checksum_md5, checksum_sha256,
	is_public, access_level, uploaded_by, organization_id, parent_entity_type, parent_entity_id,
	is_deleted, deleted_at, deleted_by, expires_at, created_at, updated_at, last_accessed_at,
	metadata, tags`

// SearchParams — параметры поиска файлов.
// Все поля-указатели: nil = фильтр не применяется.
type SearchParams struct {
	Category *string
	FileType *string
	// UploadedBy — владелец (exact match)
	UploadedBy *int64
	// ParentEntityType и ParentEntityID применяются только вместе
	ParentEntityType *string
	ParentEntityID   *string
	// IsDeleted — состояние удаления; nil означает false
	IsDeleted *bool
	// CreatedAfter / CreatedBefore — диапазон даты создания
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	// Name — подстрока имени файла без учёта регистра
	Name *string
	// Tags — файл должен содержать все указанные теги
	Tags []string
	// SortBy — created_at, original_name, file_size
	SortBy string
	// SortOrder — asc, desc
	SortOrder string
	Limit     int
	Offset    int
}

// FileRepository — доступ к таблице files.
type FileRepository interface {
	// Create вставляет новую запись. Заполняет CreatedAt и UpdatedAt.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID возвращает файл по UUID (включая soft-deleted).
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	// Search выполняет поиск. Возвращает страницу и общее количество.
	Search(ctx context.Context, params SearchParams) ([]*model.FileRecord, int, error)
	// SoftDelete помечает файл удалённым. Уже удалённый файл — ErrNotFound.
	SoftDelete(ctx context.Context, id string, deletedBy int64, at time.Time) error
	// TouchAccessed обновляет last_accessed_at.
	TouchAccessed(ctx context.Context, id string, at time.Time) error
	// ListPurgeable возвращает файлы с истёкшим TTL или удалённые раньше deletedBefore.
	ListPurgeable(ctx context.Context, now, deletedBefore time.Time, limit int) ([]*model.FileRecord, error)
	// HardDelete физически удаляет строку (разрешения и версии — каскадно).
	HardDelete(ctx context.Context, id string) error
	// ListLocalPaths возвращает все ключи локального провайдера, известные БД,
	// включая пути версий.
	ListLocalPaths(ctx context.Context) ([]string, error)
	// Analytics агрегирует неудалённые файлы, опционально одного пользователя.
	Analytics(ctx context.Context, userID *int64, trendsSince time.Time) (*model.FileAnalytics, error)
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	meta, err := model.MarshalMetadata(f.Metadata)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
		INSERT INTO files (id, original_name, stored_name, file_path, storage_provider, cdn_url,
			file_type, file_category, mime_type, file_size, checksum_md5, checksum_sha256,
			is_public, access_level, uploaded_by, organization_id, parent_entity_type,
			parent_entity_id, expires_at, metadata, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21)
		RETURNING created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		f.ID, f.OriginalName, f.StoredName, f.FilePath, string(f.StorageProvider), f.CDNURL,
		string(f.FileType), f.FileCategory, f.MimeType, f.FileSize, f.ChecksumMD5, f.ChecksumSHA256,
		f.IsPublic, string(f.AccessLevel), f.UploadedBy, f.OrganizationID, f.ParentEntityType,
		f.ParentEntityID, f.ExpiresAt, meta, tags,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким ID или stored_name уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)

	f, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

// Search выполняет поиск файлов с динамическими фильтрами, сортировкой и пагинацией.
func (r *fileRepo) Search(ctx context.Context, params SearchParams) ([]*model.FileRecord, int, error) {
	where, args := buildSearchWhere(params, 1)
	argNum := len(args) + 1

	orderBy := buildOrderBy(params.SortBy, params.SortOrder)

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM files %s %s LIMIT $%d OFFSET $%d`,
		fileColumns, where, orderBy, argNum, argNum+1,
	)
	dataArgs := append(append([]any{}, args...), params.Limit, params.Offset)

	result, err := r.queryFiles(ctx, dataQuery, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка поиска файлов: %w", err)
	}

	// Общее количество с теми же фильтрами, без LIMIT/OFFSET
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM files %s`, where)

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}

	return result, total, nil
}

func (r *fileRepo) SoftDelete(ctx context.Context, id string, deletedBy int64, at time.Time) error {
	query := `
		UPDATE files
		SET is_deleted = TRUE, deleted_at = $2, deleted_by = $3, updated_at = $2
		WHERE id = $1 AND is_deleted = FALSE`

	tag, err := r.db.Exec(ctx, query, id, at, deletedBy)
	if err != nil {
		return fmt.Errorf("ошибка пометки файла как удалённого: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) TouchAccessed(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE files SET last_accessed_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("ошибка обновления last_accessed_at: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) ListPurgeable(ctx context.Context, now, deletedBefore time.Time, limit int) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM files
		WHERE (expires_at IS NOT NULL AND expires_at < $1)
			OR (is_deleted = TRUE AND deleted_at < $2)
		ORDER BY created_at
		LIMIT $3`, fileColumns)

	files, err := r.queryFiles(ctx, query, now, deletedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки файлов для очистки: %w", err)
	}
	return files, nil
}

func (r *fileRepo) HardDelete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) ListLocalPaths(ctx context.Context) ([]string, error) {
	query := `
		SELECT file_path FROM files WHERE storage_provider = 'local'
		UNION
		SELECT v.file_path FROM file_versions v
		JOIN files f ON f.id = v.file_id
		WHERE f.storage_provider = 'local'`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки локальных путей: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения локальных путей: %w", err)
	}
	return paths, nil
}

// Analytics выполняет набор агрегирующих запросов по неудалённым файлам.
//
//nolint:funlen // пять независимых агрегатов
func (r *fileRepo) Analytics(ctx context.Context, userID *int64, trendsSince time.Time) (*model.FileAnalytics, error) {
	where := "WHERE is_deleted = FALSE"
	var args []any
	if userID != nil {
		where += " AND uploaded_by = $1"
		args = append(args, *userID)
	}

	a := &model.FileAnalytics{
		ByCategory:   map[string]int64{},
		ByType:       map[string]int64{},
		UploadTrends: []model.UploadTrend{},
		TopUploaders: []model.UploaderStat{},
	}

	totalQuery := fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM files %s`, where)
	if err := r.db.QueryRow(ctx, totalQuery, args...).Scan(&a.TotalFiles, &a.TotalSize); err != nil {
		return nil, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}

	if err := r.groupCount(ctx, "file_category", where, args, a.ByCategory); err != nil {
		return nil, err
	}
	if err := r.groupCount(ctx, "file_type", where, args, a.ByType); err != nil {
		return nil, err
	}

	trendsQuery := fmt.Sprintf(`
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COUNT(*), COALESCE(SUM(file_size), 0)
		FROM files %s AND created_at >= $%d
		GROUP BY day ORDER BY day`, where, len(args)+1)
	rows, err := r.db.Query(ctx, trendsQuery, append(append([]any{}, args...), trendsSince)...)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчёта динамики загрузок: %w", err)
	}
	for rows.Next() {
		var t model.UploadTrend
		if err := rows.Scan(&t.Date, &t.Count, &t.Size); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ошибка сканирования динамики загрузок: %w", err)
		}
		a.UploadTrends = append(a.UploadTrends, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации динамики загрузок: %w", err)
	}

	// Рейтинг загрузивших имеет смысл только по всем пользователям
	if userID != nil {
		return a, nil
	}

	topQuery := `
		SELECT uploaded_by, COUNT(*) AS cnt, COALESCE(SUM(file_size), 0)
		FROM files WHERE is_deleted = FALSE
		GROUP BY uploaded_by
		ORDER BY cnt DESC, uploaded_by
		LIMIT 10`
	rows, err = r.db.Query(ctx, topQuery)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчёта рейтинга загрузивших: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s model.UploaderStat
		if err := rows.Scan(&s.UserID, &s.Count, &s.TotalSize); err != nil {
			return nil, fmt.Errorf("ошибка сканирования рейтинга: %w", err)
		}
		a.TopUploaders = append(a.TopUploaders, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации рейтинга: %w", err)
	}
	return a, nil
}

// groupCount заполняет dst результатами COUNT(*) GROUP BY column.
// column — только константы из вызывающего кода.
func (r *fileRepo) groupCount(ctx context.Context, column, where string, args []any, dst map[string]int64) error {
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM files %s GROUP BY %s`, column, where, column)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка группировки по %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("ошибка сканирования группировки по %s: %w", column, err)
		}
		dst[key] = count
	}
	return rows.Err()
}

// queryFiles выполняет SELECT fileColumns и сканирует все строки.
func (r *fileRepo) queryFiles(ctx context.Context, query string, args ...any) ([]*model.FileRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// scanFile читает одну строку в порядке fileColumns.
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	var (
		f                          model.FileRecord
		provider, fileType, access string
		meta                       []byte
	)
	err := row.Scan(
		&f.ID, &f.OriginalName, &f.StoredName, &f.FilePath, &provider, &f.CDNURL,
		&fileType, &f.FileCategory, &f.MimeType, &f.FileSize, &f.ChecksumMD5, &f.ChecksumSHA256,
		&f.IsPublic, &access, &f.UploadedBy, &f.OrganizationID, &f.ParentEntityType, &f.ParentEntityID,
		&f.IsDeleted, &f.DeletedAt, &f.DeletedBy, &f.ExpiresAt, &f.CreatedAt, &f.UpdatedAt, &f.LastAccessedAt,
		&meta, &f.Tags,
	)
	if err != nil {
		return nil, err
	}

	f.StorageProvider = model.StorageProvider(provider)
	f.FileType = model.FileType(fileType)
	f.AccessLevel = model.AccessLevel(access)
	if f.Metadata, err = model.UnmarshalMetadata(meta); err != nil {
		return nil, fmt.Errorf("ошибка разбора метаданных файла %s: %w", f.ID, err)
	}
	return &f, nil
}

// buildSearchWhere строит WHERE-условие и аргументы для поиска файлов.
// startArg — номер первого $-параметра.
//
//nolint:cyclop // сложность обусловлена количеством фильтров
func buildSearchWhere(params SearchParams, startArg int) (whereClause string, args []any) {
	var conditions []string
	argNum := startArg

	// По умолчанию soft-deleted файлы исключены
	deleted := false
	if params.IsDeleted != nil {
		deleted = *params.IsDeleted
	}
	conditions = append(conditions, fmt.Sprintf("is_deleted = $%d", argNum))
	args = append(args, deleted)
	argNum++

	if params.Category != nil && *params.Category != "" {
		conditions = append(conditions, fmt.Sprintf("file_category = $%d", argNum))
		args = append(args, *params.Category)
		argNum++
	}

	if params.FileType != nil && *params.FileType != "" {
		conditions = append(conditions, fmt.Sprintf("file_type = $%d", argNum))
		args = append(args, strings.ToUpper(*params.FileType))
		argNum++
	}

	if params.UploadedBy != nil {
		conditions = append(conditions, fmt.Sprintf("uploaded_by = $%d", argNum))
		args = append(args, *params.UploadedBy)
		argNum++
	}

	// Родительская сущность — только парой
	if params.ParentEntityType != nil && params.ParentEntityID != nil {
		conditions = append(conditions,
			fmt.Sprintf("parent_entity_type = $%d AND parent_entity_id = $%d", argNum, argNum+1))
		args = append(args, *params.ParentEntityType, *params.ParentEntityID)
		argNum += 2
	}

	if params.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argNum))
		args = append(args, *params.CreatedAfter)
		argNum++
	}

	if params.CreatedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argNum))
		args = append(args, *params.CreatedBefore)
		argNum++
	}

	if params.Name != nil && *params.Name != "" {
		conditions = append(conditions, fmt.Sprintf("original_name ILIKE $%d", argNum))
		args = append(args, "%"+escapeLike(*params.Name)+"%")
		argNum++
	}

	// Файл должен содержать все указанные теги — оператор @>
	if len(params.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags @> $%d", argNum))
		args = append(args, params.Tags)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// escapeLike экранирует спецсимволы ILIKE, чтобы подстрока искалась буквально.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

const defaultSortColumn = "created_at"

// buildOrderBy строит ORDER BY с whitelist полей. По умолчанию — новые первыми.
func buildOrderBy(sortBy, sortOrder string) string {
	column := defaultSortColumn
	switch sortBy {
	case "original_name":
		column = "original_name"
	case "file_size":
		column = "file_size"
	case defaultSortColumn:
		column = defaultSortColumn
	}

	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}

	// id — стабильный порядок при равных значениях
	return fmt.Sprintf("ORDER BY %s %s, id %s", column, direction, direction)
}
