package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/repository"
)

// GrantRequest — выдача разрешения.
type GrantRequest struct {
	FileID         string
	UserID         int64
	PermissionType model.PermissionType
	// GrantedBy — вызывающий; должен иметь разрешение share
	GrantedBy int64
	ExpiresAt *time.Time
}

// GrantFilePermission выдаёт или продлевает разрешение (upsert по тройке
// file/user/type). Выдающий должен быть владельцем или иметь share.
func (s *FileManager) GrantFilePermission(ctx context.Context, req GrantRequest) (*model.FilePermission, error) {
	perm, err := s.grant(ctx, req)
	s.record(ctx, auditFileID(req.FileID), &req.GrantedBy, model.AccessTypeShare, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Разрешение выдано",
		slog.String("file_id", req.FileID),
		slog.Int64("user_id", req.UserID),
		slog.String("permission", string(req.PermissionType)),
		slog.Int64("granted_by", req.GrantedBy),
	)
	return perm, nil
}

func (s *FileManager) grant(ctx context.Context, req GrantRequest) (*model.FilePermission, error) {
	if _, err := model.ParsePermissionType(string(req.PermissionType)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if req.UserID <= 0 {
		return nil, fmt.Errorf("%w: некорректный пользователь %d", ErrValidation, req.UserID)
	}

	file, err := s.loadFile(ctx, req.FileID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, file, req.GrantedBy, model.PermissionShare, "grant"); err != nil {
		return nil, err
	}

	perm := &model.FilePermission{
		FileID:         file.ID,
		UserID:         req.UserID,
		PermissionType: req.PermissionType,
		GrantedBy:      req.GrantedBy,
		ExpiresAt:      req.ExpiresAt,
	}
	if err := s.perms.Upsert(ctx, perm); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, req.FileID)
		}
		return nil, fmt.Errorf("сохранение разрешения: %w", err)
	}
	return perm, nil
}

// RevokeFilePermission отзывает разрешение. Отзыв отсутствующего
// разрешения успешен.
func (s *FileManager) RevokeFilePermission(
	ctx context.Context, fileID string, userID int64, permType model.PermissionType, revokedBy int64,
) error {
	err := s.revoke(ctx, fileID, userID, permType, revokedBy)
	s.record(ctx, auditFileID(fileID), &revokedBy, model.AccessTypeRevoke, err)
	if err != nil {
		return err
	}

	s.logger.Info("Разрешение отозвано",
		slog.String("file_id", fileID),
		slog.Int64("user_id", userID),
		slog.String("permission", string(permType)),
		slog.Int64("revoked_by", revokedBy),
	)
	return nil
}

func (s *FileManager) revoke(
	ctx context.Context, fileID string, userID int64, permType model.PermissionType, revokedBy int64,
) error {
	if _, err := model.ParsePermissionType(string(permType)); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	file, err := s.loadFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, file, revokedBy, model.PermissionShare, "revoke"); err != nil {
		return err
	}
	if err := s.perms.Delete(ctx, file.ID, userID, permType); err != nil {
		return fmt.Errorf("удаление разрешения: %w", err)
	}
	return nil
}

// ListFilePermissions возвращает явные разрешения файла. Требует share.
func (s *FileManager) ListFilePermissions(ctx context.Context, fileID string, userID int64) ([]*model.FilePermission, error) {
	file, err := s.loadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, file, userID, model.PermissionShare, "list_permissions"); err != nil {
		return nil, err
	}

	perms, err := s.perms.ListByFile(ctx, file.ID)
	if err != nil {
		return nil, fmt.Errorf("получение разрешений: %w", err)
	}
	if perms == nil {
		perms = []*model.FilePermission{}
	}
	return perms, nil
}

// SoftDeleteFile помечает файл удалённым. Физическое удаление выполняет
// задание очистки по истечении grace-периода. Требует delete.
func (s *FileManager) SoftDeleteFile(ctx context.Context, fileID string, deletedBy int64) error {
	err := s.softDelete(ctx, fileID, deletedBy)
	s.record(ctx, auditFileID(fileID), &deletedBy, model.AccessTypeDelete, err)
	if err != nil {
		return err
	}

	s.logger.Info("Файл помечен удалённым",
		slog.String("file_id", fileID),
		slog.Int64("deleted_by", deletedBy),
	)
	return nil
}

func (s *FileManager) softDelete(ctx context.Context, fileID string, deletedBy int64) error {
	file, err := s.loadFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, file, deletedBy, model.PermissionDelete, "delete"); err != nil {
		return err
	}

	err = s.files.SoftDelete(ctx, file.ID, deletedBy, s.now())
	// Запись в кэше устарела в любом случае
	s.cache.Delete(file.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, fileID)
		}
		return fmt.Errorf("пометка удаления: %w", err)
	}
	return nil
}

// auditFileID — идентификатор файла для журнала аудита.
// Строка, не являющаяся UUID, не записывается: колонка file_id типа UUID.
func auditFileID(fileID string) *string {
	if uuid.Validate(fileID) != nil {
		return nil
	}
	return &fileID
}
