package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/extract"
	"github.com/bigkaa/goartstore/file-manager/internal/repository"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/provider"
)

// UploadFileVersion сохраняет новое содержимое логического файла как
// очередную версию. Запись файла не меняется. Требует write;
// расширение должно совпадать с расширением исходного файла.
func (s *FileManager) UploadFileVersion(
	ctx context.Context, fileID string, content []byte, userID int64,
) (*model.FileVersion, error) {
	version, err := s.uploadVersion(ctx, fileID, content, userID)
	s.record(ctx, auditFileID(fileID), &userID, model.AccessTypeUpload, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Загружена версия файла",
		slog.String("file_id", fileID),
		slog.Int("version", version.VersionNumber),
		slog.Int64("user_id", userID),
	)
	return version, nil
}

func (s *FileManager) uploadVersion(
	ctx context.Context, fileID string, content []byte, userID int64,
) (*model.FileVersion, error) {
	file, err := s.loadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, file, userID, model.PermissionWrite, "upload_version"); err != nil {
		return nil, err
	}

	ext, err := s.checkContent(content, file.OriginalName)
	if err != nil {
		return nil, err
	}
	store, err := s.providerFor(file.StorageProvider)
	if err != nil {
		return nil, err
	}

	storedName := s.storedNameFor(s.newID(), ext)
	res, err := store.Upload(ctx, provider.UploadInput{
		FileID:      file.ID,
		Data:        content,
		FileName:    storedName,
		Category:    file.FileCategory,
		ContentType: file.MimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: запись версии: %w", ErrStorageProvider, err)
	}

	version := &model.FileVersion{
		FileID:      file.ID,
		StoredName:  storedName,
		FilePath:    res.Path,
		FileSize:    int64(len(content)),
		ChecksumMD5: extract.ComputeChecksums(content).MD5,
		CreatedBy:   userID,
	}
	if err := s.versions.Create(ctx, version); err != nil {
		s.discardObject(store, res.Path)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
		}
		return nil, fmt.Errorf("%w: сохранение версии: %w", ErrUpload, err)
	}
	return version, nil
}

// ListFileVersions возвращает версии файла, новые первыми. Требует read.
func (s *FileManager) ListFileVersions(ctx context.Context, fileID string, userID int64) ([]*model.FileVersion, error) {
	file, err := s.loadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, file, userID, model.PermissionRead, "list_versions"); err != nil {
		return nil, err
	}

	versions, err := s.versions.ListByFile(ctx, file.ID)
	if err != nil {
		return nil, fmt.Errorf("получение версий: %w", err)
	}
	if versions == nil {
		versions = []*model.FileVersion{}
	}
	return versions, nil
}
