package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/repository"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/provider"
)

// --- In-memory репозитории ---

// memStore — общее состояние in-memory репозиториев.
type memStore struct {
	mu       sync.Mutex
	files    map[string]*model.FileRecord
	perms    map[permKey]*model.FilePermission
	logs     []*model.FileAccessLog
	versions map[string][]*model.FileVersion

	// Хуки ошибок
	createErr error
	appendErr error
	purgeErr  map[string]error
	getCalls  int
}

type permKey struct {
	fileID string
	userID int64
	perm   model.PermissionType
}

func newMemStore() *memStore {
	return &memStore{
		files:    map[string]*model.FileRecord{},
		perms:    map[permKey]*model.FilePermission{},
		versions: map[string][]*model.FileVersion{},
		purgeErr: map[string]error{},
	}
}

// auditEntries возвращает копию журнала аудита.
func (m *memStore) auditEntries() []model.FileAccessLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.FileAccessLog, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, *l)
	}
	return out
}

// lastAudit возвращает последнюю запись журнала.
func (m *memStore) lastAudit(t *testing.T) model.FileAccessLog {
	t.Helper()
	entries := m.auditEntries()
	require.NotEmpty(t, entries, "журнал аудита пуст")
	return entries[len(entries)-1]
}

// put кладёт запись файла напрямую.
func (m *memStore) put(f *model.FileRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = f.Clone()
}

// fileRepo

type memFileRepo struct{ m *memStore }

func (r *memFileRepo) Create(_ context.Context, f *model.FileRecord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.createErr != nil {
		return r.m.createErr
	}
	if _, ok := r.m.files[f.ID]; ok {
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	r.m.files[f.ID] = f.Clone()
	return nil
}

func (r *memFileRepo) GetByID(_ context.Context, id string) (*model.FileRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.getCalls++
	f, ok := r.m.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f.Clone(), nil
}

func (r *memFileRepo) Search(_ context.Context, p repository.SearchParams) ([]*model.FileRecord, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	deleted := p.IsDeleted != nil && *p.IsDeleted
	var matched []*model.FileRecord
	for _, f := range r.m.files {
		if f.IsDeleted != deleted {
			continue
		}
		if p.UploadedBy != nil && f.UploadedBy != *p.UploadedBy {
			continue
		}
		if p.Category != nil && f.FileCategory != *p.Category {
			continue
		}
		if !containsAll(f.Tags, p.Tags) {
			continue
		}
		matched = append(matched, f.Clone())
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if p.Offset >= total {
		return nil, total, nil
	}
	end := min(p.Offset+p.Limit, total)
	return matched[p.Offset:end], total, nil
}

func (r *memFileRepo) SoftDelete(_ context.Context, id string, deletedBy int64, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	f, ok := r.m.files[id]
	if !ok || f.IsDeleted {
		return repository.ErrNotFound
	}
	f.IsDeleted = true
	f.DeletedAt = &at
	f.DeletedBy = &deletedBy
	return nil
}

func (r *memFileRepo) TouchAccessed(_ context.Context, id string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if f, ok := r.m.files[id]; ok {
		f.LastAccessedAt = &at
	}
	return nil
}

func (r *memFileRepo) ListPurgeable(_ context.Context, now, deletedBefore time.Time, limit int) ([]*model.FileRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*model.FileRecord
	for _, f := range r.m.files {
		expired := f.ExpiresAt != nil && f.ExpiresAt.Before(now)
		stale := f.IsDeleted && f.DeletedAt != nil && f.DeletedAt.Before(deletedBefore)
		if expired || stale {
			out = append(out, f.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memFileRepo) HardDelete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.files[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.m.files, id)
	delete(r.m.versions, id)
	for k := range r.m.perms {
		if k.fileID == id {
			delete(r.m.perms, k)
		}
	}
	return nil
}

func (r *memFileRepo) ListLocalPaths(_ context.Context) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []string
	for _, f := range r.m.files {
		if f.StorageProvider != model.ProviderLocal {
			continue
		}
		out = append(out, f.FilePath)
		for _, v := range r.m.versions[f.ID] {
			out = append(out, v.FilePath)
		}
	}
	return out, nil
}

func (r *memFileRepo) Analytics(_ context.Context, userID *int64, since time.Time) (*model.FileAnalytics, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a := &model.FileAnalytics{ByCategory: map[string]int64{}, ByType: map[string]int64{}}
	for _, f := range r.m.files {
		if f.IsDeleted || (userID != nil && f.UploadedBy != *userID) {
			continue
		}
		a.TotalFiles++
		a.TotalSize += f.FileSize
		a.ByCategory[f.FileCategory]++
		a.ByType[string(f.FileType)]++
		if !f.CreatedAt.Before(since) {
			a.UploadTrends = append(a.UploadTrends, model.UploadTrend{
				Date: f.CreatedAt.Format(time.DateOnly), Count: 1, Size: f.FileSize,
			})
		}
	}
	return a, nil
}

// permissionRepo

type memPermRepo struct{ m *memStore }

func (r *memPermRepo) Upsert(_ context.Context, p *model.FilePermission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.files[p.FileID]; !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	k := permKey{p.FileID, p.UserID, p.PermissionType}
	if old, ok := r.m.perms[k]; ok {
		p.CreatedAt = old.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	cp := *p
	r.m.perms[k] = &cp
	return nil
}

func (r *memPermRepo) GetPermission(
	_ context.Context, fileID string, userID int64, perm model.PermissionType,
) (*model.FilePermission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.perms[permKey{fileID, userID, perm}]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memPermRepo) Delete(_ context.Context, fileID string, userID int64, perm model.PermissionType) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.perms, permKey{fileID, userID, perm})
	return nil
}

func (r *memPermRepo) ListByFile(_ context.Context, fileID string) ([]*model.FilePermission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*model.FilePermission
	for k, p := range r.m.perms {
		if k.fileID == fileID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// accessLogRepo

type memAuditRepo struct{ m *memStore }

func (r *memAuditRepo) Append(_ context.Context, e *model.FileAccessLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.appendErr != nil {
		return r.m.appendErr
	}
	e.ID = int64(len(r.m.logs) + 1)
	cp := *e
	r.m.logs = append(r.m.logs, &cp)
	return nil
}

func (r *memAuditRepo) ListByFile(_ context.Context, fileID string, limit int) ([]*model.FileAccessLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*model.FileAccessLog
	for i := len(r.m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if l := r.m.logs[i]; l.FileID != nil && *l.FileID == fileID {
			out = append(out, l)
		}
	}
	return out, nil
}

// versionRepo

type memVersionRepo struct{ m *memStore }

func (r *memVersionRepo) Create(_ context.Context, v *model.FileVersion) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.files[v.FileID]; !ok {
		return repository.ErrNotFound
	}
	v.VersionNumber = len(r.m.versions[v.FileID]) + 2
	v.ID = int64(v.VersionNumber)
	v.CreatedAt = time.Now().UTC()
	cp := *v
	r.m.versions[v.FileID] = append(r.m.versions[v.FileID], &cp)
	return nil
}

func (r *memVersionRepo) GetByNumber(_ context.Context, fileID string, number int) (*model.FileVersion, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, v := range r.m.versions[fileID] {
		if v.VersionNumber == number {
			cp := *v
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memVersionRepo) ListByFile(_ context.Context, fileID string) ([]*model.FileVersion, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := slices.Clone(r.m.versions[fileID])
	slices.Reverse(out)
	return out, nil
}

// memPurger — RecordPurger поверх memStore.
type memPurger struct{ m *memStore }

func (p *memPurger) Purge(ctx context.Context, fileID string, entry *model.FileAccessLog) error {
	p.m.mu.Lock()
	err := p.m.purgeErr[fileID]
	p.m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := (&memFileRepo{p.m}).HardDelete(ctx, fileID); err != nil {
		return err
	}
	return (&memAuditRepo{p.m}).Append(ctx, entry)
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

// --- Провайдер с ошибками ---

// failingProvider оборачивает провайдер и возвращает ошибки по требованию.
type failingProvider struct {
	provider.Provider
	uploadErr   error
	downloadErr error
	deleteErr   map[string]error
}

func (p *failingProvider) Upload(ctx context.Context, in provider.UploadInput) (*provider.UploadResult, error) {
	if p.uploadErr != nil {
		return nil, p.uploadErr
	}
	return p.Provider.Upload(ctx, in)
}

func (p *failingProvider) Download(ctx context.Context, key string) ([]byte, error) {
	if p.downloadErr != nil {
		return nil, p.downloadErr
	}
	return p.Provider.Download(ctx, key)
}

func (p *failingProvider) Delete(ctx context.Context, key string) error {
	if err := p.deleteErr[key]; err != nil {
		return err
	}
	return p.Provider.Delete(ctx, key)
}

var errBackend = errors.New("бэкенд недоступен")

// --- Сборка сервиса ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv — FileManager поверх in-memory репозиториев и локального провайдера.
type testEnv struct {
	fm    *FileManager
	store *memStore
	local *provider.LocalProvider
	reg   *provider.Registry
}

func newTestEnv(t *testing.T, providers ...provider.Provider) *testEnv {
	t.Helper()

	local, err := provider.NewLocal(t.TempDir(), "/api/v1/files")
	require.NoError(t, err)

	if len(providers) == 0 {
		providers = []provider.Provider{local}
	}
	reg, err := provider.NewRegistry(model.ProviderLocal, providers...)
	require.NoError(t, err)

	store := newMemStore()
	fm := NewFileManager(
		&memFileRepo{store}, &memPermRepo{store}, &memAuditRepo{store}, &memVersionRepo{store},
		reg,
		NewFileCache(100, time.Minute),
		FileManagerConfig{
			MaxFileSize:       10 << 20,
			AllowedExtensions: []string{"pdf", "jpg", "jpeg", "png", "txt", "csv"},
			PresignTTL:        15 * time.Minute,
			ThumbnailSize:     64,
		},
		testLogger(),
	)
	return &testEnv{fm: fm, store: store, local: local, reg: reg}
}

// upload загружает файл и проверяет успех.
func (e *testEnv) upload(t *testing.T, req UploadRequest, user int64) *FileUploadResponse {
	t.Helper()
	resp, err := e.fm.UploadFile(context.Background(), req, user)
	require.NoError(t, err)
	return resp
}

func ptr[T any](v T) *T {
	return &v
}
