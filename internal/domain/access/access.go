// Пакет access — проверка доступа пользователя к файлу.
// Порядок: владелец → публичное чтение → явное неистёкшее разрешение.
// Всё остальное запрещено.
package access

import (
	"context"
	"time"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// Decision — результат проверки доступа.
type Decision int

const (
	// Denied — доступ запрещён (по умолчанию).
	Denied Decision = iota
	// AllowedOwner — пользователь является владельцем файла.
	AllowedOwner
	// AllowedPublic — чтение публичного файла.
	AllowedPublic
	// AllowedGrant — действует явное разрешение.
	AllowedGrant
)

// Allowed возвращает true для любого разрешающего решения.
func (d Decision) Allowed() bool {
	return d != Denied
}

// String возвращает имя решения для логов.
func (d Decision) String() string {
	switch d {
	case AllowedOwner:
		return "owner"
	case AllowedPublic:
		return "public"
	case AllowedGrant:
		return "grant"
	default:
		return "denied"
	}
}

// GrantLookup ищет явное разрешение (file, user, type).
// Отсутствие разрешения — (nil, nil).
type GrantLookup interface {
	GetPermission(ctx context.Context, fileID string, userID int64, perm model.PermissionType) (*model.FilePermission, error)
}

// Check применяет алгоритм проверки доступа. Владелец и публичное чтение
// не требуют обращения к хранилищу разрешений.
func Check(
	ctx context.Context,
	grants GrantLookup,
	file *model.FileRecord,
	userID int64,
	perm model.PermissionType,
	now time.Time,
) (Decision, error) {
	if file.IsOwner(userID) {
		return AllowedOwner, nil
	}
	if file.IsPublic && perm == model.PermissionRead {
		return AllowedPublic, nil
	}

	grant, err := grants.GetPermission(ctx, file.ID, userID, perm)
	if err != nil {
		return Denied, err
	}
	if grant == nil || !grant.IsActive(now) {
		return Denied, nil
	}
	return AllowedGrant, nil
}
