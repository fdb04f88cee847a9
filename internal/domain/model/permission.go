package model

import (
	"fmt"
	"time"
)

// PermissionType — тип операции, на которую выдаётся разрешение.
type PermissionType string

const (
	PermissionRead   PermissionType = "read"
	PermissionWrite  PermissionType = "write"
	PermissionDelete PermissionType = "delete"
	PermissionShare  PermissionType = "share"
)

// ParsePermissionType проверяет строку и возвращает PermissionType.
func ParsePermissionType(s string) (PermissionType, error) {
	switch p := PermissionType(s); p {
	case PermissionRead, PermissionWrite, PermissionDelete, PermissionShare:
		return p, nil
	}
	return "", fmt.Errorf("недопустимый тип разрешения %q, допустимые: read, write, delete, share", s)
}

// FilePermission — явное разрешение (file, user, type). Уникально по тройке;
// повторная выдача обновляет GrantedBy, ExpiresAt и UpdatedAt.
type FilePermission struct {
	FileID         string         `json:"file_id"`
	UserID         int64          `json:"user_id"`
	PermissionType PermissionType `json:"permission_type"`
	GrantedBy      int64          `json:"granted_by"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsActive возвращает false для разрешения с истёкшим сроком.
func (p *FilePermission) IsActive(now time.Time) bool {
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}
