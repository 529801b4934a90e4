package acl

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const nameMaxLength = 64

type Module struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:64;uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Module) BeforeSave(tx *gorm.DB) error {
	m.Name = normalizeName(m.Name)
	return nil
}

type Permission struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:64;not null;uniqueIndex:idx_permission_name_module"`
	ModuleID  uint      `json:"module_id" gorm:"not null;uniqueIndex:idx_permission_name_module"`
	Module    *Module   `json:"module,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Permission) BeforeSave(tx *gorm.DB) error {
	p.Name = normalizeName(p.Name)
	return nil
}

type Role struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"size:64;uniqueIndex;not null"`
	Permissions []Permission `json:"permissions" gorm:"many2many:role_permissions;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (r *Role) BeforeSave(tx *gorm.DB) error {
	r.Name = normalizeName(r.Name)
	return nil
}

// UserRole is the user_roles join row; the composite key keeps each pairing unique.
type UserRole struct {
	UserID uint `gorm:"primaryKey;autoIncrement:false"`
	RoleID uint `gorm:"primaryKey;autoIncrement:false"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// RolePermission is the role_permissions join row.
type RolePermission struct {
	RoleID       uint `gorm:"primaryKey;autoIncrement:false"`
	PermissionID uint `gorm:"primaryKey;autoIncrement:false"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Models lists every table owned by this package, in migration order.
func Models() []any {
	return []any{&Module{}, &Permission{}, &Role{}, &RolePermission{}, &UserRole{}}
}
