package acl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MsgUserNotExist  = "User not Exist"
	MsgFieldRequired = "This field is required."
)

var ErrDatabaseRequired = errors.New("acl service requires a database")

type Service struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewService(db *gorm.DB, logger *logging.Service) *Service {
	return &Service{db: db, logger: logger.Named("acl")}
}

// WithDB returns a copy of the service bound to tx, so callers can compose
// ACL writes into a wider transaction.
func (s *Service) WithDB(tx *gorm.DB) *Service {
	clone := *s
	clone.db = tx
	return &clone
}

type ModuleInput struct {
	Name string `json:"name" validate:"required,max=64"`
}

type PermissionInput struct {
	Name     string `json:"name" validate:"required,max=64"`
	ModuleID *uint  `json:"module" validate:"required"`
}

type RoleInput struct {
	Name          string  `json:"name" validate:"required,max=64"`
	PermissionIDs *[]uint `json:"permissions"`
}

func notFound(entity string) *apierror.Error {
	return apierror.New(apierror.KindNotFound, http.StatusNotFound, fmt.Sprintf("No %s matches the given query.", entity))
}

func (s *Service) ListModules(ctx context.Context) ([]Module, error) {
	var modules []Module
	if err := s.db.WithContext(ctx).Order("id desc").Find(&modules).Error; err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	return modules, nil
}

func (s *Service) GetModule(ctx context.Context, id uint) (*Module, error) {
	var module Module
	if err := s.db.WithContext(ctx).First(&module, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Module")
		}
		return nil, fmt.Errorf("failed to load module: %w", err)
	}
	return &module, nil
}

func (s *Service) CreateModule(ctx context.Context, input ModuleInput) (*Module, error) {
	module := &Module{Name: normalizeName(input.Name)}
	if err := validName(module.Name); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(module).Error; err != nil {
		return nil, translateWriteError(err, "name", "module with this name already exists.")
	}

	s.logger.Info("module created", zap.Uint("module_id", module.ID), zap.String("name", module.Name))
	return module, nil
}

func (s *Service) UpdateModule(ctx context.Context, id uint, input ModuleInput) (*Module, error) {
	module, err := s.GetModule(ctx, id)
	if err != nil {
		return nil, err
	}

	module.Name = normalizeName(input.Name)
	if err := validName(module.Name); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(module).Error; err != nil {
		return nil, translateWriteError(err, "name", "module with this name already exists.")
	}
	return module, nil
}

// DeleteModule removes the module along with its permissions and every role binding to them.
func (s *Service) DeleteModule(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&Module{}, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("Module")
			}
			return fmt.Errorf("failed to load module: %w", err)
		}

		permissionIDs := tx.Model(&Permission{}).Select("id").Where("module_id = ?", id)
		if err := tx.Where("permission_id IN (?)", permissionIDs).Delete(&RolePermission{}).Error; err != nil {
			return fmt.Errorf("failed to unbind module permissions: %w", err)
		}
		if err := tx.Where("module_id = ?", id).Delete(&Permission{}).Error; err != nil {
			return fmt.Errorf("failed to delete module permissions: %w", err)
		}
		if err := tx.Delete(&Module{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete module: %w", err)
		}

		s.logger.Info("module deleted", zap.Uint("module_id", id))
		return nil
	})
}

func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	var permissions []Permission
	if err := s.db.WithContext(ctx).Preload("Module").Order("id desc").Find(&permissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	return permissions, nil
}

func (s *Service) GetPermission(ctx context.Context, id uint) (*Permission, error) {
	var permission Permission
	if err := s.db.WithContext(ctx).Preload("Module").First(&permission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Permission")
		}
		return nil, fmt.Errorf("failed to load permission: %w", err)
	}
	return &permission, nil
}

func (s *Service) CreatePermission(ctx context.Context, input PermissionInput) (*Permission, error) {
	permission := &Permission{Name: normalizeName(input.Name)}
	if err := s.applyPermissionInput(ctx, permission, input, true); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Omit("Module").Create(permission).Error; err != nil {
		return nil, translateWriteError(err, "non_field_errors", "The fields name, module must make a unique set.")
	}

	s.logger.Info("permission created",
		zap.Uint("permission_id", permission.ID),
		zap.String("name", permission.Name),
		zap.Uint("module_id", permission.ModuleID))
	return permission, nil
}

func (s *Service) UpdatePermission(ctx context.Context, id uint, input PermissionInput) (*Permission, error) {
	permission, err := s.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}

	permission.Name = normalizeName(input.Name)
	if err := s.applyPermissionInput(ctx, permission, input, false); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Omit("Module").Save(permission).Error; err != nil {
		return nil, translateWriteError(err, "non_field_errors", "The fields name, module must make a unique set.")
	}
	return permission, nil
}

func (s *Service) applyPermissionInput(ctx context.Context, permission *Permission, input PermissionInput, create bool) error {
	fields := apierror.FieldErrors{}
	if err := validName(permission.Name); err != nil {
		fields.Add("name", MsgFieldRequired)
	}

	switch {
	case input.ModuleID == nil && create:
		fields.Add("module", MsgFieldRequired)
	case input.ModuleID != nil:
		var module Module
		err := s.db.WithContext(ctx).First(&module, *input.ModuleID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			fields.Add("module", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *input.ModuleID))
		case err != nil:
			return fmt.Errorf("failed to load module: %w", err)
		default:
			permission.ModuleID = module.ID
			permission.Module = &module
		}
	}

	return fields.Err()
}

func (s *Service) DeletePermission(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&Permission{}, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("Permission")
			}
			return fmt.Errorf("failed to load permission: %w", err)
		}
		if err := tx.Where("permission_id = ?", id).Delete(&RolePermission{}).Error; err != nil {
			return fmt.Errorf("failed to unbind permission: %w", err)
		}
		if err := tx.Delete(&Permission{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete permission: %w", err)
		}

		s.logger.Info("permission deleted", zap.Uint("permission_id", id))
		return nil
	})
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := s.db.WithContext(ctx).Preload("Permissions.Module").Order("id desc").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

func (s *Service) GetRole(ctx context.Context, id uint) (*Role, error) {
	var role Role
	if err := s.db.WithContext(ctx).Preload("Permissions.Module").First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Role")
		}
		return nil, fmt.Errorf("failed to load role: %w", err)
	}
	return &role, nil
}

func (s *Service) CreateRole(ctx context.Context, input RoleInput) (*Role, error) {
	var role *Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role = &Role{Name: normalizeName(input.Name)}
		if err := validName(role.Name); err != nil {
			return err
		}

		var permissions []Permission
		if input.PermissionIDs != nil {
			var err error
			if permissions, err = loadPermissions(tx, *input.PermissionIDs); err != nil {
				return err
			}
		}

		if err := tx.Omit("Permissions").Create(role).Error; err != nil {
			return translateWriteError(err, "name", "role with this name already exists.")
		}
		if err := replaceRolePermissions(tx, role.ID, permissions); err != nil {
			return err
		}
		role.Permissions = permissions
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("role created", zap.Uint("role_id", role.ID), zap.String("name", role.Name), zap.Int("permissions", len(role.Permissions)))
	return role, nil
}

// UpdateRole renames the role and, when PermissionIDs is present, replaces its permission set.
func (s *Service) UpdateRole(ctx context.Context, id uint, input RoleInput) (*Role, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role Role
		if err := tx.First(&role, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("Role")
			}
			return fmt.Errorf("failed to load role: %w", err)
		}

		role.Name = normalizeName(input.Name)
		if err := validName(role.Name); err != nil {
			return err
		}
		if err := tx.Omit("Permissions").Save(&role).Error; err != nil {
			return translateWriteError(err, "name", "role with this name already exists.")
		}

		if input.PermissionIDs == nil {
			return nil
		}
		permissions, err := loadPermissions(tx, *input.PermissionIDs)
		if err != nil {
			return err
		}
		return replaceRolePermissions(tx, role.ID, permissions)
	})
	if err != nil {
		return nil, err
	}
	return s.GetRole(ctx, id)
}

func (s *Service) DeleteRole(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&Role{}, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("Role")
			}
			return fmt.Errorf("failed to load role: %w", err)
		}
		if err := tx.Where("role_id = ?", id).Delete(&RolePermission{}).Error; err != nil {
			return fmt.Errorf("failed to unbind role permissions: %w", err)
		}
		if err := tx.Where("role_id = ?", id).Delete(&UserRole{}).Error; err != nil {
			return fmt.Errorf("failed to unbind role users: %w", err)
		}
		if err := tx.Delete(&Role{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}

		s.logger.Info("role deleted", zap.Uint("role_id", id))
		return nil
	})
}

// AssignRoles replaces the user's whole role set. A nil roleIDs means the
// field was omitted and is rejected; an empty slice clears every role.
func (s *Service) AssignRoles(ctx context.Context, userID uint, roleIDs *[]uint) ([]Role, error) {
	var roles []Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users int64
		if err := tx.Table("users").Where("id = ?", userID).Count(&users).Error; err != nil {
			return fmt.Errorf("failed to look up user: %w", err)
		}
		if users == 0 {
			return apierror.NotFound(MsgUserNotExist)
		}

		if roleIDs == nil {
			return apierror.Field("role", MsgFieldRequired)
		}

		ids := uniqueIDs(*roleIDs)
		if len(ids) > 0 {
			if err := tx.Where("id IN ?", ids).Order("id").Find(&roles).Error; err != nil {
				return fmt.Errorf("failed to load roles: %w", err)
			}
			if missing := missingID(ids, roleIDsOf(roles)); missing != 0 {
				return apierror.Field("role", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", missing))
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&UserRole{}).Error; err != nil {
			return fmt.Errorf("failed to clear user roles: %w", err)
		}
		for _, role := range roles {
			if err := tx.Create(&UserRole{UserID: userID, RoleID: role.ID}).Error; err != nil {
				return fmt.Errorf("failed to bind role: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if roles == nil {
		roles = []Role{}
	}
	s.logger.Info("user roles replaced", logging.UserID(userID), zap.Int("roles", len(roles)))
	return roles, nil
}

func (s *Service) RolesForUser(ctx context.Context, userID uint) ([]Role, error) {
	var roles []Role
	err := s.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.id").
		Find(&roles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}
	return roles, nil
}

func (s *Service) HasRole(ctx context.Context, userID uint, roleName string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("user_roles").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ? AND roles.name = ?", userID, normalizeName(roleName)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return count > 0, nil
}

// HasPermission reports whether any role bound to the user grants the named
// permission inside the named module. It is recomputed on every call.
func (s *Service) HasPermission(ctx context.Context, userID uint, moduleName, permissionName string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("user_roles").
		Joins("JOIN role_permissions ON role_permissions.role_id = user_roles.role_id").
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Joins("JOIN modules ON modules.id = permissions.module_id").
		Where("user_roles.user_id = ? AND modules.name = ? AND permissions.name = ?",
			userID, normalizeName(moduleName), normalizeName(permissionName)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return count > 0, nil
}

func loadPermissions(tx *gorm.DB, requested []uint) ([]Permission, error) {
	ids := uniqueIDs(requested)
	if len(ids) == 0 {
		return []Permission{}, nil
	}

	var permissions []Permission
	if err := tx.Preload("Module").Where("id IN ?", ids).Order("id").Find(&permissions).Error; err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}

	found := make([]uint, len(permissions))
	for i, p := range permissions {
		found[i] = p.ID
	}
	if missing := missingID(ids, found); missing != 0 {
		return nil, apierror.Field("permissions", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", missing))
	}
	return permissions, nil
}

func replaceRolePermissions(tx *gorm.DB, roleID uint, permissions []Permission) error {
	if err := tx.Where("role_id = ?", roleID).Delete(&RolePermission{}).Error; err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}
	for _, p := range permissions {
		if err := tx.Create(&RolePermission{RoleID: roleID, PermissionID: p.ID}).Error; err != nil {
			return fmt.Errorf("failed to bind permission: %w", err)
		}
	}
	return nil
}

func validName(name string) error {
	switch {
	case name == "":
		return apierror.Field("name", MsgFieldRequired)
	case len(name) > nameMaxLength:
		return apierror.Field("name", fmt.Sprintf("Ensure this field has no more than %d characters.", nameMaxLength))
	}
	return nil
}

func translateWriteError(err error, field, duplicateMsg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apierror.Field(field, duplicateMsg)
	}
	return fmt.Errorf("failed to write record: %w", err)
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// missingID returns the first requested id absent from found, or 0.
func missingID(requested, found []uint) uint {
	present := make(map[uint]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	for _, id := range requested {
		if !present[id] {
			return id
		}
	}
	return 0
}

func roleIDsOf(roles []Role) []uint {
	ids := make([]uint, len(roles))
	for i, r := range roles {
		ids[i] = r.ID
	}
	return ids
}
