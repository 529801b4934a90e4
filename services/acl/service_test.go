package acl

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/testutils"
	"gorm.io/gorm"
)

type testUser struct {
	ID    uint `gorm:"primaryKey"`
	Email string
}

func (testUser) TableName() string {
	return "users"
}

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutils.SetupTestDB(t, append([]any{&testUser{}}, Models()...)...)
	return NewService(db, nil), db
}

func createUser(t *testing.T, db *gorm.DB, email string) uint {
	t.Helper()
	user := testUser{Email: email}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

func ids(values ...uint) *[]uint {
	return &values
}

func requireKind(t *testing.T, err error, kind apierror.Kind) *apierror.Error {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := apierror.As(err)
	require.True(t, ok, "expected apierror, got %v", err)
	assert.Equal(t, kind, apiErr.Kind)
	return apiErr
}

func TestService_Modules(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	t.Run("create lowercases name", func(t *testing.T) {
		module, err := svc.CreateModule(ctx, ModuleInput{Name: "  Accounts "})

		require.NoError(t, err)
		assert.Equal(t, "accounts", module.Name)
	})

	t.Run("duplicate rejected case-insensitively", func(t *testing.T) {
		_, err := svc.CreateModule(ctx, ModuleInput{Name: "ACCOUNTS"})

		apiErr := requireKind(t, err, apierror.KindValidation)
		assert.Contains(t, apiErr.Fields, "name")
	})

	t.Run("empty name rejected", func(t *testing.T) {
		_, err := svc.CreateModule(ctx, ModuleInput{Name: "  "})

		requireKind(t, err, apierror.KindValidation)
	})

	t.Run("get missing module answers 404", func(t *testing.T) {
		_, err := svc.GetModule(ctx, 9999)

		apiErr := requireKind(t, err, apierror.KindNotFound)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})

	t.Run("update and list", func(t *testing.T) {
		module, err := svc.CreateModule(ctx, ModuleInput{Name: "reports"})
		require.NoError(t, err)

		updated, err := svc.UpdateModule(ctx, module.ID, ModuleInput{Name: "Analytics"})
		require.NoError(t, err)
		assert.Equal(t, "analytics", updated.Name)

		modules, err := svc.ListModules(ctx)
		require.NoError(t, err)
		require.Len(t, modules, 2)
		assert.Equal(t, "analytics", modules[0].Name, "newest first")
	})
}

func TestService_Permissions(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	accounts, err := svc.CreateModule(ctx, ModuleInput{Name: "accounts"})
	require.NoError(t, err)
	reports, err := svc.CreateModule(ctx, ModuleInput{Name: "reports"})
	require.NoError(t, err)

	t.Run("create requires module", func(t *testing.T) {
		_, err := svc.CreatePermission(ctx, PermissionInput{Name: "view"})

		apiErr := requireKind(t, err, apierror.KindValidation)
		assert.Equal(t, []string{MsgFieldRequired}, apiErr.Fields["module"])
	})

	t.Run("create rejects unknown module", func(t *testing.T) {
		missing := uint(4242)
		_, err := svc.CreatePermission(ctx, PermissionInput{Name: "view", ModuleID: &missing})

		apiErr := requireKind(t, err, apierror.KindValidation)
		assert.Contains(t, apiErr.Fields["module"][0], "4242")
	})

	t.Run("unique per module, case-insensitively", func(t *testing.T) {
		first, err := svc.CreatePermission(ctx, PermissionInput{Name: "View", ModuleID: &accounts.ID})
		require.NoError(t, err)
		assert.Equal(t, "view", first.Name)
		assert.Equal(t, "accounts", first.Module.Name)

		_, err = svc.CreatePermission(ctx, PermissionInput{Name: "VIEW", ModuleID: &accounts.ID})
		requireKind(t, err, apierror.KindValidation)

		other, err := svc.CreatePermission(ctx, PermissionInput{Name: "view", ModuleID: &reports.ID})
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, other.ID)
	})

	t.Run("update keeps module when omitted", func(t *testing.T) {
		created, err := svc.CreatePermission(ctx, PermissionInput{Name: "edit", ModuleID: &accounts.ID})
		require.NoError(t, err)

		updated, err := svc.UpdatePermission(ctx, created.ID, PermissionInput{Name: "Write"})
		require.NoError(t, err)
		assert.Equal(t, "write", updated.Name)
		assert.Equal(t, accounts.ID, updated.ModuleID)
	})

	t.Run("delete missing permission", func(t *testing.T) {
		requireKind(t, svc.DeletePermission(ctx, 9999), apierror.KindNotFound)
	})
}

func TestService_Roles(t *testing.T) {
	ctx := context.Background()
	svc, db := setupService(t)

	module, err := svc.CreateModule(ctx, ModuleInput{Name: "accounts"})
	require.NoError(t, err)
	view, err := svc.CreatePermission(ctx, PermissionInput{Name: "view", ModuleID: &module.ID})
	require.NoError(t, err)
	edit, err := svc.CreatePermission(ctx, PermissionInput{Name: "edit", ModuleID: &module.ID})
	require.NoError(t, err)

	t.Run("create with permissions", func(t *testing.T) {
		role, err := svc.CreateRole(ctx, RoleInput{Name: "Editor", PermissionIDs: ids(view.ID, edit.ID, view.ID)})

		require.NoError(t, err)
		assert.Equal(t, "editor", role.Name)
		assert.Len(t, role.Permissions, 2)

		var bindings int64
		require.NoError(t, db.Model(&RolePermission{}).Where("role_id = ?", role.ID).Count(&bindings).Error)
		assert.EqualValues(t, 2, bindings)
	})

	t.Run("duplicate name rejected case-insensitively", func(t *testing.T) {
		_, err := svc.CreateRole(ctx, RoleInput{Name: "EDITOR"})

		apiErr := requireKind(t, err, apierror.KindValidation)
		assert.Contains(t, apiErr.Fields, "name")
	})

	t.Run("unknown permission rejected atomically", func(t *testing.T) {
		_, err := svc.CreateRole(ctx, RoleInput{Name: "ghost", PermissionIDs: ids(view.ID, 777)})
		requireKind(t, err, apierror.KindValidation)

		var count int64
		require.NoError(t, db.Model(&Role{}).Where("name = ?", "ghost").Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("update replaces permissions only when given", func(t *testing.T) {
		role, err := svc.CreateRole(ctx, RoleInput{Name: "viewer", PermissionIDs: ids(view.ID)})
		require.NoError(t, err)

		renamed, err := svc.UpdateRole(ctx, role.ID, RoleInput{Name: "reader"})
		require.NoError(t, err)
		assert.Equal(t, "reader", renamed.Name)
		require.Len(t, renamed.Permissions, 1)

		replaced, err := svc.UpdateRole(ctx, role.ID, RoleInput{Name: "reader", PermissionIDs: ids(edit.ID)})
		require.NoError(t, err)
		require.Len(t, replaced.Permissions, 1)
		assert.Equal(t, edit.ID, replaced.Permissions[0].ID)
		assert.Equal(t, "accounts", replaced.Permissions[0].Module.Name)
	})
}

func TestService_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	svc, db := setupService(t)
	userID := createUser(t, db, "a@b.com")

	module, err := svc.CreateModule(ctx, ModuleInput{Name: "accounts"})
	require.NoError(t, err)
	view, err := svc.CreatePermission(ctx, PermissionInput{Name: "view", ModuleID: &module.ID})
	require.NoError(t, err)
	role, err := svc.CreateRole(ctx, RoleInput{Name: "viewer", PermissionIDs: ids(view.ID)})
	require.NoError(t, err)
	_, err = svc.AssignRoles(ctx, userID, ids(role.ID))
	require.NoError(t, err)

	t.Run("module delete removes permissions and grants", func(t *testing.T) {
		require.NoError(t, svc.DeleteModule(ctx, module.ID))

		var permissions, grants int64
		require.NoError(t, db.Model(&Permission{}).Count(&permissions).Error)
		require.NoError(t, db.Model(&RolePermission{}).Count(&grants).Error)
		assert.Zero(t, permissions)
		assert.Zero(t, grants)

		ok, err := svc.HasPermission(ctx, userID, "accounts", "view")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("role delete removes user bindings", func(t *testing.T) {
		require.NoError(t, svc.DeleteRole(ctx, role.ID))

		var bindings int64
		require.NoError(t, db.Model(&UserRole{}).Count(&bindings).Error)
		assert.Zero(t, bindings)
	})

	t.Run("deleting twice answers not found", func(t *testing.T) {
		requireKind(t, svc.DeleteRole(ctx, role.ID), apierror.KindNotFound)
		requireKind(t, svc.DeleteModule(ctx, module.ID), apierror.KindNotFound)
	})
}

func TestService_AssignRoles(t *testing.T) {
	ctx := context.Background()
	svc, db := setupService(t)
	userID := createUser(t, db, "a@b.com")

	admin, err := svc.CreateRole(ctx, RoleInput{Name: "admin"})
	require.NoError(t, err)
	twoFactor, err := svc.CreateRole(ctx, RoleInput{Name: "2FA"})
	require.NoError(t, err)

	t.Run("replaces the whole set", func(t *testing.T) {
		roles, err := svc.AssignRoles(ctx, userID, ids(admin.ID, twoFactor.ID))
		require.NoError(t, err)
		assert.Len(t, roles, 2)

		roles, err = svc.AssignRoles(ctx, userID, ids(admin.ID))
		require.NoError(t, err)
		require.Len(t, roles, 1)

		current, err := svc.RolesForUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, current, 1)
		assert.Equal(t, "admin", current[0].Name)
	})

	t.Run("empty list clears roles", func(t *testing.T) {
		roles, err := svc.AssignRoles(ctx, userID, ids())
		require.NoError(t, err)
		assert.Empty(t, roles)

		current, err := svc.RolesForUser(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, current, 0)
	})

	t.Run("omitted field rejected", func(t *testing.T) {
		_, err := svc.AssignRoles(ctx, userID, nil)

		apiErr := requireKind(t, err, apierror.KindValidation)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Equal(t, []string{MsgFieldRequired}, apiErr.Fields["role"])
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.AssignRoles(ctx, 9999, ids(admin.ID))

		apiErr := requireKind(t, err, apierror.KindNotFound)
		assert.Equal(t, []string{MsgUserNotExist}, apiErr.Messages)
	})

	t.Run("unknown role leaves previous set intact", func(t *testing.T) {
		_, err := svc.AssignRoles(ctx, userID, ids(admin.ID))
		require.NoError(t, err)

		_, err = svc.AssignRoles(ctx, userID, ids(twoFactor.ID, 555))
		requireKind(t, err, apierror.KindValidation)

		current, err := svc.RolesForUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, current, 1)
		assert.Equal(t, admin.ID, current[0].ID)
	})
}

func TestService_HasRoleAndPermission(t *testing.T) {
	ctx := context.Background()
	svc, db := setupService(t)
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")

	module, err := svc.CreateModule(ctx, ModuleInput{Name: "accounts"})
	require.NoError(t, err)
	other, err := svc.CreateModule(ctx, ModuleInput{Name: "reports"})
	require.NoError(t, err)
	view, err := svc.CreatePermission(ctx, PermissionInput{Name: "view", ModuleID: &module.ID})
	require.NoError(t, err)
	_, err = svc.CreatePermission(ctx, PermissionInput{Name: "view", ModuleID: &other.ID})
	require.NoError(t, err)
	viewer, err := svc.CreateRole(ctx, RoleInput{Name: "2fa", PermissionIDs: ids(view.ID)})
	require.NoError(t, err)
	_, err = svc.AssignRoles(ctx, alice, ids(viewer.ID))
	require.NoError(t, err)

	tests := []struct {
		name       string
		userID     uint
		module     string
		permission string
		want       bool
	}{
		{"granted", alice, "accounts", "view", true},
		{"case-insensitive", alice, "Accounts", "VIEW", true},
		{"same name other module", alice, "reports", "view", false},
		{"unknown permission", alice, "accounts", "delete", false},
		{"user without roles", bob, "accounts", "view", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.HasPermission(ctx, tt.userID, tt.module, tt.permission)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("has role", func(t *testing.T) {
		ok, err := svc.HasRole(ctx, alice, "2FA")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = svc.HasRole(ctx, bob, "2fa")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestService_WithDB(t *testing.T) {
	ctx := context.Background()
	svc, db := setupService(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.WithDB(tx).CreateModule(ctx, ModuleInput{Name: "rolled-back"})
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	modules, err := svc.ListModules(ctx)
	require.NoError(t, err)
	assert.Empty(t, modules)
}
