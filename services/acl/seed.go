package acl

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// SeedFile describes modules, their permissions and the roles granting them.
//
//	modules:
//	  accounts: [view, edit]
//	roles:
//	  - name: admin
//	    permissions: [accounts.view, accounts.edit]
//	  - name: 2fa
type SeedFile struct {
	Modules map[string][]string `yaml:"modules"`
	Roles   []SeedRole          `yaml:"roles"`
}

type SeedRole struct {
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

func LoadSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

type SeedResult struct {
	Modules     int
	Permissions int
	Roles       int
}

// Seed creates whatever the seed describes and is missing. Existing rows are
// reused and existing role grants are kept, so running it twice is a no-op.
func (s *Service) Seed(ctx context.Context, seed *SeedFile) (*SeedResult, error) {
	result := &SeedResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		permissionsByKey := map[string]Permission{}

		for moduleName, permissionNames := range seed.Modules {
			module := Module{Name: normalizeName(moduleName)}
			created, err := firstOrCreate(tx, &module, "name = ?", module.Name)
			if err != nil {
				return fmt.Errorf("failed to seed module %q: %w", moduleName, err)
			}
			if created {
				result.Modules++
			}

			for _, permissionName := range permissionNames {
				permission := Permission{Name: normalizeName(permissionName), ModuleID: module.ID}
				created, err := firstOrCreate(tx, &permission, "name = ? AND module_id = ?", permission.Name, module.ID)
				if err != nil {
					return fmt.Errorf("failed to seed permission %q: %w", permissionName, err)
				}
				if created {
					result.Permissions++
				}
				permissionsByKey[module.Name+"."+permission.Name] = permission
			}
		}

		for _, seedRole := range seed.Roles {
			role := Role{Name: normalizeName(seedRole.Name)}
			created, err := firstOrCreate(tx, &role, "name = ?", role.Name)
			if err != nil {
				return fmt.Errorf("failed to seed role %q: %w", seedRole.Name, err)
			}
			if created {
				result.Roles++
			}

			for _, key := range seedRole.Permissions {
				permission, ok := permissionsByKey[normalizeName(key)]
				if !ok {
					return fmt.Errorf("role %q references unknown permission %q", seedRole.Name, key)
				}
				grant := RolePermission{RoleID: role.ID, PermissionID: permission.ID}
				if _, err := firstOrCreate(tx, &grant, "role_id = ? AND permission_id = ?", role.ID, permission.ID); err != nil {
					return fmt.Errorf("failed to grant %q to role %q: %w", key, seedRole.Name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("acl seeded",
		zap.Int("modules", result.Modules),
		zap.Int("permissions", result.Permissions),
		zap.Int("roles", result.Roles))
	return result, nil
}

func firstOrCreate(tx *gorm.DB, dest any, query string, args ...any) (bool, error) {
	err := tx.Where(query, args...).First(dest).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	return true, tx.Create(dest).Error
}
