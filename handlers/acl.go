package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/backyard/server"
	"github.com/tech-arch1tect/backyard/services/acl"
)

func (h *Handlers) ListModules(c echo.Context) error {
	modules, err := h.acl.ListModules(c.Request().Context())
	if err != nil {
		return err
	}
	return server.OK(c, modules)
}

func (h *Handlers) GetModule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	module, err := h.acl.GetModule(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return server.OK(c, module)
}

func (h *Handlers) CreateModule(c echo.Context) error {
	var input acl.ModuleInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}
	module, err := h.acl.CreateModule(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return server.Success(c, http.StatusCreated, module)
}

func (h *Handlers) UpdateModule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var input acl.ModuleInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}
	module, err := h.acl.UpdateModule(c.Request().Context(), id, input)
	if err != nil {
		return err
	}
	return server.OK(c, module)
}

func (h *Handlers) DeleteModule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.acl.DeleteModule(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) ListPermissions(c echo.Context) error {
	permissions, err := h.acl.ListPermissions(c.Request().Context())
	if err != nil {
		return err
	}
	return server.OK(c, permissions)
}

func (h *Handlers) GetPermission(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	permission, err := h.acl.GetPermission(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return server.OK(c, permission)
}

func (h *Handlers) CreatePermission(c echo.Context) error {
	var input acl.PermissionInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}
	permission, err := h.acl.CreatePermission(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return server.Success(c, http.StatusCreated, permission)
}

func (h *Handlers) UpdatePermission(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var input acl.PermissionInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}
	permission, err := h.acl.UpdatePermission(c.Request().Context(), id, input)
	if err != nil {
		return err
	}
	return server.OK(c, permission)
}

func (h *Handlers) DeletePermission(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.acl.DeletePermission(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) ListRoles(c echo.Context) error {
	roles, err := h.acl.ListRoles(c.Request().Context())
	if err != nil {
		return err
	}
	return server.OK(c, roles)
}

func (h *Handlers) GetRole(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	role, err := h.acl.GetRole(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return server.OK(c, role)
}

func (h *Handlers) CreateRole(c echo.Context) error {
	var input acl.RoleInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}
	role, err := h.acl.CreateRole(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return server.Success(c, http.StatusCreated, role)
}

func (h *Handlers) UpdateRole(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var input acl.RoleInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}
	role, err := h.acl.UpdateRole(c.Request().Context(), id, input)
	if err != nil {
		return err
	}
	return server.OK(c, role)
}

func (h *Handlers) DeleteRole(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.acl.DeleteRole(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// roleAssignment distinguishes an omitted role list (nil) from an empty one.
type roleAssignment struct {
	Role *[]uint `json:"role"`
}

func (h *Handlers) AssignRoles(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var input roleAssignment
	if err := bindJSON(c, &input); err != nil {
		return err
	}

	roles, err := h.acl.AssignRoles(c.Request().Context(), id, input.Role)
	if err != nil {
		return err
	}

	ids := make([]uint, 0, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ID)
	}
	return server.OK(c, roleAssignment{Role: &ids})
}
