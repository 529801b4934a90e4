package handlers

import (
	"github.com/labstack/echo/v4"
	authmw "github.com/tech-arch1tect/backyard/middleware/auth"
	"github.com/tech-arch1tect/backyard/server"
	"github.com/tech-arch1tect/backyard/services/auth"
	"github.com/tech-arch1tect/backyard/services/otp"
	"github.com/tech-arch1tect/backyard/services/users"
)

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handlers) SignUp(c echo.Context) error {
	var input auth.SignUpInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}

	challenge, err := h.auth.SignUp(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return server.OK(c, challenge)
}

// VerifyOTP stores the new session in the access cookie.
func (h *Handlers) VerifyOTP(c echo.Context) error {
	var input auth.VerifyOTPInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}

	verified, err := h.auth.VerifyOTP(c.Request().Context(), input)
	if err != nil {
		return err
	}

	c.SetCookie(h.sessions.Cookie(verified.Session))
	return server.OK(c, verified)
}

func (h *Handlers) ResendOTP(c echo.Context) error {
	var input auth.ResendOTPInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}

	if err := h.auth.ResendOTP(c.Request().Context(), input); err != nil {
		return err
	}
	return server.OK(c, messageResponse{Message: otp.MsgOTPSent})
}

func (h *Handlers) GetProfile(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	profile, err := h.auth.GetProfile(c.Request().Context(), authmw.GetUserID(c), id)
	if err != nil {
		return err
	}
	return server.OK(c, profile)
}

// UpdateProfile applies a partial update. Email and role are accepted in the
// body but never written.
func (h *Handlers) UpdateProfile(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var input profileRequest
	if err := bindJSON(c, &input); err != nil {
		return err
	}

	profile, err := h.auth.UpdateProfile(c.Request().Context(), authmw.GetUserID(c), id, input.ProfileInput())
	if err != nil {
		return err
	}
	return server.OK(c, profile)
}

type profileRequest struct {
	Email     *string       `json:"email"`
	FirstName *string       `json:"first_name"`
	LastName  *string       `json:"last_name"`
	Gender    *users.Gender `json:"gender"`
	Role      *[]uint       `json:"role"`
}

func (r profileRequest) ProfileInput() users.ProfileInput {
	return users.ProfileInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Gender:    r.Gender,
	}
}

type roleSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type userWithRoles struct {
	ID        uint          `json:"id"`
	Email     string        `json:"email"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	IsActive  bool          `json:"is_active"`
	Roles     []roleSummary `json:"roles"`
}

func (h *Handlers) UsersWithRoles(c echo.Context) error {
	list, err := h.users.ListWithRoles(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]userWithRoles, 0, len(list))
	for _, user := range list {
		roles := make([]roleSummary, 0, len(user.Roles))
		for _, role := range user.Roles {
			roles = append(roles, roleSummary{ID: role.ID, Name: role.Name})
		}
		out = append(out, userWithRoles{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			IsActive:  user.IsActive,
			Roles:     roles,
		})
	}
	return server.OK(c, out)
}
