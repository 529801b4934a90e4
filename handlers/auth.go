package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/server"
	"github.com/tech-arch1tect/backyard/services/auth"
	"github.com/tech-arch1tect/backyard/services/session"
)

// Login answers with a session cookie, or with an OTP challenge and no
// cookie for accounts holding the second-factor role.
func (h *Handlers) Login(c echo.Context) error {
	var input auth.LoginInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}

	result, err := h.auth.Login(c.Request().Context(), input)
	if err != nil {
		return err
	}
	if result.Challenge != nil {
		return server.OK(c, result.Challenge)
	}

	c.SetCookie(h.sessions.Cookie(result.Session))
	return server.OK(c, result.Session)
}

func (h *Handlers) Refresh(c echo.Context) error {
	var input auth.RefreshInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}

	tokens, err := h.auth.Refresh(c.Request().Context(), input)
	if err != nil {
		return err
	}

	c.SetCookie(h.sessions.Cookie(tokens))
	return server.OK(c, tokens)
}

// Logout blacklists the presented token and expires the cookie.
func (h *Handlers) Logout(c echo.Context) error {
	value, ok := h.sessions.TokenFromRequest(c.Request())
	if !ok {
		return apierror.InvalidToken(session.MsgInvalidToken)
	}

	if err := h.auth.Logout(c.Request().Context(), value); err != nil {
		return err
	}

	c.SetCookie(h.sessions.ClearCookie())
	return server.OK(c, []string{auth.MsgLoggedOut})
}

func (h *Handlers) TokenDetails(c echo.Context) error {
	value, ok := h.sessions.TokenFromRequest(c.Request())
	if !ok {
		return apierror.InvalidToken(session.MsgInvalidOrExpired)
	}

	claims, err := h.auth.TokenDetails(value)
	if err != nil {
		return err
	}
	return server.OK(c, claims)
}

func (h *Handlers) RequestPasswordReset(c echo.Context) error {
	var input auth.PasswordResetInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}

	if err := h.auth.RequestPasswordReset(c.Request().Context(), input); err != nil {
		return err
	}
	return server.OK(c, messageResponse{Message: auth.MsgPasswordResetSent})
}

func (h *Handlers) ConfirmPasswordReset(c echo.Context) error {
	var input auth.PasswordResetConfirmInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}

	if err := h.auth.ConfirmPasswordReset(c.Request().Context(), input); err != nil {
		return err
	}
	return server.OK(c, messageResponse{Message: auth.MsgPasswordResetDone})
}
