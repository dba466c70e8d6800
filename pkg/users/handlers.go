package users

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shelfmark/shelfmark/pkg/auth"
	"github.com/shelfmark/shelfmark/pkg/errcodes"
)

type handler struct {
	userService *Service
}

// me returns the authenticated user's profile.
func (h *handler) me(c echo.Context) error {
	user, ok := auth.GetUserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	return errors.WithStack(c.JSON(http.StatusOK, user))
}

// changePassword replaces the authenticated user's password.
func (h *handler) changePassword(c echo.Context) error {
	ctx := c.Request().Context()

	params := ChangePasswordPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, ok := auth.GetUserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	err := h.userService.ChangePassword(ctx, user, params.CurrentPassword, params.NewPassword)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// deactivate disables the authenticated user's account and clears the
// session cookie.
func (h *handler) deactivate(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.GetUserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	err := h.userService.DeactivateUser(ctx, user)
	if err != nil {
		return errors.WithStack(err)
	}

	cookie := &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, map[string]string{"message": "Account deactivated"})
}
