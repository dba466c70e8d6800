package users

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers user routes on a pre-configured group.
// The group is expected to already carry the auth middleware.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	userService := NewService(db)

	h := &handler{
		userService: userService,
	}

	g.GET("/me", h.me)
	g.POST("/me/password", h.changePassword)
	g.DELETE("/me", h.deactivate)
}
