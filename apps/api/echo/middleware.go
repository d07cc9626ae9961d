package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/thesisflow/core/user"
)

// adminMiddleware lets admins through; with roles, only admins holding one of them.
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// examinerMiddleware only lets the examination office through.
func examinerMiddleware() echo.MiddlewareFunc {
	return adminMiddleware(user.RoleAdminExaminer, user.RoleAdminOwner)
}

// ctxUserMiddleware loads the authenticated user, rejecting deactivated accounts.
func ctxUserMiddleware(svc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextUser(ctx, svc); err != nil {
				return errors.Wrap(err, "getting context user")
			}
			return next(ctx)
		}
	}
}
