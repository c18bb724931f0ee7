package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/user"
)

// adminMiddleware only lets active admins currently holding one of roles through. No roles means any admin.
// Roles are read from the stored user, not from the token claims.
func adminMiddleware(svc user.Service, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			if usr.IsAdmin() && (len(roles) == 0 || usr.HasAnyRole(roles...)) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// permMiddleware lets through the active users granted any of perms.
func permMiddleware(svc user.Service, perms ...user.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}
			for _, perm := range perms {
				if user.Can(usr, perm) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// learnerAccessMiddleware guards routes about the learner identified by the "id" param.
// Staff need one of perms; parents may only reach their own children.
func learnerAccessMiddleware(usrSvc user.Service, lrnSvc *learner.Service, perms ...user.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return err
			}
			for _, perm := range perms {
				if user.Can(usr, perm) {
					return next(ctx)
				}
			}
			if usr.IsActive && usr.IsParent() {
				ok, err := lrnSvc.IsChildOfUser(ctx.Request().Context(), ctx.Param("id"), usr.ID)
				if err != nil {
					return errors.Wrap(err, "checking parent")
				}
				if ok {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}
