package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
)

// statusClientClosedRequest is reported when the client went away before the response was ready.
const statusClientClosedRequest = 499

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler maps domain errors to responses. Server errors are logged with the request & acting
// user; a core shutdown error also calls signalShutdown.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message := errorResponse(err, translator)

		switch {
		case code == statusClientClosedRequest:
			// nobody is listening, only metrics see the status
			if !ctx.Response().Committed {
				ctx.Response().Status = code
			}
			return
		case code >= http.StatusInternalServerError:
			logger.Error("serving "+ctx.Request().Method+" "+ctx.Path(), errors.WithStack(err), requestExtras(ctx), contextActor(ctx))
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

// errorResponse returns the status code & body for err. Bodies are either a message or a map of field errors.
func errorResponse(err error, translator ut.Translator) (int, interface{}) {
	if errors.Is(err, context.Canceled) {
		return statusClientClosedRequest, nil
	}

	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, origErr.Message
		}
		if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
			origErr = herr
		}
		return origErr.Code, origErr.Message
	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		return http.StatusBadRequest, fldErrs
	case *core.ValidationError:
		if origErr.Fields == nil {
			return http.StatusBadRequest, origErr.Error()
		}
		fldErrs := make(map[string]string, len(origErr.Fields))
		for _, fErr := range origErr.Fields {
			fldErrs[fErr.Field] = fErr.Error
		}
		return http.StatusBadRequest, fldErrs
	case *core.NotFoundError:
		return http.StatusNotFound, origErr.Error()
	case *core.ConflictError:
		return http.StatusConflict, origErr.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, "the request took too long, try again later"
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// requestExtras describes the failed request: route, resolved path params & the query string.
func requestExtras(ctx echo.Context) map[string]interface{} {
	req := ctx.Request()
	extras := map[string]interface{}{
		"method": req.Method,
		"route":  ctx.Path(),
		"uri":    req.RequestURI,
	}
	if names := ctx.ParamNames(); len(names) > 0 {
		params := make(map[string]string, len(names))
		for _, name := range names {
			params[name] = ctx.Param(name)
		}
		extras["params"] = params
	}
	if id := req.Header.Get(echo.HeaderXRequestID); id != "" {
		extras["request_id"] = id
	}
	return extras
}

// contextActor is the user behind the request, as far as the token tells.
func contextActor(ctx echo.Context) user.User {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}
	}
	return user.User{ID: claims.Subject, Username: claims.Username, Email: claims.Email, Roles: claims.Roles}
}
