package escrow

import (
	"context"
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-escrow/middleware/jwtware"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

var categoryStatus = map[goerrors.Category]int{
	goerrors.CategoryValidation: http.StatusBadRequest,
	goerrors.CategoryBadInput:   http.StatusBadRequest,
	goerrors.CategoryAuth:       http.StatusUnauthorized,
	goerrors.CategoryAuthz:      http.StatusForbidden,
	goerrors.CategoryNotFound:   http.StatusNotFound,
	goerrors.CategoryConflict:   http.StatusConflict,
	goerrors.CategoryRateLimit:  http.StatusTooManyRequests,
	goerrors.CategoryOperation:  http.StatusServiceUnavailable,
}

// ErrorStatus returns the HTTP status for err.
func ErrorStatus(err *goerrors.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	if err.Code >= 400 && err.Code < 600 {
		return err.Code
	}
	if code, ok := categoryStatus[err.Category]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error            string            `json:"error"`
	TextCode         string            `json:"text_code,omitempty"`
	Category         string            `json:"category"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
	ValidationErrors map[string]string `json:"validation_errors,omitempty"`
}

// NewErrorHandler renders every error as a JSON envelope. Unknown errors
// become internal errors and their detail is only logged.
func NewErrorHandler(logger Logger, debug bool) router.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c router.Context, err error) error {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
				WithCode(goerrors.CodeInternal)
		}

		status := ErrorStatus(richErr)
		if status >= http.StatusInternalServerError {
			logger.Error("escrow request failed",
				"error", err,
				"category", richErr.Category,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		} else if debug {
			logger.Debug("escrow request rejected",
				"error", richErr.Message,
				"text_code", richErr.TextCode,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		}

		body := ErrorBody{
			Error:    richErr.Message,
			TextCode: richErr.TextCode,
			Category: richErr.Category.String(),
		}
		if status < http.StatusInternalServerError {
			body.Metadata = richErr.Metadata
			if vm := richErr.ValidationMap(); len(vm) > 0 {
				body.ValidationErrors = vm
			}
		}

		return c.JSON(status, body)
	}
}

// ProtectedRoute returns the bearer token middleware configured from cfg.
// Token failures are reported through errorHandler as ErrUnauthorized.
func ProtectedRoute(cfg Config, validator TokenValidator, errorHandler router.ErrorHandler) router.MiddlewareFunc {
	return jwtware.New(jwtConfig(cfg, validator, errorHandler))
}

// AdminRoute is ProtectedRoute restricted to the admin role.
func AdminRoute(cfg Config, validator TokenValidator, errorHandler router.ErrorHandler) router.MiddlewareFunc {
	jc := jwtConfig(cfg, validator, errorHandler)
	jc.RequiredRole = RoleAdmin
	return jwtware.New(jc)
}

func jwtConfig(cfg Config, validator TokenValidator, errorHandler router.ErrorHandler) jwtware.Config {
	if errorHandler == nil {
		errorHandler = NewErrorHandler(nil, false)
	}

	return jwtware.Config{
		ErrorHandler: func(c router.Context, err error) error {
			if IsError(err, ErrTokenExpired) || IsError(err, ErrTokenMalformed) {
				return errorHandler(c, err)
			}
			if errors.Is(err, jwtware.ErrRequiredRole) {
				return errorHandler(c, withMeta(ErrForbidden, map[string]any{
					"reason": err.Error(),
				}))
			}
			return errorHandler(c, withMeta(ErrUnauthorized, map[string]any{
				"reason": err.Error(),
			}))
		},
		TokenValidator:  jwtwareValidator{validator},
		AuthScheme:      cfg.GetAuthScheme(),
		ContextKey:      cfg.GetContextKey(),
		TokenLookup:     cfg.GetTokenLookup(),
		ContextEnricher: ContextEnricherAdapter,
	}
}

type jwtwareValidator struct {
	validator TokenValidator
}

func (v jwtwareValidator) Validate(token string) (jwtware.AuthClaims, error) {
	claims, err := v.validator.Validate(token)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ContextEnricherAdapter stores claims and the derived Actor in the
// standard context so services can read them without the router.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}
	return WithActorContext(WithClaimsContext(c, authClaims), ActorFromClaims(authClaims))
}
