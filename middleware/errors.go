package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"food-ordering-api/apperr"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// FieldError is one entry of a VALIDATION_ERROR details list.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Fail records err for ErrorHandler and stops the chain.
func Fail(c *gin.Context, err error) {
	abort(c, err)
}

// ErrorHandler renders the last error attached to the context as
// {"error":{"code","message","details"}} unless a response was already written.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := toAppError(c.Errors.Last().Err)
		if appErr.Status >= http.StatusInternalServerError {
			log.Error().Err(c.Errors.Last().Err).
				Str("method", c.Request.Method).
				Str("path", c.FullPath()).
				Msg("request failed")
		}
		c.JSON(appErr.Status, envelope(appErr))
	}
}

func envelope(e *apperr.Error) gin.H {
	body := gin.H{"code": e.Code, "message": e.Message}
	if e.Details != nil {
		body["details"] = e.Details
	}
	return gin.H{"error": body}
}

func toAppError(err error) *apperr.Error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		details := make([]FieldError, 0, len(ve))
		for _, fe := range ve {
			details = append(details, FieldError{
				Field: lowerFirst(fe.Field()),
				Rule:  fe.Tag(),
				Param: fe.Param(),
			})
		}
		return apperr.Validation("Request validation failed").WithDetails(details)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return apperr.Validation("Malformed JSON body")
	case errors.As(err, &typeErr):
		return apperr.Validation("Invalid type for field " + typeErr.Field).
			WithDetails([]FieldError{{Field: typeErr.Field, Rule: "type", Param: typeErr.Type.String()}})
	}
	return apperr.From(err)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Recovery turns panics into the INTERNAL_ERROR envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.Error().Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, envelope(apperr.Internal(nil)))
	})
}
