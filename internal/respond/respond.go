// Package respond writes the JSON error bodies shared by every handler.
package respond

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// GenericProcessingError is shown when a vendor call failed mid-request.
const GenericProcessingError = "An error occurred while processing your message"

// Error aborts with status and message.
func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}

// Fields aborts with 400 and per-field messages.
func Fields(c *gin.Context, fields map[string]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Fields: fields})
}

// BadRequest aborts with 400.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound aborts with 404.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// Internal aborts with 500 and the generic processing message.
func Internal(c *gin.Context) {
	Error(c, http.StatusInternalServerError, GenericProcessingError)
}

// Binding turns a ShouldBind error into a 400: validator failures become
// per-field messages, anything else (malformed JSON) a plain message.
func Binding(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		BadRequest(c, "invalid request body")
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe)] = fieldMessage(fe)
	}
	Fields(c, fields)
}

func fieldName(fe validator.FieldError) string {
	// StructField keeps Go casing; snake_case it to match JSON names.
	name := fe.Field()
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "oneof":
		return "Must be one of: " + fe.Param() + "."
	case "min":
		return "Must be at least " + fe.Param() + "."
	case "max":
		return "Must be at most " + fe.Param() + "."
	case "gt":
		if fe.Param() == "" {
			return "Must be in the future."
		}
		return "Must be greater than " + fe.Param() + "."
	case "eqfield":
		return "Does not match " + fe.Param() + "."
	default:
		return "Invalid value."
	}
}

// ParamID parses a positive integer path parameter. On failure it aborts with
// 404 and reports false.
func ParamID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		NotFound(c, "not found")
		return 0, false
	}
	return uint(id), true
}
