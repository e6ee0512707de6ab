package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// RespondBindingError renders a request-binding failure. Validator errors are
// unpacked into a field → rule map so clients see which inputs to fix instead
// of one opaque string.
func RespondBindingError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make(map[string]string, len(validationErrs))
		for _, fieldErr := range validationErrs {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
		RespondJSON(c, "error", http.StatusBadRequest, "Validation failed", nil, fields)
		return
	}
	RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
}
