// Package response renders the envelope every handler answers with, plus the
// mapping from the shared error taxonomy onto HTTP statuses.
package response

import "github.com/gin-gonic/gin"

// RespondJSON writes the standard envelope with the given status and payload.
func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}
