package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
)

// NewRequestID returns a time-sortable request id.
func NewRequestID() string {
	return ulid.Make().String()
}

// OK writes the wp_send_json_success shape.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// Fail writes the wp_send_json_error shape with the error's HTTP status and aborts the chain.
func Fail(c *gin.Context, err error) {
	ae := apperr.From(err)
	body := gin.H{
		"message": ae.Message,
		"code":    ae.Code,
	}
	if len(ae.Details) > 0 {
		body["details"] = ae.Details
	}
	c.AbortWithStatusJSON(ae.StatusCode, gin.H{
		"success": false,
		"data":    body,
	})
}
