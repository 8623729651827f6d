package utils

import (
	"github.com/gin-gonic/gin"
)

type successBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorBody struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, successBody{Status: status, Message: message, Data: data})
}

// JSONError sends a structured error response, tagged with the request id when one is set
func JSONError(c *gin.Context, status int, err error, message string) {
	c.JSON(status, errorBody{
		Status:    status,
		Message:   message,
		Error:     err.Error(),
		RequestID: c.GetString("request_id"),
	})
}

// AbortWithJSONError sends a structured error response and stops the handler chain
func AbortWithJSONError(c *gin.Context, status int, err error, message string) {
	JSONError(c, status, err, message)
	c.Abort()
}
