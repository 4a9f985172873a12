package handler

import (
	"time"

	"github.com/gin-gonic/gin"
)

// SuccessResponse is the envelope for every successful API reply
type SuccessResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorBody carries error detail without leaking internal causes
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse is the envelope for every failed API reply
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     ErrorBody `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func respondSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, SuccessResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func respondError(c *gin.Context, status int, message, errType, code string) {
	c.JSON(status, ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Message: message,
			Type:    errType,
			Code:    code,
		},
		Timestamp: time.Now().UTC(),
	})
}
