package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the uniform envelope for every API reply.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// SuccessResponse writes a 200 reply with the given payload.
func SuccessResponse(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// ErrorResponse writes an error reply with the given HTTP code.
func ErrorResponse(c echo.Context, code int, message string) error {
	return c.JSON(code, Response{
		Status:  "error",
		Message: message,
	})
}
