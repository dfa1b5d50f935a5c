package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 失败原因代码，客户端据此决定是否建议自动重试
const (
	CodeValidation = "validation"
	CodeTransient  = "transient"
)

type Response struct {
	Status string      `json:"status"`
	Msg    string      `json:"msg"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

func Respond(c *gin.Context, httpStatus int, status string, message string, code string, data interface{}) {
	c.JSON(httpStatus, Response{
		Status: status,
		Msg:    message,
		Code:   code,
		Data:   data,
	})
}

// RespondSuccess sends a success response with data.
func RespondSuccess(c *gin.Context, data interface{}) {
	Respond(c, http.StatusOK, "success", "", "", data)
}

// RespondSuccessMessage sends a success response with message and data.
func RespondSuccessMessage(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusOK, "success", message, "", data)
}

// RespondError sends an error response with message.
func RespondError(c *gin.Context, httpStatus int, message string) {
	Respond(c, httpStatus, "error", message, "", nil)
}

// RespondErrorCode sends an error response with a machine-readable failure code.
func RespondErrorCode(c *gin.Context, httpStatus int, code string, message string) {
	Respond(c, httpStatus, "error", message, code, nil)
}
