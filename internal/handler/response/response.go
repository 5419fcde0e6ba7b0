package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transfer-core/pkg/errno"
)

// Response defines the standard JSON structure
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// Success returns a success response with data
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, data)
}

// Accepted 操作已开始，结果通过状态快照观察
func Accepted(c *gin.Context, data interface{}) {
	write(c, http.StatusAccepted, data)
}

func write(c *gin.Context, status int, data interface{}) {
	if data == nil {
		data = gin.H{} // Return empty object instead of null
	}
	c.JSON(status, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error returns an error response
// 业务错误 HTTP 状态码仍为 200，由 code 区分
func Error(c *gin.Context, err error) {
	code, msg := errno.Decode(err)
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: msg,
		Data:    gin.H{},
	})
}
