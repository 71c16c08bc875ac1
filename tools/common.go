package tools

import (
	"strconv"
	"strings"

	"Matcha/logger"
	"Matcha/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Fail 按错误码写回 {code,msg,detail}；非 CodeError 一律 500 且不暴露细节
func Fail(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	if status >= 500 {
		logger.Error("[http] request failed",
			zap.String("path", c.FullPath()),
			zap.String("err", err.Error()),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errs.Body(err))
}

// QueryInt 读取整数 query 参数，缺省/非法取 def，并截断到 [1, max]
func QueryInt(c *gin.Context, key string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil || n <= 0 {
		n = def
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}
