package middleware

import (
	"github.com/gin-gonic/gin"
)

// RouteOpt 路由选项
type RouteOpt struct {
	IsAuth   bool // 需要会话 cookie
	Presence bool // 顺带刷新在线状态（仅在 IsAuth 时生效）
	Service  bool // 服务间调用，校验 Bearer JWT
}

// Routes 持有各类鉴权中间件，按 RouteOpt 组装处理链
type Routes struct {
	Auth     gin.HandlerFunc
	Presence gin.HandlerFunc
	Service  gin.HandlerFunc
}

func (rt Routes) chain(handler gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	hs := make([]gin.HandlerFunc, 0, 3)
	if opt.Service && rt.Service != nil {
		hs = append(hs, rt.Service)
	}
	if opt.IsAuth && rt.Auth != nil {
		hs = append(hs, rt.Auth)
		if opt.Presence && rt.Presence != nil {
			hs = append(hs, rt.Presence)
		}
	}
	return append(hs, handler)
}

// GET 封装
func (rt Routes) GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, rt.chain(handler, opt)...)
}

// POST 封装
func (rt Routes) POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, rt.chain(handler, opt)...)
}

// DELETE 封装
func (rt Routes) DELETE(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.DELETE(path, rt.chain(handler, opt)...)
}
