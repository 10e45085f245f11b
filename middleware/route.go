package middleware

import (
	midsec "Chatty/middleware/security"

	"github.com/gin-gonic/gin"
)

// 路由配置选项
type RouteOpt struct {
	IsAuth bool
}

// POST 封装：按需挂鉴权中间件
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, auth *midsec.Options, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path, midsec.Middleware(auth), handler)
	} else {
		r.POST(path, handler)
	}
}

// GET 封装
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, auth *midsec.Options, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path, midsec.Middleware(auth), handler)
	} else {
		r.GET(path, handler)
	}
}

// PUT 封装
func PUT(r gin.IRoutes, path string, handler gin.HandlerFunc, auth *midsec.Options, opt RouteOpt) {
	if opt.IsAuth {
		r.PUT(path, midsec.Middleware(auth), handler)
	} else {
		r.PUT(path, handler)
	}
}
