package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Origin CORS；前端带 cookie 访问，必须 AllowCredentials，因此不能用 "*"
func Origin(allowed []string) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowed) == 0 {
		conf.AllowOriginFunc = func(string) bool { return true }
	} else {
		conf.AllowOrigins = allowed
	}
	return cors.New(conf)
}
