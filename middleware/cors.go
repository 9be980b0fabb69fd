package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the dashboard and storefront origins to call the API.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-API-KEY", "X-Requested-With", "Cache-Control",
		},
		ExposeHeaders:    []string{"Content-Type", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
