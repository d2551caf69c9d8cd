package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/auth"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/httpmiddleware"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
)

// Router assembles the gin engine: middleware stack, metrics, health and the
// versioned API surface.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(h.cfg.RateLimitPerMin, h.cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)
	r.POST("/v1/auth/token", h.IssueToken)

	api := r.Group("/v1", auth.UserAuth(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))

	api.GET("/subjects", h.ListSubjects)
	api.GET("/subjects/:id/payloads", h.SubjectPayloads)
	api.GET("/subjects/:id/sessions/active", h.ActiveSession)
	api.POST("/scan", h.Scan)
	api.POST("/codes/redeem", h.RedeemCode)
	api.GET("/sessions/:id/report", h.SessionReport)

	teacher := api.Group("", auth.RequireRole(model.RoleTeacher))
	teacher.POST("/subjects", h.CreateSubject)
	teacher.DELETE("/subjects/:id", h.DeleteSubject)
	teacher.DELETE("/subjects/:id/students/:studentID", h.Unenroll)
	teacher.POST("/subjects/:id/sessions", h.StartSession)
	teacher.POST("/sessions/:id/stop", h.StopSession)
	teacher.GET("/sessions/:id/records", h.ListRecords)
	teacher.PUT("/sessions/:id/records/:studentID", h.OverrideRecord)
	teacher.POST("/sessions/:id/codes", h.IssueCode)
	teacher.POST("/sessions/:id/codes/bulk", h.IssueCodeBatch)

	return r
}

// corsMiddleware allows browser requests from the web front end.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
