package router

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-journey-api/internal/handler"
	"github.com/noah-isme/learning-journey-api/internal/middleware"
	"github.com/noah-isme/learning-journey-api/internal/models"
	"github.com/noah-isme/learning-journey-api/pkg/config"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Classes  *handler.ClassHandler
	Students *handler.StudentHandler
	Records  *handler.RecordHandler
	Insights *handler.InsightHandler
	Journeys *handler.JourneyHandler
	Exports  *handler.ExportHandler
	Metrics  *handler.MetricsHandler
	JWT      gin.HandlerFunc

	// Audit builds a middleware that records an audit entry for the
	// given action and resource after a successful request.
	Audit func(action, resource string) gin.HandlerFunc
}

// Register wires the HTTP routes into the gin engine.
func Register(r *gin.Engine, cfg *config.Config, deps Dependencies) {
	r.GET("/health", deps.Metrics.Health)
	r.GET("/ready", deps.Metrics.Health)
	r.GET("/metrics", deps.Metrics.Prometheus)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", deps.Auth.Login)
	auth.POST("/refresh", deps.Auth.Refresh)
	auth.POST("/logout", deps.JWT, deps.Auth.Logout)
	auth.POST("/change-password", deps.JWT, deps.Auth.ChangePassword)
	auth.GET("/me", deps.JWT, deps.Auth.Me)

	// Download is authorized by the signed token alone so links can be
	// opened outside an authenticated session.
	api.GET("/exports/download/:token", deps.Exports.Download)

	protected := api.Group("", deps.JWT)

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	users := protected.Group("/users", adminOnly)
	users.GET("", deps.Users.List)
	users.GET("/:id", deps.Users.Get)
	users.POST("", deps.Audit("create", "users"), deps.Users.Create)
	users.PUT("/:id", deps.Audit("update", "users"), deps.Users.Update)
	users.DELETE("/:id", deps.Audit("deactivate", "users"), deps.Users.Delete)

	classes := protected.Group("/classes")
	classes.GET("", anyRole, deps.Classes.List)
	classes.GET("/:id", anyRole, deps.Classes.Get)
	classes.GET("/:id/insights", anyRole, deps.Insights.ClassInsights)
	classes.POST("", adminOnly, deps.Classes.Create)
	classes.PUT("/:id", adminOnly, deps.Classes.Update)
	classes.DELETE("/:id", adminOnly, deps.Classes.Delete)

	students := protected.Group("/students")
	students.GET("", anyRole, deps.Students.List)
	students.GET("/:id", anyRole, deps.Students.Get)
	students.POST("", adminOnly, deps.Audit("create", "students"), deps.Students.Create)
	students.PUT("/:id", adminOnly, deps.Audit("update", "students"), deps.Students.Update)
	students.DELETE("/:id", adminOnly, deps.Audit("deactivate", "students"), deps.Students.Delete)
	students.POST("/:id/reactivate", adminOnly, deps.Audit("reactivate", "students"), deps.Students.Reactivate)
	students.GET("/:id/records/flagged", anyRole, deps.Records.ListFlagged)
	students.GET("/:id/insights", anyRole, deps.Insights.StudentInsights)
	students.POST("/:id/journey", anyRole, deps.Journeys.Compose)
	students.POST("/:id/journey/export", anyRole, deps.Exports.Create)

	records := protected.Group("/records", anyRole)
	records.GET("", deps.Records.List)
	records.GET("/:id", deps.Records.Get)
	records.POST("", deps.Records.Create)
	records.POST("/batch", deps.Records.CreateBatch)
	records.PUT("/:id", deps.Records.Update)
	records.PATCH("/:id/flag", deps.Records.Flag)
	records.DELETE("/:id", deps.Records.Delete)

	exports := protected.Group("/exports", anyRole)
	exports.GET("/:id", deps.Exports.Status)

	protected.GET("/metrics/summary", adminOnly, deps.Metrics.Snapshot)
}
