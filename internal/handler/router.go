package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ssn-coe/rcms-api/internal/middleware"
	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/service"
)

// Handlers groups every route handler for registration.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Circulars     *CircularHandler
	Submissions   *SubmissionHandler
	Notifications *NotificationHandler
	Chat          *ChatHandler
	Dashboard     *DashboardHandler
	Reports       *ReportHandler
	Files         *FileHandler
}

// RegisterRoutes mounts the API under prefix. Publish and admin
// endpoints require the admin or principal role; everything except
// auth and file downloads requires a valid token.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, authService *service.AuthService) {
	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/send-otp", h.Auth.SendOTP)
		auth.POST("/verify-otp", h.Auth.VerifyOTP)
		auth.POST("/signup", h.Auth.Signup)
		auth.POST("/login", h.Auth.Login)
	}

	api.GET("/files/:token", h.Files.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))
	{
		protected.GET("/auth/me", h.Auth.Me)
		protected.PUT("/auth/me", h.Auth.UpdateProfile)

		users := protected.Group("/users")
		{
			users.GET("", h.Users.List)
			users.GET("/:id", h.Users.Get)

			manage := users.Group("")
			manage.Use(middleware.RequireRoles(models.RoleAdmin, models.RolePrincipal))
			{
				manage.POST("", h.Users.Create)
				manage.PATCH("/:id/toggle", h.Users.Toggle)
				manage.DELETE("/:id", h.Users.Delete)
			}
		}

		circulars := protected.Group("/circulars")
		{
			circulars.GET("", h.Circulars.List)
			circulars.GET("/categories/summary", h.Circulars.CategorySummary)
			circulars.GET("/:id", h.Circulars.Get)
			circulars.GET("/:id/download", h.Circulars.DownloadURL)

			publish := circulars.Group("")
			publish.Use(middleware.RequireRoles(models.RoleAdmin, models.RolePrincipal))
			{
				publish.POST("", h.Circulars.Create)
				publish.PUT("/:id", h.Circulars.Update)
				publish.DELETE("/:id", h.Circulars.Delete)
			}
		}

		submissions := protected.Group("/submissions")
		{
			submissions.POST("", h.Submissions.Create)
			submissions.GET("", h.Submissions.List)
			submissions.GET("/my", h.Submissions.Mine)
			submissions.GET("/:id", h.Submissions.Get)
			submissions.PATCH("/:id/review", h.Submissions.Review)
			submissions.GET("/:id/download", h.Submissions.DownloadURL)
		}

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", h.Notifications.List)
			notifications.GET("/unread-count", h.Notifications.UnreadCount)
			notifications.PATCH("/read-all", h.Notifications.MarkAllRead)
			notifications.PATCH("/:id/read", h.Notifications.MarkRead)
			notifications.DELETE("/:id", h.Notifications.Delete)
		}

		chat := protected.Group("/chat")
		{
			chat.POST("/direct", h.Chat.SendDirect)
			chat.POST("/group", h.Chat.SendGroup)
			chat.GET("/direct/:id", h.Chat.DirectHistory)
			chat.GET("/group/:name", h.Chat.GroupHistory)
			chat.GET("/contacts", h.Chat.Contacts)
			chat.GET("/groups", h.Chat.Groups)
		}

		dashboard := protected.Group("/dashboard")
		{
			dashboard.GET("/stats", h.Dashboard.Stats)
			dashboard.GET("/activity", h.Dashboard.Activity)

			dashboard.GET("/accreditation", middleware.RequireRoles(models.RoleAdmin, models.RolePrincipal), h.Dashboard.Accreditation)
		}

		reports := protected.Group("/reports")
		reports.Use(middleware.RequireRoles(models.RoleAdmin, models.RolePrincipal))
		{
			reports.GET("/data", h.Reports.Data)
			reports.GET("/annual/pdf", h.Reports.AnnualPDF)
			reports.GET("/department/:department/pdf", h.Reports.DepartmentPDF)
			reports.GET("/csv", h.Reports.CSV)
		}
	}
}
