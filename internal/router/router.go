package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/examdesk/internal/controller/admin"
	"github.com/lshigami/examdesk/internal/controller/user"
	"github.com/lshigami/examdesk/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Attempts   *user.AttemptController
	Exams      *user.ExamController
	Auth       *user.AuthController
	AdminExams *admin.AdminExamController
	AdminUsers *admin.AdminUserController
}

// Register mounts the API under /api plus the operational endpoints.
func Register(router *gin.Engine, validator middleware.TokenValidator, h Handlers) {
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
	}
	api.GET("/users/check/:email", h.Auth.CheckEmail)

	secured := api.Group("", middleware.Auth(validator))

	users := secured.Group("/users")
	{
		users.GET("/profile", h.Auth.GetProfile)
		users.PUT("/profile", h.Auth.UpdateProfile)
	}

	exams := secured.Group("/exams")
	{
		exams.GET("", h.Exams.GetAllExams)
		exams.GET("/:id", h.Exams.GetExamDetails)
	}

	attempts := secured.Group("/attempts")
	{
		attempts.POST("", h.Attempts.CreateAttempt)
		attempts.POST("/start", h.Attempts.StartAttempt)
		attempts.POST("/assignment-status", h.Attempts.UpsertAssignmentStatus)
		attempts.GET("/user-assignments/:subjectId", h.Attempts.ListAssignmentAttempts)
		attempts.GET("/user/:userId", h.Attempts.ListUserAttempts)
		attempts.GET("/exam/:examId", h.Attempts.ListExamAttempts)
		attempts.GET("/:id", h.Attempts.GetAttempt)
		attempts.PUT("/:id", h.Attempts.UpdateAttempt)
		attempts.DELETE("/:id", h.Attempts.DeleteAttempt)
		attempts.POST("/:id/progress", h.Attempts.SaveProgress)
		attempts.POST("/:id/submit", h.Attempts.SubmitAttempt)
		attempts.POST("/:id/abandon", h.Attempts.AbandonAttempt)
	}

	adminAPI := secured.Group("/admin", middleware.RequireAdmin())
	{
		adminAPI.GET("/users", h.AdminUsers.ListUsers)
		adminAPI.DELETE("/users/clear/all", h.AdminUsers.ClearStudents)

		adminAPI.POST("/exams", h.AdminExams.CreateExam)
		adminAPI.GET("/exams/:examId/results", h.AdminExams.GetExamResults)
		adminAPI.GET("/exams/:examId/results/export", h.AdminExams.ExportExamResults)
		adminAPI.GET("/exams/:examId/live", h.AdminExams.LiveAttempts)
	}
}
