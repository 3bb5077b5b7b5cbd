package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lshigami/examdesk/config"
	"github.com/lshigami/examdesk/database"
	_ "github.com/lshigami/examdesk/docs" // Swagger docs - generated by swag init
	"github.com/lshigami/examdesk/internal/cache"
	adminctrl "github.com/lshigami/examdesk/internal/controller/admin"
	userctrl "github.com/lshigami/examdesk/internal/controller/user"
	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/logger"
	"github.com/lshigami/examdesk/internal/middleware"
	"github.com/lshigami/examdesk/internal/realtime"
	"github.com/lshigami/examdesk/internal/repository"
	"github.com/lshigami/examdesk/internal/router"
	"github.com/lshigami/examdesk/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title ExamDesk API
// @version 1.0
// @description Online exam platform: exam catalogue, attempt lifecycle with autosave, grading and admin results.
// @contact.name API Support
// @contact.email support@example.com
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app := fx.New(
		// Core
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			cache.NewRedisClient,
			NewGinEngine,
		),

		// Repositories
		fx.Provide(
			NewExamRepository,
			repository.NewAttemptRepository,
			repository.NewUserRepository,
		),

		// Realtime
		fx.Provide(
			realtime.NewHub,
			func(hub *realtime.Hub) service.AttemptNotifier { return hub },
		),

		// Services
		fx.Provide(
			service.NewAttemptService,
			service.NewExamService,
			service.NewAdminExamService,
			service.NewResultsService,
			service.NewAuthService,
			service.NewUserService,
		),

		// Controllers
		fx.Provide(
			userctrl.NewAttemptController,
			userctrl.NewExamController,
			userctrl.NewAuthController,
			adminctrl.NewAdminExamController,
			adminctrl.NewAdminUserController,
		),

		fx.Invoke(
			InitLogger,
			AutoMigrateDB,
			SeedAdmin,
			RegisterRoutesAndStartServer,
		),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop application cleanly")
	}
}

func InitLogger(cfg *config.Config) {
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
}

// NewExamRepository puts the redis cache in front of exam snapshots when redis is available.
func NewExamRepository(db *gorm.DB, client *redis.Client, cfg *config.Config) repository.ExamRepository {
	repo := repository.NewExamRepository(db)
	if client == nil {
		return repo
	}
	return repository.NewCachedExamRepository(repo, cache.NewRedisStore(client, "examdesk"), cfg.Redis.ExamTTL)
}

func NewGinEngine(cfg *config.Config) (*gin.Engine, error) {
	gin.SetMode(cfg.Server.Mode)
	if err := dto.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		requestID, _ := param.Keys[middleware.RequestIDKey].(string)
		log.Info().
			Str("request_id", requestID).
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())
	r.Use(middleware.Metrics())

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.Server.CorsOrigins) == 0 || cfg.Server.CorsOrigins[0] == "*" {
		// Credentials cannot be combined with a literal "*" origin.
		corsConfig.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsConfig.AllowOrigins = cfg.Server.CorsOrigins
	}
	r.Use(cors.New(corsConfig))

	// Swagger UI at /swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r, nil
}

func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	engine *gin.Engine,
	cfg *config.Config,
	authService service.AuthService,
	redisClient *redis.Client,
	attemptCtrl *userctrl.AttemptController,
	examCtrl *userctrl.ExamController,
	authCtrl *userctrl.AuthController,
	adminExamCtrl *adminctrl.AdminExamController,
	adminUserCtrl *adminctrl.AdminUserController,
) {
	router.Register(engine, authService, router.Handlers{
		Attempts:   attemptCtrl,
		Exams:      examCtrl,
		Auth:       authCtrl,
		AdminExams: adminExamCtrl,
		AdminUsers: adminUserCtrl,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("ExamDesk API server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if redisClient != nil {
				return redisClient.Close()
			}
			return nil
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	return database.Migrate(db)
}

// SeedAdmin creates the configured admin account on first start.
func SeedAdmin(cfg *config.Config, authService service.AuthService) error {
	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := authService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Error().Err(err).Msg("Failed to seed admin account")
		return err
	}
	return nil
}
