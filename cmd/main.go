package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/ngophuc/toeic-exam-api/config"
	"github.com/ngophuc/toeic-exam-api/database"
	adminctrl "github.com/ngophuc/toeic-exam-api/internal/controller/admin"
	userctrl "github.com/ngophuc/toeic-exam-api/internal/controller/user"
	"github.com/ngophuc/toeic-exam-api/internal/logger"
	"github.com/ngophuc/toeic-exam-api/internal/middleware"
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"github.com/ngophuc/toeic-exam-api/internal/repository"
	"github.com/ngophuc/toeic-exam-api/internal/service"
	"github.com/ngophuc/toeic-exam-api/pkg/mediastore"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title TOEIC Exam API
// @version 1.0
// @description API for TOEIC exam sessions: snapshot-based tests, resumable timed sessions, synchronous L/R grading and AI-assessed Speaking/Writing.
// @contact.name API Support
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
			NewValidator,
			NewMediaStore,
		),

		fx.Provide(
			repository.NewTestRepository,
			repository.NewTestQuestionRepository,
			repository.NewTestResultRepository,
			repository.NewUserAnswerRepository,
			repository.NewAIFeedbackRepository,
			repository.NewPartRepository,
			repository.NewQuestionRepository,
			repository.NewSkillScoreRepository,
		),

		fx.Provide(
			service.NewSnapshotService,
			service.NewTestService,
			service.NewScoreConverterService,
			service.NewGeminiLLMService,
			service.NewGradingService,
			service.NewSessionService,
			service.NewProgressService,
			service.NewAssessmentService,
			service.NewAutoSubmitService,
		),

		fx.Provide(
			adminctrl.NewAdminTestController,
			userctrl.NewUserTestController,
			userctrl.NewFileController,
		),

		fx.Invoke(AutoMigrateDB),
		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(StartAutoSubmitSweep),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
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

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func NewValidator() *validator.Validate {
	return validator.New()
}

func NewMediaStore(cfg *config.Config) (mediastore.Store, error) {
	return mediastore.New(mediastore.Config{
		CloudName: cfg.Cloudinary.CloudName,
		APIKey:    cfg.Cloudinary.APIKey,
		APISecret: cfg.Cloudinary.APISecret,
		Folder:    cfg.Cloudinary.Folder,
	})
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	adminTestCtrl *adminctrl.AdminTestController,
	userTestCtrl *userctrl.UserTestController,
	fileCtrl *userctrl.FileController,
) {
	adminAPIGroup := router.Group("/api/v1/admin")
	{
		testsAdminGroup := adminAPIGroup.Group("/tests")
		testsAdminGroup.POST("/from-bank", adminTestCtrl.CreateFromBank)
		testsAdminGroup.POST("/manual", adminTestCtrl.CreateManual)
		testsAdminGroup.POST("/:test_id/publish", adminTestCtrl.Publish)
		testsAdminGroup.POST("/:test_id/hide", adminTestCtrl.Hide)
		testsAdminGroup.POST("/:test_id/version", adminTestCtrl.CreateNewVersion)
		testsAdminGroup.GET("/:test_id/versions", adminTestCtrl.GetVersions)
	}

	userAPIGroup := router.Group("/api/v1/user")
	userAPIGroup.Use(middleware.Auth(cfg))
	{
		userAPIGroup.GET("/tests", userTestCtrl.GetAllTests)
		userAPIGroup.POST("/tests/start", userTestCtrl.Start)
		userAPIGroup.POST("/tests/save-progress", userTestCtrl.SaveProgress)
		userAPIGroup.POST("/tests/submit/lr", userTestCtrl.SubmitLR)
		userAPIGroup.POST("/assessment/bulk", userTestCtrl.SubmitBulkAssessment)
		userAPIGroup.GET("/tests/history", userTestCtrl.GetHistory)
		userAPIGroup.GET("/tests/result/lr/:test_result_id", userTestCtrl.GetLRResult)
		userAPIGroup.POST("/files/upload", fileCtrl.Upload)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("TOEIC Exam API server starting on port %s", cfg.Server.Port)
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
			return server.Shutdown(shutdownCtx)
		},
	})
}

// StartAutoSubmitSweep runs the expired-session sweeper for the life of the
// application.
func StartAutoSubmitSweep(lc fx.Lifecycle, sweeper *service.AutoSubmitService) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go sweeper.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Part{},
		&model.Question{},
		&model.QuestionGroup{},
		&model.Option{},
		&model.Test{},
		&model.TestQuestion{},
		&model.TestResult{},
		&model.UserAnswer{},
		&model.AIFeedback{},
		&model.UserTestSkillScore{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
