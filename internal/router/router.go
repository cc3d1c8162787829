package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/classhall/assess-backend/internal/config"
	"github.com/classhall/assess-backend/internal/handler"
	"github.com/classhall/assess-backend/internal/middleware"
	"github.com/classhall/assess-backend/internal/response"
	"github.com/classhall/assess-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Assessment *handler.AssessmentHandler
	Grading    *handler.GradingHandler
	Attempt    *handler.AttemptHandler
	WS         *handler.WSHandler
	Monitor    *handler.MonitorHandler
	System     *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	metricsService *service.MetricsService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Record request latency and counts for every route.
	router.Use(middleware.Metrics(metricsService))

	// Health check and Prometheus scrape endpoint.
	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", gin.WrapH(metricsService.Handler()))

	// Autosave traffic is bursty; cap each participant IP rather than the
	// whole instance.
	attemptLimiter := middleware.NewRateLimiter(300, time.Minute)

	// ─── 1. Participant Group (JWT) ────────────────────────────────────
	participantAPI := router.Group("/api/v1/participant")
	participantAPI.Use(
		middleware.RequireParticipantJWT(authService),
		attemptLimiter.Middleware(),
	)
	{
		participantAPI.POST("/assessments/:assessment_id/attempt", handlers.Attempt.Start)
		participantAPI.GET("/assessments/:assessment_id/paper", handlers.Attempt.Paper)
		participantAPI.GET("/assessments/:assessment_id/attempt", handlers.Attempt.State)
		participantAPI.POST("/assessments/:assessment_id/attempt/submit", handlers.Attempt.Submit)
		participantAPI.GET("/assessments/:assessment_id/result", handlers.Attempt.Result)
	}

	// ─── 2. WebSocket Group (Participant WS Auth) ──────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireParticipantWSAuth(authService))
	{
		ws.GET("/participant/assessments/:assessment_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 3. Instructor Group (JWT) ─────────────────────────────────────
	instructorAPI := router.Group("/api/v1/instructor")
	instructorAPI.Use(middleware.RequireInstructorJWT(authService))
	{
		// Assessment lifecycle
		instructorAPI.POST("/assessments", handlers.Assessment.Create)
		instructorAPI.GET("/assessments", handlers.Assessment.List)
		instructorAPI.GET("/assessments/:assessment_id", handlers.Assessment.Get)
		instructorAPI.PUT("/assessments/:assessment_id", handlers.Assessment.Update)
		instructorAPI.DELETE("/assessments/:assessment_id", handlers.Assessment.Delete)
		instructorAPI.POST("/assessments/:assessment_id/publish", handlers.Assessment.Publish)
		instructorAPI.POST("/assessments/:assessment_id/results/publish", handlers.Assessment.PublishResults)

		// Question management
		instructorAPI.GET("/assessments/:assessment_id/questions", handlers.Assessment.ListQuestions)
		instructorAPI.PUT("/assessments/:assessment_id/questions", handlers.Assessment.ReplaceQuestions)

		// Submissions and grading
		instructorAPI.GET("/assessments/:assessment_id/submissions", handlers.Assessment.ListSubmissions)
		instructorAPI.POST("/assessments/:assessment_id/grade", handlers.Grading.GradeAll)
		instructorAPI.POST("/submissions/:submission_id/grade", handlers.Grading.GradeOne)
		instructorAPI.PUT("/submissions/:submission_id/manual-scores", handlers.Grading.SetManualScores)
		instructorAPI.GET("/submissions/:submission_id/integrity", handlers.Grading.ListIntegrityEvents)

		// Live monitor
		instructorAPI.GET("/assessments/:assessment_id/monitor", handlers.Monitor.MonitorSSE)
	}

	return router
}
