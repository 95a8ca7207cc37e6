package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/footfall/internal/api/handler"
	"github.com/timmy/footfall/internal/api/middleware"
	"github.com/timmy/footfall/internal/config"
	"github.com/timmy/footfall/internal/logger"
	"github.com/timmy/footfall/internal/notify"
	"github.com/timmy/footfall/internal/service"
	"github.com/timmy/footfall/internal/wizard"
)

// Deps are the long-lived components the console routes drive.
type Deps struct {
	Wizard   *wizard.Wizard
	Intake   *service.Intake
	Jobs     *service.JobController
	SubRange *service.SubRangeController
	History  *service.HistoryService
	Bus      notify.Bus
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Deps, cfg *config.ServerConfig, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.Jobs)
	wizardHandler := handler.NewWizardHandler(deps.Wizard, deps.Intake, log)
	jobHandler := handler.NewJobHandler(deps.Jobs, deps.Bus)
	historyHandler := handler.NewHistoryHandler(deps.History)
	analysisHandler := handler.NewAnalysisHandler(deps.SubRange)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Wizard
		wz := v1.Group("/wizard")
		wz.GET("", wizardHandler.State)
		wz.POST("/video", wizardHandler.SelectVideo)
		wz.POST("/frame", wizardHandler.ExtractFrame)
		wz.GET("/frame", wizardHandler.Frame)
		wz.PUT("/window", wizardHandler.SetWindow)
		wz.POST("/window/adjust", wizardHandler.AdjustWindow)
		wz.POST("/points", wizardHandler.AddPoint)
		wz.DELETE("/points/:index", wizardHandler.RemovePoint)
		wz.POST("/navigate", wizardHandler.Navigate)
		wz.POST("/reset", wizardHandler.Reset)

		// Jobs
		v1.POST("/jobs", jobHandler.Submit)
		v1.GET("/jobs/current", jobHandler.Current)
		v1.POST("/jobs/current/cancel", jobHandler.Cancel)
		v1.POST("/jobs/resume", jobHandler.Resume)
		v1.GET("/events", jobHandler.Events)

		// History
		v1.GET("/history", historyHandler.List)
		v1.DELETE("/history/:id", historyHandler.Delete)

		// Analysis
		an := v1.Group("/analysis")
		an.POST("/load", analysisHandler.Load)
		an.GET("", analysisHandler.State)
		an.PUT("/window", analysisHandler.SetWindow)
		an.PUT("/area", analysisHandler.SetArea)
		an.POST("/generate", analysisHandler.Generate)
		an.GET("/result", analysisHandler.Analyze)
		an.GET("/export/:kind", analysisHandler.Export)
	}

	return r
}
