package cmd

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"mediaserver/broadcast"
	"mediaserver/config"
	"mediaserver/handlers"
	"mediaserver/logger"
	"mediaserver/metrics"
	"mediaserver/middleware"
	"mediaserver/services"
	"mediaserver/store"
)

// Deps overrides the external collaborators of the server. Nil fields get
// the production implementations.
type Deps struct {
	Prober   services.Prober
	Executor services.Executor
	Scraper  services.TitleScraper
	Registry *prometheus.Registry
}

// App is the wired server
type App struct {
	Config    *config.Config
	Log       logger.Logger
	Store     *store.Store
	Settings  *config.Settings
	Hub       *broadcast.Hub
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Downloads services.DownloadService
	Bulk      services.BulkService
	Library   *services.Library
}

// NewApp wires every component around an open store
func NewApp(cfg *config.Config, log logger.Logger, s *store.Store, deps Deps) *App {
	registry := deps.Registry
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	m := metrics.New(registry)
	settings := config.LoadSettings(cfg.SettingsPath, cfg.DownloadDir)
	hub := broadcast.NewHub(log.With(logger.String("component", "broadcast")), m)

	prober := deps.Prober
	if prober == nil {
		prober = services.NewGalleryDLProber(cfg.GalleryDLBin, nil)
	}
	executor := deps.Executor
	if executor == nil {
		executor = services.NewGalleryDLExecutor(cfg.GalleryDLBin, nil, settings.DownloadDir,
			log.With(logger.String("component", "executor")), m)
	}
	scraper := deps.Scraper
	if scraper == nil {
		scraper = services.NewHTMLTitleScraper(nil, cfg.ScrapeTimeout)
	}

	lifecycle := services.NewLifecycle(s, hub, log, m)
	expander := services.NewExpander(prober, log.With(logger.String("component", "expander")), m)

	return &App{
		Config:    cfg,
		Log:       log,
		Store:     s,
		Settings:  settings,
		Hub:       hub,
		Registry:  registry,
		Metrics:   m,
		Downloads: services.NewDownloadService(lifecycle, expander, executor, scraper, log),
		Bulk:      services.NewBulkService(s, hub, log, m),
		Library:   services.NewLibrary(log),
	}
}

// NewRouter builds the HTTP surface
func NewRouter(app *App) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(app.Log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(app.Log))
	r.Use(middleware.CORS(app.Config.CORSOrigins))
	r.Use(middleware.Security())

	downloadHandler := handlers.NewDownloadHandler(app.Store, app.Downloads, app.Hub, app.Log)
	bulkHandler := handlers.NewBulkHandler(app.Bulk)
	fileHandler := handlers.NewFileHandler(app.Library, app.Settings.DownloadDir, app.Log)
	healthHandler := handlers.NewHealthHandler(app.Store, app.Hub.ListenerCount)
	settingsHandler := handlers.NewSettingsHandler(app.Settings)

	setupRoutes(r, app, downloadHandler, bulkHandler, fileHandler, healthHandler, settingsHandler)
	return r
}

// setupRoutes configures all the HTTP routes
func setupRoutes(r *gin.Engine, app *App, downloadHandler *handlers.DownloadHandler, bulkHandler *handlers.BulkHandler, fileHandler *handlers.FileHandler, healthHandler *handlers.HealthHandler, settingsHandler *handlers.SettingsHandler) {
	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler(app.Registry)))

	api := r.Group("/", middleware.APIKey(app.Config.APIKey))
	{
		api.GET("/downloads", downloadHandler.ListDownloads)
		api.POST("/media/download", downloadHandler.StartDownload)
		api.PATCH("/bulkEdit", bulkHandler.BulkEdit)
		api.POST("/bulkDelete", bulkHandler.BulkDelete)

		// live events
		api.GET("/stream", downloadHandler.Stream)
		api.GET("/ws", downloadHandler.WebSocket)

		api.GET("/files", fileHandler.ListFiles)
		api.GET("/files/stream/*filepath", fileHandler.StreamFile)

		api.GET("/settings", settingsHandler.GetSettings)
		api.POST("/settings", settingsHandler.UpdateSettings)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
