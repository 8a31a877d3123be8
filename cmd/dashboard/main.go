package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"
	"vigil/internal/core/services"
	httphandlers "vigil/internal/handlers/http"
	"vigil/internal/infrastructure/capture"
	"vigil/internal/infrastructure/display"
	"vigil/internal/infrastructure/middleware"
	"vigil/internal/infrastructure/monitoring"
	"vigil/internal/infrastructure/repositories"
	"vigil/internal/infrastructure/resolver"
	"vigil/internal/infrastructure/scraper"
	"vigil/internal/infrastructure/search"
	"vigil/pkg/config"
	"vigil/pkg/logger"
	"vigil/pkg/retry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	camName := flag.String("cam", "", "camera name to monitor live (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	repoFactory, err := repositories.NewFactory(cfg, log)
	if err != nil {
		log.Fatalw("repository factory failed", "error", err)
	}
	defer repoFactory.Close()

	repo, err := repoFactory.CreateCameraRepository()
	if err != nil {
		log.Fatalw("camera repository failed", "error", err)
	}

	captureFactory := capture.NewFactory(capture.Config{
		BinPath:     cfg.Capture.FFmpegPath,
		Width:       cfg.Capture.Width,
		Height:      cfg.Capture.Height,
		ReadTimeout: cfg.Capture.ReadTimeout,
	}, log)

	sourceResolver := resolver.NewYtDlp(resolver.Config{
		BinPath:   cfg.Resolver.BinPath,
		Timeout:   cfg.Resolver.Timeout,
		MaxHeight: cfg.Resolver.MaxHeight,
	}, log)

	searchProvider := search.NewYtDlpSearch(search.Config{
		BinPath: cfg.Resolver.BinPath,
		Timeout: cfg.Crawler.HTTPTimeout * 3,
	}, log)

	hlsScraper := scraper.NewHLSScraper(scraper.Config{
		HTTPTimeout: cfg.Crawler.HTTPTimeout,
		Retry:       retry.DefaultConfig(),
	}, log)

	classifier := services.NewHealthClassifier(
		cfg.Classifier.BlackMeanThreshold,
		cfg.Classifier.FrozenStdDevThreshold,
	)
	metrics := services.NewMetricsService()

	registryService := services.NewRegistryService(repo, log)
	auditService := services.NewAuditService(
		repo, sourceResolver, captureFactory, classifier, searchProvider,
		metrics, cfg.Audit.Workers, log,
	)
	crawlerService := services.NewCrawlerService(
		searchProvider, hlsScraper, repo, crawlerConfig(cfg), log,
	)

	sink := display.NewHTTPSink(cfg.Monitor.SnapshotDir, log)
	liveHandler := httphandlers.NewLiveHandler(sink, cfg.Monitor.Interval/2, log)
	registryHandler := httphandlers.NewRegistryHandler(
		registryService, auditService, crawlerService,
		httphandlers.RegistryDefaults{EliteMinHeight: cfg.Audit.MinHeight},
		log,
	)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.ErrorHandler(log))
	router.Use(middleware.RateLimit(cfg))

	registryHandler.SetupRoutes(router)
	liveHandler.SetupRoutes(router)

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("storage", repoFactory.HealthCheck, 2*time.Second)

	startTime := time.Now()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if cfg.Monitoring.PrometheusEnabled {
		collector := monitoring.NewPrometheusCollector(metrics, prometheus.DefaultRegisterer, 5*time.Second)
		go collector.Start(rootCtx)
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("prometheus metrics enabled")
	}

	// A live monitoring session is optional; the registry API works
	// without one.
	monitorDone := make(chan error, 1)
	if *camName != "" {
		source, err := sourceFromRegistry(rootCtx, registryService, sourceResolver, *camName)
		if err != nil {
			log.Fatalw("live source setup failed", "camera", *camName, "error", err)
		}

		monitorService := services.NewMonitorService(
			captureFactory, sourceResolver, classifier,
			display.NewConsoleSink(sink, log), liveHandler, metrics,
			services.MonitorConfig{
				Interval:         cfg.Monitor.Interval,
				FailureThreshold: cfg.Monitor.FailureThreshold,
				HealPause:        cfg.Monitor.HealPause,
			},
			log,
		)
		go func() { monitorDone <- monitorService.Run(rootCtx, source) }()
		log.Infow("live monitor started", "camera", source.Label)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("starting dashboard on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case err := <-monitorDone:
		if err != nil {
			log.Errorw("live monitor stopped", "error", err)
		} else {
			log.Info("live monitor finished")
		}
	case sig := <-sigChan:
		log.Infow("shutdown signal received", "signal", sig)
	}

	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server shutdown failed", "error", err)
	}
	log.Info("dashboard stopped")
}

func crawlerConfig(cfg *config.Config) services.CrawlerConfig {
	out := services.CrawlerConfig{
		SearchLimit:    cfg.Crawler.SearchLimit,
		RequestsPerMin: cfg.Crawler.RequestsPerMin,
	}
	for _, t := range cfg.Crawler.SearchTargets {
		out.Targets = append(out.Targets, services.CrawlTarget{
			Term: t.Term, Location: t.Location, Sector: t.Sector,
		})
	}
	for _, p := range cfg.Crawler.ScrapeTargets {
		out.Pages = append(out.Pages, services.ScrapePage{
			URL: p.URL, Location: p.Location, Sector: p.Sector,
		})
	}
	return out
}

// sourceFromRegistry looks a camera up by name and prepares its source,
// resolving platform feeds to a direct address.
func sourceFromRegistry(ctx context.Context, registry ports.RegistryService, sourceResolver ports.SourceResolver, name string) (domain.Source, error) {
	cam, err := registry.FindByName(ctx, name)
	if err != nil {
		return domain.Source{}, err
	}

	source := domain.Source{
		Identifier: cam.StreamID,
		Address:    domain.MediaAddress(cam.URL),
		Label:      cam.Name,
	}
	if source.Resolvable() {
		address, err := sourceResolver.Resolve(ctx, source.Identifier)
		if err != nil {
			return domain.Source{}, err
		}
		source.Address = address
	}
	return source, nil
}
