package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"
	"vigil/internal/core/services"
	"vigil/internal/infrastructure/capture"
	"vigil/internal/infrastructure/repositories"
	"vigil/internal/infrastructure/resolver"
	"vigil/internal/infrastructure/scraper"
	"vigil/internal/infrastructure/search"
	"vigil/pkg/backup"
	"vigil/pkg/config"
	"vigil/pkg/distributed"
	"vigil/pkg/logger"
	"vigil/pkg/retry"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	doCrawl := flag.Bool("crawl", false, "harvest new cameras from search and directory targets")
	doAudit := flag.Bool("audit", false, "probe every registered camera and report health")
	doElite := flag.Bool("elite", false, "drop cameras below the configured resolution")
	importPath := flag.String("import", "", "bulk import cameras from a 'NAME | URL | LOCATION | SECTOR' file")
	restoreName := flag.String("restore", "", "restore the registry from a named snapshot (or 'latest')")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if !*doCrawl && !*doAudit && !*doElite && *importPath == "" && *restoreName == "" {
		log.Fatal("nothing to do: pass -crawl, -audit, -elite, -import or -restore")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, *doCrawl, *doAudit, *doElite, *importPath, *restoreName); err != nil {
		log.Fatalw("run failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, doCrawl, doAudit, doElite bool, importPath, restoreName string) error {
	repoFactory, err := repositories.NewFactory(cfg, log)
	if err != nil {
		return err
	}
	defer repoFactory.Close()

	repo, err := repoFactory.CreateCameraRepository()
	if err != nil {
		return err
	}

	if restoreName != "" {
		return restoreRegistry(ctx, cfg, repo, restoreName, log)
	}

	searchProvider := search.NewYtDlpSearch(search.Config{
		BinPath: cfg.Resolver.BinPath,
		Timeout: cfg.Crawler.HTTPTimeout * 3,
	}, log)

	if importPath != "" {
		f, err := os.Open(importPath)
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()

		added, err := services.NewRegistryService(repo, log).ImportBulk(ctx, f)
		if err != nil {
			return err
		}
		log.Infow("import finished", "added", added)
	}

	if doCrawl {
		// With shared Redis storage, only one crawler may run at a time.
		if client := repoFactory.RedisClient(); client != nil {
			lock := distributed.NewLock(client, "vigil:locks:crawl", 2*time.Minute)
			acquired, err := lock.TryLock(ctx)
			if err != nil {
				return err
			}
			if !acquired {
				return fmt.Errorf("another crawl is already running")
			}
			defer lock.Unlock(ctx)
		}

		hlsScraper := scraper.NewHLSScraper(scraper.Config{
			HTTPTimeout: cfg.Crawler.HTTPTimeout,
			Retry:       retry.DefaultConfig(),
		}, log)

		crawlerCfg := services.CrawlerConfig{
			SearchLimit:    cfg.Crawler.SearchLimit,
			RequestsPerMin: cfg.Crawler.RequestsPerMin,
		}
		for _, t := range cfg.Crawler.SearchTargets {
			crawlerCfg.Targets = append(crawlerCfg.Targets, services.CrawlTarget{
				Term: t.Term, Location: t.Location, Sector: t.Sector,
			})
		}
		for _, p := range cfg.Crawler.ScrapeTargets {
			crawlerCfg.Pages = append(crawlerCfg.Pages, services.ScrapePage{
				URL: p.URL, Location: p.Location, Sector: p.Sector,
			})
		}

		added, err := services.NewCrawlerService(searchProvider, hlsScraper, repo, crawlerCfg, log).Crawl(ctx)
		if err != nil {
			return err
		}
		log.Infow("crawl finished", "added", added)
	}

	if doAudit || doElite {
		auditService := services.NewAuditService(
			repo,
			resolver.NewYtDlp(resolver.Config{
				BinPath:   cfg.Resolver.BinPath,
				Timeout:   cfg.Resolver.Timeout,
				MaxHeight: cfg.Resolver.MaxHeight,
			}, log),
			capture.NewFactory(capture.Config{
				BinPath:     cfg.Capture.FFmpegPath,
				Width:       cfg.Capture.Width,
				Height:      cfg.Capture.Height,
				ReadTimeout: cfg.Capture.ReadTimeout,
			}, log),
			services.NewHealthClassifier(cfg.Classifier.BlackMeanThreshold, cfg.Classifier.FrozenStdDevThreshold),
			searchProvider,
			services.NewMetricsService(),
			cfg.Audit.Workers,
			log,
		)

		if doAudit {
			report, err := auditService.RunFullAudit(ctx)
			if err != nil {
				return err
			}
			for _, result := range report.Results {
				fmt.Printf("%-40s %s\n", result.Name, result.Status)
			}
			fmt.Printf("healthy: %d  degraded: %d\n", report.Healthy, report.Degraded)
		}

		if doElite {
			// The filter rewrites the registry, so snapshot it first.
			if err := snapshotRegistry(ctx, cfg, repo, log); err != nil {
				return err
			}

			kept, err := auditService.FilterElite(ctx, cfg.Audit.MinHeight)
			if err != nil {
				return err
			}
			log.Infow("elite filter finished", "kept", kept, "min_height", cfg.Audit.MinHeight)
		}
	}

	return nil
}

// snapshotRegistry saves the full camera list so a destructive filter can be
// rolled back. Keeps the five most recent snapshots.
func snapshotRegistry(ctx context.Context, cfg *config.Config, repo ports.CameraRepository, log *zap.SugaredLogger) error {
	if cfg.Registry.BackupDir == "" {
		return nil
	}

	cams, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list cameras for snapshot: %w", err)
	}

	storage, err := backup.NewFileStorage(cfg.Registry.BackupDir)
	if err != nil {
		return fmt.Errorf("open backup dir: %w", err)
	}

	manager := backup.NewManager(storage, "vigil")
	name, err := manager.Create(ctx, cams)
	if err != nil {
		return err
	}
	if err := manager.Prune(ctx, 5); err != nil {
		log.Warnw("failed to prune old snapshots", "error", err)
	}

	log.Infow("registry snapshot saved", "name", name, "cameras", len(cams))
	return nil
}

// restoreRegistry replaces the registry contents with a saved snapshot.
func restoreRegistry(ctx context.Context, cfg *config.Config, repo ports.CameraRepository, name string, log *zap.SugaredLogger) error {
	storage, err := backup.NewFileStorage(cfg.Registry.BackupDir)
	if err != nil {
		return fmt.Errorf("open backup dir: %w", err)
	}
	manager := backup.NewManager(storage, "vigil")

	if name == "latest" {
		names, err := manager.List(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return fmt.Errorf("no snapshots found in %s", cfg.Registry.BackupDir)
		}
		name = names[len(names)-1]
	}

	var cams []domain.Camera
	if err := manager.Restore(ctx, name, &cams); err != nil {
		return err
	}
	if err := repo.ReplaceAll(ctx, cams); err != nil {
		return err
	}

	log.Infow("registry restored", "name", name, "cameras", len(cams))
	return nil
}
