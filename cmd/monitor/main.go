package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"
	"vigil/internal/core/services"
	"vigil/internal/infrastructure/capture"
	"vigil/internal/infrastructure/display"
	"vigil/internal/infrastructure/repositories"
	"vigil/internal/infrastructure/resolver"
	"vigil/pkg/config"
	"vigil/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	sourceArg := flag.String("source", "", "local file or direct stream URL")
	camArg := flag.String("cam", "", "registered camera name")
	idArg := flag.String("id", "", "platform video URL or ID")
	interval := flag.Duration("interval", 0, "sampling interval override")
	list := flag.Bool("list", false, "list registered cameras and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if *interval > 0 {
		cfg.Monitor.Interval = *interval
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if err := run(cfg, log.Named("monitor"), *sourceArg, *camArg, *idArg, *list); err != nil {
		log.Fatalw("monitor failed", "error", err)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger, sourceArg, camArg, idArg string, list bool) error {
	repoFactory, err := repositories.NewFactory(cfg, log)
	if err != nil {
		return err
	}
	defer repoFactory.Close()

	repo, err := repoFactory.CreateCameraRepository()
	if err != nil {
		return err
	}
	registry := services.NewRegistryService(repo, log)

	if list {
		return printRegistry(registry)
	}

	if countSet(sourceArg, camArg, idArg) > 1 {
		return fmt.Errorf("-source, -cam and -id are mutually exclusive")
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

	sink := display.NewConsoleSink(display.NewHTTPSink(cfg.Monitor.SnapshotDir, log), log)
	commands := display.NewKeyboardCommands(os.Stdin, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case sourceArg != "" && isLocalFile(sourceArg):
		player := services.NewPlayerService(captureFactory, sink, commands, services.PlayerConfig{
			Interval: cfg.Monitor.Interval,
		}, log)
		return player.Play(ctx, sourceArg)

	case sourceArg != "" || camArg != "" || idArg != "":
		source, err := buildSource(ctx, registry, sourceResolver, sourceArg, camArg, idArg)
		if err != nil {
			return err
		}

		monitor := services.NewMonitorService(
			captureFactory, sourceResolver,
			services.NewHealthClassifier(cfg.Classifier.BlackMeanThreshold, cfg.Classifier.FrozenStdDevThreshold),
			sink, commands, services.NewMetricsService(),
			services.MonitorConfig{
				Interval:         cfg.Monitor.Interval,
				FailureThreshold: cfg.Monitor.FailureThreshold,
				HealPause:        cfg.Monitor.HealPause,
			},
			log,
		)
		return monitor.Run(ctx, source)

	default:
		return domain.ErrNoSource
	}
}

func buildSource(ctx context.Context, registry ports.RegistryService, sourceResolver ports.SourceResolver, sourceArg, camArg, idArg string) (domain.Source, error) {
	switch {
	case camArg != "":
		cam, err := registry.FindByName(ctx, camArg)
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

	case idArg != "":
		id := domain.ExtractYouTubeID(idArg)
		address, err := sourceResolver.Resolve(ctx, id)
		if err != nil {
			return domain.Source{}, err
		}
		return domain.Source{Identifier: id, Address: address, Label: string(id)}, nil

	default:
		return domain.Source{
			Address: domain.MediaAddress(sourceArg),
			Label:   sourceArg,
		}, nil
	}
}

func printRegistry(registry ports.RegistryService) error {
	reg, err := registry.Locations(context.Background())
	if err != nil {
		return err
	}

	for _, country := range reg.Countries {
		fmt.Printf("%s\n", country.Name)
		for _, state := range country.States {
			for _, city := range state.Cities {
				fmt.Printf("  %s\n", city.Name)
				for _, cam := range city.Cameras {
					fmt.Printf("    %-40s %s\n", cam.Name, cam.URL)
				}
			}
		}
	}
	return nil
}

// isLocalFile treats anything without a URL scheme as a path on disk.
func isLocalFile(source string) bool {
	return !strings.Contains(source, "://")
}

func countSet(args ...string) int {
	n := 0
	for _, a := range args {
		if a != "" {
			n++
		}
	}
	return n
}
