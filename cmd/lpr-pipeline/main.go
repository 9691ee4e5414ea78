package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"lpr-pipeline/internal/capture"
	"lpr-pipeline/internal/config"
	"lpr-pipeline/internal/db"
	httpapi "lpr-pipeline/internal/http"
	"lpr-pipeline/internal/repository"
	"lpr-pipeline/internal/service"
	"lpr-pipeline/internal/session"
	"lpr-pipeline/internal/sink"
	"lpr-pipeline/internal/textrec"
	"lpr-pipeline/internal/zones"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := run(*configPath, log); err != nil {
		log.Fatal().Err(err).Msg("service failed")
	}
}

func run(configPath string, log zerolog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	gdb, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		return err
	}
	repo := repository.NewReadEventRepository(gdb)

	presets, store, err := zones.LoadPresets(cfg.Zones.PresetFile, cfg.Zones.Preset, zones.Mode(cfg.Zones.Mode))
	if err != nil {
		return err
	}
	activePreset, mode := presets.Active()
	log.Info().Str("preset", activePreset).Str("mode", string(mode)).Msg("zones loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := capture.New(capture.Config{
		QueueSize:     cfg.Pipeline.QueueSize,
		Policy:        capture.DropPolicy(cfg.Pipeline.DropPolicy),
		Cooldown:      cfg.Pipeline.Cooldown,
		MinCropHeight: cfg.Pipeline.MinCropHeight,
		Sharpen:       cfg.Pipeline.Sharpen,
		Text: textrec.Params{
			LineTolerance: cfg.Pipeline.LineTolerance,
			AbsTolerance:  cfg.Pipeline.AbsTolerance,
			MinConfidence: cfg.Pipeline.MinConfidence,
		},
		GlyphAliases: cfg.Pipeline.GlyphAliases,
	}, nil, log)
	if err := pipeline.Start(ctx); err != nil {
		return err
	}
	defer pipeline.Stop()

	aggCfg := session.DefaultConfig()
	aggCfg.Timeout = cfg.Pipeline.SessionTimeout
	agg := session.New(aggCfg, log)

	writer := sink.NewWriter(cfg.Sink.QueueSize, log,
		sink.NewDatabase(repo),
		sink.NewImages(cfg.Sink.ImageRoot),
	)
	// The writer outlives ctx: it must still accept and drain the final
	// flushed session after the signal context is cancelled, so only the
	// deferred Stop ends it.
	writer.Start(context.Background())
	defer writer.Stop()

	svc := service.NewPipelineService(cfg.Pipeline, store, pipeline, agg, writer, repo, log)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		svc.Run(ctx)
	}()
	go svc.RunRetention(ctx, cfg.Database.RetentionDays)

	handler := httpapi.NewHandler(svc, presets, cfg, log)
	srv := &nethttp.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpapi.NewRouter(handler),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	// Cancel the pipeline and wait for the service loop to flush the active
	// session into the writer before the deferred Stop drains it.
	stop()
	<-runDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}
