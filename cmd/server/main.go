// Command server runs the wheel engine behind a gRPC API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/xtding233/fairwheel/internal/config"
	"github.com/xtding233/fairwheel/internal/pool"
	"github.com/xtding233/fairwheel/internal/sched"
	"github.com/xtding233/fairwheel/internal/server"
	"github.com/xtding233/fairwheel/internal/store"
	"github.com/xtding233/fairwheel/internal/watch"
	"github.com/xtding233/fairwheel/internal/wheel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "wheel.yaml", "YAML config file (optional)")
	poolPath := flag.String("pool", "", "pool CSV file, overrides pool.path")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *poolPath != "" {
		settings.PoolPath = *poolPath
	}
	if *addr != "" {
		settings.Addr = *addr
	}
	log := config.NewLogger(os.Stderr, settings.LogLevel, settings.LogPretty)

	csv := store.NewCSVStore(settings.PoolPath, log)
	p, err := csv.LoadPool()
	if err != nil {
		// start empty; ReloadPool or the watcher picks the file up later
		log.Warn().Err(err).Msg("no pool loaded")
		p = &pool.Pool{}
	}

	var history *store.History
	if settings.HistoryPath != "" {
		history, err = store.OpenHistory(settings.HistoryPath)
		if err != nil {
			return err
		}
		defer history.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := sched.NewLoop()
	go func() { _ = loop.Run(context.Background()) }()
	defer loop.Stop()

	hub := server.NewHub(log)
	engineOpts := wheel.Options{
		Config:    settings.Spin,
		Scheduler: loop,
		Presenter: hub,
		Sink:      csv,
		Logger:    log,
	}
	svcOpts := server.ServiceOptions{Loader: csv, Hub: hub, Logger: log}
	if history != nil {
		engineOpts.Recorder = history
		svcOpts.History = history
	}

	// svc is assigned before the watcher starts; callbacks never see nil
	var svc *server.Service
	var fw *watch.FileWatcher
	if settings.Watch {
		fw, err = watch.New([]string{settings.PoolPath}, func(string) {
			reloadOnChange(ctx, csv, svc, log)
		}, watch.Options{Logger: log})
		if err != nil {
			return err
		}
		engineOpts.Presenter = &watchGate{
			Presenter: hub,
			watcher:   fw,
			onIdle:    func() { reloadOnChange(ctx, csv, svc, log) },
		}
	}

	engine, err := wheel.New(p, engineOpts)
	if err != nil {
		return err
	}
	defer func() { _ = loop.Do(context.Background(), engine.Close) }()
	svc = server.NewService(engine, loop, svcOpts)

	if fw != nil {
		if err := fw.Start(); err != nil {
			return err
		}
		defer fw.Stop()
	}

	srv, err := server.New(settings.Addr, svc, log)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// reloadOnChange installs an externally edited pool file. Our own saves
// are skipped. A draw that started after the check wins; the file is
// looked at again when it settles.
func reloadOnChange(ctx context.Context, csv *store.CSVStore, svc *server.Service, log zerolog.Logger) {
	changed, err := csv.ChangedOnDisk()
	if err != nil {
		log.Warn().Err(err).Msg("check pool file")
		return
	}
	if !changed {
		return
	}
	if _, err := svc.Reload(ctx); err != nil {
		if errors.Is(err, wheel.ErrBusy) {
			log.Warn().Msg("pool file changed during a draw, not reloaded")
			return
		}
		log.Error().Err(err).Msg("reload pool")
	}
}
