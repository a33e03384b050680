package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/magnetconv/magnetconv/config"
	"github.com/magnetconv/magnetconv/http"
	dlog "github.com/magnetconv/magnetconv/log"
	"github.com/magnetconv/magnetconv/torrent"
	"github.com/magnetconv/magnetconv/torrent/store"
)

const (
	configFlag = "config"
	portFlag   = "http-port"
	watchFlag  = "watch"
)

func main() {
	app := &cli.App{
		Name:      "magnetconv",
		Usage:     "Converts magnet links into standalone torrent files without downloading content.",
		ArgsUsage: "[magnet uri...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Value:   "./magnetconv-data/config.yaml",
				EnvVars: []string{"MAGNETCONV_CONFIG"},
				Usage:   "YAML file containing magnetconv configuration.",
			},
			&cli.IntFlag{
				Name:    portFlag,
				Value:   0,
				EnvVars: []string{"MAGNETCONV_HTTP_PORT"},
				Usage:   "Override HTTP API port.",
			},
			&cli.BoolFlag{
				Name:    watchFlag,
				Value:   false,
				EnvVars: []string{"MAGNETCONV_WATCH"},
				Usage:   "Force-enable the magnet watch folder.",
			},
		},

		Action: func(c *cli.Context) error {
			return load(c.String(configFlag), c.Int(portFlag), c.Bool(watchFlag), c.Args().Slice())
		},

		HideHelpCommand: true,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("problem starting application")
	}
}

func load(configPath string, port int, forceWatch bool, magnets []string) error {
	ch := config.NewHandler(configPath)

	conf, err := ch.Get()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	dlog.Load(conf.Log)

	if err := os.MkdirAll(conf.Torrent.ScratchFolder, 0744); err != nil {
		return fmt.Errorf("error creating scratch folder: %w", err)
	}

	destDir := conf.Convert.Dir
	if destDir == "" {
		destDir = filepath.Join(filepath.Dir(configPath), "converted")
	}
	if err := os.MkdirAll(destDir, 0744); err != nil {
		return fmt.Errorf("error creating conversion folder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trackers := torrent.FetchTrackers(ctx, conf.Convert.TrackersURL)

	idx, err := store.New(filepath.Join(conf.Torrent.ScratchFolder, "index"))
	if err != nil {
		return fmt.Errorf("error starting conversion index: %w", err)
	}

	stats := torrent.NewStats()
	svc, err := torrent.NewService(conf, trackers, idx, stats)
	if err != nil {
		return err
	}

	var entries []*torrent.Entry
	for _, e := range conf.Entries {
		entries = append(entries, torrent.NewEntry(e.Title, e.URL))
	}
	for _, m := range magnets {
		entries = append(entries, torrent.NewEntry(magnetTitle(m), m))
	}

	svc.ProcessEntries(ctx, entries, destDir)

	gs := stats.Global()
	log.Info().
		Int("converted", gs.Converted).
		Int("failed", gs.Failed).
		Int("skipped", gs.Skipped).
		Msg("pipeline entries processed")

	watch := forceWatch || (conf.Watch != nil && conf.Watch.Enabled)
	serve := conf.HTTP.Enabled || port > 0

	if !watch && !serve {
		return idx.Close()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	var mw *torrent.Watcher
	if watch {
		folder := filepath.Join(filepath.Dir(configPath), "magnets")
		if conf.Watch != nil && conf.Watch.Dir != "" {
			folder = conf.Watch.Dir
		}

		mw, err = torrent.NewWatcher(svc, folder, destDir)
		if err != nil {
			return fmt.Errorf("error creating magnet watcher: %w", err)
		}
		if err := mw.Start(ctx); err != nil {
			return fmt.Errorf("error starting magnet watcher: %w", err)
		}
	}

	go func() {
		<-sigChan
		cancel()
		if mw != nil {
			log.Info().Msg("closing magnet watcher...")
			if err := mw.Close(); err != nil {
				log.Warn().Err(err).Msg("problem closing magnet watcher")
			}
		}
		log.Info().Msg("closing conversion index...")
		if err := idx.Close(); err != nil {
			log.Warn().Err(err).Msg("problem closing conversion index")
		}

		log.Info().Msg("exiting")
		os.Exit(0)
	}()

	if serve {
		if port > 0 {
			conf.HTTP.Port = port
		}
		return http.New(svc, stats, idx, destDir, conf.HTTP)
	}

	// watch-only mode, block until signalled
	select {}
}

func magnetTitle(m string) string {
	if u, err := url.Parse(m); err == nil {
		if dn := u.Query().Get("dn"); dn != "" {
			return dn
		}
	}
	return m
}
