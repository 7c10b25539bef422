package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/config"
	"nyiyui.ca/hato/senro/kujo"
	"nyiyui.ca/hato/senro/relay"
	"nyiyui.ca/hato/senro/sim"
	"nyiyui.ca/hato/senro/trace"
	"nyiyui.ca/hato/senro/ui"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		panic(err)
	}
	level := zap.LevelFlag("log-level", zap.InfoLevel, "set log level")
	layoutPath := flag.String("layout", env.Layout, "layout file (JSON); the demo layout if empty")
	listen := flag.String("listen", env.Listen, "address to serve HTTP on; disabled if empty")
	showUI := flag.Bool("ui", false, "show the terminal dashboard")
	frame := flag.Duration("frame", env.Frame, "interval between ticks")
	carry := flag.Bool("carry", false, "carry progress past a segment end onto the next segment")
	logPath := flag.String("log", "senro.log", "log file when -ui is set")
	tracePath := flag.String("trace", "", "record events to this file as JSON lines; disabled if empty")
	flag.Parse()
	dev, err := newLogger(*level, *showUI, *logPath)
	if err != nil {
		panic(err)
	}
	defer dev.Sync()
	zap.ReplaceGlobals(dev)

	c := config.Demo()
	if *layoutPath != "" {
		c, err = config.LoadFile(*layoutPath)
		if err != nil {
			zap.S().Fatalf("load layout: %s", err)
		}
	}
	g, err := c.Build(*carry)
	if err != nil {
		zap.S().Fatalf("build layout: %s", err)
	}
	zap.S().Infow("layout loaded",
		"segments", g.Layout.Len(),
		"trains", len(g.TrainIDs()),
		"carry", *carry)

	if *tracePath != "" {
		tr, err := trace.Create(*tracePath, g.EventMux)
		if err != nil {
			zap.S().Fatalf("trace: %s", err)
		}
		defer tr.Close()
		zap.S().Infow("recording trace", "path", *tracePath)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	s := sim.New(ctx, sim.SimulationConf{Guide: g, Frame: *frame})
	defer s.Close()

	if env.NATSURL != "" {
		nc, err := relay.Dial(env.NATSURL)
		if err != nil {
			zap.S().Fatalf("nats: %s", err)
		}
		defer nc.Drain()
		r := relay.New(relay.Conf{
			Publisher:        nc,
			Prefix:           env.NATSPrefix,
			Snapshots:        g.SnapshotMux,
			Events:           g.EventMux,
			SnapshotInterval: 100 * time.Millisecond,
		})
		defer r.Close()
		zap.S().Infow("relaying to nats", "url", env.NATSURL, "prefix", env.NATSPrefix)
	}

	if *listen != "" {
		k := kujo.NewServer(s, env.AllowedOrigins)
		defer k.Close()
		hs := &http.Server{Addr: *listen, Handler: k}
		go func() {
			zap.S().Infof("starting kujo on %s…", *listen)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zap.S().Errorw("kujo", "err", err)
				cancel()
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			hs.Shutdown(ctx)
		}()
	}

	if *showUI {
		if err := ui.Main(ctx, s); err != nil {
			zap.S().Errorw("ui", "err", err)
		}
		return
	}
	<-ctx.Done()
	zap.S().Infof("shutting down…")
}
