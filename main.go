/*
Shapes renders a grid of procedural meshes through a ring of frame
resources so the CPU can record frame N+1 while the GPU draws frame N.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-shapes/engine"
	"github.com/spaghettifunk/anima-shapes/engine/core"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the toml configuration")
	headless := flag.Bool("headless", false, "render without a window on the CPU device")
	frames := flag.Uint64("frames", 300, "frames to draw in headless mode")
	flag.Parse()

	// a missing default file means "use the defaults"
	path := *configPath
	if _, err := os.Stat(path); err != nil && path == "config.toml" {
		path = ""
	}

	config, err := engine.LoadApplicationConfig(path)
	if err != nil {
		core.LogFatal("%s", err)
	}

	e, err := engine.New(config, engine.Options{Headless: *headless, HeadlessFrames: *frames})
	if err != nil {
		core.LogFatal("%s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	if err := e.Initialize(ctx); err != nil {
		_ = e.Shutdown(context.Background())
		core.LogFatal("%s", err)
	}

	runErr := e.Run(ctx)
	// the loop has stopped, shutdown must not be cancelled by the signal
	if err := e.Shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		core.LogFatal("%s", runErr)
	}
}
