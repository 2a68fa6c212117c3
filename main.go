/*
framekit opens a window and clears it every frame through the Vulkan frame
core until the window is closed or the process is interrupted.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/framekit/engine"
	"github.com/spaghettifunk/framekit/engine/core"
)

func main() {
	configPath := flag.String("config", "framekit.toml", "path to the TOML config file")
	flag.Parse()

	app, err := engine.LoadApplicationConfig(*configPath)
	if err != nil {
		core.LogFatal("loading config: %s", err)
	}
	core.SetLogLevel(app.Config.Log.Level)

	e := engine.New(app)
	if err := e.Initialize(); err != nil {
		core.LogError("initialize: %+v", err)
		e.Shutdown()
		os.Exit(1)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	e.Shutdown()
	if runErr != nil {
		os.Exit(1)
	}
}
