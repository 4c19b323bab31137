// Package run runs the channel with collaborators from a config file
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/relex/gotils/logger"
	"github.com/relex/logchannel/defs"
)

// Run launches the channel, replays logs from inputPath ("-" for stdin) and shuts down at EOF or signals
//
// SIGHUP reloads group settings from the config file
func Run(configFile string, inputPath string, metricPrefix string) {
	reloader, loaderErr := NewReloaderFromConfigFile(configFile, metricPrefix)
	if loaderErr != nil {
		logger.Fatal(loaderErr)
	}
	launched, launchErr := reloader.Launch()
	if launchErr != nil {
		logger.Fatal(launchErr)
	}

	runLogger := logger.WithField(defs.LabelComponent, "Launcher")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input, inputErr := openInput(inputPath)
	if inputErr != nil {
		logger.Fatal(inputErr)
	}
	defer input.Close()

	sigChan := make(chan os.Signal, 10)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)
	go func() {
		for s := range sigChan {
			if s == syscall.SIGHUP {
				_ = reloader.Reload(launched)
				continue
			}
			runLogger.Infof("received %s, shutting down", s)
			cancel()
			_ = input.Close() // unblock reading
		}
	}()

	if _, err := launched.Replay(ctx, input); err != nil && ctx.Err() == nil {
		runLogger.Errorf("replay: %s", err.Error())
	}

	if ctx.Err() == nil {
		launched.Drain(ctx, defs.ChannelShutdownTimeout)
	}
	launched.Shutdown()
	runLogger.Info("clean exit")
}

func openInput(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}
