package cmd

import (
	"context"

	"github.com/relex/gotils/logger"
	"github.com/relex/logchannel/defs"
	"github.com/relex/logchannel/run"
	"github.com/relex/logchannel/util"
)

type runCommandState struct {
	Config      string `help:"Configuration file path"`
	Input       string `help:"JSON-lines file of logs to replay, or '-' for stdin"`
	MetricsAddr string `help:"The listener address to expose Prometheus metrics and debug information"`
	TestMode    bool   `help:"Use test mode config: fast flush and short timeout"`
}

var runCmd runCommandState = runCommandState{
	Config:      "config.yml",
	Input:       "-",
	MetricsAddr: ":9336",
	TestMode:    false,
}

func (cmd *runCommandState) run(args []string) {
	if cmd.TestMode {
		defs.EnableTestMode()
	}

	msrv := util.LaunchMetricsListener(cmd.MetricsAddr)

	run.Run(cmd.Config, cmd.Input, "logchannel_")

	if err := msrv.Shutdown(context.Background()); err != nil {
		logger.Errorf("error shutting down metrics listener: %v", err)
	}
}
