// Package cmd provides list of commands to run the channel and inspect its persistence
package cmd

import (
	"github.com/relex/gotils/config"
)

func init() {
	config.AddParentCmdWithArgs("", "logchannel persists telemetry logs by group and delivers them in batches to ingestion", &rootCmd, rootCmd.preRun, rootCmd.postRun)
	config.AddCmdWithArgs("run ...", "Replay JSON-lines logs into the channel and deliver them", &runCmd, runCmd.run)
	config.AddCmdWithArgs("status ...", "List groups with persisted logs", &statusCmd, statusCmd.status)
}

// Execute parses the command line and runs the specified command
func Execute() {
	// trigger init

	config.Execute()
}
