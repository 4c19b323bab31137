package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/relex/gotils/logger"
	"github.com/relex/logchannel/run"
)

type statusCommandState struct {
	Config string `help:"Configuration file path"`
}

var statusCmd = statusCommandState{
	Config: "config.yml",
}

func (cmd *statusCommandState) status(args []string) {
	groups, err := run.LoadStatus(cmd.Config, "logchannel_")
	if err != nil {
		logger.Fatal(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tLOGS\tCONFIGURED")
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%d\t%t\n", g.Name, g.NumLogs, g.Configured)
	}
	w.Flush()
}
