package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradeassistant/cmd/syncd"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Tradeassistant CMD"
	app.Usage = "The tradeassistant command line interface"

	app.Commands = []cli.Command{
		syncdCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	syncdCMD = cli.Command{
		Name:        "syncd",
		Usage:       "run the ledger sync daemon",
		Action:      syncdAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Mirror the remote ledger without serving the UI API`,
	}
)

func syncdAction(_ *cli.Context) error {

	logrus.Info("Starting ledger sync CMD")
	logrus.WithField("cmd", "syncd")

	daemon := &syncd.Syncd{}
	err := daemon.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}
