package syncd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tradeassistant/src/connectors"
	"tradeassistant/src/database"
	"tradeassistant/src/health"
	"tradeassistant/src/syncer"
)

// Syncd runs the sync orchestrator without the HTTP surface: useful when
// the UI process is not running but the mirror should stay warm.
type Syncd struct{}

func (s *Syncd) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to open ledger database")
		return err
	}

	config := connectors.GetConfig()
	bridge := connectors.NewBridgeClient(config.BridgeBaseURL)
	monitor := health.NewMonitor(bridge,
		health.WithProbeTimeout(time.Duration(config.BridgeProbeTimeout)*time.Second))
	stream := connectors.NewSyncStream(config.SyncStreamURL)

	orchestrator := syncer.NewOrchestrator(database.MainDB, monitor, stream)

	logrus.WithField("stream_url", config.SyncStreamURL).Info("Starting ledger sync daemon")

	if err := orchestrator.Run(ctx); err != nil {
		logrus.WithError(err).Error("Sync loop exited with error")
		return err
	}

	return nil
}
