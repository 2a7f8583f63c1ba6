package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeassistant/src/cache"
	"tradeassistant/src/connectors"
	"tradeassistant/src/database"
	"tradeassistant/src/handler"
	"tradeassistant/src/health"
	"tradeassistant/src/repository"
	"tradeassistant/src/server"
	"tradeassistant/src/syncer"
)

var (
	APP_NAME = os.Getenv("APP_NAME")
)

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to open ledger database")
	}

	connCfg := connectors.GetConfig()
	bridge := connectors.NewBridgeClient(connCfg.BridgeBaseURL)
	monitor := health.NewMonitor(bridge,
		health.WithProbeTimeout(time.Duration(connCfg.BridgeProbeTimeout)*time.Second))
	stream := connectors.NewSyncStream(connCfg.SyncStreamURL)

	orchestrator := syncer.NewOrchestrator(database.MainDB, monitor, stream)
	tiered := cache.NewTieredCache(repository.NewCacheRepository())
	defer tiered.Close()

	quotes := syncer.NewQuoteService(tiered, bridge, monitor, orchestrator.Accountant())

	assistant := handler.NewAssistant(
		repository.NewPositionRepository(),
		repository.NewConfirmedOrderRepository(),
		repository.NewTradeRepository(),
		orchestrator.Intents(),
		tiered,
		monitor,
		quotes,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := orchestrator.Run(ctx); err != nil {
			logger.WithError(err).Error("sync orchestrator stopped")
		}
	}()

	server.StartServer(server.GetConfig().Port, assistant)
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
