package connectors

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BridgeBaseURL      string `envconfig:"BRIDGE_BASE_URL" default:"http://127.0.0.1:5000"`
	SyncStreamURL      string `envconfig:"SYNC_STREAM_URL" default:"ws://127.0.0.1:5001/v1/ledger/stream"`
	BridgeProbeTimeout int    `envconfig:"BRIDGE_PROBE_TIMEOUT_SECONDS" default:"3"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
