package syncer

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SweepPeriod drives the housekeeping tick: intent TTL sweep and
	// unprocessed corporate-action replay between stream batches.
	SweepPeriod time.Duration `envconfig:"SYNC_SWEEP_PERIOD" default:"30s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
