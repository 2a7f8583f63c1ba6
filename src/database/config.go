package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// LedgerPath is the client-resident sqlite file holding the mirrored
	// ledger (positions, trades, intents, orders) and the warm/cold cache
	// tiers. ":memory:" is accepted for throwaway runs.
	LedgerPath   string `envconfig:"LEDGER_DB_PATH" default:"tradeassistant.db"`
	GormLogLevel int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
