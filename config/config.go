// Package config loads and validates the engine's YAML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"exmatch/domain/instrument"
)

type Config struct {
	Node struct {
		ID int `yaml:"id"`
	} `yaml:"node"`

	Kafka struct {
		Brokers        []string `yaml:"brokers"`
		OrdersTopic    string   `yaml:"orders_topic"`
		TradesTopic    string   `yaml:"trades_topic"`
		BookTopic      string   `yaml:"book_topic"`
		UserTasksTopic string   `yaml:"user_tasks_topic"`
		UserPartitions int32    `yaml:"user_partitions"`
	} `yaml:"kafka"`

	Snapshot struct {
		Dir         string `yaml:"dir"`
		IntervalSec int    `yaml:"interval_sec"`
	} `yaml:"snapshot"`

	Queue struct {
		Inbound  int `yaml:"inbound"`
		Outbound int `yaml:"outbound"`
	} `yaml:"queue"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`

	Instruments []InstrumentConfig `yaml:"instruments"`
}

type InstrumentConfig struct {
	Symbol           string          `yaml:"symbol"`
	PriceDecimals    int32           `yaml:"price_decimals"`
	QuantityDecimals int32           `yaml:"quantity_decimals"`
	BuyMakerFee      decimal.Decimal `yaml:"buy_maker_fee"`
	BuyTakerFee      decimal.Decimal `yaml:"buy_taker_fee"`
	SellMakerFee     decimal.Decimal `yaml:"sell_maker_fee"`
	SellTakerFee     decimal.Decimal `yaml:"sell_taker_fee"`
	FeeCurrency      string          `yaml:"fee_currency"`
	Partition        int             `yaml:"partition"`
}

func (ic InstrumentConfig) ToInstrument() instrument.Instrument {
	return instrument.Instrument{
		Symbol:           ic.Symbol,
		PriceDecimals:    ic.PriceDecimals,
		QuantityDecimals: ic.QuantityDecimals,
		BuyMakerFee:      ic.BuyMakerFee,
		BuyTakerFee:      ic.BuyTakerFee,
		SellMakerFee:     ic.SellMakerFee,
		SellTakerFee:     ic.SellTakerFee,
		FeeCurrency:      ic.FeeCurrency,
		Partition:        ic.Partition,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Snapshot.IntervalSec == 0 {
		c.Snapshot.IntervalSec = 30
	}
	if c.Queue.Inbound == 0 {
		c.Queue.Inbound = 1024
	}
	if c.Queue.Outbound == 0 {
		c.Queue.Outbound = 1024
	}
	if c.Kafka.UserPartitions == 0 {
		c.Kafka.UserPartitions = 100
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.Node.ID < 0 {
		return fmt.Errorf("negative node id")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required")
	}
	if c.Kafka.OrdersTopic == "" || c.Kafka.TradesTopic == "" ||
		c.Kafka.BookTopic == "" || c.Kafka.UserTasksTopic == "" {
		return fmt.Errorf("all kafka topics must be set")
	}
	if c.Snapshot.Dir == "" {
		return fmt.Errorf("snapshot dir is required")
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	seen := make(map[string]bool, len(c.Instruments))
	for _, ic := range c.Instruments {
		if seen[ic.Symbol] {
			return fmt.Errorf("duplicate instrument %s", ic.Symbol)
		}
		seen[ic.Symbol] = true
		if err := ic.ToInstrument().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// UserPartition maps a user id onto the user-tasks topic partition, so a
// user's fills always land on the same partition.
func (c *Config) UserPartition(userID uint64) int32 {
	return int32((userID / 19) % uint64(c.Kafka.UserPartitions))
}
