package main

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// config carries a Node's configuration options (id,
// minElectionTimeout, maxElectionTimeout, heartbeatInterval, and the
// data directory of the bolt persistence backend) plus the listen,
// metrics and peer addresses, as a flat file/env-loadable struct, using
// cleanenv rather than hand-rolled flag parsing.
type config struct {
	ID                 string        `yaml:"id" env:"RAFT_ID"`
	ListenAddr         string        `yaml:"listen_addr" env:"RAFT_LISTEN_ADDR" env-default:":7000"`
	DataDir            string        `yaml:"data_dir" env:"RAFT_DATA_DIR" env-default:"./data"`
	MetricsAddr        string        `yaml:"metrics_addr" env:"RAFT_METRICS_ADDR" env-default:":9100"`
	MinElectionTimeout time.Duration `yaml:"min_election_timeout" env:"RAFT_MIN_ELECTION_TIMEOUT" env-default:"150ms"`
	MaxElectionTimeout time.Duration `yaml:"max_election_timeout" env:"RAFT_MAX_ELECTION_TIMEOUT" env-default:"300ms"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval" env:"RAFT_HEARTBEAT_INTERVAL" env-default:"50ms"`
	Peers              []peerConfig  `yaml:"peers"`
}

type peerConfig struct {
	ID   string `yaml:"id"`
	Addr string `yaml:"addr"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return config{}, err
		}
		return cfg, nil
	}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}
