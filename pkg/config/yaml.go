package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig holds the cadence and threshold settings this engine will
// load from an optional YAML file (CONFIG_FILE) before env vars are
// applied on top, mirroring the teacher's separate YAML-driven anchor
// settings file (pkg/config/anchor_config.go) alongside its primary
// env-var Config.
type FileConfig struct {
	Calendar struct {
		TickSeconds int `yaml:"tick_seconds"`
	} `yaml:"calendar"`
	Anchor struct {
		Minute1 int `yaml:"minute_1"`
		Minute2 int `yaml:"minute_2"`
	} `yaml:"anchor"`
	Audit struct {
		ChallengeIntervalSeconds int `yaml:"challenge_interval_seconds"`
		RoundIntervalSeconds     int `yaml:"round_interval_seconds"`
		RetentionHours           int `yaml:"retention_hours"`
		PruneBatchSize           int `yaml:"prune_batch_size"`
	} `yaml:"audit"`
	Registry struct {
		Cap                int   `yaml:"cap"`
		MinBalanceGrains   int64 `yaml:"min_balance_grains"`
		MinNewNodeVersion  int   `yaml:"min_new_node_version"`
		MinExistingVersion int   `yaml:"min_existing_version"`
	} `yaml:"registry"`
}

// loadFileConfig reads and parses the YAML file at path. An empty path
// yields the zero-value FileConfig, under which every field below falls
// through to its env var or hardcoded default.
func loadFileConfig(path string) (*FileConfig, error) {
	fc := &FileConfig{}
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return fc, nil
}
