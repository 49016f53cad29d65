// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full file configuration: where data lives, how the
// embedding endpoint is reached, and which knowledge pools exist.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	InMemory  bool            `yaml:"in_memory"`
	Workers   int             `yaml:"workers"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Pools     []PoolConfig    `yaml:"pools"`
}

// EmbeddingConfig configures the embedding endpoint.
type EmbeddingConfig struct {
	Host     string `yaml:"host"`
	Model    string `yaml:"model"`
	APIToken string `yaml:"api_token"`
}

// PoolConfig declares one knowledge pool.
type PoolConfig struct {
	Name             string   `yaml:"name"`
	EmbeddingVersion string   `yaml:"embedding_version"`
	Collections      []string `yaml:"collections"`
	ChunkFields      []string `yaml:"chunk_fields"`
	ChunkSize        int      `yaml:"chunk_size"`
	ChunkOverlap     int      `yaml:"chunk_overlap"`
}

// Default returns a configuration with usable local defaults.
func Default() *Config {
	return &Config{
		DataDir: "vectorpool-data",
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.DataDir == "" && !c.InMemory {
		return fmt.Errorf("data_dir is required unless in_memory is set")
	}
	seen := make(map[string]bool, len(c.Pools))
	for i, pool := range c.Pools {
		if pool.Name == "" {
			return fmt.Errorf("pools[%d]: name is required", i)
		}
		if seen[pool.Name] {
			return fmt.Errorf("pools[%d]: duplicate pool name %q", i, pool.Name)
		}
		seen[pool.Name] = true
		if pool.EmbeddingVersion == "" {
			return fmt.Errorf("pool %q: embedding_version is required", pool.Name)
		}
		if len(pool.Collections) == 0 {
			return fmt.Errorf("pool %q: at least one collection is required", pool.Name)
		}
		if len(pool.ChunkFields) == 0 {
			return fmt.Errorf("pool %q: at least one chunk field is required", pool.Name)
		}
	}
	return nil
}
