// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/rdfsink/pkg/graph"
	"github.com/kraklabs/rdfsink/pkg/vocab"
)

// configVersion is written into new config files so later releases can
// migrate old layouts.
const configVersion = "1"

// Config is the on-disk configuration. Field names follow the YAML keys.
type Config struct {
	Version      string               `yaml:"version"`
	Neo4j        Neo4jSettings        `yaml:"neo4j"`
	Batching     BatchingSettings     `yaml:"batching"`
	Constraint   ConstraintSettings   `yaml:"constraint"`
	Vocab        VocabSettings        `yaml:"vocab"`
	Relationship RelationshipSettings `yaml:"relationship"`
	Import       ImportSettings       `yaml:"import"`
}

// Neo4jSettings holds the connection target. The password is usually left
// empty here and supplied through NEO4J_PASSWORD.
type Neo4jSettings struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type BatchingSettings struct {
	Enabled   bool `yaml:"enabled"`
	BatchSize int  `yaml:"batch_size"`
}

type ConstraintSettings struct {
	Create bool `yaml:"create"`
}

// VocabSettings mirrors vocab.Config in YAML form. Strategy and Multival
// use the lowercase spellings understood by vocab.ParseStrategy and
// vocab.ParseMultivalStrategy.
type VocabSettings struct {
	Strategy           string         `yaml:"strategy"`
	Multival           string         `yaml:"multival"`
	Prefixes           []PrefixRule   `yaml:"prefixes,omitempty"`
	Mappings           []MappingRule  `yaml:"mappings,omitempty"`
	MultivalPredicates []PredicateRef `yaml:"multival_predicates,omitempty"`
}

type PrefixRule struct {
	Prefix    string `yaml:"prefix"`
	Namespace string `yaml:"namespace"`
}

type MappingRule struct {
	Prefix string `yaml:"prefix"`
	Local  string `yaml:"local"`
	To     string `yaml:"to"`
}

type PredicateRef struct {
	Prefix string `yaml:"prefix"`
	Local  string `yaml:"local"`
}

type RelationshipSettings struct {
	CreatedField string `yaml:"created_field"`
	UpdatedField string `yaml:"updated_field"`
}

// ImportSettings holds defaults for the import and watch commands. Format
// is one of nt, ttl or rdf; empty means detect from the file extension.
type ImportSettings struct {
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Version: configVersion,
		Neo4j: Neo4jSettings{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Batching: BatchingSettings{
			Enabled:   true,
			BatchSize: graph.DefaultBatchSize,
		},
		Constraint: ConstraintSettings{Create: true},
		Vocab: VocabSettings{
			Strategy: vocab.StrategyIgnore.String(),
			Multival: vocab.MultivalOverwrite.String(),
		},
		Relationship: RelationshipSettings{
			CreatedField: "createdAt",
			UpdatedField: "updatedAt",
		},
	}
}

// ConfigPath returns the config file location under dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, ".rdfsink", "config.yaml")
}

// defaultConfigPath resolves the path used when --config is not given:
// .rdfsink/config.yaml in the working directory.
func defaultConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ConfigPath(".")
	}
	return ConfigPath(cwd)
}

// LoadConfig reads the config file at path (or the default location when
// path is empty) and applies environment overrides on top.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// loadConfigOrDefault is the lenient variant used by commands that should
// still work without a config file.
func loadConfigOrDefault(path string, globals GlobalFlags) *Config {
	cfg, err := LoadConfig(path)
	if err != nil {
		if !globals.Quiet && path != "" {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			fmt.Fprintf(os.Stderr, "Using default configuration with environment variable overrides\n")
		}
		cfg = DefaultConfig()
		cfg.applyEnvOverrides()
	}
	return cfg
}

// SaveConfig writes cfg to path, creating the parent directory. The file is
// 0600 because it may carry a password.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets the standard Neo4j environment variables win over
// the file so deployments can keep credentials out of it.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NEO4J_URI"); v != "" {
		c.Neo4j.URI = v
	}
	if v := os.Getenv("NEO4J_USERNAME"); v != "" {
		c.Neo4j.Username = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		c.Neo4j.Password = v
	}
	if v := os.Getenv("NEO4J_DATABASE"); v != "" {
		c.Neo4j.Database = v
	}
}

// VocabConfig builds the vocab.Config described by the file. Every table
// entry is validated; a bad strategy name, duplicate prefix or dangling
// prefix reference fails here rather than mid-ingest.
func (c *Config) VocabConfig() (*vocab.Config, error) {
	strategy, err := vocab.ParseStrategy(c.Vocab.Strategy)
	if err != nil {
		return nil, err
	}
	multival, err := vocab.ParseMultivalStrategy(c.Vocab.Multival)
	if err != nil {
		return nil, err
	}
	vc := vocab.NewConfig(strategy, multival)
	for _, p := range c.Vocab.Prefixes {
		if err := vc.AddPrefix(p.Prefix, p.Namespace); err != nil {
			return nil, err
		}
	}
	for _, m := range c.Vocab.Mappings {
		if err := vc.AddMapping(m.Prefix, m.Local, m.To); err != nil {
			return nil, err
		}
	}
	for _, p := range c.Vocab.MultivalPredicates {
		if err := vc.AddMultivalPredicate(p.Prefix, p.Local); err != nil {
			return nil, err
		}
	}
	return vc, nil
}

// StoreConfig builds the graph.Config described by the file.
func (c *Config) StoreConfig() (graph.Config, error) {
	vc, err := c.VocabConfig()
	if err != nil {
		return graph.Config{}, err
	}
	if c.Neo4j.URI == "" {
		return graph.Config{}, fmt.Errorf("neo4j.uri is required")
	}
	return graph.Config{
		URI:              c.Neo4j.URI,
		Username:         c.Neo4j.Username,
		Password:         c.Neo4j.Password,
		Database:         c.Neo4j.Database,
		Batching:         c.Batching.Enabled,
		BatchSize:        c.Batching.BatchSize,
		CreateConstraint: c.Constraint.Create,
		Vocab:            vc,
		CreatedField:     c.Relationship.CreatedField,
		UpdatedField:     c.Relationship.UpdatedField,
	}, nil
}
