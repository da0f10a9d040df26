// Copyright 2026 Clearo Labs
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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/clearo-labs/clearo"
	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
)

type ctxKey string

const configContextKey ctxKey = "clearo.config"

const DefaultShutdownTimeout = "30s"

// programPrefix marks a bech32 program id. Any other value is a program
// name the id is derived from.
const programPrefix = "clroprog1"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	DatabasePath    string `yaml:"databasePath"    split_words:"true"`
	BindAddr        string `yaml:"bindAddr"        split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	BlobCacheSize   uint64 `yaml:"blobCacheSize"   split_words:"true"`
	MetricsPort     uint   `yaml:"metricsPort"     split_words:"true"`
	Tracing         bool   `yaml:"tracing"`
	TracingStdout   bool   `yaml:"tracingStdout"   split_words:"true"`
	// Program ids, either bech32 or a name to derive from
	RegistryProgram     string `yaml:"registryProgram"     split_words:"true"`
	VerificationProgram string `yaml:"verificationProgram" split_words:"true"`
	VotingProgram       string `yaml:"votingProgram"       split_words:"true"`
	// Authority and treasury identities in bech32
	VerificationAuthority string `yaml:"verificationAuthority" split_words:"true"`
	ScoringAuthority      string `yaml:"scoringAuthority"      split_words:"true"`
	Treasury              string `yaml:"treasury"`
	// Key files for the authorities this process signs for
	VerificationAuthorityKey string `yaml:"verificationAuthorityKey" split_words:"true"`
	ScoringAuthorityKey      string `yaml:"scoringAuthorityKey"      split_words:"true"`
}

func defaultConfig() *Config {
	return &Config{
		DatabasePath:        ".clearo",
		BindAddr:            "0.0.0.0",
		MetricsPort:         12799,
		ShutdownTimeout:     DefaultShutdownTimeout,
		RegistryProgram:     clearo.DefaultRegistryProgramName,
		VerificationProgram: clearo.DefaultVerificationProgramName,
		VotingProgram:       clearo.DefaultVotingProgramName,
	}
}

var globalConfig = defaultConfig()

func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.clearo/clearo.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".clearo", "clearo.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/clearo/clearo.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/clearo/clearo.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	if err := envconfig.Process("clearo", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Validate checks that every configured value parses. Empty authority and
// treasury values are allowed here and rejected by the node.
func (c *Config) Validate() error {
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.ProgramIDs(); err != nil {
		return err
	}
	if _, err := c.Principals(); err != nil {
		return err
	}
	if _, err := c.TreasuryIdentity(); err != nil {
		return err
	}
	return nil
}

func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	timeout, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf(
			"invalid shutdownTimeout %q: %w",
			c.ShutdownTimeout,
			err,
		)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("shutdownTimeout must be positive, got %s", timeout)
	}
	return timeout, nil
}

func (c *Config) ProgramIDs() (clearo.ProgramIDs, error) {
	var ret clearo.ProgramIDs
	var err error
	if ret.Registry, err = resolveProgram("registryProgram", c.RegistryProgram); err != nil {
		return ret, err
	}
	if ret.Verification, err = resolveProgram("verificationProgram", c.VerificationProgram); err != nil {
		return ret, err
	}
	if ret.Voting, err = resolveProgram("votingProgram", c.VotingProgram); err != nil {
		return ret, err
	}
	return ret, nil
}

func resolveProgram(field string, value string) (address.ProgramID, error) {
	if value == "" {
		return address.ProgramID{}, fmt.Errorf("%s must not be empty", field)
	}
	if !strings.HasPrefix(value, programPrefix) {
		return address.ProgramIDFromName(value), nil
	}
	id, err := address.ParseProgramID(value)
	if err != nil {
		return address.ProgramID{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return id, nil
}

func (c *Config) Principals() (auth.Principals, error) {
	var ret auth.Principals
	var err error
	if ret.VerificationAuthority, err = parseOptionalIdentity(
		"verificationAuthority",
		c.VerificationAuthority,
	); err != nil {
		return ret, err
	}
	if ret.ScoringAuthority, err = parseOptionalIdentity(
		"scoringAuthority",
		c.ScoringAuthority,
	); err != nil {
		return ret, err
	}
	return ret, nil
}

func (c *Config) TreasuryIdentity() (auth.Identity, error) {
	return parseOptionalIdentity("treasury", c.Treasury)
}

func parseOptionalIdentity(field string, value string) (auth.Identity, error) {
	if value == "" {
		return auth.Identity{}, nil
	}
	id, err := auth.ParseIdentity(value)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return id, nil
}
