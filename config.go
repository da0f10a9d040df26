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

package clearo

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/stake"
)

// Default program names. The program id of each component is derived from
// its name unless configured explicitly.
const (
	DefaultRegistryProgramName     = "registry"
	DefaultVerificationProgramName = "verification"
	DefaultVotingProgramName       = "voting"
)

// ProgramIDs identifies the three record-owning components
type ProgramIDs struct {
	Registry     address.ProgramID
	Verification address.ProgramID
	Voting       address.ProgramID
}

func DefaultProgramIDs() ProgramIDs {
	return ProgramIDs{
		Registry:     address.ProgramIDFromName(DefaultRegistryProgramName),
		Verification: address.ProgramIDFromName(DefaultVerificationProgramName),
		Voting:       address.ProgramIDFromName(DefaultVotingProgramName),
	}
}

type Config struct {
	promRegistry          prometheus.Registerer
	logger                *slog.Logger
	stakeLedger           stake.Ledger
	verificationAuthority auth.Signer
	clock                 func() time.Time
	dataDir               string
	blobCacheSize         uint64
	shutdownTimeout       time.Duration
	programs              ProgramIDs
	principals            auth.Principals
	treasury              auth.Identity
	tracing               bool
	tracingStdout         bool
}

func (c *Config) validate() error {
	if c.programs.Registry.IsZero() ||
		c.programs.Verification.IsZero() ||
		c.programs.Voting.IsZero() {
		return errors.New("program ids must not be empty")
	}
	if c.programs.Registry == c.programs.Verification ||
		c.programs.Registry == c.programs.Voting ||
		c.programs.Verification == c.programs.Voting {
		return errors.New("program ids must be distinct")
	}
	if c.principals.VerificationAuthority.IsZero() {
		return errors.New("no verification authority configured")
	}
	if c.principals.ScoringAuthority.IsZero() {
		return errors.New("no scoring authority configured")
	}
	if c.treasury.IsZero() {
		return errors.New("no treasury configured")
	}
	if c.verificationAuthority != nil &&
		c.verificationAuthority.Identity() != c.principals.VerificationAuthority {
		return errors.New(
			"verification authority key does not match the configured principal",
		)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new clearo config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		programs: DefaultProgramIDs(),
		clock:    time.Now,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobCacheSize sets the badger block cache size in bytes
func WithBlobCacheSize(size uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.blobCacheSize = size
	}
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout bounds the time spent in Stop
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithProgramIDs overrides the derived program ids
func WithProgramIDs(programs ProgramIDs) ConfigOptionFunc {
	return func(c *Config) {
		c.programs = programs
	}
}

// WithPrincipals sets the verification and scoring authority identities
func WithPrincipals(principals auth.Principals) ConfigOptionFunc {
	return func(c *Config) {
		c.principals = principals
	}
}

// WithTreasury sets the identity that receives ownership proof stake
func WithTreasury(treasury auth.Identity) ConfigOptionFunc {
	return func(c *Config) {
		c.treasury = treasury
	}
}

// WithStakeLedger replaces the built-in sqlite stake ledger
func WithStakeLedger(ledger stake.Ledger) ConfigOptionFunc {
	return func(c *Config) {
		c.stakeLedger = ledger
	}
}

// WithVerificationAuthority enables the verification relay, which signs
// registry decisions with signer after each completed ownership proof
func WithVerificationAuthority(signer auth.Signer) ConfigOptionFunc {
	return func(c *Config) {
		c.verificationAuthority = signer
	}
}

// WithClock replaces time.Now for all record timestamps
func WithClock(clock func() time.Time) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clock
	}
}
