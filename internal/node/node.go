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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clearo-labs/clearo"
	"github.com/clearo-labs/clearo/internal/config"
	"github.com/clearo-labs/clearo/keystore"
)

// Names of the signing keys loaded from the config
const (
	VerificationAuthorityKeyName = "verification-authority"
	ScoringAuthorityKeyName      = "scoring-authority"
)

// LoadKeys loads the authority signing keys named in cfg
func LoadKeys(cfg *config.Config, logger *slog.Logger) (*keystore.KeyStore, error) {
	ks := keystore.NewKeyStore(keystore.KeyStoreConfig{Logger: logger})
	if cfg.VerificationAuthorityKey != "" {
		if err := ks.LoadFromFile(
			VerificationAuthorityKeyName,
			cfg.VerificationAuthorityKey,
		); err != nil {
			return nil, err
		}
	}
	if cfg.ScoringAuthorityKey != "" {
		if err := ks.LoadFromFile(
			ScoringAuthorityKeyName,
			cfg.ScoringAuthorityKey,
		); err != nil {
			return nil, err
		}
	}
	return ks, nil
}

// New builds a node from the loaded configuration. The verification relay
// is enabled when a verification authority key is configured.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*clearo.Node, error) {
	programs, err := cfg.ProgramIDs()
	if err != nil {
		return nil, err
	}
	principals, err := cfg.Principals()
	if err != nil {
		return nil, err
	}
	treasury, err := cfg.TreasuryIdentity()
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return nil, err
	}
	opts := []clearo.ConfigOptionFunc{
		clearo.WithLogger(logger),
		clearo.WithDatabasePath(cfg.DatabasePath),
		clearo.WithBlobCacheSize(cfg.BlobCacheSize),
		clearo.WithPrometheusRegistry(promRegistry),
		clearo.WithTracing(cfg.Tracing),
		clearo.WithTracingStdout(cfg.TracingStdout),
		clearo.WithShutdownTimeout(shutdownTimeout),
		clearo.WithProgramIDs(programs),
		clearo.WithPrincipals(principals),
		clearo.WithTreasury(treasury),
	}
	if cfg.VerificationAuthorityKey != "" {
		ks, err := LoadKeys(cfg, logger)
		if err != nil {
			return nil, err
		}
		signer, err := ks.Signer(VerificationAuthorityKeyName)
		if err != nil {
			return nil, err
		}
		opts = append(opts, clearo.WithVerificationAuthority(signer))
	}
	return clearo.New(clearo.NewConfig(opts...))
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}
	n, err := New(
		cfg,
		logger,
		// Enable metrics with default prometheus registry
		prometheus.DefaultRegisterer,
	)
	if err != nil {
		return err
	}
	// Metrics listener
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
	logger.Info(
		"serving prometheus metrics on "+metricsAddr,
		"component", "node",
	)
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "node",
			)
			os.Exit(1)
		}
	}()
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	runErr := n.Run(signalCtx)
	if runErr != nil {
		logger.Error("node error", "error", runErr)
	} else {
		logger.Info("signal received, initiating graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
	if err := n.Stop(); err != nil {
		logger.Error("shutdown errors occurred", "error", err)
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("shutdown complete")
	return nil
}
