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

package stake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/database"
)

type SqliteLedgerConfig struct {
	Database     *database.Database
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Clock defaults to time.Now
	Clock func() time.Time
}

// SqliteLedger keeps balances in the metadata store tables
type SqliteLedger struct {
	db      *database.Database
	logger  *slog.Logger
	clock   func() time.Time
	metrics *ledgerMetrics
}

type ledgerMetrics struct {
	minted      prometheus.Counter
	consumed    prometheus.Counter
	transferred prometheus.Counter
	declined    *prometheus.CounterVec
}

var _ Ledger = (*SqliteLedger)(nil)

func NewSqliteLedger(cfg SqliteLedgerConfig) (*SqliteLedger, error) {
	if cfg.Database == nil {
		return nil, errors.New("stake ledger requires a database")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	l := &SqliteLedger{
		db:     cfg.Database,
		logger: cfg.Logger.With("component", "stake"),
		clock:  cfg.Clock,
	}
	if cfg.PromRegistry != nil {
		l.initMetrics(cfg.PromRegistry)
	}
	return l, nil
}

func (l *SqliteLedger) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	l.metrics = &ledgerMetrics{
		minted: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "clearo_stake_minted_total",
			Help: "stake credited by operators",
		}),
		consumed: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "clearo_stake_consumed_total",
			Help: "stake burned by votes",
		}),
		transferred: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "clearo_stake_transferred_total",
			Help: "stake moved by transfers",
		}),
		declined: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clearo_stake_declined_total",
				Help: "ledger requests that were declined",
			},
			[]string{"operation"},
		),
	}
}

// run executes fn inside the transaction carried by ctx, or in a new
// metadata transaction when there is none
func (l *SqliteLedger) run(
	ctx context.Context,
	readWrite bool,
	fn func(*database.Txn) error,
) error {
	if txn := database.TxnFromContext(ctx); txn != nil {
		if readWrite && !txn.ReadWrite() {
			return database.ErrReadOnly
		}
		if readWrite && txn.Metadata() == nil {
			return database.ErrNoMetadataTxn
		}
		return fn(txn)
	}
	txn := database.NewMetadataOnlyTxn(l.db, readWrite)
	return txn.Do(fn)
}

func (l *SqliteLedger) declined(operation string, err error) error {
	if l.metrics != nil {
		l.metrics.declined.WithLabelValues(operation).Inc()
	}
	l.logger.Debug(
		"stake request declined",
		"operation", operation,
		"error", err,
	)
	return err
}

// Mint credits amount to account
func (l *SqliteLedger) Mint(
	ctx context.Context,
	account auth.Identity,
	amount uint64,
) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	err := l.run(ctx, true, func(txn *database.Txn) error {
		return l.db.CreditStake(
			account.Bytes(),
			amount,
			l.clock().Unix(),
			txn,
		)
	})
	if err != nil {
		return l.declined("mint", err)
	}
	if l.metrics != nil {
		l.metrics.minted.Add(float64(amount))
	}
	l.logger.Info(
		"stake minted",
		"account", account.String(),
		"amount", amount,
	)
	return nil
}

// Balance returns the spendable balance of account
func (l *SqliteLedger) Balance(
	ctx context.Context,
	account auth.Identity,
) (uint64, error) {
	var balance uint64
	err := l.run(ctx, false, func(txn *database.Txn) error {
		var err error
		balance, err = l.db.GetStakeBalance(account.Bytes(), txn)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("read stake balance: %w", err)
	}
	return balance, nil
}

func (l *SqliteLedger) Consume(
	ctx context.Context,
	account auth.Identity,
	amount uint64,
) error {
	if amount == 0 {
		return l.declined("consume", ErrInvalidAmount)
	}
	err := l.run(ctx, true, func(txn *database.Txn) error {
		return l.db.BurnStake(
			account.Bytes(),
			amount,
			l.clock().Unix(),
			txn,
		)
	})
	if err != nil {
		return l.declined("consume", err)
	}
	if l.metrics != nil {
		l.metrics.consumed.Add(float64(amount))
	}
	return nil
}

func (l *SqliteLedger) Transfer(
	ctx context.Context,
	from auth.Identity,
	to auth.Identity,
	amount uint64,
	memo string,
) error {
	if amount == 0 {
		return l.declined("transfer", ErrInvalidAmount)
	}
	err := l.run(ctx, true, func(txn *database.Txn) error {
		return l.db.TransferStake(
			from.Bytes(),
			to.Bytes(),
			amount,
			memo,
			l.clock().Unix(),
			txn,
		)
	})
	if err != nil {
		return l.declined("transfer", err)
	}
	if l.metrics != nil {
		l.metrics.transferred.Add(float64(amount))
	}
	return nil
}
